package http

import (
	"net/http"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/application"
)

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "change_password")
		return
	}

	var req application.ChangePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "change_password", err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), claims.UserID, req); err != nil {
		writeDomainError(r.Context(), w, "change_password", err)
		return
	}
	h.clearRefreshCookie(w)
	writeMessage(w, http.StatusOK, "password changed; all sessions revoked")
}

// forgotPassword always returns 200 for well-formed requests so responses do
// not reveal whether an account exists. Only the rate limit surfaces.
func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "forgot_password", err)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Identifier); err != nil {
		writeDomainError(r.Context(), w, "forgot_password", err)
		return
	}
	writeMessage(w, http.StatusOK, "if the account exists, a reset link has been sent")
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req application.ResetPasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "reset_password", err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		writeDomainError(r.Context(), w, "reset_password", err)
		return
	}
	writeMessage(w, http.StatusOK, "password reset; all sessions revoked")
}
