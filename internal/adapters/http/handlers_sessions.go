package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/application"
	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
)

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "list_sessions")
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), claims.UserID, claims.SessionID)
	if err != nil {
		writeDomainError(r.Context(), w, "list_sessions", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "revoke_session")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "session_id"))
	if err != nil {
		writeDomainError(r.Context(), w, "revoke_session", domain.ErrInvalidInput)
		return
	}

	if err := h.service.RevokeSession(r.Context(), claims.UserID, sessionID); err != nil {
		writeDomainError(r.Context(), w, "revoke_session", err)
		return
	}
	writeMessage(w, http.StatusOK, "session revoked")
}

func (h *Handler) revokeAllSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "revoke_all_sessions")
		return
	}

	if err := h.service.LogoutAll(r.Context(), claims.UserID); err != nil {
		writeDomainError(r.Context(), w, "revoke_all_sessions", err)
		return
	}
	h.clearRefreshCookie(w)
	writeMessage(w, http.StatusOK, "all sessions revoked")
}

func (h *Handler) loginHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "login_history")
		return
	}

	query := application.LoginHistoryQuery{
		Page:   parseIntDefault(r.URL.Query().Get("page"), 1),
		Limit:  parseIntDefault(r.URL.Query().Get("limit"), 20),
		Days:   parseIntDefault(r.URL.Query().Get("days"), 0),
		Status: r.URL.Query().Get("status"),
	}

	history, err := h.service.LoginHistory(r.Context(), claims.UserID, query)
	if err != nil {
		writeDomainError(r.Context(), w, "login_history", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"history": history})
}
