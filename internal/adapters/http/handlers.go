package http

import (
	"context"
	"net/http"
	"time"

	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/adapters/security"
	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/application"
	"github.com/giahuy0968/EVDealerManagementSystem-sub000/internal/domain"
)

const refreshCookieName = "refresh_token"

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}

// authMiddleware guards endpoints that require a live authenticated session.
// The full verification pipeline (blacklist, signature, session, account)
// runs in the application layer; the middleware only gates on its verdict.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := security.ExtractBearer(r.Header.Get("Authorization"))
		if !ok {
			writeMissingBearerError(r.Context(), w, "auth_middleware")
			return
		}

		result := h.service.Verify(r.Context(), raw)
		if result.Status != application.VerifyAuthenticated {
			reason := result.Reason
			if reason == nil {
				reason = domain.ErrUnauthorized
			}
			writeDomainError(r.Context(), w, "auth_middleware", reason)
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, ctxKeyTokenRaw, raw)
		ctx = context.WithValue(ctx, ctxKeyClaims, *result.Claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "register", err)
		return
	}
	req.IPAddress = readIP(r)

	profile, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeDomainError(r.Context(), w, "register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, profile)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}
	req.IPAddress = readIP(r)
	req.UserAgent = r.UserAgent()

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeDomainError(r.Context(), w, "login", err)
		return
	}

	h.setRefreshCookie(w, res.RefreshToken)
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	// Body is optional when the http-only cookie carries the token.
	_ = decodeBody(r, &req)
	if req.RefreshToken == "" {
		if cookie, err := r.Cookie(refreshCookieName); err == nil {
			req.RefreshToken = cookie.Value
		}
	}
	if req.RefreshToken == "" {
		writeDomainError(r.Context(), w, "refresh", domain.ErrInvalidRefreshToken)
		return
	}

	res, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeDomainError(r.Context(), w, "refresh", err)
		return
	}

	h.setRefreshCookie(w, res.RefreshToken)
	writeSuccess(w, http.StatusOK, res)
}

// logout is idempotent: absent or dead tokens still produce 200 so clients
// can always clear local state.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	raw, ok := security.ExtractBearer(r.Header.Get("Authorization"))
	if ok {
		if err := h.service.Logout(r.Context(), raw); err != nil {
			writeDomainError(r.Context(), w, "logout", err)
			return
		}
	}
	h.clearRefreshCookie(w)
	writeMessage(w, http.StatusOK, "logged out")
}

// verify reports the caller's authentication state without ever failing the
// request: gateways probe it for anonymous traffic too.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	raw, _ := security.ExtractBearer(r.Header.Get("Authorization"))

	result := h.service.Verify(r.Context(), raw)
	switch result.Status {
	case application.VerifyAuthenticated:
		writeSuccess(w, http.StatusOK, map[string]any{
			"state":   "authenticated",
			"profile": result.Profile,
		})
	case application.VerifyAnonymous:
		writeSuccess(w, http.StatusOK, map[string]any{
			"state": "anonymous",
		})
	default:
		_, code, msg := mapDomainError(result.Reason)
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"status":  "error",
			"data":    map[string]any{"state": "invalid"},
			"code":    code,
			"message": msg,
		})
	}
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/auth/v1",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth/v1",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}
