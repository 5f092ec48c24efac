package handler

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/voiceline/gateway/pkg/json"
	"github.com/voiceline/gateway/services/auth"
	"github.com/voiceline/gateway/services/store"
)

type loginRequest struct {
	Code        string `json:"code" validate:"required"`
	RedirectURI string `json:"redirect_uri"`
	State       string `json:"state"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type logoutRequest struct {
	AllSessions bool `json:"all_sessions"`
}

func (h *Handler) AuthConfigHandler(w http.ResponseWriter, r *http.Request) {
	json.WriteJSON(w, http.StatusOK, map[string]any{
		"oidc_config": h.sso.AuthConfig(),
	})
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.ParseJSON(r, &req); err != nil {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("authorization code is required"))
		return
	}

	session, err := h.auth.Login(r.Context(), req.Code, req.RedirectURI, auth.ClientInfo{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			json.WriteError(w, http.StatusUnauthorized, fmt.Errorf("login failed"))
			return
		}
		h.log.Error("login failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("login failed"))
		return
	}

	json.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.ParseJSON(r, &req); err != nil {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("refresh token is required"))
		return
	}

	session, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		json.WriteError(w, http.StatusUnauthorized, fmt.Errorf("token refresh failed"))
		return
	}

	json.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	var req logoutRequest
	json.ParseJSON(r, &req) // body is optional

	if err := h.auth.Logout(r.Context(), claims, req.AllSessions); err != nil {
		h.log.Error("logout failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("logout failed"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

func (h *Handler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	user, err := h.auth.Profile(r.Context(), claims)
	if err != nil {
		json.WriteError(w, http.StatusUnauthorized, fmt.Errorf("user not found"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]any{
		"user": user,
		"permissions": map[string]any{
			"role":     user.Role,
			"is_admin": user.Role == auth.RoleAdmin,
		},
	})
}

func (h *Handler) AuthSessionsHandler(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	sessions, err := h.auth.Sessions(r.Context(), claims.Subject)
	if err != nil {
		h.log.Error("list auth sessions failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to get sessions"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]any{
		"sessions":     sessions,
		"total_active": len(sessions),
	})
}

func (h *Handler) RevokeAuthSessionHandler(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.auth.RevokeSession(r.Context(), claims.Subject, sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			json.WriteError(w, http.StatusNotFound, fmt.Errorf("session not found"))
			return
		}
		h.log.Error("revoke session failed", "error", err)
		json.WriteError(w, http.StatusInternalServerError, fmt.Errorf("failed to revoke session"))
		return
	}

	json.WriteJSON(w, http.StatusOK, map[string]string{"message": "session revoked successfully"})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
