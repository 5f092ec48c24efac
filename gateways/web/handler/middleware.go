package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/voiceline/gateway/pkg/json"
	pkgjwt "github.com/voiceline/gateway/pkg/jwt"
	"github.com/voiceline/gateway/services/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// RequireAuth verifies the bearer token and stores its claims on the
// request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := pkgjwt.ParseTokenFromHeader(r)
		if err != nil {
			json.WriteError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
			return
		}

		claims, err := h.auth.VerifyAccess(r.Context(), token)
		if err != nil {
			json.WriteError(w, http.StatusUnauthorized, fmt.Errorf("invalid or expired token"))
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates admin routes on the role claim. Must sit inside
// RequireAuth.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		if claims == nil || claims.Role != auth.RoleAdmin {
			json.WriteError(w, http.StatusForbidden, fmt.Errorf("admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFrom(ctx context.Context) *pkgjwt.Claims {
	claims, _ := ctx.Value(claimsKey).(*pkgjwt.Claims)
	return claims
}

// canAccess reports whether the caller owns the resource or is an admin.
func canAccess(claims *pkgjwt.Claims, ownerID string) bool {
	if claims == nil {
		return false
	}
	return claims.Subject == ownerID || claims.Role == auth.RoleAdmin
}
