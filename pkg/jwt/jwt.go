package jwt

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims carries the gateway's session claims on top of the registered set.
type Claims struct {
	Kind     string   `json:"kind"`
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Role     string   `json:"role,omitempty"`
	Groups   []string `json:"groups,omitempty"`
	jwt.RegisteredClaims
}

type TokenParams struct {
	UserID   string
	Username string
	Email    string
	Role     string
	Groups   []string
	Kind     string
	TTL      time.Duration
}

// Generate mints a signed HS256 token with a fresh jti and returns the
// token string together with the jti.
func Generate(ctx context.Context, p TokenParams, secret string) (string, string, error) {
	now := time.Now()
	jti := uuid.New().String()

	claims := Claims{
		Kind:     p.Kind,
		Username: p.Username,
		Email:    p.Email,
		Role:     p.Role,
		Groups:   p.Groups,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, jti, nil
}

// Parse verifies signature and expiry and checks the token kind.
func Parse(ctx context.Context, tokenString, kind, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("wrong token kind: %s", claims.Kind)
	}

	return claims, nil
}

// ParseTokenFromHeader extracts a bearer token from the Authorization header.
func ParseTokenFromHeader(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("malformed authorization header")
	}

	return parts[1], nil
}
