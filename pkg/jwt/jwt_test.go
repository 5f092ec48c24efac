package jwt

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

const testSecret = "test-secret"

func TestGenerateAndParse(t *testing.T) {
	ctx := context.Background()

	token, jti, err := Generate(ctx, TokenParams{
		UserID:   "user-1",
		Username: "alex",
		Email:    "alex@example.com",
		Role:     "admin",
		Groups:   []string{"admin", "staff"},
		Kind:     KindAccess,
		TTL:      time.Minute,
	}, testSecret)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if jti == "" {
		t.Fatal("generate returned an empty jti")
	}

	claims, err := Parse(ctx, token, KindAccess, testSecret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.Username != "alex" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ID != jti {
		t.Errorf("jti = %q, want %q", claims.ID, jti)
	}
}

func TestParseRejectsWrongKind(t *testing.T) {
	ctx := context.Background()

	token, _, err := Generate(ctx, TokenParams{UserID: "user-1", Kind: KindRefresh, TTL: time.Minute}, testSecret)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := Parse(ctx, token, KindAccess, testSecret); err == nil {
		t.Fatal("refresh token should not parse as access")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	ctx := context.Background()

	token, _, err := Generate(ctx, TokenParams{UserID: "user-1", Kind: KindAccess, TTL: time.Minute}, testSecret)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := Parse(ctx, token, KindAccess, "other-secret"); err == nil {
		t.Fatal("token signed with another secret should not parse")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	ctx := context.Background()

	token, _, err := Generate(ctx, TokenParams{UserID: "user-1", Kind: KindAccess, TTL: -time.Minute}, testSecret)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := Parse(ctx, token, KindAccess, testSecret); err == nil {
		t.Fatal("expired token should not parse")
	}
}

func TestParseTokenFromHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if _, err := ParseTokenFromHeader(r); err == nil {
		t.Fatal("missing header should error")
	}

	r.Header.Set("Authorization", "Basic abc")
	if _, err := ParseTokenFromHeader(r); err == nil {
		t.Fatal("non-bearer header should error")
	}

	r.Header.Set("Authorization", "Bearer token-value")
	token, err := ParseTokenFromHeader(r)
	if err != nil {
		t.Fatalf("bearer header: %v", err)
	}
	if token != "token-value" {
		t.Errorf("token = %q", token)
	}
}
