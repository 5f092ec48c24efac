package authentik

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/voiceline/gateway/config/web"
)

// Client implements the OIDC authorization-code glue against the external
// identity provider.
type Client struct {
	cfg        *config.SSOConfig
	httpClient *http.Client
	log        *slog.Logger
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// UserInfo mirrors the provider's userinfo claims.
type UserInfo struct {
	Sub               string   `json:"sub"`
	Email             string   `json:"email"`
	EmailVerified     bool     `json:"email_verified"`
	Name              string   `json:"name"`
	PreferredUsername string   `json:"preferred_username"`
	Groups            []string `json:"groups"`
}

// AuthConfig is the OIDC configuration blob clients need to start the
// code flow themselves.
type AuthConfig struct {
	Authority   string `json:"authority"`
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`
	Scope       string `json:"scope"`
	AuthURL     string `json:"auth_url"`
	LogoutURL   string `json:"logout_url"`
}

func New(cfg *config.SSOConfig, log *slog.Logger) *Client {
	log.Debug("creating authentik client", slog.String("issuer", cfg.IssuerURL))
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

// ExchangeCode trades an authorization code for provider tokens using
// client_secret_post authentication.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	if redirectURI == "" {
		redirectURI = c.cfg.RedirectURI
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.IssuerURL+"/application/o/token/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("token exchange rejected",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", string(body)))
		return nil, fmt.Errorf("token exchange failed: status %d", resp.StatusCode)
	}

	var tokens TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &tokens, nil
}

// UserInfo fetches the identity claims for a provider access token.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.IssuerURL+"/application/o/userinfo/", nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo rejected: status %d", resp.StatusCode)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("userinfo missing email claim")
	}
	return &info, nil
}

// AuthConfig returns the OIDC settings a client needs to start login.
func (c *Client) AuthConfig() AuthConfig {
	return AuthConfig{
		Authority:   c.cfg.IssuerURL,
		ClientID:    c.cfg.ClientID,
		RedirectURI: c.cfg.RedirectURI,
		Scope:       c.cfg.Scope,
		AuthURL:     c.cfg.IssuerURL + "/application/o/authorize/",
		LogoutURL:   c.cfg.IssuerURL + "/application/o/logout/",
	}
}
