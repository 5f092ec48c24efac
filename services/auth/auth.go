package auth

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	config "github.com/voiceline/gateway/config/web"
	"github.com/voiceline/gateway/gateways/web/clients/authentik"
	"github.com/voiceline/gateway/pkg/gen"
	"github.com/voiceline/gateway/pkg/jwt"
	"github.com/voiceline/gateway/services/store"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrForbidden    = fmt.Errorf("forbidden")
)

// Provider is the slice of the SSO client the service needs.
type Provider interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*authentik.TokenResponse, error)
	UserInfo(ctx context.Context, accessToken string) (*authentik.UserInfo, error)
}

// Service turns SSO code exchanges into gateway-issued token sessions.
type Service struct {
	cfg      *config.AuthConfig
	provider Provider
	store    *store.Store
	uuid     gen.UUIDGenerator
	log      *slog.Logger
}

type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type SessionInfo struct {
	User         *store.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
}

func New(cfg *config.AuthConfig, provider Provider, st *store.Store, log *slog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		provider: provider,
		store:    st,
		uuid:     gen.UUID(),
		log:      log,
	}
}

// Login exchanges an authorization code, upserts the user and mints a
// gateway token pair.
func (s *Service) Login(ctx context.Context, code, redirectURI string, client ClientInfo) (*SessionInfo, error) {
	tokens, err := s.provider.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		s.log.Warn("code exchange failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	info, err := s.provider.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		s.log.Warn("userinfo fetch failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	user := &store.User{
		ID:       s.uuid.NextString(),
		Username: username(info),
		Email:    info.Email,
		FullName: info.Name,
		Role:     s.roleFor(info.Groups),
		Groups:   strings.Join(info.Groups, ","),
	}
	if err := s.store.UpsertUser(user); err != nil {
		return nil, fmt.Errorf("persist user: %w", err)
	}

	session, err := s.issueTokens(ctx, user, client)
	if err != nil {
		return nil, err
	}

	s.log.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
		slog.String("role", user.Role))
	return session, nil
}

// Refresh verifies a refresh token and mints a fresh access token bound to
// the same session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*SessionInfo, error) {
	claims, err := jwt.Parse(ctx, refreshToken, jwt.KindRefresh, s.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	revoked, err := s.store.JTIRevoked(claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: refresh token revoked", ErrUnauthorized)
	}

	user, err := s.store.GetUser(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: user not found", ErrUnauthorized)
	}

	access, accessJTI, err := jwt.Generate(ctx, jwt.TokenParams{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		Groups:   user.GroupList(),
		Kind:     jwt.KindAccess,
		TTL:      s.cfg.AccessTTL,
	}, s.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	// The session keeps one access/refresh jti pair; bind the new access
	// token so verification and logout recognize it.
	if err := s.store.RotateAccessJTI(claims.ID, accessJTI); err != nil {
		return nil, fmt.Errorf("bind refreshed token: %w", err)
	}

	return &SessionInfo{
		User:        user,
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int(s.cfg.AccessTTL.Seconds()),
	}, nil
}

// Logout revokes the current session, or every session for the user.
func (s *Service) Logout(ctx context.Context, claims *jwt.Claims, allSessions bool) error {
	if allSessions {
		return s.store.RevokeAllAuthSessions(claims.Subject)
	}

	sessions, err := s.store.ListAuthSessions(claims.Subject)
	if err != nil {
		return err
	}
	for _, as := range sessions {
		if as.AccessJTI == claims.ID {
			return s.store.RevokeAuthSession(claims.Subject, as.ID)
		}
	}
	// Session already gone; logout is idempotent.
	return nil
}

// VerifyAccess validates a bearer token and its session's liveness.
func (s *Service) VerifyAccess(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := jwt.Parse(ctx, token, jwt.KindAccess, s.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	revoked, err := s.store.JTIRevoked(claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: session revoked", ErrUnauthorized)
	}
	return claims, nil
}

func (s *Service) Profile(ctx context.Context, claims *jwt.Claims) (*store.User, error) {
	user, err := s.store.GetUser(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: user not found", ErrUnauthorized)
	}
	return user, nil
}

func (s *Service) Sessions(ctx context.Context, userID string) ([]*store.AuthSession, error) {
	return s.store.ListAuthSessions(userID)
}

func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	return s.store.RevokeAuthSession(userID, sessionID)
}

func (s *Service) issueTokens(ctx context.Context, user *store.User, client ClientInfo) (*SessionInfo, error) {
	params := jwt.TokenParams{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		Groups:   user.GroupList(),
	}

	params.Kind = jwt.KindAccess
	params.TTL = s.cfg.AccessTTL
	access, accessJTI, err := jwt.Generate(ctx, params, s.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	params.Kind = jwt.KindRefresh
	params.TTL = s.cfg.RefreshTTL
	refresh, refreshJTI, err := jwt.Generate(ctx, params, s.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.store.CreateAuthSession(&store.AuthSession{
		ID:         s.uuid.NextString(),
		UserID:     user.ID,
		AccessJTI:  accessJTI,
		RefreshJTI: refreshJTI,
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
	}); err != nil {
		return nil, fmt.Errorf("persist auth session: %w", err)
	}

	return &SessionInfo{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.cfg.AccessTTL.Seconds()),
	}, nil
}

func (s *Service) roleFor(groups []string) string {
	if slices.Contains(groups, s.cfg.AdminGroup) {
		return RoleAdmin
	}
	return RoleUser
}

func username(info *authentik.UserInfo) string {
	if info.PreferredUsername != "" {
		return info.PreferredUsername
	}
	if at := strings.IndexByte(info.Email, '@'); at > 0 {
		return info.Email[:at]
	}
	return info.Email
}
