package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/go-playground/validator/v10"
	config "github.com/voiceline/gateway/config/web"
	"github.com/voiceline/gateway/gateways/web/clients/authentik"
	"github.com/voiceline/gateway/gateways/web/clients/diarizer"
	"github.com/voiceline/gateway/gateways/web/monitor"
	"github.com/voiceline/gateway/pkg/gen"
	"github.com/voiceline/gateway/services/auth"
	"github.com/voiceline/gateway/services/store"
)

// Backend is the slice of the diarizer client the handlers call directly.
// The monitor holds its own slice for polling.
type Backend interface {
	Upload(ctx context.Context, req *diarizer.UploadRequest) (*diarizer.UploadResponse, error)
	Prompts(ctx context.Context) (*diarizer.PromptsResponse, error)
	Analyze(ctx context.Context, req *diarizer.AnalyzeRequest) (*diarizer.AnalyzeResponse, error)
	Chat(ctx context.Context, req *diarizer.ChatRequest) (*diarizer.ChatResponse, error)
	Download(ctx context.Context, sessionID, filename string) (io.ReadCloser, string, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Health(ctx context.Context) (*diarizer.HealthResponse, error)
	RawResults(ctx context.Context, sessionID string) (json.RawMessage, error)
}

type Handler struct {
	cfg      *config.Config
	backend  Backend
	sso      *authentik.Client
	auth     *auth.Service
	store    *store.Store
	monitor  *monitor.Monitor
	validate *validator.Validate
	uuid     gen.UUIDGenerator
	log      *slog.Logger
}

func New(
	cfg *config.Config,
	backend Backend,
	sso *authentik.Client,
	authSvc *auth.Service,
	st *store.Store,
	mon *monitor.Monitor,
	log *slog.Logger,
) *Handler {
	return &Handler{
		cfg:      cfg,
		backend:  backend,
		sso:      sso,
		auth:     authSvc,
		store:    st,
		monitor:  mon,
		validate: validator.New(),
		uuid:     gen.UUID(),
		log:      log,
	}
}
