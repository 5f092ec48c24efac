package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	config "github.com/voiceline/gateway/config/web"
	"github.com/voiceline/gateway/gateways/web/clients/authentik"
	"github.com/voiceline/gateway/gateways/web/clients/diarizer"
	"github.com/voiceline/gateway/gateways/web/handler"
	"github.com/voiceline/gateway/gateways/web/monitor"
	"github.com/voiceline/gateway/services/auth"
	"github.com/voiceline/gateway/services/store"
)

type Server struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *store.Store
	monitor *monitor.Monitor
	handler *handler.Handler
}

func New(cfg *config.Config, log *slog.Logger) (*Server, error) {
	log.Info("creating web gateway")
	log.Debug("gateway config",
		slog.Int("port", cfg.Port),
		slog.String("backend_url", cfg.Backend.URL),
		slog.String("sso_issuer", cfg.SSO.IssuerURL),
		slog.String("store_path", cfg.Store.Path))

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	swept, err := st.Sweep(cfg.Store.Retention)
	if err != nil {
		log.Warn("session sweep failed", slog.String("error", err.Error()))
	} else if swept > 0 {
		log.Info("swept expired sessions", slog.Int64("count", swept))
	}

	backend := diarizer.New(&cfg.Backend, log)
	sso := authentik.New(&cfg.SSO, log)
	authSvc := auth.New(&cfg.Auth, sso, st, log)
	mon := monitor.New(backend, st, &cfg.Poll, log)

	// Sessions that were mid-flight when the gateway last stopped pick
	// their polls back up.
	if sessions, err := st.ListAllSessions(); err == nil {
		for _, sess := range sessions {
			if sess.Status == store.StatusQueued || sess.Status == store.StatusProcessing {
				mon.Watch(sess.ID)
			}
		}
	}

	h := handler.New(cfg, backend, sso, authSvc, st, mon, log)

	return &Server{
		cfg:     cfg,
		log:     log,
		store:   st,
		monitor: mon,
		handler: h,
	}, nil
}

func (s *Server) router() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", s.handler.HealthHandler)

	router.Route("/api/v1", func(apiRouter chi.Router) {
		apiRouter.Route("/auth", func(authRouter chi.Router) {
			authRouter.Get("/config", s.handler.AuthConfigHandler)
			authRouter.Post("/login", s.handler.LoginHandler)
			authRouter.Post("/refresh", s.handler.RefreshHandler)

			authRouter.Group(func(protected chi.Router) {
				protected.Use(s.handler.RequireAuth)
				protected.Post("/logout", s.handler.LogoutHandler)
				protected.Get("/profile", s.handler.ProfileHandler)
				protected.Get("/sessions", s.handler.AuthSessionsHandler)
				protected.Delete("/sessions/{sessionID}", s.handler.RevokeAuthSessionHandler)
			})
		})

		apiRouter.Group(func(protected chi.Router) {
			protected.Use(s.handler.RequireAuth)

			protected.Route("/sessions", func(sessionRouter chi.Router) {
				sessionRouter.Post("/", s.handler.UploadHandler)
				sessionRouter.Get("/", s.handler.ListSessionsHandler)
				sessionRouter.Get("/{sessionID}", s.handler.GetSessionHandler)
				sessionRouter.Get("/{sessionID}/results", s.handler.ResultsHandler)
				sessionRouter.Get("/{sessionID}/transcript.txt", s.handler.ExportTranscriptHandler)
				sessionRouter.Post("/{sessionID}/reset", s.handler.ResetHandler)
				sessionRouter.Delete("/{sessionID}", s.handler.DeleteSessionHandler)
				sessionRouter.Get("/{sessionID}/download/{filename}", s.handler.DownloadHandler)
				sessionRouter.Post("/{sessionID}/analyses", s.handler.AnalyzeHandler)
				sessionRouter.Get("/{sessionID}/analyses", s.handler.ListAnalysesHandler)
				sessionRouter.Post("/{sessionID}/chat", s.handler.ChatHandler)
				sessionRouter.Get("/{sessionID}/chat", s.handler.ChatHistoryHandler)
			})

			protected.Get("/prompts", s.handler.PromptsHandler)

			protected.Route("/settings", func(settingsRouter chi.Router) {
				settingsRouter.Get("/upload", s.handler.UploadSettingsHandler)
				settingsRouter.Post("/upload/{kind}/{key}/toggle", s.handler.ToggleUploadOptionHandler)
			})

			protected.Route("/admin", func(adminRouter chi.Router) {
				adminRouter.Use(s.handler.RequireAdmin)
				adminRouter.Get("/users", s.handler.AdminUsersHandler)
				adminRouter.Get("/sessions", s.handler.AdminSessionsHandler)
			})
		})
	})

	return router
}

func (s *Server) Start(ctx context.Context) error {
	s.log.Info("starting web gateway")

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // LLM responses can take a while
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.log.Info("web gateway started", slog.String("address", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		s.log.Info("start shutdown", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.log.Info("closing server due to context cancellation")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("graceful shutdown failed", slog.String("error", err.Error()))
		srv.Close()
	}

	s.monitor.Shutdown()
	if err := s.store.Close(); err != nil {
		s.log.Warn("store close failed", slog.String("error", err.Error()))
	}

	s.log.Info("server stopped cleanly")
	return nil
}
