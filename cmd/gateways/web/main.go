package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	config "github.com/voiceline/gateway/config/web"
	"github.com/voiceline/gateway/gateways/web"
	"github.com/voiceline/gateway/pkg/logger"
)

func main() {
	log := logger.Default()

	cfg := config.MustLoad()

	log = logger.New(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		Output:     os.Stderr,
		AddSource:  true,
		JSONFormat: false,
	})

	ctx := logger.WithContext(context.Background(), log)

	rootCtx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer cancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("failed to run()", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	srv, err := web.New(cfg, log)
	if err != nil {
		return err
	}

	return srv.Start(ctx)
}
