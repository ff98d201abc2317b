package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/xmr-billing/internal/app/provisioner"
	"github.com/magabrotheeeer/xmr-billing/internal/config"
	"github.com/magabrotheeeer/xmr-billing/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting provisioner", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := provisioner.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize provisioner app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("provisioner app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("provisioner app stopped gracefully")
}
