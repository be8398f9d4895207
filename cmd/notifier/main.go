package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/deusflow/musichub/internal/app"
	"github.com/deusflow/musichub/internal/config"
	"github.com/deusflow/musichub/internal/logger"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunNotifier(ctx, cfg); err != nil {
		logger.Error("Notifier stopped with error", "error", err)
		os.Exit(1)
	}
}
