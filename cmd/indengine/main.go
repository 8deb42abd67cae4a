package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"indcore/internal/indengine"
	"indcore/internal/logger"
)

func main() {
	cfg, err := indengine.LoadConfig()
	if err != nil {
		logger.Init("indengine", slog.LevelInfo)
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Init("indengine", logger.ParseLevel(cfg.LogLevel))
	slog.Info("starting indicator engine",
		slog.Any("enabled_tfs", cfg.EnabledTFs),
		slog.String("redis", cfg.RedisAddr),
		slog.String("sqlite", cfg.SQLitePath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := indengine.New(ctx, cfg)
	if err != nil {
		slog.Error("init failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := svc.Run(ctx); err != nil {
		slog.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("indicator engine stopped")
}
