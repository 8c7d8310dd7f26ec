package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dive-atlas/viewport/internal/catalog"
	"github.com/dive-atlas/viewport/internal/catalog/geostore"
	"github.com/dive-atlas/viewport/internal/core/config"
	"github.com/dive-atlas/viewport/internal/logger"
	"github.com/dive-atlas/viewport/internal/observability"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "catalogd",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting catalogd",
		"addr", cfg.Addr,
		"version", Version,
		"redis", cfg.RedisAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := geostore.New(ctx, cfg.RedisAddr)
	if err != nil {
		appLog.Error("failed to initialize store", "err", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	if err := catalog.Seed(ctx, store, cfg.SeedFile, appLog); err != nil {
		appLog.Error("seed failed", "err", err)
		return 1
	}

	handler := catalog.NewRouter(cfg, appLog, store)
	if err := catalog.Run(ctx, cfg, appLog, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
