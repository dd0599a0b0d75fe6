package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hanno79/Nexora-sub001/internal/api"
	"github.com/hanno79/Nexora-sub001/internal/catalog"
	"github.com/hanno79/Nexora-sub001/internal/config"
	"github.com/hanno79/Nexora-sub001/internal/guided"
	"github.com/hanno79/Nexora-sub001/internal/modelselect"
	"github.com/hanno79/Nexora-sub001/internal/pipeline"
	"github.com/hanno79/Nexora-sub001/internal/provider"
	"github.com/hanno79/Nexora-sub001/internal/realtime"
	"github.com/hanno79/Nexora-sub001/internal/settings"
	"github.com/hanno79/Nexora-sub001/internal/store"
)

func main() {
	// Logger
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.APIKey == "" {
		logger.Warn("NEXORA_API_KEY is not set, endpoints are unauthenticated")
	}

	// SQLite
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Model catalog
	cat, err := catalog.Load(cfg.ModelCatalogPath)
	if err != nil {
		logger.Error("failed to load model catalog", "error", err, "path", cfg.ModelCatalogPath)
		os.Exit(1)
	}

	// Stores
	usageStore := store.NewUsageStore(db)
	settingsStore := store.NewSettingsStore(db)
	sessionStore := store.NewSessionStore(db)

	// Model provider
	ollama := provider.NewOllamaClient(cfg.ProviderBaseURL, cfg.ProviderTimeout)
	if err := ollama.HealthCheck(context.Background()); err != nil {
		logger.Warn("model provider not available at startup, will retry on first use", "error", err)
	}
	resolver := modelselect.NewResolver(ollama, cat, usageStore, logger)

	// Services
	settingsSvc := settings.NewService(settingsStore, cat, cfg.DefaultGuidedRounds, logger)
	manager := guided.NewManager(sessionStore, settingsSvc, resolver, logger)
	dual := pipeline.NewDual(resolver, logger)
	iterative := pipeline.NewIterative(resolver, logger)

	// Realtime
	hub := realtime.NewHub(cfg.SubscriberBuffer, logger)

	// Router
	router := api.NewRouter(api.Deps{
		Guided:   api.NewGuidedHandler(manager, hub, cfg.GenerationTimeout, logger),
		Generate: api.NewGenerateHandler(dual, iterative, settingsSvc, hub, cfg.GenerationTimeout, logger),
		Settings: api.NewSettingsHandler(settingsSvc, usageStore, cat, logger),
		Events:   api.NewEventHandler(hub),
		Health:   api.NewHealthHandler(db, ollama, hub),
		Realtime: hub,
		APIKey:   cfg.APIKey,
		Logger:   logger,
	})

	// Server. No write timeout: generation handlers bound their own time.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("nexora server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// Abandon guided sessions nobody has touched for a while
	g.Go(func() error {
		return manager.RunJanitor(ctx, cfg.SessionSweepInterval, cfg.GuidedSessionTTL)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
