package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanno79/Nexora-sub001/internal/client"
	"github.com/hanno79/Nexora-sub001/internal/config"
	"github.com/hanno79/Nexora-sub001/internal/mcp"
)

var version = "dev"

func main() {
	// stdout carries the protocol
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		os.Exit(1)
	}

	c := client.New(client.Config{
		BaseURL:     cfg.ServerURL,
		APIKey:      cfg.APIKey,
		Timeout:     cfg.ClientTimeout,
		ReadRetries: cfg.ReadRetries,
		Logger:      logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(c, version, logger)
	if err := mcp.ServeStdio(ctx, server, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "mcp server error: %s\n", err)
		os.Exit(1)
	}
}
