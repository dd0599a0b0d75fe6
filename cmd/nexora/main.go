package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hanno79/Nexora-sub001/internal/client"
	"github.com/hanno79/Nexora-sub001/internal/config"
	"github.com/hanno79/Nexora-sub001/internal/workflow"
)

const (
	serverFlagName  = "server"
	apiKeyFlagName  = "api-key"
	timeoutFlagName = "timeout"
	verboseFlagName = "verbose"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "nexora",
		Short:        "nexora - generate product requirement documents with local models",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String(serverFlagName, "", "orchestration server URL (default $NEXORA_SERVER_URL)")
	rootCmd.PersistentFlags().String(apiKeyFlagName, "", "API key (default $NEXORA_API_KEY)")
	rootCmd.PersistentFlags().Duration(timeoutFlagName, 0, "client wait limit for non-iterative calls")
	rootCmd.PersistentFlags().BoolP(verboseFlagName, "v", false, "log requests to stderr")

	rootCmd.AddCommand(
		setupGenerateCommand(),
		setupGuidedCommand(),
		setupUsageCommand(),
		setupSettingsCommand(),
		setupModelsCommand(),
		setupWatchCommand(),
		setupHealthCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type env struct {
	client *client.Client
	logger *slog.Logger
}

func newEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool(verboseFlagName); verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	serverURL := cfg.ServerURL
	if v, _ := cmd.Flags().GetString(serverFlagName); v != "" {
		serverURL = v
	}
	apiKey := cfg.APIKey
	if v, _ := cmd.Flags().GetString(apiKeyFlagName); v != "" {
		apiKey = v
	}
	timeout := cfg.ClientTimeout
	if v, _ := cmd.Flags().GetDuration(timeoutFlagName); v > 0 {
		timeout = v
	}

	return &env{
		client: client.New(client.Config{
			BaseURL:     serverURL,
			APIKey:      apiKey,
			Timeout:     timeout,
			ReadRetries: cfg.ReadRetries,
			Logger:      logger,
		}),
		logger: logger,
	}, nil
}

// controller builds a workflow controller with saved settings loaded.
func (e *env) controller(ctx context.Context, opts workflow.Options) (*workflow.Controller, error) {
	opts.Logger = e.logger
	c := workflow.New(e.client, opts)
	if _, err := c.LoadSettings(ctx); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return c, nil
}

var (
	bold  = color.New(color.Bold)
	cyan  = color.New(color.FgCyan, color.Bold)
	faint = color.New(color.Faint)
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed, color.Bold)
)

func printSummary(r *workflow.Result, elapsed time.Duration) {
	fmt.Fprintf(os.Stderr, "%s %s tokens with %s in %s\n",
		green.Sprint("done:"), formatTokens(r.TokensUsed), joinModels(r.ModelsUsed),
		elapsed.Round(100*time.Millisecond))
}
