package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     int
	DBPath   string
	APIKey   string
	LogLevel string
	// Model provider
	ProviderBaseURL  string
	ProviderTimeout  time.Duration
	ModelCatalogPath string
	// Generation
	GenerationTimeout    time.Duration
	DefaultGuidedRounds  int
	GuidedSessionTTL     time.Duration
	SessionSweepInterval time.Duration
	// Realtime
	SubscriberBuffer int
	// CLI client
	ServerURL     string
	ClientTimeout time.Duration
	ReadRetries   int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                 envInt("PORT", 8742),
		DBPath:               envStr("NEXORA_DB_PATH", "/data/nexora.db"),
		APIKey:               envStr("NEXORA_API_KEY", ""),
		LogLevel:             envStr("LOG_LEVEL", "info"),
		ProviderBaseURL:      envStr("OLLAMA_BASE_URL", "http://localhost:11434"),
		ProviderTimeout:      envDuration("PROVIDER_TIMEOUT", 5*time.Minute),
		ModelCatalogPath:     envStr("MODEL_CATALOG_PATH", ""),
		GenerationTimeout:    envDuration("GENERATION_TIMEOUT", 30*time.Minute),
		DefaultGuidedRounds:  envInt("GUIDED_QUESTION_ROUNDS", 3),
		GuidedSessionTTL:     envDuration("GUIDED_SESSION_TTL", 2*time.Hour),
		SessionSweepInterval: envDuration("GUIDED_SESSION_SWEEP_INTERVAL", 10*time.Minute),
		SubscriberBuffer:     envInt("REALTIME_SUBSCRIBER_BUFFER", 32),
		ServerURL:            envStr("NEXORA_SERVER_URL", "http://localhost:8742"),
		ClientTimeout:        envDuration("NEXORA_CLIENT_TIMEOUT", 5*time.Minute),
		ReadRetries:          envInt("NEXORA_READ_RETRIES", 2),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("NEXORA_DB_PATH must not be empty")
	}
	if c.ProviderBaseURL == "" {
		return fmt.Errorf("OLLAMA_BASE_URL must not be empty")
	}
	if c.DefaultGuidedRounds < 1 {
		return fmt.Errorf("GUIDED_QUESTION_ROUNDS must be positive, got %d", c.DefaultGuidedRounds)
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be positive")
	}
	if c.GuidedSessionTTL <= 0 || c.SessionSweepInterval <= 0 {
		return fmt.Errorf("GUIDED_SESSION_TTL and GUIDED_SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.SubscriberBuffer < 1 {
		return fmt.Errorf("REALTIME_SUBSCRIBER_BUFFER must be positive, got %d", c.SubscriberBuffer)
	}
	if c.ReadRetries < 0 {
		return fmt.Errorf("NEXORA_READ_RETRIES must not be negative, got %d", c.ReadRetries)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("90s", "5m").
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
