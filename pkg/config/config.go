// Package config builds a single immutable *Config at process start and
// passes it through constructor injection into every service, worker
// pool, and HTTP server. There is no process-global settings singleton
// (spec §9 "Module-level cached settings").
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LLMRuntimeMode selects which pkg/llm.Client implementation is wired.
type LLMRuntimeMode string

const (
	LLMModeDeterministic LLMRuntimeMode = "deterministic"
	LLMModeProvider      LLMRuntimeMode = "provider"
)

// Config holds every recognized environment key from spec §6, validated
// and defaulted at load time.
type Config struct {
	Room1ID string
	Room2ID string
	Room3ID string
	Room4ID string

	MatrixHomeserverURL string
	MatrixBotUserID     string
	MatrixAccessToken   string
	MatrixSyncTimeout   time.Duration
	MatrixPollInterval  time.Duration
	WorkerPollInterval  time.Duration
	WebhookPublicURL    string
	WebhookHMACSecret   string

	SummaryInterval time.Duration

	DatabaseURL string

	LLMRuntimeMode LLMRuntimeMode
	OpenAIAPIKey   string

	LogLevel string

	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	Queue QueueConfig
}

// Load reads .env (if present) then the process environment, validating
// as it goes.
func Load() (*Config, error) {
	_ = godotenv.Load()

	syncTimeoutMS, err := strconv.Atoi(getEnvOrDefault("MATRIX_SYNC_TIMEOUT_MS", "30000"))
	if err != nil {
		return nil, fmt.Errorf("invalid MATRIX_SYNC_TIMEOUT_MS: %w", err)
	}
	matrixPoll, err := strconv.ParseFloat(getEnvOrDefault("MATRIX_POLL_INTERVAL_SECONDS", "1.0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MATRIX_POLL_INTERVAL_SECONDS: %w", err)
	}
	workerPoll, err := strconv.ParseFloat(getEnvOrDefault("WORKER_POLL_INTERVAL_SECONDS", "1.0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_POLL_INTERVAL_SECONDS: %w", err)
	}
	summaryIntervalMin, err := strconv.Atoi(getEnvOrDefault("SUMMARY_INTERVAL_MINUTES", "1440"))
	if err != nil {
		return nil, fmt.Errorf("invalid SUMMARY_INTERVAL_MINUTES: %w", err)
	}

	mode := LLMRuntimeMode(strings.ToLower(getEnvOrDefault("LLM_RUNTIME_MODE", string(LLMModeDeterministic))))
	if mode != LLMModeDeterministic && mode != LLMModeProvider {
		return nil, fmt.Errorf("invalid LLM_RUNTIME_MODE %q: must be %q or %q", mode, LLMModeDeterministic, LLMModeProvider)
	}

	adminPassword, err := resolveBootstrapPassword()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Room1ID:                os.Getenv("ROOM1_ID"),
		Room2ID:                os.Getenv("ROOM2_ID"),
		Room3ID:                os.Getenv("ROOM3_ID"),
		Room4ID:                os.Getenv("ROOM4_ID"),
		MatrixHomeserverURL:    os.Getenv("MATRIX_HOMESERVER_URL"),
		MatrixBotUserID:        os.Getenv("MATRIX_BOT_USER_ID"),
		MatrixAccessToken:      os.Getenv("MATRIX_ACCESS_TOKEN"),
		MatrixSyncTimeout:      time.Duration(syncTimeoutMS) * time.Millisecond,
		MatrixPollInterval:     time.Duration(matrixPoll * float64(time.Second)),
		WorkerPollInterval:     time.Duration(workerPoll * float64(time.Second)),
		WebhookPublicURL:       os.Getenv("WEBHOOK_PUBLIC_URL"),
		WebhookHMACSecret:      os.Getenv("WEBHOOK_HMAC_SECRET"),
		SummaryInterval:        time.Duration(summaryIntervalMin) * time.Minute,
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		LLMRuntimeMode:         mode,
		OpenAIAPIKey:           os.Getenv("OPENAI_API_KEY"),
		LogLevel:               getEnvOrDefault("LOG_LEVEL", "info"),
		BootstrapAdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminPassword: adminPassword,
		Queue:                  DefaultQueueConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants that can't be expressed as
// simple per-key defaults.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.LLMRuntimeMode == LLMModeProvider && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when LLM_RUNTIME_MODE=provider")
	}
	if (c.BootstrapAdminEmail == "") != (c.BootstrapAdminPassword == "") {
		return fmt.Errorf("BOOTSTRAP_ADMIN_EMAIL and a bootstrap password must be set together")
	}
	return nil
}

// resolveBootstrapPassword implements the xor between
// BOOTSTRAP_ADMIN_PASSWORD and BOOTSTRAP_ADMIN_PASSWORD_FILE from spec §6.
func resolveBootstrapPassword() (string, error) {
	inline := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")
	file := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD_FILE")
	switch {
	case inline != "" && file != "":
		return "", fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD and BOOTSTRAP_ADMIN_PASSWORD_FILE are mutually exclusive")
	case inline != "":
		return inline, nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading BOOTSTRAP_ADMIN_PASSWORD_FILE: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	default:
		return "", nil
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
