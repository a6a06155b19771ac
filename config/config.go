// Package config provides application settings loaded from environment
// variables, with optional .env support via godotenv.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific API key and model lookup
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds all application configuration.
type Settings struct {
	Oracle OracleConfig
	Loop   LoopConfig
	Server ServerConfig
	Log    LogConfig
}

// OracleConfig selects and configures the decision-oracle provider.
type OracleConfig struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int64
}

// LoopConfig holds orchestration-loop tuning.
type LoopConfig struct {
	StepBudget         int
	CompressAfterTurns int
	CompressAfterSteps int
	RecentTurnWindow   int
	MaxConcurrentTurns int
	SessionTTL         time.Duration
}

// ServerConfig holds the websocket server and journal settings.
type ServerConfig struct {
	ListenAddr  string
	JournalPath string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// providerInfo holds per-provider environment lookup keys.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o-mini", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022", "ANTHROPIC_API_KEY"},
	"mock":      {"", "", ""},
}

var providerAliases = map[string]string{
	"claude": "anthropic",
	"gpt":    "openai",
}

// LoadDotenv loads a .env file from the working directory if present. A
// missing file is not an error.
func LoadDotenv() error {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// New creates settings from environment variables. Returns an error for an
// unknown provider or invalid numeric values.
func New() (Settings, error) {
	provider := normalizeProvider(envOr("OPSAGENT_PROVIDER", "anthropic"))
	info, ok := providers[provider]
	if !ok {
		return Settings{}, fmt.Errorf("unknown oracle provider: %q", provider)
	}

	stepBudget, err := getEnvInt("OPSAGENT_STEP_BUDGET", 5)
	if err != nil {
		return Settings{}, err
	}
	compressTurns, err := getEnvInt("OPSAGENT_COMPRESS_AFTER_TURNS", 8)
	if err != nil {
		return Settings{}, err
	}
	compressSteps, err := getEnvInt("OPSAGENT_COMPRESS_AFTER_STEPS", 24)
	if err != nil {
		return Settings{}, err
	}
	window, err := getEnvInt("OPSAGENT_RECENT_TURN_WINDOW", 5)
	if err != nil {
		return Settings{}, err
	}
	maxTurns, err := getEnvInt("OPSAGENT_MAX_CONCURRENT_TURNS", 10)
	if err != nil {
		return Settings{}, err
	}
	ttl, err := getEnvDuration("OPSAGENT_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return Settings{}, err
	}
	temperature, err := getEnvFloat64("OPSAGENT_TEMPERATURE", 0.2)
	if err != nil {
		return Settings{}, err
	}
	maxTokens, err := getEnvInt("OPSAGENT_MAX_TOKENS", 1024)
	if err != nil {
		return Settings{}, err
	}

	model := ""
	if info.modelEnv != "" {
		model = envOr(info.modelEnv, info.defaultModel)
	}
	apiKey := ""
	if info.apiKeyEnv != "" {
		apiKey = os.Getenv(info.apiKeyEnv)
	}

	return Settings{
		Oracle: OracleConfig{
			Provider:    provider,
			Model:       model,
			APIKey:      apiKey,
			Temperature: temperature,
			MaxTokens:   int64(maxTokens),
		},
		Loop: LoopConfig{
			StepBudget:         stepBudget,
			CompressAfterTurns: compressTurns,
			CompressAfterSteps: compressSteps,
			RecentTurnWindow:   window,
			MaxConcurrentTurns: maxTurns,
			SessionTTL:         ttl,
		},
		Server: ServerConfig{
			ListenAddr:  envOr("OPSAGENT_LISTEN_ADDR", ":8080"),
			JournalPath: envOr("OPSAGENT_JOURNAL_PATH", "opsagent.db"),
		},
		Log: LogConfig{
			Level:  envOr("OPSAGENT_LOG_LEVEL", "info"),
			Format: envOr("OPSAGENT_LOG_FORMAT", "json"),
		},
	}, nil
}

// MustNew creates settings, panicking on invalid configuration. Use only
// when configuration errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func getEnvFloat64(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid float %q", key, v)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
