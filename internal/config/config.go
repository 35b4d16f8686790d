package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Generation backends.
const (
	BackendOpenRouter = "openrouter"
	BackendAnthropic  = "anthropic"
	BackendGemini     = "gemini"
)

// Strategy stores.
const (
	StoreFile     = "file"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

type Config struct {
	Port     int
	LogLevel string
	APIToken string

	Backend           string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	AnthropicAPIKey   string
	AnthropicModel    string
	GeminiAPIKey      string
	GeminiModel       string
	GenerationTimeout time.Duration

	StrategyBackend   string
	StrategyFile      string
	StrategyBoltPath  string
	DatabaseURL       string
	StrategyRetention int

	NatsURL       string
	NatsToken     string
	RedisURL      string
	RedisPassword string

	MaxSessions    int
	SessionTimeout time.Duration
	AnalyzeAfter   int

	SlackBotToken string
	SlackChannel  string
}

// Load reads the environment, after loading a .env file if one exists.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:     envInt("CLOSER_PORT", 8760),
		LogLevel: envStr("LOG_LEVEL", "info"),
		APIToken: envStr("CLOSER_API_TOKEN", ""),

		Backend:           envStr("CLOSER_BACKEND", BackendOpenRouter),
		OpenRouterAPIKey:  envStr("OPENROUTER_API_KEY", ""),
		OpenRouterModel:   envStr("OPENROUTER_MODEL", "anthropic/claude-3.5-sonnet"),
		AnthropicAPIKey:   envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:    envStr("CLOSER_MODEL", "claude-sonnet-4-20250514"),
		GeminiAPIKey:      envStr("GEMINI_API_KEY", ""),
		GeminiModel:       envStr("GEMINI_MODEL", "gemini-2.0-flash"),
		GenerationTimeout: envDuration("CLOSER_GENERATION_TIMEOUT", 30*time.Second),

		StrategyBackend:   envStr("STRATEGY_BACKEND", StoreFile),
		StrategyFile:      envStr("STRATEGY_FILE", "conversation_strategies.json"),
		StrategyBoltPath:  envStr("STRATEGY_BOLT_PATH", "closer.bolt"),
		DatabaseURL:       envStr("DATABASE_URL", ""),
		StrategyRetention: envInt("STRATEGY_RETENTION", 50),

		NatsURL:       envStr("NATS_URL", ""),
		NatsToken:     envStr("NATS_TOKEN", ""),
		RedisURL:      envStr("REDIS_URL", ""),
		RedisPassword: envStr("REDIS_PASSWORD", ""),

		MaxSessions:    envInt("CLOSER_MAX_SESSIONS", 100),
		SessionTimeout: envDuration("CLOSER_SESSION_TIMEOUT", 30*time.Minute),
		AnalyzeAfter:   envInt("CLOSER_ANALYZE_AFTER", 6),

		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_LEARNING_CHANNEL", ""),
	}
}

// Validate checks that the selected backend and store are usable.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendOpenRouter:
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required for the %s backend", c.Backend)
		}
	case BackendAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the %s backend", c.Backend)
		}
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the %s backend", c.Backend)
		}
	default:
		return fmt.Errorf("unknown CLOSER_BACKEND %q", c.Backend)
	}

	switch c.StrategyBackend {
	case StoreFile, StoreBolt:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s strategy store", c.StrategyBackend)
		}
	default:
		return fmt.Errorf("unknown STRATEGY_BACKEND %q", c.StrategyBackend)
	}

	if c.StrategyRetention < 0 {
		return errors.New("STRATEGY_RETENTION must not be negative")
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
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
