package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/MikeSquared-Agency/closer/internal/anthropic"
	"github.com/MikeSquared-Agency/closer/internal/config"
	"github.com/MikeSquared-Agency/closer/internal/gemini"
	"github.com/MikeSquared-Agency/closer/internal/llm"
	"github.com/MikeSquared-Agency/closer/internal/openrouter"
	"github.com/MikeSquared-Agency/closer/internal/slack"
	"github.com/MikeSquared-Agency/closer/internal/store"
	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

// newGenerator builds the configured text generation backend.
func newGenerator(ctx context.Context, cfg config.Config) (llm.Generator, string, error) {
	switch cfg.Backend {
	case config.BackendOpenRouter:
		return openrouter.NewClient(cfg.OpenRouterAPIKey, cfg.OpenRouterModel), cfg.OpenRouterModel, nil
	case config.BackendAnthropic:
		return anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), cfg.AnthropicModel, nil
	case config.BackendGemini:
		c, err := gemini.NewClient(ctx, gemini.Options{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			return nil, "", err
		}
		return c, cfg.GeminiModel, nil
	default:
		return nil, "", fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// strategyStorage is the opened strategy store plus, for postgres, the
// database that also archives features.
type strategyStorage struct {
	strategy strategy.Store
	db       *store.Store
}

func (s strategyStorage) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func openStrategyStore(ctx context.Context, cfg config.Config) (strategyStorage, error) {
	switch cfg.StrategyBackend {
	case config.StoreFile:
		slog.Info("strategy store: file", "path", cfg.StrategyFile)
		return strategyStorage{strategy: strategy.NewFileStore(cfg.StrategyFile)}, nil
	case config.StoreBolt:
		slog.Info("strategy store: bolt", "path", cfg.StrategyBoltPath)
		return strategyStorage{strategy: strategy.NewBoltStore(cfg.StrategyBoltPath)}, nil
	case config.StorePostgres:
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return strategyStorage{}, fmt.Errorf("connect database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return strategyStorage{}, fmt.Errorf("migrate: %w", err)
		}
		slog.Info("strategy store: postgres")
		return strategyStorage{strategy: db, db: db}, nil
	default:
		return strategyStorage{}, fmt.Errorf("unknown strategy backend %q", cfg.StrategyBackend)
	}
}

// newRedis returns nil when redis is not configured or unreachable.
func newRedis(ctx context.Context, cfg config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}

	var opts *redis.Options
	if strings.Contains(cfg.RedisURL, "://") {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Warn("invalid REDIS_URL, running without redis", "error", err)
			return nil
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.RedisURL}
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable, running without redis", "addr", opts.Addr, "error", err)
		_ = client.Close()
		return nil
	}
	slog.Info("redis connected", "addr", opts.Addr)
	return client
}

func newSlackPoster(cfg config.Config) *slack.Poster {
	if cfg.SlackBotToken == "" || cfg.SlackChannel == "" {
		return nil
	}
	slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	return slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
}
