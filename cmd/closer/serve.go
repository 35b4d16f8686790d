package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/closer/internal/api"
	"github.com/MikeSquared-Agency/closer/internal/hermes"
	"github.com/MikeSquared-Agency/closer/internal/learner"
	"github.com/MikeSquared-Agency/closer/internal/metrics"
	"github.com/MikeSquared-Agency/closer/internal/session"
	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

const cleanupInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversation API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("closer starting", "port", cfg.Port, "backend", cfg.Backend)

	gen, model, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Info("generator ready", "backend", cfg.Backend, "model", model)

	storage, err := openStrategyStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	initial := strategy.LoadOrDefault(ctx, storage.strategy, slog.Default())

	m := metrics.New()
	m.StrategyObserved(initial)

	learnerOpts := []learner.Option{
		learner.WithRetention(cfg.StrategyRetention),
		learner.WithRecorder(m),
	}
	if storage.db != nil {
		learnerOpts = append(learnerOpts, learner.WithArchiver(storage.db))
	}
	if poster := newSlackPoster(cfg); poster != nil {
		learnerOpts = append(learnerOpts, learner.WithNotifier(poster))
	} else {
		slog.Warn("slack not configured, learning summaries will only be logged")
	}

	// NATS is optional; conversations work without it.
	var bus *hermes.Client
	if cfg.NatsURL != "" {
		bus, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Warn("NATS unavailable, running without events", "error", err)
			bus = nil
		} else {
			defer bus.Close()
			learnerOpts = append(learnerOpts, learner.WithPublisher(bus))
			slog.Info("NATS connected", "url", cfg.NatsURL)
		}
	}

	l := learner.New(initial, storage.strategy, slog.Default(), learnerOpts...)

	if bus != nil {
		if err := bus.Subscribe(hermes.SubjectTranscriptFinished, l.HandleTranscriptFinished); err != nil {
			slog.Warn("failed to subscribe to transcript events", "error", err)
		}
	}

	managerOpts := []session.Option{
		session.WithRecorder(m),
		session.WithGauge(m),
	}
	if rdb := newRedis(ctx, cfg); rdb != nil {
		defer rdb.Close()
		managerOpts = append(managerOpts, session.WithRedis(rdb))
	}

	mgr := session.NewManager(session.Config{
		MaxSessions:       cfg.MaxSessions,
		SessionTimeout:    cfg.SessionTimeout,
		AnalyzeAfter:      cfg.AnalyzeAfter,
		GenerationTimeout: cfg.GenerationTimeout,
	}, gen, l, slog.Default(), managerOpts...)
	go mgr.StartCleanupRoutine(ctx, cleanupInterval)

	srv := api.NewServer(cfg.Port, cfg.APIToken, mgr, l, m.Handler())
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if bus != nil {
		if err := bus.Publish(hermes.SubjectAgentRegistered, hermes.AgentRegistered{
			AgentID:      "closer",
			Name:         "closer",
			Backend:      cfg.Backend,
			Capabilities: []string{"conversation", "strategy-learning"},
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("closer ready", "port", cfg.Port, "strategy_version", initial.Version)

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case serveErr = <-errCh:
		slog.Error("HTTP server error", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown failed", "error", err)
	}
	// Open conversations are learned from before exit.
	mgr.Shutdown(shutdownCtx)

	slog.Info("closer stopped")
	return serveErr
}
