// Package main is the entrypoint for the loglens API server.
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

	"github.com/kiranshivaraju/loglens/internal/ai/provider"
	"github.com/kiranshivaraju/loglens/internal/analyzer"
	"github.com/kiranshivaraju/loglens/internal/api"
	"github.com/kiranshivaraju/loglens/internal/api/handler"
	mw "github.com/kiranshivaraju/loglens/internal/api/middleware"
	"github.com/kiranshivaraju/loglens/internal/app"
	"github.com/kiranshivaraju/loglens/internal/cache"
	"github.com/kiranshivaraju/loglens/internal/config"
	"github.com/kiranshivaraju/loglens/internal/loki"
	"github.com/kiranshivaraju/loglens/internal/store"
	"github.com/kiranshivaraju/loglens/internal/telemetry"
	"github.com/kiranshivaraju/loglens/pkg/logql"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Create AI provider
	client, err := provider.New(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", client.Name(), "model", cfg.AI.Model())

	metrics := telemetry.New()
	health := map[string]handler.Pinger{}
	deps := app.Deps{Observer: metrics}
	var rateLimit *mw.RateLimit

	// 3. Optional Redis: inference reply cache + API rate limiting
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()

		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("redis connected")

		deps.Replies = redisCache
		rateLimit = mw.NewRateLimit(redisCache, cfg.Redis.RequestsPerMinute)
		health["cache"] = redisCache
	}

	// 4. Optional Postgres: analysis sink
	var reader handler.AnalysisReader
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		slog.Info("database connected")

		if err := store.RunMigrations(cfg.Database.URL); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")

		pgStore := store.NewPostgresStore(pool)
		deps.Sink = pgStore
		reader = pgStore
		health["database"] = pgStore
	}

	// 5. Analyzer pipeline
	stream, err := app.NewStream(cfg, client, deps)
	if err != nil {
		return fmt.Errorf("create stream analyzer: %w", err)
	}
	metrics.RegisterStream(stream)

	go func() {
		if err := stream.Run(ctx); err != nil {
			slog.Error("periodic flush stopped", "error", err)
		}
	}()

	// 6. Optional Loki poller
	if cfg.Loki.BaseURL != "" {
		lokiClient := loki.NewHTTPClient(cfg.Loki.BaseURL, cfg.Loki.Username, cfg.Loki.Password,
			cfg.Loki.OrgID, cfg.Loki.Timeout)
		if err := lokiClient.Ready(ctx); err != nil {
			slog.Warn("loki not ready at startup", "error", err)
		}
		health["loki"] = readyPinger{lokiClient}

		query := logql.QueryBuilder{}.BuildTailQuery(logql.TailParams{
			Service:   cfg.Loki.Service,
			Namespace: cfg.Loki.Namespace,
			Levels:    cfg.Loki.Levels,
		})
		poller := loki.NewPoller(lokiClient, query, cfg.Loki.PollInterval, stream)
		go func() {
			if err := poller.Run(ctx); err != nil {
				slog.Error("loki poller stopped", "error", err)
			}
		}()
	}

	// 7. Build router with dependencies
	router := newRouter(stream, reader, health, rateLimit, metrics)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.InferenceTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Analyse whatever is still batched.
	if _, err := stream.Close(shutdownCtx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func newRouter(stream *analyzer.StreamAnalyzer, reader handler.AnalysisReader, health map[string]handler.Pinger,
	rateLimit *mw.RateLimit, metrics *telemetry.Metrics) http.Handler {
	deps := api.Dependencies{
		RateLimit: rateLimit,

		HealthHandler:   handler.NewHealthHandler(health),
		IngestHandler:   handler.NewIngestHandler(stream),
		FlushHandler:    handler.NewFlushHandler(stream),
		MetricsHandler:  handler.NewMetricsHandler(stream),
		PatternsHandler: handler.NewPatternsHandler(stream),

		Prometheus: metrics.Handler(),
	}
	if reader != nil {
		deps.ListAnalyses = handler.NewListAnalysesHandler(reader)
		deps.GetAnalysis = handler.NewGetAnalysisHandler(reader)
	}
	return api.NewRouter(deps)
}

// readyPinger adapts a Loki client to the health check.
type readyPinger struct {
	client loki.Client
}

func (p readyPinger) Ping(ctx context.Context) error {
	return p.client.Ready(ctx)
}
