// Package main is the entrypoint for the VulnHunter API server.
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

	"github.com/kiranshivaraju/vulnhunter/internal/ai"
	"github.com/kiranshivaraju/vulnhunter/internal/api"
	"github.com/kiranshivaraju/vulnhunter/internal/api/handler"
	mw "github.com/kiranshivaraju/vulnhunter/internal/api/middleware"
	"github.com/kiranshivaraju/vulnhunter/internal/api/response"
	"github.com/kiranshivaraju/vulnhunter/internal/cache"
	"github.com/kiranshivaraju/vulnhunter/internal/config"
	"github.com/kiranshivaraju/vulnhunter/internal/scan"
	"github.com/kiranshivaraju/vulnhunter/internal/staging"
	"github.com/kiranshivaraju/vulnhunter/internal/store"
	"github.com/kiranshivaraju/vulnhunter/internal/upload"
)

const shutdownTimeout = 30 * time.Second

func main() {
	slog.SetDefault(defaultLogger())

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLog, err := newLogger(cfg.Log, os.Stdout)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer closeLog()
	slog.SetDefault(logger)
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", provider.Name())

	pgStore := store.NewPostgresStore(pool)
	files := staging.New(cfg.Scan.StagingTTL)

	runner := scan.NewRunner(pgStore, files, provider, redisCache, scan.Options{
		BatchSize:        cfg.Scan.BatchSize,
		RateLimitPause:   cfg.Scan.RateLimitPause,
		InferenceTimeout: cfg.AI.InferenceTimeout,
	})
	defer runner.Close()

	uploads := upload.NewService(pgStore, redisCache, files, runner, upload.Limits{
		MaxFiles:     cfg.Scan.MaxFiles,
		MaxFileBytes: cfg.Scan.MaxFileBytes,
	})

	router := api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMinute),

		HealthHandler:      healthHandler(pgStore, redisCache, runner),
		InitSessionHandler: handler.NewInitSessionHandler(uploads),
		AddFileHandler:     handler.NewAddFileHandler(uploads, cfg.Scan.MaxFileBytes),
		ScanHandler:        handler.NewScanHandler(uploads),
		DiagnosticsHandler: handler.NewDiagnosticsHandler(uploads),
		PositionHandler:    handler.NewPositionHandler(uploads),
		GetUploadHandler:   handler.NewGetUploadHandler(uploads),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully", "abandoned_jobs", runner.Len())
	return nil
}

// queueState is the part of the scan runner the health check reports on.
type queueState interface {
	Len() int
	Paused() (bool, time.Duration)
}

// healthHandler checks database and cache connectivity and reports the scan
// queue depth and pause state.
func healthHandler(s store.Store, c cache.Cache, q queueState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		if checks["database"] != "ok" || checks["cache"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		paused, delay := q.Paused()
		queue := map[string]any{"length": q.Len(), "paused": paused}
		if paused {
			queue["pause_seconds"] = int(delay.Seconds())
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
			"queue":    queue,
		})
	}
}
