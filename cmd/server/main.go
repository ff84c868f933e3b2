// Package main is the entrypoint for the AutoRestTest console API server.
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

	"github.com/autoresttest/console/internal/api"
	"github.com/autoresttest/console/internal/api/handler"
	mw "github.com/autoresttest/console/internal/api/middleware"
	"github.com/autoresttest/console/internal/api/response"
	"github.com/autoresttest/console/internal/cache"
	"github.com/autoresttest/console/internal/config"
	"github.com/autoresttest/console/internal/executor"
	"github.com/autoresttest/console/internal/identity"
	"github.com/autoresttest/console/internal/runner"
	"github.com/autoresttest/console/internal/store"
	"github.com/autoresttest/console/internal/sweeper"
	"github.com/autoresttest/console/internal/worker"
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
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and external service clients
	pgStore := store.NewPostgresStore(pool)
	verifier := identity.NewHTTPClient(cfg.Identity.BaseURL, cfg.Identity.APIKey, cfg.Identity.Timeout)
	runnerClient := runner.NewHTTPClient(cfg.Runner.BaseURL, cfg.Runner.APIKey, cfg.Runner.Timeout)
	executorClient := executor.NewHTTPClient(cfg.Executor.BaseURL, cfg.Executor.APIKey, cfg.Executor.Timeout)
	wk := worker.New(pgStore, executorClient, redisCache)

	// 6. Start the stale-queue sweep
	sw := sweeper.New(pgStore, cfg.Sweep.StaleAfter)
	if err := sw.Start(cfg.Sweep.Schedule); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sw.Stop()
	slog.Info("stale job sweeper started", "schedule", cfg.Sweep.Schedule)

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(verifier, pgStore),
		Internal:  mw.NewInternal(cfg.Internal.APIKey),
		RateLimit: mw.NewRateLimit(redisCache, 60),

		HealthHandler: healthHandler(pgStore, redisCache),

		CreateJobHandler: handler.NewCreateJobHandler(pgStore, runnerClient, cfg.Runner.TaskID),
		ListJobsHandler:  handler.NewListJobsHandler(pgStore),
		GetJobHandler:    handler.NewGetJobHandler(pgStore),
		DeleteJobHandler: handler.NewDeleteJobHandler(pgStore),
		CancelJobHandler: handler.NewCancelJobHandler(pgStore, runnerClient),
		ReplayJobHandler: handler.NewReplayJobHandler(pgStore, runnerClient, cfg.Server.DemoUserEmail),
		APIKeyHandler:    handler.NewAPIKeyHandler(pgStore),

		ProgressHandler:     handler.NewProgressHandler(pgStore, redisCache),
		RunInvokeHandler:    handler.NewRunInvokeHandler(wk),
		RunCancelledHandler: handler.NewRunCancelledHandler(wk),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Minute, // run-invoke callbacks block for the whole test
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

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
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

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
