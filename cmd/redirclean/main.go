// Package main is the entry point for the redirclean server. It loads
// configuration, connects to PostgreSQL and Valkey, wires the URL cleanup
// job runner and serves the JSON API with graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"redirclean/internal/cache"
	"redirclean/internal/config"
	"redirclean/internal/database"
	"redirclean/internal/handlers"
	"redirclean/internal/jobs"
	"redirclean/internal/metrics"
	"redirclean/internal/middleware"
	"redirclean/internal/router"
	"redirclean/internal/session"
	"redirclean/internal/storage"
	"redirclean/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"job_store", cfg.JobStore,
		"batch_size", cfg.BatchSize,
	)

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword, cfg.ValkeyDB)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	sessionStore := session.NewStore(valkeyClient, cfg.SessionSecure)

	var jobStore jobs.Store
	switch cfg.JobStore {
	case config.JobStorePostgres:
		jobStore = store.NewJobStore(db, cfg.JobRetention)
	default:
		jobStore = cache.NewJobStore(valkeyClient, cfg.JobRetention)
	}

	operatorStore := store.NewOperatorStore(db)
	redirectStore := store.NewRedirectStore(db)

	sources := jobs.NewSources(
		store.NewContentStore(db),
		store.NewMetaStore(db),
		store.NewMenuStore(db),
		store.NewWidgetStore(db),
	)

	m := metrics.New()
	runner := jobs.NewRunner(jobStore, sources, redirectStore)
	runner.SetMetrics(m)
	runner.SetPageCache(cache.NewPageCache(valkeyClient, cfg.PageCachePrefix))

	// The report archive is optional; the service runs without it.
	archive, err := storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3Prefix)
	if err != nil {
		slog.Error("failed to initialize report archive", "error", err)
		os.Exit(1)
	}
	if archive != nil {
		runner.SetArchiver(archive)
		slog.Info("report archive enabled", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	} else {
		slog.Warn("s3 not configured, job reports will not be archived")
	}

	jobsHandler := handlers.NewJobs(runner, cfg.BatchSize)
	if archive != nil {
		jobsHandler.SetReports(archive)
	}

	loginLimiter := middleware.NewRateLimiter(10, time.Minute)
	defer loginLimiter.Stop()

	r := router.New(router.Deps{
		Sessions:      sessionStore,
		Auth:          handlers.NewAuth(sessionStore, operatorStore),
		Jobs:          jobsHandler,
		Redirects:     handlers.NewRedirects(redirectStore),
		Metrics:       m.Handler(),
		LoginLimiter:  loginLimiter,
		SecureCookies: cfg.SessionSecure,
	})

	// WriteTimeout covers one batch of the largest allowed size.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
