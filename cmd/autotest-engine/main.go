package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/autotest-engine/internal/api"
	"github.com/terra-clan/autotest-engine/internal/autotest"
	"github.com/terra-clan/autotest-engine/internal/cache"
	"github.com/terra-clan/autotest-engine/internal/config"
	"github.com/terra-clan/autotest-engine/internal/health"
	"github.com/terra-clan/autotest-engine/internal/logging"
	"github.com/terra-clan/autotest-engine/internal/reaper"
	"github.com/terra-clan/autotest-engine/internal/seed"
	"github.com/terra-clan/autotest-engine/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	slog.Info("starting autotest-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"driver", cfg.Database.Driver,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	repo, err := openRepository(initCtx, cfg.Database)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("database connected successfully")

	registry := health.NewRegistry()

	// Project options cache
	var options cache.ProjectOptions = cache.Noop{}
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(initCtx, cache.RedisConfig{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		options = cache.NewRedisOptions(client, cfg.Redis.TTL)
		registry.Register("redis", health.CheckerFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
		slog.Info("redis options cache enabled", "addr", cfg.Redis.Address, "ttl", cfg.Redis.TTL)
	}

	// Load seed fixtures
	if cfg.Seed.Dir != "" {
		if _, err := seed.NewLoader(repo, options).LoadFromDir(initCtx, cfg.Seed.Dir); err != nil {
			slog.Warn("failed to load seed fixtures", "dir", cfg.Seed.Dir, "error", err)
		}
	}

	manager := autotest.NewService(repo, options)
	registry.Register("storage", health.CheckerFunc(manager.Ping))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start stale-task reaper
	reaper.New(manager, cfg.Reaper.Interval, cfg.Reaper.StaleAfter).Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, cfg.Watch, manager, registry)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("autotest-engine stopped")
}

// openRepository migrates and connects the configured storage backend
func openRepository(ctx context.Context, cfg config.DatabaseConfig) (storage.Repository, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		repo, err := storage.NewSQLiteRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		slog.Info("running database migrations", "driver", cfg.Driver, "dir", cfg.MigrationsDir)
		if err := repo.Migrate(ctx, cfg.MigrationsDir); err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return repo, nil

	default:
		slog.Info("running database migrations", "driver", cfg.Driver, "dir", cfg.MigrationsDir)
		if err := storage.MigrateFromDSN(ctx, cfg.DSN, cfg.MigrationsDir); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return storage.NewPostgresRepository(ctx, storage.PostgresConfig{
			DSN:          cfg.DSN,
			MaxOpenConns: int32(cfg.MaxOpenConns),
			MaxIdleConns: int32(cfg.MaxIdleConns),
			MaxLifetime:  cfg.MaxLifetime,
		})
	}
}
