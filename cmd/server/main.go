package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq" // Postgres driver
	"github.com/redis/go-redis/v9"

	"github.com/tokengate/backend/internal/api"
	"github.com/tokengate/backend/internal/cache"
	"github.com/tokengate/backend/internal/config"
	"github.com/tokengate/backend/internal/events"
	"github.com/tokengate/backend/internal/ratelimit"
	"github.com/tokengate/backend/internal/store"
	"github.com/tokengate/backend/internal/token"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	settings, err := config.LoadSettings("settings.yaml")
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if err := store.EnsureSchema(ctx, db); err != nil {
		return err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	clientCache := cache.NewClientCache()

	// Rotation events fan out to every instance so stale cache entries are
	// dropped promptly rather than waiting for a version mismatch.
	subscriber := events.NewSubscriber(rdb, clientCache, logger)
	go func() {
		if err := subscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event subscriber stopped", "error", err)
		}
	}()

	server := api.NewServer(api.Options{
		Logger:              logger,
		Store:               store.NewPostgres(db),
		Codec:               token.NewCodec(cfg.JWTSecret, settings.TokenTTL()),
		Cache:               clientCache,
		Buckets:             ratelimit.NewRegistry(),
		Publisher:           events.NewRedisPublisher(rdb),
		InternalClientID:    cfg.InternalClientID,
		InternalAPIID:       cfg.InternalAPIID,
		InternalWorkspaceID: cfg.InternalWorkspaceID,
	})

	httpServer := &http.Server{
		Addr:    settings.Addr,
		Handler: server,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", settings.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout())
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
