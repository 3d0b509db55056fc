package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"gmpportal/internal/cache"
	"gmpportal/internal/config"
	"gmpportal/internal/database"
	"gmpportal/internal/log"
	"gmpportal/internal/repository"
	"gmpportal/internal/repository/sqlite"
	"gmpportal/internal/worker/queue"
	"gmpportal/internal/worker/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "worker")

	if !cfg.Redis.Enabled {
		logger.Fatal().Msg("the audit worker needs redis.enabled=true")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	var audit repository.AuditStore
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		defer pool.Close()
		if err := database.MigratePostgres(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("migrate postgres")
		}
		audit = repository.NewAuditRepository(pool)
	default:
		db, err := database.OpenSQLite(ctx, cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open sqlite")
		}
		defer db.Close()
		audit = sqlite.NewAudit(db)
	}

	consumer := queue.NewConsumer(
		client,
		cfg.Redis.Stream,
		cfg.Redis.Group,
		cfg.Redis.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		tasks.NewAuditProcessor(audit, logger),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
