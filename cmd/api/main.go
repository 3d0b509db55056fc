package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gmpportal/internal/access"
	"gmpportal/internal/cache"
	"gmpportal/internal/config"
	"gmpportal/internal/database"
	"gmpportal/internal/events"
	"gmpportal/internal/handlers"
	"gmpportal/internal/jobs"
	"gmpportal/internal/log"
	"gmpportal/internal/metrics"
	"gmpportal/internal/middleware"
	"gmpportal/internal/repository"
	"gmpportal/internal/repository/sqlite"
	"gmpportal/internal/security"
	"gmpportal/internal/server"
	"gmpportal/internal/service"
)

type stores struct {
	users    repository.UserStore
	sessions repository.SessionStore
	audit    repository.AuditStore
	ping     handlers.Check
	close    func()
}

func openStores(ctx context.Context, cfg config.DatabaseConfig) (stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg)
		if err != nil {
			return stores{}, err
		}
		if err := database.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return stores{}, err
		}
		return stores{
			users:    repository.NewUserRepository(pool),
			sessions: repository.NewSessionRepository(pool),
			audit:    repository.NewAuditRepository(pool),
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg)
		if err != nil {
			return stores{}, err
		}
		return stores{
			users:    sqlite.NewUsers(db),
			sessions: sqlite.NewSessions(db),
			audit:    sqlite.NewAudit(db),
			ping:     db.PingContext,
			close:    func() { _ = db.Close() },
		}, nil
	default:
		return stores{}, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func newHasher(cfg config.SecurityConfig) *security.PasswordHasher {
	if cfg.PasswordHasher == config.HasherArgon2id {
		return security.NewArgon2Hasher(security.DefaultArgon2Params)
	}
	return security.NewBcryptHasher(cfg.BcryptCost)
}

func newIssuer(cfg config.SecurityConfig, key *security.SigningKey, st stores, redisClient *redis.Client, logger zerolog.Logger) (security.Issuer, *cache.Local, error) {
	if cfg.TokenMode == config.TokenModeSession {
		local, err := cache.NewLocal(cfg.SessionCacheTTL)
		if err != nil {
			return nil, nil, err
		}
		return security.NewSessionIssuer(st.sessions, st.users, local, security.SessionIssuerConfig{
			TTL:      cfg.TokenTTL,
			CacheTTL: cfg.SessionCacheTTL,
		}, logger), local, nil
	}

	var opts []security.JWTOption
	if redisClient != nil {
		opts = append(opts, security.WithRevocations(security.NewRedisRevocations(redisClient)))
	}
	return security.NewJWTIssuer(key, cfg.JWTIssuer, cfg.TokenTTL, opts...), nil, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "api")
	defer memguard.Purge()

	ctx := context.Background()

	st, err := openStores(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open database")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	key, err := security.NewSigningKey([]byte(cfg.Security.JWTSecret))
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid signing secret")
	}

	issuer, local, err := newIssuer(cfg.Security, key, st, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build token issuer")
	}

	var publisher events.Publisher = events.NewLogPublisher(logger)
	if redisClient != nil {
		publisher = events.NewRedisPublisher(redisClient, cfg.Redis.Stream)
	}

	m := metrics.New()
	policy := security.PasswordPolicy{Strict: cfg.Security.StrictPasswords}
	authService := service.NewAuthService(st.users, issuer, newHasher(cfg.Security), policy, publisher, m, logger)
	userService := service.NewUserService(st.users, st.audit, publisher, logger)

	checks := map[string]handlers.Check{"database": st.ping}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Log:          logger,
		Environment:  cfg.Environment,
		Auth:         authService,
		Users:        userService,
		Guard:        access.NewGuard(issuer),
		Metrics:      m,
		LoginLimiter: middleware.NewRateLimiter(cfg.Security.LoginRateLimit, cfg.Security.LoginBurst),
		Checks:       checks,
	})
	httpServer := server.NewHTTPServer(cfg, logger, server.NewEngine(cfg, logger, m, handlerSet))

	scheduler := jobs.NewScheduler(st.sessions, m, logger)
	if err := scheduler.Start(cfg.Jobs.PurgeSchedule); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	logger.Info().
		Str("driver", cfg.Database.Driver).
		Str("token_mode", cfg.Security.TokenMode).
		Str("hasher", cfg.Security.PasswordHasher).
		Bool("redis", redisClient != nil).
		Msg("gmp portal api configured")

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, st, redisClient, local)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, st stores, redisClient *redis.Client, local *cache.Local) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(shutdownCtx)

	if local != nil {
		_ = local.Close()
	}
	st.close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
