// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Keygate HTTP API server.
//
// # Startup Sequence
//
//  1. Load configuration from environment variables.
//  2. Initialize structured logger.
//  3. Open storage (PostgreSQL with migrations, or in-memory).
//  4. Connect the optional backends: Redis throttle, RabbitMQ notifier.
//  5. Wire the auth engine and HTTP handlers.
//  6. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/taibuivan/keygate/internal/api"
	"github.com/taibuivan/keygate/internal/platform/config"
	"github.com/taibuivan/keygate/internal/platform/constants"
	"github.com/taibuivan/keygate/internal/platform/logger"
	"github.com/taibuivan/keygate/internal/platform/migration"
	pgstore "github.com/taibuivan/keygate/internal/platform/postgres"
	"github.com/taibuivan/keygate/internal/platform/rabbitmq"
	redisstore "github.com/taibuivan/keygate/internal/platform/redis"
	"github.com/taibuivan/keygate/internal/platform/sec"
	"github.com/taibuivan/keygate/internal/users/auth"
)

// storage bundles the repositories selected by STORAGE_DRIVER.
type storage struct {
	users    auth.UserRepository
	tokens   auth.RefreshTokenRepository
	roles    auth.RoleRepository
	checkers []api.Checker
	close    func()
}

func main() {
	// # 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failure: %v\n", err)
		os.Exit(1)
	}

	// # 2. Logger
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDev})
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failure: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log = log.With(zap.String("app", constants.AppName))
	zap.ReplaceGlobals(log)

	log.Info("configuration_loaded",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.ServerPort),
		zap.String("storage", cfg.StorageDriver),
	)

	// Root context for startup. A deadline catches misconfiguration quickly.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// # 3. Storage
	store, err := openStorage(startupCtx, cfg, log)
	must(log, err, "open storage")
	defer store.close()

	checkers := store.checkers

	// # 4. Optional Backends
	var throttle auth.ResendThrottle
	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_failed", zap.Error(cerr))
			}
		}()

		throttle = auth.NewResendThrottle(rdb, cfg.ResendCooldown)
		checkers = append(checkers, api.Checker{Name: "redis", Check: func(context context.Context) error {
			return redisstore.Ping(context, rdb)
		}})
	} else {
		log.Warn("resend_throttle_disabled", zap.String("reason", "REDIS_URL not set"))
	}

	var notifier auth.Notifier = auth.NewLogNotifier(log)
	if cfg.AMQPURL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.AMQPURL, log)
		must(log, err, "connect to rabbitmq")
		defer func() {
			if cerr := publisher.Close(); cerr != nil {
				log.Error("rabbitmq_close_failed", zap.Error(cerr))
			}
		}()

		notifier = auth.NewQueueNotifier(publisher)
		checkers = append(checkers, api.Checker{Name: "rabbitmq", Check: func(context.Context) error {
			return publisher.Ping()
		}})
	} else {
		log.Warn("activation_mail_logged_only", zap.String("reason", "AMQP_URL not set"))
	}

	// # 5. Auth Engine
	jwtService, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	hasher, err := sec.NewPasswordHasher(cfg.PasswordAlgorithm)
	must(log, err, "initialize password hasher")

	authService := auth.NewService(store.users, store.tokens, store.roles, auth.Options{
		Signer:         jwtService,
		Hasher:         hasher,
		Notifier:       notifier,
		Throttle:       throttle,
		ResendCooldown: cfg.ResendCooldown,
		AccessTTL:      cfg.AccessTokenTTL,
		RefreshTTL:     cfg.RefreshTTL(),
		Policy: auth.LinkingPolicy{
			RequireVerifiedEmail: cfg.OAuthRequireVerifiedEmail,
			AllowLinking:         cfg.OAuthAllowLinking,
			AllowSignup:          cfg.OAuthAllowSignup,
		},
		Logger: log,
	})

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{Checkers: checkers}, log)

	// # 6. HTTP Server
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, jwtService, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, !cfg.IsDevelopment()),
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_error", zap.Error(err))
	}

	log.Info("server_shutting_down", zap.Duration("timeout", constants.ShutdownTimeout))

	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("server_shutdown_failed", zap.Error(err))
		os.Exit(1)
	}

	log.Info("server_stopped")
}

// openStorage selects the repository backend. The postgres driver migrates the
// schema before any repository is used.
func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("memory_storage_enabled", zap.String("reason", "data is lost on restart"))
		memory := auth.NewMemoryStore()
		return &storage{
			users:  memory.Users,
			tokens: memory.RefreshTokens,
			roles:  memory.Roles,
			close:  func() {},
		}, nil
	}

	if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
		return nil, err
	}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}

	return &storage{
		users:  auth.NewUserRepository(pool),
		tokens: auth.NewRefreshTokenRepository(pool),
		roles:  auth.NewRoleRepository(pool),
		checkers: []api.Checker{{Name: "postgres", Check: func(context context.Context) error {
			return pgstore.Ping(context, pool)
		}}},
		close: func() {
			log.Info("postgres_pool_closing")
			pool.Close()
		},
	}, nil
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned and
// handled explicitly.
func must(log *zap.Logger, err error, step string) {
	if err != nil {
		log.Fatal("startup_failure", zap.String("step", step), zap.Error(err))
	}
}
