package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/user-auth-service/internal/config"
	"github.com/iliyamo/user-auth-service/internal/database"
	"github.com/iliyamo/user-auth-service/internal/handler"
	"github.com/iliyamo/user-auth-service/internal/logger"
	"github.com/iliyamo/user-auth-service/internal/middleware"
	"github.com/iliyamo/user-auth-service/internal/queue"
	"github.com/iliyamo/user-auth-service/internal/repository"
	"github.com/iliyamo/user-auth-service/internal/router"
	"github.com/iliyamo/user-auth-service/internal/service"
	"github.com/iliyamo/user-auth-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger config is part of what failed to load
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Tracing, cfg.Env, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	driver, err := cfg.DB.DriverName()
	if err != nil {
		return err
	}
	if driver == database.DriverPgx {
		if err := database.EnsurePostgresDatabase(ctx, cfg.DB.URL, log); err != nil {
			return err
		}
	}
	db, driver, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, db, driver); err != nil {
			return err
		}
		log.Info("migrations applied", zap.String("driver", driver))
	}

	dialect := repository.DialectMySQL
	if driver == database.DriverPgx {
		dialect = repository.DialectPostgres
	}
	store := repository.NewUserRepo(db, dialect)

	var publisher service.EventPublisher = queue.NopPublisher{}
	if url := cfg.Events.BrokerURL(); url != "" {
		publisher = queue.NewPublisher(url, cfg.Events.Queue, log)
	} else {
		log.Info("RABBITMQ_URL not set; user events disabled")
	}

	svc := service.NewAuthService(store, service.Options{
		Secret:    cfg.JWT.Secret,
		TTL:       cfg.JWT.ExpiresIn,
		Argon2:    cfg.Password.Argon2(),
		Publisher: publisher,
		Logger:    log,
	})

	var limiter, loginLimiter echo.MiddlewareFunc
	if cfg.RateLimit.Enabled {
		rdb := config.NewRedisClient(cfg.Redis)
		if rdb == nil {
			log.Warn("redis unreachable; rate limiting disabled", zap.String("addr", cfg.Redis.Addr))
		} else {
			defer rdb.Close()
			limiter = middleware.NewTokenBucket(cfg.RateLimit, rdb, log)
			if login := cfg.RateLimit.ForLogin(); login.Enabled {
				loginLimiter = middleware.NewTokenBucket(login, rdb, log)
			}
		}
	}

	e := router.New(router.Deps{
		Auth:              handler.NewAuthHandler(svc, log, cfg.JWT.TokenMaxAge(), cfg.Env == "prod"),
		Users:             handler.NewUserHandler(svc, log),
		DB:                db,
		JWTSecret:         cfg.JWT.Secret,
		RateLimit:         limiter,
		LoginRateLimit:    loginLimiter,
		Log:               log,
		MinPasswordLength: cfg.Password.MinLength,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
