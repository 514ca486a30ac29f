package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/machinemu/machinemu/internal/app"
	"github.com/machinemu/machinemu/internal/audit"
	"github.com/machinemu/machinemu/internal/auth"
	"github.com/machinemu/machinemu/internal/cars"
	"github.com/machinemu/machinemu/internal/motorcycles"
	"github.com/machinemu/machinemu/internal/observability"
	"github.com/machinemu/machinemu/internal/platform/cache"
	"github.com/machinemu/machinemu/internal/platform/db"
	"github.com/machinemu/machinemu/internal/rbac"
	"github.com/machinemu/machinemu/internal/roles"
	"github.com/machinemu/machinemu/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Bootstrap(ctx, pool); err != nil {
		logger.Error("bootstrap schema", slog.Any("error", err))
		os.Exit(1)
	}
	if err := rbac.Seed(ctx, pool, logger); err != nil {
		logger.Error("seed access control", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, login throttling disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	auditService := audit.NewService(asynqClient)

	metrics := observability.NewMetrics()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL)
	guard := rbac.Middleware{Verifier: tokens, Logger: logger, Metrics: metrics}

	rbacService := rbac.NewService(pool)
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, guard, auditService)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, rbacService, tokens)
	var limiter *auth.LoginLimiter
	if redisClient != nil {
		limiter = auth.NewLoginLimiter(redisClient, cfg.LoginAttemptLimit, cfg.LoginAttemptWindow)
	}
	authHandler := auth.NewHandler(logger, authService, limiter)

	usersService := users.NewService(users.NewRepository(pool))
	usersHandler := users.NewHandler(logger, usersService, guard, auditService)

	rolesService := roles.NewService(roles.NewRepository(pool))
	rolesHandler := roles.NewHandler(logger, rolesService, guard, auditService)

	carsService := cars.NewService(cars.NewRepository(pool))
	carsHandler := cars.NewHandler(logger, carsService, guard, auditService)

	motorcyclesService := motorcycles.NewService(motorcycles.NewRepository(pool))
	motorcyclesHandler := motorcycles.NewHandler(logger, motorcyclesService, guard, auditService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		CarsHandler:        carsHandler,
		MotorcyclesHandler: motorcyclesHandler,
		Guard:              guard,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
