package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-bank/meridian/internal/admin"
	"github.com/meridian-bank/meridian/internal/app"
	"github.com/meridian-bank/meridian/internal/auth"
	"github.com/meridian-bank/meridian/internal/customers"
	"github.com/meridian-bank/meridian/internal/ledger"
	"github.com/meridian-bank/meridian/internal/observability"
	"github.com/meridian-bank/meridian/internal/platform/cache"
	"github.com/meridian-bank/meridian/internal/platform/db"
	"github.com/meridian-bank/meridian/internal/shared"
	"github.com/meridian-bank/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	profileCache := customers.NewProfileCache(redisClient, cfg.ProfileCacheTTL, logger)

	ledgerStore := ledger.NewPostgresStore(pool, cfg.LedgerLockWait)
	ledgerService := ledger.NewService(ledger.ServiceParams{
		Store:           ledgerStore,
		Logger:          logger,
		Invalidator:     profileCache,
		Observer:        metrics,
		MaxHistoryLimit: cfg.MaxHistoryLimit,
	})

	customerRepo := customers.NewRepository(pool)
	customerService := customers.NewService(customers.ServiceParams{
		Repo:   customerRepo,
		Cache:  profileCache,
		Logger: logger,
	})

	tokens := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authService := auth.NewService(auth.ServiceParams{
		Repo:   auth.NewRepository(pool),
		Tokens: tokens,
		Redis:  redisClient,
		Mailer: jobClient,
		Logger: logger,
	})
	authHandler := auth.NewHandler(logger, authService)
	authMiddleware := auth.NewMiddleware(tokens)

	adminService := admin.NewService(admin.ServiceParams{
		Repo:        admin.NewRepository(pool),
		Audit:       auditLogger,
		Invalidator: profileCache,
		Logger:      logger,
	})

	customersHandler := customers.NewHandler(logger, customerService, ledgerService)
	adminHandler := admin.NewHandler(logger, adminService, customerService, ledgerService)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      authHandler,
		AuthMiddleware:   authMiddleware,
		CustomersHandler: customersHandler,
		AdminHandler:     adminHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server run", slog.Any("error", err))
		os.Exit(1)
	}
}
