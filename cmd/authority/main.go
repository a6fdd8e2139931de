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

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/authority/internal/app"
	"github.com/odyssey-erp/authority/internal/auth"
	"github.com/odyssey-erp/authority/internal/observability"
	"github.com/odyssey-erp/authority/internal/platform/cache"
	"github.com/odyssey-erp/authority/internal/platform/db"
	"github.com/odyssey-erp/authority/internal/rbac"
	"github.com/odyssey-erp/authority/internal/shared"
	"github.com/odyssey-erp/authority/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	registry, err := app.NewRegistry(cfg, logger)
	if err != nil {
		logger.Error("build privilege registry", slog.Any("error", err))
		os.Exit(1)
	}

	err = db.WithTx(ctx, dbpool, func(tx pgx.Tx) error {
		seeder := rbac.NewStore(tx)
		for _, role := range app.ReferencedRoles(registry) {
			if _, err := seeder.EnsureRole(ctx, role, ""); err != nil {
				return fmt.Errorf("ensure role %q: %w", role, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("seed roles", slog.Any("error", err))
		os.Exit(1)
	}

	roleStore := rbac.NewStore(dbpool)
	roleProvider := rbac.NewCachedProvider(roleStore, redisClient, cfg.RoleCacheTTL, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "authority_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()

	authService := auth.NewService(auth.NewRepository(dbpool), roleProvider)
	authMiddleware := auth.Middleware{
		Credentials:   auth.SessionCredentials{},
		Authenticator: authService,
		Registry:      registry,
		Logger:        logger,
	}

	invalidator := rbac.RetryingInvalidator{Primary: roleProvider, Retry: jobClient}
	rbacService := rbac.NewService(roleStore, invalidator, logger)
	rbacMiddleware := rbac.Middleware{Logger: logger, Metrics: metrics}
	authzHandler := rbac.NewHandler(logger, rbacService, registry, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthMiddleware: authMiddleware,
		AuthzHandler:   authzHandler,
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Int("privileges", len(registry.Privileges())))
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
