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

	"github.com/helios-portal/helios-portal/internal/app"
	"github.com/helios-portal/helios-portal/internal/auth"
	"github.com/helios-portal/helios-portal/internal/groupsync"
	"github.com/helios-portal/helios-portal/internal/observability"
	"github.com/helios-portal/helios-portal/internal/platform/cache"
	"github.com/helios-portal/helios-portal/internal/platform/db"
	"github.com/helios-portal/helios-portal/internal/rbac"
	"github.com/helios-portal/helios-portal/internal/roblox"
	"github.com/helios-portal/helios-portal/internal/staff"
	"github.com/helios-portal/helios-portal/internal/verification"
	"github.com/helios-portal/helios-portal/jobs"
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

	metrics := observability.NewMetrics()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
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
	jobHandler := jobs.NewHandler(asynq.NewInspector(redisOpts), jobClient, logger)

	staffRepo := staff.NewRepository(dbpool)
	staffService := staff.NewService(staffRepo)

	signer := auth.NewTokenSigner(cfg.TokenSecret, cfg.TokenIssuer, cfg.AccessTokenTTL)
	authService := auth.NewService(auth.NewRepository(dbpool), staffRepo, signer, cfg.RefreshTokenTTL, logger)
	discordOAuth := auth.NewDiscordOAuth(cfg.DiscordClientID, cfg.DiscordClientSecret, cfg.DiscordRedirectURL)

	rbacService := rbac.NewService(rbac.NewRepository(dbpool), staffRepo, rbac.Config{
		AdminRankMin:  cfg.AdminRankMin,
		ImmuneRankMin: cfg.ImmuneRankMin,
	})

	robloxAPI := roblox.NewCachedAPI(roblox.NewClient(cfg.RobloxAPITimeout), redisClient, cfg.RobloxCacheTTL, logger)

	verificationService := verification.NewService(
		verification.NewRepository(dbpool),
		staffRepo,
		robloxAPI,
		rbacService,
		authService,
		cfg.RobloxGroupID,
		cfg.VerificationCodeTTL,
		logger,
	)

	syncService := groupsync.NewService(staffRepo, robloxAPI, groupsync.Config{
		GroupID:   cfg.RobloxGroupID,
		BatchSize: cfg.SyncBatchSize,
		CallDelay: cfg.SyncCallDelay,
	}, logger, metrics)
	scheduler := groupsync.NewScheduler(syncService, cfg.SyncStartupDelay, cfg.SyncInterval, logger)
	scheduler.Schedule(ctx)
	defer scheduler.Cancel()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		AuthHandler:         auth.NewHandler(logger, authService, staffService, discordOAuth, cfg.IsProduction()),
		StaffHandler:        staff.NewHandler(logger, staffService),
		PermissionsHandler:  rbac.NewHandler(logger, rbacService),
		VerificationHandler: verification.NewHandler(logger, verificationService),
		SyncHandler:         groupsync.NewHandler(logger, syncService),
		JobHandler:          jobHandler,
		RBACMiddleware:      rbac.Middleware{Service: rbacService, Logger: logger},
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
}
