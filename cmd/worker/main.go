package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/helios-portal/helios-portal/internal/app"
	"github.com/helios-portal/helios-portal/internal/groupsync"
	"github.com/helios-portal/helios-portal/internal/platform/db"
	"github.com/helios-portal/helios-portal/internal/roblox"
	"github.com/helios-portal/helios-portal/internal/staff"
	"github.com/helios-portal/helios-portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	staffRepo := staff.NewRepository(dbpool)
	robloxClient := roblox.NewClient(cfg.RobloxAPITimeout)

	syncService := groupsync.NewService(staffRepo, robloxClient, groupsync.Config{
		GroupID:   cfg.RobloxGroupID,
		BatchSize: cfg.SyncBatchSize,
		CallDelay: cfg.SyncCallDelay,
	}, logger, nil)
	syncJob := groupsync.NewJob(syncService, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeGroupRankSync, Handler: syncJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/30 * * * *", Task: jobs.NewGroupRankSyncTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
