package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/supplyops/internal/app"
	jobmetrics "github.com/odyssey-erp/supplyops/internal/jobs"
	"github.com/odyssey-erp/supplyops/jobs"
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

	if cfg.Store == app.StoreMemory {
		logger.Error("the worker reads shared state and needs STORE=postgres")
		os.Exit(1)
	}
	backend, err := app.OpenBackend(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.Close()

	workflow := jobs.NewWorkflowJobs(
		jobs.Source{Orders: backend.Orders, Requests: backend.Requests},
		logger,
		jobmetrics.NewMetrics(nil),
	)
	digestTask, err := jobs.NewReadyToCloseDigestTask(time.Now())
	if err != nil {
		logger.Error("build digest task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.RedisOptions().Asynq(),
		Logger:    logger,
		Handlers:  workflow.Handlers(),
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DigestCron, Task: digestTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
