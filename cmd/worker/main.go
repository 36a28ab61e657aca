package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sma-almacen/sma/internal/app"
	"github.com/sma-almacen/sma/internal/inventory"
	"github.com/sma-almacen/sma/internal/masterdata/items"
	"github.com/sma-almacen/sma/internal/masterdata/suppliers"
	"github.com/sma-almacen/sma/internal/observability"
	"github.com/sma-almacen/sma/internal/platform/db"
	"github.com/sma-almacen/sma/internal/reports"
	"github.com/sma-almacen/sma/internal/shared"
	"github.com/sma-almacen/sma/jobs"
)

func main() {
	enqueue := flag.String("enqueue", "", "enqueue one task (reports:prune or inventory:integrity) and exit")
	flag.Parse()

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
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	if *enqueue != "" {
		if err := enqueueOnce(ctx, redisOpts, *enqueue, cfg.ReportsRetention); err != nil {
			logger.Error("enqueue task", slog.String("task", *enqueue), slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("task enqueued", slog.String("task", *enqueue))
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()

	itemsService := items.NewService(items.NewRepository(pool))
	suppliersService := suppliers.NewService(suppliers.NewRepository(pool))
	inventoryService := inventory.NewService(inventory.NewRepository(pool), itemsService, suppliersService, shared.NewAuditLogger(pool), metrics, logger)

	reportStore, err := reports.NewStore(cfg.ReportsDir)
	if err != nil {
		logger.Error("open reports store", slog.String("dir", cfg.ReportsDir), slog.Any("error", err))
		os.Exit(1)
	}
	reportsService := reports.NewService(itemsService, inventoryService, reports.NewRepository(pool), reportStore, metrics, logger)

	pruneJob := jobs.NewReportsPruneJob(reportsService, cfg.ReportsRetention, logger, metrics)
	integrityJob := jobs.NewInventoryIntegrityJob(inventoryService, logger, metrics, metrics)

	pruneTask, err := jobs.NewReportsPruneTask(cfg.ReportsRetention)
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReportsPrune, Handler: pruneJob.Handle},
			{Type: jobs.TaskInventoryIntegrity, Handler: integrityJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WorkerPruneCron, Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.WorkerIntegrityCron, Task: jobs.NewInventoryIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func enqueueOnce(ctx context.Context, opts asynq.RedisClientOpt, name string, retention time.Duration) error {
	var task *asynq.Task
	switch name {
	case jobs.TaskReportsPrune:
		t, err := jobs.NewReportsPruneTask(retention)
		if err != nil {
			return err
		}
		task = t
	case jobs.TaskInventoryIntegrity:
		task = jobs.NewInventoryIntegrityTask()
	default:
		return errors.New("unknown task " + name)
	}
	client := asynq.NewClient(opts)
	defer client.Close()
	_, err := client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
	return err
}
