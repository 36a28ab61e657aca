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

	"github.com/sma-almacen/sma/internal/app"
	"github.com/sma-almacen/sma/internal/auth"
	"github.com/sma-almacen/sma/internal/inventory"
	"github.com/sma-almacen/sma/internal/masterdata/items"
	"github.com/sma-almacen/sma/internal/masterdata/suppliers"
	"github.com/sma-almacen/sma/internal/observability"
	"github.com/sma-almacen/sma/internal/platform/cache"
	"github.com/sma-almacen/sma/internal/platform/db"
	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/reports"
	"github.com/sma-almacen/sma/internal/shared"
	"github.com/sma-almacen/sma/internal/users"
	"github.com/sma-almacen/sma/internal/view"
	"github.com/sma-almacen/sma/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "sma_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	usersService := users.NewService(users.NewRepository(dbpool), logger)
	rbacMiddleware := rbac.Middleware{Resolver: usersService, Logger: logger}

	authService := auth.NewService(auth.NewRepository(dbpool), usersService)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)
	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager, auditLogger, rbacMiddleware)

	itemsService := items.NewService(items.NewRepository(dbpool))
	itemsHandler := items.NewHandler(logger, itemsService, auditLogger, rbacMiddleware)

	suppliersService := suppliers.NewService(suppliers.NewRepository(dbpool))
	suppliersHandler := suppliers.NewHandler(logger, suppliersService, templates, csrfManager, auditLogger, rbacMiddleware)

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), itemsService, suppliersService, auditLogger, metrics, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, itemsService, suppliersService, templates, csrfManager, rbacMiddleware)

	reportStore, err := reports.NewStore(cfg.ReportsDir)
	if err != nil {
		logger.Error("open reports store", slog.String("dir", cfg.ReportsDir), slog.Any("error", err))
		os.Exit(1)
	}
	reportsService := reports.NewService(itemsService, inventoryService, reports.NewRepository(dbpool), reportStore, metrics, logger)
	reportsHandler := reports.NewHandler(logger, reportsService, templates, csrfManager, rbacMiddleware, cfg.ReportsRatePerMin)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		RBACMiddleware:   rbacMiddleware,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		InventoryHandler: inventoryHandler,
		ItemsHandler:     itemsHandler,
		SuppliersHandler: suppliersHandler,
		ReportsHandler:   reportsHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
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
