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

	"github.com/fabtrack/fabtrack/cmd/fabtrack/cli"
	"github.com/fabtrack/fabtrack/internal/app"
	"github.com/fabtrack/fabtrack/internal/authz"
	"github.com/fabtrack/fabtrack/internal/catalog"
	"github.com/fabtrack/fabtrack/internal/directory"
	"github.com/fabtrack/fabtrack/internal/notify"
	"github.com/fabtrack/fabtrack/internal/observability"
	"github.com/fabtrack/fabtrack/internal/orders"
	"github.com/fabtrack/fabtrack/internal/platform/cache"
	"github.com/fabtrack/fabtrack/internal/platform/db"
	"github.com/fabtrack/fabtrack/internal/platform/migrations"
	"github.com/fabtrack/fabtrack/internal/quotations"
	"github.com/fabtrack/fabtrack/internal/sequence"
	"github.com/fabtrack/fabtrack/internal/shared"
	"github.com/fabtrack/fabtrack/jobs"
	"github.com/fabtrack/fabtrack/report"
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
	env := cli.Env{DSN: cfg.PGDSN, RedisAddr: cfg.RedisAddr, Logger: logger, Out: os.Stdout}

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	switch command {
	case "serve":
		err = serve(ctx, stop, cfg, logger)
	case "migrate":
		err = cli.RunMigrate(env, cli.DefaultMigrator, args)
	case "jobs":
		err = cli.RunJobs(ctx, env, args)
	default:
		err = cli.ErrUsage
	}
	if err != nil {
		logger.Error(command, slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	if cfg.MigrateOnStart {
		if err := migrations.Up(cfg.PGDSN, logger); err != nil {
			return err
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MaxConnLifetime: time.Hour})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		_ = inspector.Close()
	}()

	metrics := observability.NewMetrics()
	sequences := sequence.NewRegistry(metrics)
	dir := directory.NewRepository(pool)
	auditor := shared.NewAuditLogger(pool, logger)
	idempotency := shared.NewIdempotencyStore(pool)
	authzMiddleware := authz.Middleware{Provider: authz.NewPGProvider(pool), Logger: logger}

	pdfClient := report.NewClient(cfg.GotenbergURL)
	renderer, err := report.NewRenderer(pdfClient, dir, logger, report.WithLanguage(cfg.ReportTag()))
	if err != nil {
		return err
	}

	catalogService := catalog.NewService(catalog.NewRepository(pool), redisClient, cfg.CatalogCacheTTL, logger)
	go catalogService.Watch(ctx, pool, 5*time.Second)

	orderService := orders.NewService(orders.NewRepository(pool, sequences), orders.ServiceDeps{
		Directory: dir,
		Notifier:  notify.NewDispatcher(jobClient, logger, notify.WithTimeout(cfg.NotifyTimeout)),
		Auditor:   auditor,
		Observer:  metrics,
		Logger:    logger,
	})
	quotationService := quotations.NewService(quotations.NewRepository(pool, sequences), quotations.ServiceDeps{
		Directory: dir,
		Catalog:   catalogService,
		Auditor:   auditor,
		Observer:  metrics,
		Logger:    logger,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Authz:             authzMiddleware,
		OrdersHandler:     orders.NewHandler(logger, orderService, idempotency, renderer, authzMiddleware),
		QuotationsHandler: quotations.NewHandler(logger, quotationService, idempotency, renderer, authzMiddleware),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
		HealthChecks:      healthChecks(pool, redisPinger{redisClient}, pdfClient),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	return nil
}
