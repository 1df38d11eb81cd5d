package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/evalhub/pkg/admin"
	"github.com/platinummonkey/evalhub/pkg/config"
	"github.com/platinummonkey/evalhub/pkg/export"
	"github.com/platinummonkey/evalhub/pkg/lifecycle"
	"github.com/platinummonkey/evalhub/pkg/lock"
	"github.com/platinummonkey/evalhub/pkg/notify"
	"github.com/platinummonkey/evalhub/pkg/observability"
	"github.com/platinummonkey/evalhub/pkg/storage"
	"github.com/platinummonkey/evalhub/pkg/storage/memory"
	"github.com/platinummonkey/evalhub/pkg/storage/postgres"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	runOnce := flag.Bool("run-once", false, "Run the jobs once and exit")
	dryRun := flag.Bool("dry-run", false, "Report what cleanup would do without changing anything")
	warnOnly := flag.Bool("warn-only", false, "Only send expiration warnings, never clean up")
	migrate := flag.Bool("migrate", false, "Apply database migrations before starting")
	cleanupSchedule := flag.String("cleanup-schedule", cfg.Lifecycle.CleanupSchedule, "Cron schedule for demo cleanup")
	warningSchedule := flag.String("warning-schedule", cfg.Lifecycle.WarningSchedule, "Cron schedule for expiration warnings")
	flag.Parse()

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger, options{
		runOnce:         *runOnce,
		dryRun:          *dryRun,
		warnOnly:        *warnOnly,
		migrate:         *migrate,
		cleanupSchedule: *cleanupSchedule,
		warningSchedule: *warningSchedule,
	}); err != nil {
		logger.WithError(err).Fatal("evalhub-lifecycle failed")
	}
}

type options struct {
	runOnce         bool
	dryRun          bool
	warnOnly        bool
	migrate         bool
	cleanupSchedule string
	warningSchedule string
}

func run(cfg *config.Config, logger *logrus.Logger, opts options) error {
	ctx := context.Background()

	// Handler is attached once the scheduler exists; shutting down a server
	// that never started is a no-op in run-once mode.
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	shutdown.Register("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	store, db, err := openStore(ctx, cfg, opts.migrate, logger)
	if err != nil {
		return err
	}
	if db != nil {
		shutdown.Register("postgres", func(context.Context) error { return db.Close() })
	}

	var redisClient *redis.Client
	locker := lock.Locker(lock.NewLocalLocker())
	if cfg.Lifecycle.LockBackend == "redis" {
		redisClient, err = lock.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
		locker = lock.NewRedisLocker(redisClient, "")
	}

	sink, err := newSink(ctx, cfg.Export)
	if err != nil {
		return err
	}
	exporter := export.NewExporter(store, sink, logger, export.WithMetrics(metrics))

	scheduler := lifecycle.NewScheduler(store, exporter, newNotifier(cfg.Notify, logger), lifecycle.Config{
		RetentionDays:     cfg.Demo.RetentionDays,
		WarningWindowDays: cfg.Demo.WarningWindowDays,
		DemoReportLimit:   cfg.Demo.ReportLimit,
		Workers:           cfg.Lifecycle.Workers,
		LockTTL:           cfg.Lifecycle.LockTTL,
	}, logger, lifecycle.WithLocker(locker), lifecycle.WithMetrics(metrics))

	logger.WithFields(logrus.Fields{
		"version":        version,
		"storage":        cfg.Storage.Type,
		"lock_backend":   cfg.Lifecycle.LockBackend,
		"export_sink":    sink.Name(),
		"notifier":       cfg.Notify.Type,
		"retention_days": cfg.Demo.RetentionDays,
		"warning_days":   cfg.Demo.WarningWindowDays,
	}).Info("Starting evalhub lifecycle service")

	if opts.runOnce {
		defer func() {
			if err := shutdown.Shutdown(); err != nil {
				logger.WithError(err).Warn("Shutdown finished with errors")
			}
		}()
		return runJobs(ctx, scheduler, opts, logger)
	}

	c := cron.New(
		cron.WithLogger(cron.PrintfLogger(logger)),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
	)

	if _, err := c.AddFunc(opts.warningSchedule, func() {
		runWarnings(ctx, scheduler, logger)
	}); err != nil {
		return fmt.Errorf("failed to schedule expiration warnings: %w", err)
	}

	if !opts.warnOnly {
		if _, err := c.AddFunc(opts.cleanupSchedule, func() {
			runCleanup(ctx, scheduler, opts.dryRun, logger)
		}); err != nil {
			return fmt.Errorf("failed to schedule demo cleanup: %w", err)
		}
	}

	if db != nil && metrics != nil {
		if _, err := c.AddFunc("@every 30s", func() { metrics.RecordDBStats(db.Stats()) }); err != nil {
			return fmt.Errorf("failed to schedule database stats: %w", err)
		}
	}

	c.Start()
	shutdown.Register("cron", func(ctx context.Context) error {
		select {
		case <-c.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	logger.WithFields(logrus.Fields{
		"cleanup_schedule": opts.cleanupSchedule,
		"warning_schedule": opts.warningSchedule,
		"warn_only":        opts.warnOnly,
		"dry_run":          opts.dryRun,
	}).Info("Lifecycle jobs scheduled")

	adminServer := admin.NewServer(scheduler, admin.Options{
		Token:    cfg.Server.AdminToken,
		Health:   observability.NewHealthChecker(store, redisClient).WithVersion(version),
		Metrics:  metrics,
		Gatherer: registry,
		Logger:   logger,
	})
	if cfg.Server.AdminToken == "" {
		logger.Warn("EVALHUB_ADMIN_TOKEN is not set; /admin routes will reject every request")
	}

	server.Handler = adminServer.Handler()

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("Admin server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := <-serverErr; err != nil {
			logger.WithError(err).Error("Admin server failed")
			cancel()
		}
	}()

	return shutdown.WaitForShutdown(waitCtx)
}

func openStore(ctx context.Context, cfg *config.Config, migrate bool, logger logrus.FieldLogger) (storage.Store, *sql.DB, error) {
	if cfg.Storage.Type == "memory" {
		logger.Warn("Using in-memory storage; data is lost on exit")
		return memory.New(), nil, nil
	}

	db, err := postgres.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return postgres.New(db), db, nil
}

func newSink(ctx context.Context, cfg config.ExportConfig) (export.Sink, error) {
	if cfg.Sink == "s3" {
		return export.NewS3Sink(ctx, cfg.S3)
	}
	return export.NewFileSink(cfg.Dir)
}

func newNotifier(cfg config.NotifyConfig, logger logrus.FieldLogger) notify.Notifier {
	if cfg.Type == "webhook" {
		return notify.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookSecret, cfg.Timeout, logger)
	}
	return notify.NewLogNotifier(logger)
}

func runJobs(ctx context.Context, scheduler *lifecycle.Scheduler, opts options, logger logrus.FieldLogger) error {
	if _, err := runWarnings(ctx, scheduler, logger); err != nil {
		return err
	}
	if opts.warnOnly {
		return nil
	}
	_, err := runCleanup(ctx, scheduler, opts.dryRun, logger)
	return err
}

func runWarnings(ctx context.Context, scheduler *lifecycle.Scheduler, logger logrus.FieldLogger) (*lifecycle.WarningResult, error) {
	result, err := scheduler.SendExpirationWarnings(ctx)
	if err != nil {
		logger.WithError(err).Error("Expiration warnings failed")
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"run_id":   result.RunID,
		"eligible": result.UsersEligible,
		"warned":   result.UsersWarned,
		"skipped":  result.UsersSkipped,
		"errors":   len(result.Errors),
	}).Info("Expiration warnings completed")
	return result, nil
}

func runCleanup(ctx context.Context, scheduler *lifecycle.Scheduler, dryRun bool, logger logrus.FieldLogger) (*lifecycle.CleanupResult, error) {
	result, err := scheduler.CleanupExpiredDemoUsers(ctx, dryRun)
	if err != nil {
		logger.WithError(err).Error("Demo cleanup failed")
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"run_id":          result.RunID,
		"dry_run":         result.DryRun,
		"processed":       result.UsersProcessed,
		"deactivated":     result.UsersDeactivated,
		"skipped":         result.UsersSkipped,
		"reports_deleted": result.ReportsDeleted,
		"errors":          len(result.Errors),
	}).Info("Demo cleanup completed")
	return result, nil
}
