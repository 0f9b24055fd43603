package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	financeapp "github.com/erp/dues/internal/application/finance"
	reportapp "github.com/erp/dues/internal/application/report"
	"github.com/erp/dues/internal/domain/shared"
	"github.com/erp/dues/internal/infrastructure/cache"
	"github.com/erp/dues/internal/infrastructure/config"
	"github.com/erp/dues/internal/infrastructure/event"
	"github.com/erp/dues/internal/infrastructure/logger"
	"github.com/erp/dues/internal/infrastructure/migration"
	"github.com/erp/dues/internal/infrastructure/persistence"
	"github.com/erp/dues/internal/infrastructure/scheduler"
	"github.com/erp/dues/internal/infrastructure/storage"
	"github.com/erp/dues/internal/infrastructure/telemetry"
	"github.com/erp/dues/internal/interfaces/http/handler"
	"github.com/erp/dues/internal/interfaces/http/middleware"
	"github.com/erp/dues/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Dues Reconciliation API
//	@version		1.0
//	@description	Payment ledger, obligation status and dues reports for sales, purchases, expenses and payroll
//	@BasePath		/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting dues engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	metrics, err := telemetry.NewReconciliationMetrics(meterProvider.Meter(telemetry.MeterName))
	if err != nil {
		log.Fatal("Failed to create reconciliation metrics", zap.Error(err))
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	dbSystem := "postgresql"
	if cfg.Database.Driver == config.DriverSQLite {
		dbSystem = "sqlite"
		// single-box deployments migrate on boot; postgres uses cmd/migrate
		if err := migrateSQLite(&cfg.Database, log); err != nil {
			log.Fatal("Failed to migrate SQLite database", zap.Error(err))
		}
	}
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	obligationRepo := persistence.NewGormObligationRepository(db.DB)
	paymentEventRepo := persistence.NewGormPaymentEventRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	eventBus := event.NewInMemoryEventBus(log)
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		_ = idempotencyStore.Close()
	}()
	subscribeHandlers(eventBus, idempotencyStore, shared.IdempotencyConfig{
		TTL:     cfg.Reconciliation.IdempotencyTTL,
		Enabled: cfg.Reconciliation.EventDedupEnabled,
	}, metrics, log)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	reconciliationService := financeapp.NewReconciliationService(
		obligationRepo,
		paymentEventRepo,
		txScope,
		financeapp.WithEventPublisher(eventBus),
		financeapp.WithMetrics(metrics),
		financeapp.WithMaxConflictRetries(cfg.Reconciliation.MaxConflictRetries),
		financeapp.WithLogger(log),
	)

	var sweep *scheduler.LedgerSweepTrigger
	if cfg.Reconciliation.SweepEnabled {
		sweepCfg := scheduler.DefaultLedgerSweepConfig()
		sweepCfg.Hour = cfg.Reconciliation.SweepHour
		sweepCfg.Minute = cfg.Reconciliation.SweepMinute
		sweep, err = scheduler.NewLedgerSweepTrigger(sweepCfg, reconciliationService, log)
		if err != nil {
			log.Fatal("Failed to create ledger sweep trigger", zap.Error(err))
		}
		if err := sweep.Start(ctx); err != nil {
			log.Fatal("Failed to start ledger sweep trigger", zap.Error(err))
		}
	}

	archive, err := newReportArchive(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize report archive", zap.Error(err))
	}
	reportService := reportapp.NewDuesReportService(
		obligationRepo,
		cfg.Reconciliation.CurrencyCode,
		reportapp.WithArchive(archive),
		reportapp.WithMetrics(metrics),
		reportapp.WithLogger(log),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to set up request validation", zap.Error(err))
	}
	engine, err := router.New(router.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		TracingEnabled: cfg.Telemetry.Enabled,
		MeterProvider:  meterProvider,
		Logger:         log,
	}, router.Handlers{
		Obligation: handler.NewObligationHandler(reconciliationService),
		Report:     handler.NewReportHandler(reportService),
		System:     handler.NewSystemHandler(cfg.App.Name, version, db),
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if sweep != nil {
		if err := sweep.Stop(shutdownCtx); err != nil {
			log.Warn("Failed to stop ledger sweep trigger", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Failed to stop event bus", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shut down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shut down tracer provider", zap.Error(err))
	}

	log.Info("Server exited")
}

// subscribeHandlers attaches the reconciliation event handlers. Settlement
// and integrity alerts are deduplicated so a redelivered event is counted once.
func subscribeHandlers(
	bus *event.InMemoryEventBus,
	store shared.IdempotencyStore,
	dedup shared.IdempotencyConfig,
	metrics *telemetry.ReconciliationMetrics,
	log *zap.Logger,
) {
	serializer := event.NewEventSerializer()
	event.RegisterDuesEvents(serializer)

	bus.Subscribe(event.NewJournalHandler(serializer, log))
	bus.Subscribe(event.NewIdempotentHandler("settlement",
		financeapp.NewSettlementHandler(metrics, log), store, dedup, log))
	bus.Subscribe(event.NewIdempotentHandler("integrity-alert",
		financeapp.NewIntegrityAlertHandler(log), store, dedup, log))
}

// newReportArchive returns the S3 archive when storage is enabled and a
// local directory archive otherwise
func newReportArchive(ctx context.Context, cfg *config.StorageConfig, log *zap.Logger) (reportapp.ReportArchive, error) {
	if !cfg.Enabled {
		log.Info("Object storage disabled, archiving reports locally", zap.String("dir", cfg.LocalDir))
		local, err := storage.NewLocalReportArchive(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	}

	archive, err := storage.NewS3ReportArchive(cfg,
		storage.WithLogger(log),
		storage.WithPresignExpiration(cfg.PresignExpiration),
	)
	if err != nil {
		return nil, err
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return archive, nil
}

func migrateSQLite(cfg *config.DatabaseConfig, log *zap.Logger) error {
	m, err := migration.NewFromURL(cfg.MigrationURL(), migration.DialectSQLite, log)
	if err != nil {
		return err
	}
	defer func() {
		_ = m.Close()
	}()
	return m.Up()
}
