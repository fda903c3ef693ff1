package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/audithero/apostle-video-platform-sub004/internal/application/billing"
	creditapp "github.com/audithero/apostle-video-platform-sub004/internal/application/credit"
	packapp "github.com/audithero/apostle-video-platform-sub004/internal/application/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/auth"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/billing"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/cache"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/config"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/logger"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/migration"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/persistence"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/scheduler"
	"github.com/audithero/apostle-video-platform-sub004/internal/infrastructure/telemetry"
	"github.com/audithero/apostle-video-platform-sub004/internal/interfaces/http/handler"
	"github.com/audithero/apostle-video-platform-sub004/internal/interfaces/http/middleware"
	"github.com/audithero/apostle-video-platform-sub004/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Metering API
//	@version		1.0
//	@description	Credits, minute packs, tier entitlements and overage billing.
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token carrying the tenant claim. Format: "Bearer {token}"

func main() {
	migrateOnStart := flag.Bool("migrate", false, "Apply pending database migrations before serving")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting metering service",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	var (
		meter   metric.Meter
		metrics *telemetry.MeteringMetrics
	)
	if meterProvider.IsEnabled() {
		meter = meterProvider.Meter(cfg.Telemetry.ServiceName)
		metrics, err = telemetry.NewMeteringMetrics(telemetry.MeteringMetricsConfig{Meter: meter, Logger: log})
		if err != nil {
			log.Fatal("Failed to create metering metrics", zap.Error(err))
		}
	}

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	if err := telemetry.NewDBTracingPlugin(dbTracing, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	if *migrateOnStart {
		runMigrations(db, log)
	}

	coordination, err := cache.NewFactory(cfg.Redis, cache.WithLogger(log)).Build(ctx)
	if err != nil {
		log.Fatal("Failed to set up coordination", zap.Error(err))
	}
	defer func() {
		if err := coordination.Close(); err != nil {
			log.Error("Error closing coordination", zap.Error(err))
		}
	}()

	// Repositories
	uow := persistence.NewGormUnitOfWork(db.DB)
	accountRepo := persistence.NewGormAccountRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	packRepo := persistence.NewGormPackRepository(db.DB)
	usageRepo := persistence.NewUsageSnapshotRepository(db.DB, nil)
	reportLogRepo := persistence.NewUsageReportLogRepository(db.DB)

	// Payment processor
	var (
		gateway  billingapp.BillingGateway
		checkout packapp.CheckoutGateway
	)
	if cfg.Stripe.Enabled() {
		stripeCfg := billing.DefaultStripeConfig()
		stripeCfg.SecretKey = cfg.Stripe.SecretKey
		adapter, err := billing.NewStripeAdapter(stripeCfg, log, nil)
		if err != nil {
			log.Fatal("Failed to create Stripe adapter", zap.Error(err))
		}
		gateway, checkout = adapter, adapter
		log.Info("Stripe enabled", zap.Bool("test_mode", stripeCfg.IsTestMode()))
	} else {
		log.Warn("Stripe secret key not set; checkout and overage billing are disabled")
	}

	// Application services
	creditService := creditapp.NewService(uow, ledgerRepo, log.Named("credit"), creditapp.ServiceConfig{
		Metrics: metrics,
	})
	packService := packapp.NewService(uow, packRepo, log.Named("pack"), packapp.ServiceConfig{
		Checkout:   checkout,
		SuccessURL: cfg.Stripe.CheckoutSuccessURL,
		CancelURL:  cfg.Stripe.CheckoutCancelURL,
		Metrics:    metrics,
	})
	overageReporter := billingapp.NewOverageReporter(billingapp.OverageReporterConfig{
		Accounts: accountRepo,
		Usage:    usageRepo,
		Gateway:  gateway,
		Prices: billingapp.MeteredPrices{
			tier.MetricVideoStorageSeconds: cfg.Stripe.StoragePriceID,
			tier.MetricStudents:            cfg.Stripe.StudentsPriceID,
			tier.MetricEmailsPerMonth:      cfg.Stripe.EmailsPriceID,
		},
		Logs:    reportLogRepo,
		Locker:  coordination.Locker,
		Metrics: metrics,
		Logger:  log.Named("overage"),
		LockTTL: cfg.Scheduler.ReportLockTTL,
	})
	upgradeAdvisor := billingapp.NewUpgradeAdvisor(accountRepo, usageRepo, log.Named("advisor"))
	entitlementService := billingapp.NewEntitlementService(accountRepo, usageRepo, creditService)
	webhookService := billingapp.NewStripeWebhookService(billingapp.StripeWebhookServiceConfig{
		WebhookSecret:  cfg.Stripe.WebhookSecret,
		Packs:          packService,
		Addons:         creditService,
		Accounts:       accountRepo,
		Idempotency:    coordination.Idempotency,
		IdempotencyTTL: cfg.Stripe.WebhookDedupTTL,
		Logger:         log.Named("webhook"),
	})

	// Background jobs
	jobs := scheduler.New(scheduler.Config{
		Enabled:    cfg.Scheduler.Enabled,
		JobTimeout: cfg.Scheduler.JobTimeout,
		Metrics:    metrics,
	}, log.Named("scheduler"))
	if cfg.Scheduler.Enabled {
		for _, job := range []scheduler.Job{
			scheduler.NewOverageReportJob(cfg.Scheduler.OverageReportCron, overageReporter),
			scheduler.NewMonthlyAllocationJob(scheduler.MonthlyAllocationConfig{
				Schedule:  cfg.Scheduler.MonthlyAllocationCron,
				Accounts:  accountRepo,
				Allocator: creditService,
				Locker:    coordination.Locker,
				Logger:    log.Named("allocation"),
			}),
		} {
			if err := jobs.Register(job); err != nil {
				log.Fatal("Failed to register job", zap.String("job", job.Name), zap.Error(err))
			}
		}
		if err := jobs.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := jobs.Stop(stopCtx); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.NewEngine(router.EngineConfig{
		HTTP:           cfg.HTTP,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: tracerProvider.IsEnabled(),
		Meter:          meter,
		Logger:         log,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	healthHandler := handler.NewHealthHandler(version, map[string]handler.HealthCheck{
		"database": db.Ping,
		"redis":    coordination.Ping,
	}, jobs, nil)
	engine.GET("/health", healthHandler.Health)

	verifier := auth.NewTokenVerifier(cfg.JWT, nil)
	router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithAuth(middleware.TenantAuth(verifier, log)),
	).
		RegisterPublic(
			healthHandler,
			handler.NewStripeWebhookHandler(webhookService),
		).
		Register(
			handler.NewCreditHandler(creditService),
			handler.NewPackHandler(packService),
			handler.NewOverageHandler(overageReporter, upgradeAdvisor, entitlementService),
		).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited")
}

func runMigrations(db *persistence.Database, log *zap.Logger) {
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get database handle", zap.Error(err))
	}
	m, err := migration.New(sqlDB, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := m.Up(); err != nil {
		log.Fatal("Migration up failed", zap.Error(err))
	}
}
