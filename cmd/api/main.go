package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"legalease/docs"
	"legalease/internal/analysis"
	"legalease/internal/assemble"
	"legalease/internal/auth"
	"legalease/internal/config"
	"legalease/internal/database"
	"legalease/internal/database/migration"
	handlers "legalease/internal/http/handler"
	"legalease/internal/http/middleware"
	"legalease/internal/logging"
	"legalease/internal/otel"
	"legalease/internal/pipeline"
	"legalease/internal/repository"
	"legalease/internal/repository/postgres"
	"legalease/internal/repository/sqlite"
	"legalease/internal/service"
	"legalease/internal/storage"
	"legalease/internal/upload"
)

const bodyLimit = 64 << 20

// @title LegalEase Ingestion API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.Location())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		fatal(logger, "tracing_init_failed", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		fatal(logger, "db_connect_failed", err)
	}
	defer db.Close()

	driver := cfg.Database.Driver
	if driver == "" {
		driver = database.DriverPostgres
	}
	if err := migration.EnsureMigrated(ctx, db, driver, logger); err != nil {
		fatal(logger, "db_migration_failed", err)
	}

	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		fatal(logger, "storage_init_failed", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := pipeline.NewMetrics(reg)
	if err != nil {
		fatal(logger, "metrics_init_failed", err)
	}
	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		fatal(logger, "metrics_init_failed", err)
	}

	reportSvc := service.NewReportService(reportRepository(driver, db), logger)

	guard, closeGuard := runGuard(ctx, cfg, logger)
	defer closeGuard()

	orch := pipeline.New(pipeline.Deps{
		Assembler: assemble.New(cfg.Pipeline.WorkDir, logger),
		Uploader: upload.New(objStore, upload.Options{
			MaxAttempts: cfg.Pipeline.UploadMaxAttempts,
			Backoff:     cfg.Pipeline.UploadBackoff,
			Observer:    metrics.UploadAttempt,
		}, logger),
		Analyzer: analysis.New(cfg.Analysis.BaseURL, cfg.Analysis.Timeout, logger),
		Reports:  reportSvc,
		Guard:    guard,
		Metrics:  metrics,
		Logger:   logger,
	})
	tracker := pipeline.NewTracker(orch, time.Hour, logger)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    bodyLimit,
	})

	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(cfg.Location()))
	app.Use(prom.Handler())

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:       db,
		Gatherer: reg,
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret),
		Runs:     tracker,
		Reports:  reportSvc,
		Intake:   handlers.IntakeConfig{WorkDir: cfg.Pipeline.WorkDir, MaxPages: cfg.Pipeline.MaxPages},
		Logger:   logger,
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server_stopped", "error", err.Error())
			stop()
		}
	}()
	logger.Info("server_started", "port", cfg.Port, "db_driver", driver)

	<-ctx.Done()
	logger.Info("server_shutdown")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("server_shutdown_failed", "error", err.Error())
	}
	tracker.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Error("tracing_shutdown_failed", "error", err.Error())
	}
}

func reportRepository(driver string, db *sql.DB) repository.ReportRepository {
	if driver == database.DriverSQLite {
		return sqlite.NewReportSQLite(db)
	}
	return postgres.NewReportPostgres(db)
}

// runGuard uses Redis when configured so every instance sees the same in-flight runs.
func runGuard(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (pipeline.Guard, func()) {
	if cfg.Redis.Addr == "" {
		return pipeline.NewMemoryGuard(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		fatal(logger, "redis_connect_failed", err)
	}
	logger.Info("run_guard_configured", "backend", "redis", "addr", cfg.Redis.Addr)
	return pipeline.NewRedisGuard(client, cfg.Pipeline.RunLockTTL), func() { _ = client.Close() }
}

func fatal(logger *slog.Logger, event string, err error) {
	logger.Error(event, "error", err.Error())
	os.Exit(1)
}
