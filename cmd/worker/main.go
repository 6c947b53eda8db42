// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/resell-stock/internal/adapters/db"
	redis_a "github.com/ammerola/resell-stock/internal/adapters/redis_adapter"
	"github.com/ammerola/resell-stock/internal/adapters/storage"
	"github.com/ammerola/resell-stock/internal/core/services"
	"github.com/ammerola/resell-stock/internal/pkg/config"
	"github.com/ammerola/resell-stock/internal/pkg/logger"
	"github.com/ammerola/resell-stock/internal/workers"
)

func main() {
	// Setup logger
	slogger := logger.SetupLogger("info", "json")

	// Load configuration
	cfg, err := config.Load(slogger.Logger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Reconfigure logger with loaded settings
	log := logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat).Logger
	log.Info("starting worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("redis_addr", cfg.Asynq.RedisAddr))

	ctx := context.Background()
	database, err := initDatabase(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cache := redis_a.NewCache(redisClient, log)

	objects, err := storage.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize object storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Repositories and services
	items := db.NewItemRepository(database, log)
	purchases := db.NewPurchaseRepository(database, log)
	suppliers := db.NewSupplierRepository(database, log)
	invoices := db.NewInvoiceRepository(database, log)
	movements := db.NewMovementRepository(database, log)

	views := services.NewViewCache(cache, cfg.Redis.ViewTTL, log)
	ledger := services.NewLedger(movements, log)
	stockService := services.NewStockService(items, purchases, ledger, views, log)
	catalogService := services.NewCatalogService(items, views, log)
	invoiceService := services.NewInvoiceService(invoices, suppliers, views, log)
	backupService := services.NewBackupService(items, purchases, suppliers, invoices, objects, views, log)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Asynq.Concurrency,
		Queues:          cfg.Asynq.Queues,
		StrictPriority:  cfg.Asynq.StrictPriority,
		ErrorHandler:    asynq.ErrorHandlerFunc(handleError),
		RetryDelayFunc:  exponentialBackoff,
		ShutdownTimeout: cfg.Asynq.ShutdownTimeout,
		HealthCheckFunc: healthCheck,
		Logger:          newAsynqLogger(log),
	})

	fp := cfg.FileProcessing
	mux := workers.NewServeMux(
		workers.NewCatalogProcessor(catalogService, objects, log),
		workers.NewBackupProcessor(backupService, log),
		workers.NewPDFProcessor(invoiceService, objects, fp.PDFMaxSizeMB, log),
		workers.NewDigestProcessor(stockService, cache, workers.NewSMTPSender(cfg.Mail), cfg.Mail, log),
		workers.NewCleanupProcessor(objects, fp.UploadPrefix, fp.CleanupMaxAge, log),
	)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   newAsynqLogger(log),
		Location: time.Local,
	})
	scheduled, err := workers.RegisterPeriodicTasks(scheduler, cfg)
	if err != nil {
		log.Error("failed to register periodic tasks", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !cfg.Mail.Enabled() {
		log.Warn("mail is not configured, low-stock digests are disabled")
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Run(mux); err != nil {
			log.Error("failed to run worker server", slog.String("error", err.Error()))
			shutdown <- syscall.SIGTERM
		}
	}()
	if scheduled > 0 {
		if err := scheduler.Start(); err != nil {
			log.Error("failed to start scheduler", slog.String("error", err.Error()))
			shutdown <- syscall.SIGTERM
		}
	}

	log.Info("worker started successfully",
		slog.Int("concurrency", cfg.Asynq.Concurrency),
		slog.Any("queues", cfg.Asynq.Queues),
		slog.Int("periodic_tasks", scheduled))

	sig := <-shutdown
	log.Info("shutdown signal received", slog.String("signal", sig.String()))

	if scheduled > 0 {
		scheduler.Shutdown()
	}
	srv.Shutdown()
	log.Info("worker shutdown complete")
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*db.Database, error) {
	// Fewer connections than the API
	dbConfig := &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     10,
		MinConnections:     2,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		StatementCacheMode: cfg.Database.StatementCacheMode,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}

	return db.NewDatabase(ctx, dbConfig, logger)
}

func handleError(ctx context.Context, task *asynq.Task, err error) {
	slog.ErrorContext(ctx, "task processing failed",
		slog.String("type", task.Type()),
		slog.String("payload", string(task.Payload())),
		slog.String("error", err.Error()))
}

func exponentialBackoff(n int, e error, t *asynq.Task) time.Duration {
	baseDelay := time.Second
	maxDelay := 10 * time.Minute
	delay := baseDelay * time.Duration(1<<uint(n))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func healthCheck(err error) {
	if err != nil {
		slog.Error("worker health check failed", slog.String("error", err.Error()))
	}
}

// asynqLogger adapts slog for Asynq
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{
		logger: logger.With(slog.String("component", "asynq")),
	}
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
