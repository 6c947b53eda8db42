// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/resell-stock/internal/adapters/db"
	redis_a "github.com/ammerola/resell-stock/internal/adapters/redis_adapter"
	"github.com/ammerola/resell-stock/internal/adapters/storage"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/core/services"
	"github.com/ammerola/resell-stock/internal/handlers"
	"github.com/ammerola/resell-stock/internal/handlers/middleware"
	"github.com/ammerola/resell-stock/internal/pkg/config"
	"github.com/ammerola/resell-stock/internal/pkg/logger"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	// Initialize structured logger
	slogger := logger.SetupLogger("debug", "json")

	slogger.Info("starting resell stock service",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	// Load configuration
	cfg, err := config.Load(slogger.Logger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Reconfigure logger with loaded settings
	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("log_level", cfg.App.LogLevel),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run database migrations outside production; there a release job owns them
	if !cfg.IsProduction() {
		if err := runMigrations(ctx, cfg, slogger.Logger); err != nil {
			slogger.Error("failed to run migrations", slog.String("error", err.Error()))
		}
	}

	deps, err := initializeDependencies(ctx, cfg, slogger.Logger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup()

	// Drop cached views when another process writes to the store
	go func() {
		if err := deps.notifier.Subscribe(ctx, deps.views.OnChange); err != nil {
			slogger.Error("change listener stopped", slog.String("error", err.Error()))
		}
	}()

	server := setupHTTPServer(cfg, deps, slogger)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)

		if cfg.Server.TLSEnabled {
			serverErrors <- server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received",
			slog.String("signal", sig.String()),
		)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}
		cancel()

		slogger.Info("server shutdown complete")
	}
}

// dependencies holds all application dependencies
type dependencies struct {
	database       *db.Database
	notifier       ports.ChangeNotifier
	redisClient    *redis.Client
	cache          ports.CacheRepository
	views          *services.ViewCache
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector

	stockHandler     *handlers.StockHandler
	purchaseHandler  *handlers.PurchaseHandler
	supplierHandler  *handlers.SupplierHandler
	countHandler     *handlers.CountHandler
	exportHandler    *handlers.ExportHandler
	dashboardHandler *handlers.DashboardHandler
	importHandler    *handlers.ImportHandler
	backupHandler    *handlers.BackupHandler
	healthHandler    *handlers.HealthHandler
}

func (d *dependencies) cleanup() {
	if d.asynqClient != nil {
		d.asynqClient.Close()
	}
	if d.asynqInspector != nil {
		d.asynqInspector.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
	if d.database != nil {
		d.database.Close()
	}
}

func newRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		PoolTimeout:  cfg.Redis.PoolTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	logger.Info("connecting to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name),
	)

	database, err := db.NewDatabase(ctx, databaseConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.database = database
	deps.notifier = db.NewNotifier(database, logger)

	logger.Info("connecting to Redis", slog.String("addr", cfg.Redis.Addr()))

	redisClient, err := newRedisClient(ctx, cfg)
	if err != nil {
		deps.cleanup()
		return nil, err
	}
	deps.redisClient = redisClient
	deps.cache = redis_a.NewCache(redisClient, logger)

	objects, err := storage.New(ctx, cfg, logger)
	if err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
	deps.asynqClient = asynq.NewClient(asynqRedisOpt)
	deps.asynqInspector = asynq.NewInspector(asynqRedisOpt)

	// Repositories
	items := db.NewItemRepository(database, logger)
	purchases := db.NewPurchaseRepository(database, logger)
	suppliers := db.NewSupplierRepository(database, logger)
	invoices := db.NewInvoiceRepository(database, logger)
	movements := db.NewMovementRepository(database, logger)
	counts := redis_a.NewCountStore(redisClient, redis_a.DefaultCountTTL, logger)

	// Services
	deps.views = services.NewViewCache(deps.cache, cfg.Redis.ViewTTL, logger)
	ledger := services.NewLedger(movements, logger)
	workspace := services.NewWorkspace(items, purchases, suppliers, invoices, movements, logger)

	stockService := services.NewStockService(items, purchases, ledger, deps.views, logger)
	purchaseService := services.NewPurchaseService(purchases, suppliers, items, ledger, deps.views, logger)
	supplierService := services.NewSupplierService(suppliers, purchases, invoices, deps.views, logger)
	invoiceService := services.NewInvoiceService(invoices, suppliers, deps.views, logger)
	countService := services.NewCountService(items, counts, ledger, deps.views, logger)
	catalogService := services.NewCatalogService(items, deps.views, logger)
	backupService := services.NewBackupService(items, purchases, suppliers, invoices, objects, deps.views, logger)
	dashboardService := services.NewDashboardService(workspace, deps.views, logger)
	searchService := services.NewSearchService(workspace)

	// Handlers
	fp := cfg.FileProcessing
	deps.stockHandler = handlers.NewStockHandler(stockService, logger)
	deps.purchaseHandler = handlers.NewPurchaseHandler(purchaseService, logger)
	deps.supplierHandler = handlers.NewSupplierHandler(supplierService, invoiceService, objects, deps.asynqClient,
		fp.UploadPrefix, fp.PDFMaxSizeMB, logger)
	deps.countHandler = handlers.NewCountHandler(countService, logger)
	deps.exportHandler = handlers.NewExportHandler(stockService, purchaseService, countService, logger)
	deps.dashboardHandler = handlers.NewDashboardHandler(dashboardService, searchService, logger)
	deps.importHandler = handlers.NewImportHandler(catalogService, objects, deps.asynqClient, deps.asynqInspector,
		fp.UploadPrefix, fp.ExcelMaxSizeMB, logger)
	deps.backupHandler = handlers.NewBackupHandler(backupService, objects, deps.asynqClient, logger)
	deps.healthHandler = handlers.NewHealthHandler(database, deps.cache, deps.asynqInspector, cfg, logger)

	logger.Info("all dependencies initialized successfully",
		slog.String("storage", cfg.Storage.Driver))
	return deps, nil
}

func databaseConfig(cfg *config.Config) *db.Config {
	return &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     cfg.Database.MaxConnections,
		MinConnections:     cfg.Database.MinConnections,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		StatementCacheMode: cfg.Database.StatementCacheMode,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}
}

func setupHTTPServer(cfg *config.Config, deps *dependencies, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)

	// Applied innermost first; RequestID runs first on the way in.
	var handler http.Handler = mux
	handler = middleware.Timeout(cfg.Server.RequestTimeout)(handler)
	handler = middleware.Tenant(cfg.Tenant)(handler)
	handler = middleware.Compression(handler)

	if cfg.Security.RateLimitRequests > 0 {
		handler = middleware.RateLimit(cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration)(handler)
	}
	if len(cfg.Security.AllowedOrigins) > 0 {
		handler = middleware.CORS(cfg.Security.AllowedOrigins, cfg.Tenant.UserHeader, cfg.Tenant.RoleHeader)(handler)
	}
	if cfg.Security.SecureHeaders {
		handler = middleware.SecureHeaders(handler)
	}

	handler = middleware.Recovery(log.Logger)(handler)
	handler = middleware.Logger(log)(handler)
	handler = middleware.RequestID(cfg.Security.RequestIDHeader)(handler)

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        handler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(log.Handler(), slog.LevelError),
	}
}

func registerRoutes(mux *http.ServeMux, deps *dependencies, cfg *config.Config) {
	handlers.Mount(mux, deps.healthHandler,
		deps.stockHandler,
		deps.purchaseHandler,
		deps.supplierHandler,
		deps.countHandler,
		deps.exportHandler,
		deps.dashboardHandler,
		deps.importHandler,
		deps.backupHandler,
	)

	// pprof endpoints (development only)
	if cfg.IsDevelopment() {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("running database migrations")

	migrationConfig := &db.MigrationConfig{
		DatabaseURL: databaseConfig(cfg).URL(),
		SourcePath:  cfg.Database.MigrationPath,
		TableName:   "schema_migrations",
		SchemaName:  "public",
	}

	return db.RunMigrationsWithRetry(ctx, migrationConfig, logger, 3)
}
