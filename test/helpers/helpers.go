// test/helpers/helpers.go
package helpers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/resell-stock/internal/adapters/db"
	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/pkg/config"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
)

// TestUser owns the rows created by the fixtures below.
const TestUser = "user-test"

// TestDB represents a test database instance
type TestDB struct {
	PgxPool  *pgxpool.Pool
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a test logger
func TestLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// UserContext returns a context acting as user.
func UserContext(user string) context.Context {
	return tenant.WithTenant(context.Background(), tenant.Tenant{UserID: user})
}

// AdminContext returns a context that sees every tenant's rows.
func AdminContext() context.Context {
	return tenant.WithTenant(context.Background(), tenant.Tenant{UserID: "admin", Admin: true})
}

// SetupTestDB creates a PostgreSQL container for integration tests and
// applies the embedded migrations.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "Could not connect to Docker")

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test_stock",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Could not start PostgreSQL container")

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Could not purge resource: %s", err)
		}
	})

	dbConfig := &db.Config{
		Host:               "localhost",
		Port:               resource.GetPort("5432/tcp"),
		User:               "test",
		Password:           "test",
		Database:           "test_stock",
		SSLMode:            "disable",
		MaxConnections:     5,
		MinConnections:     1,
		MaxConnLifetime:    time.Hour,
		MaxConnIdleTime:    time.Minute * 30,
		HealthCheckPeriod:  time.Minute,
		ConnectTimeout:     time.Second * 10,
		StatementCacheMode: "describe",
		EnableQueryLogging: testing.Verbose(),
	}

	var database *db.Database
	err = pool.Retry(func() error {
		ctx := context.Background()
		var err error
		database, err = db.NewDatabase(ctx, dbConfig, TestLogger())
		if err != nil {
			return err
		}
		return database.Ping(ctx)
	})
	require.NoError(t, err, "Could not connect to PostgreSQL")
	t.Cleanup(database.Close)

	err = db.RunMigrationsWithRetry(context.Background(), &db.MigrationConfig{
		DatabaseURL: dbConfig.URL(),
	}, TestLogger(), 3)
	require.NoError(t, err, "Could not run migrations")

	return &TestDB{
		PgxPool:  database.Pool(),
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   dbConfig,
	}
}

// SetupTestRedis creates an in-memory Redis for testing
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
	})

	return &TestRedis{
		Client: client,
		Server: mr,
	}
}

// LoadTestConfig returns a test configuration
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "test-api",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "text",
			Debug:       true,
		},
		Database: config.DatabaseConfig{
			Host:           "localhost",
			Port:           "5432",
			User:           "test",
			Password:       "test",
			Name:           "test_stock",
			SSLMode:        "disable",
			MaxConnections: 10,
			MinConnections: 2,
		},
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			PoolSize: 10,
			ViewTTL:  time.Minute,
		},
		Storage: config.StorageConfig{
			Driver:   "local",
			LocalDir: os.TempDir(),
		},
		FileProcessing: config.FileProcessingConfig{
			PDFMaxSizeMB:      5,
			ExcelMaxSizeMB:    5,
			ProcessingTimeout: time.Minute,
			UploadPrefix:      "uploads",
			CleanupMaxAge:     time.Hour,
		},
		Security: config.SecurityConfig{
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
			RequestIDHeader:   "X-Request-ID",
		},
		Server: config.ServerConfig{
			Host:           "localhost",
			Port:           "8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			RequestTimeout: 10 * time.Second,
			MaxBodyMB:      5,
		},
		Tenant: config.TenantConfig{
			UserHeader: "X-User-ID",
			RoleHeader: "X-User-Role",
			AdminRole:  "admin",
		},
	}
}

// CreateTestItem creates a new-state item with 5 units in the warehouse.
func CreateTestItem(overrides ...func(*domain.Item)) *domain.Item {
	now := time.Now().UTC().Truncate(time.Microsecond)
	item := &domain.Item{
		ID:            uuid.New(),
		UserID:        TestUser,
		EAN:           "3700000000017",
		Name:          "Test Bluetooth Speaker",
		Category:      "audio",
		Condition:     "new",
		StockState:    domain.StateNew,
		Status:        domain.StatusReceived,
		PurchasePrice: decimal.NewFromFloat(20),
		ResalePrice:   decimal.NewFromFloat(35),
		DateAdded:     now.AddDate(0, 0, -10),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	item.SetBuckets(5, 0, 0)

	for _, override := range overrides {
		override(item)
	}
	item.RecomputeTotal()

	return item
}

// CreateTestItems creates count items with distinct EANs and names.
func CreateTestItems(count int) []domain.Item {
	items := make([]domain.Item, count)
	for i := 0; i < count; i++ {
		items[i] = *CreateTestItem(func(item *domain.Item) {
			item.EAN = fmt.Sprintf("37000000%05d", i+1)
			item.Name = fmt.Sprintf("Test Item %d", i+1)
			item.PurchasePrice = decimal.NewFromInt(int64(10 + i))
			item.DateAdded = item.DateAdded.Add(time.Duration(i) * time.Minute)
		})
	}
	return items
}

// CreateTestPurchase creates an unreceived purchase of 3 units.
func CreateTestPurchase(overrides ...func(*domain.Purchase)) *domain.Purchase {
	now := time.Now().UTC().Truncate(time.Microsecond)
	p := &domain.Purchase{
		ID:           uuid.New(),
		UserID:       TestUser,
		EAN:          "3700000000017",
		Name:         "Test Bluetooth Speaker",
		Category:     "audio",
		SupplierName: "Test Wholesale",
		PriceHT:      decimal.NewFromInt(20),
		PriceTTC:     decimal.NewFromInt(24),
		Qty:          3,
		PurchaseDate: now.AddDate(0, 0, -3),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, override := range overrides {
		override(p)
	}
	return p
}

// CreateTestSupplier creates a supplier
func CreateTestSupplier(overrides ...func(*domain.Supplier)) *domain.Supplier {
	now := time.Now().UTC().Truncate(time.Microsecond)
	s := &domain.Supplier{
		ID:                    uuid.New(),
		UserID:                TestUser,
		Name:                  "Test Wholesale",
		Contact:               "Jo Martin",
		Email:                 "orders@wholesale.test",
		PaymentTerms:          "30 days",
		MOQ:                   10,
		FreeShippingThreshold: decimal.NewFromInt(150),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	for _, override := range overrides {
		override(s)
	}
	return s
}

// CreateTestInvoice creates an unpaid invoice due in two weeks.
func CreateTestInvoice(overrides ...func(*domain.Invoice)) *domain.Invoice {
	now := time.Now().UTC().Truncate(time.Microsecond)
	issued := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	due := issued.AddDate(0, 0, 14)
	inv := &domain.Invoice{
		ID:           uuid.New(),
		UserID:       TestUser,
		Number:       "INV-2025-001",
		SupplierName: "Test Wholesale",
		InvoiceDate:  &issued,
		DueDate:      &due,
		AmountHT:     decimal.NewFromInt(100),
		AmountTTC:    decimal.NewFromInt(120),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, override := range overrides {
		override(inv)
	}
	return inv
}

// AssertEventuallyWithTimeout asserts that a condition is met within a timeout
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, msg)
}

// TruncateAllTables truncates all tables in the test database
func TruncateAllTables(t *testing.T, db *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	tables := []string{"movements", "invoices", "items", "purchases", "suppliers"}
	for _, table := range tables {
		_, err := db.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err, "Failed to truncate table: %s", table)
	}
}

// CreateTempFile creates a temporary file for testing
func CreateTempFile(t *testing.T, content []byte, extension string) string {
	t.Helper()

	file, err := os.CreateTemp("", fmt.Sprintf("test-*%s", extension))
	require.NoError(t, err, "Failed to create temp file")

	_, err = file.Write(content)
	require.NoError(t, err, "Failed to write to temp file")

	file.Close()

	t.Cleanup(func() {
		os.Remove(file.Name())
	})

	return file.Name()
}
