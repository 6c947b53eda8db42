// internal/pkg/config/config.go
package config

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Asynq          AsynqConfig
	AWS            AWSConfig
	Storage        StorageConfig
	FileProcessing FileProcessingConfig
	Security       SecurityConfig
	Server         ServerConfig
	Mail           MailConfig
	Tenant         TenantConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `required:"true"`
	Environment string // development, staging, production
	Version     string
	LogLevel    string
	LogFormat   string // json, text
	Debug       bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host               string `required:"true"`
	Port               string `required:"true"`
	User               string `required:"true"`
	Password           string
	Name               string `required:"true"`
	SSLMode            string
	MaxConnections     int32
	MinConnections     int32
	MaxConnLifetime    time.Duration
	MaxConnIdleTime    time.Duration
	HealthCheckPeriod  time.Duration
	ConnectTimeout     time.Duration
	StatementCacheMode string
	EnableQueryLogging bool
	// MigrationPath overrides the migrations embedded in the binary.
	MigrationPath string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string `required:"true"`
	Port         string `required:"true"`
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PoolTimeout  time.Duration
	// ViewTTL bounds how long derived views (dashboard, alerts) are cached.
	ViewTTL time.Duration
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, r.Port)
}

// AsynqConfig holds Asynq configuration
type AsynqConfig struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	Concurrency     int
	Queues          map[string]int // queue name -> priority
	StrictPriority  bool
	RetryMax        int
	ShutdownTimeout time.Duration
	// DigestCron schedules the low-stock digest; empty disables it.
	DigestCron      string
	// CleanupCron schedules removal of stale uploads.
	CleanupCron     string
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string // For MinIO in development
	UsePathStyle    bool   // For MinIO compatibility
	SecretName      string // Secrets Manager entry read in production
}

// StorageConfig selects where backups and uploads are kept.
type StorageConfig struct {
	Driver   string // s3, local
	LocalDir string
}

// FileProcessingConfig holds file processing configuration
type FileProcessingConfig struct {
	PDFMaxSizeMB      int
	ExcelMaxSizeMB    int
	ProcessingTimeout time.Duration
	// UploadPrefix is the object storage prefix of files awaiting a worker.
	UploadPrefix      string
	CleanupMaxAge     time.Duration
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimitRequests int
	RateLimitDuration time.Duration
	AllowedOrigins    []string
	TrustedProxies    []string
	SecureHeaders     bool
	RequestIDHeader   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string `required:"true"`
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	MaxHeaderBytes  int
	MaxBodyMB       int
	GracefulTimeout time.Duration
	TLSEnabled      bool
	TLSCertFile     string
	TLSKeyFile      string
}

// MailConfig holds the SMTP settings of the low-stock digest.
type MailConfig struct {
	SMTPHost   string
	SMTPPort   string
	Username   string
	Password   string
	From       string
	Recipients []string
	// Throttle is the minimum delay between two digests of one tenant.
	Throttle   time.Duration
	// Tenants lists the users the scheduled digest runs for.
	Tenants    []string
}

// Enabled reports whether a digest can be sent at all.
func (m MailConfig) Enabled() bool {
	return m.SMTPHost != "" && m.From != "" && len(m.Recipients) > 0
}

// TenantConfig names the identity headers set by the auth gateway.
type TenantConfig struct {
	UserHeader  string
	RoleHeader  string
	AdminRole   string
	RequireUser bool
}

// source reads settings through viper, which merges the environment with an
// optional CONFIG_FILE.
type source struct {
	v *viper.Viper
}

func (s source) str(key, def string) string {
	if s.v.IsSet(key) {
		if v := s.v.GetString(key); v != "" {
			return v
		}
	}
	return def
}

func (s source) boolean(key string, def bool) bool {
	if raw := s.v.GetString(key); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return def
}

func (s source) integer(key string, def int) int {
	if raw := s.v.GetString(key); raw != "" {
		if i, err := strconv.Atoi(raw); err == nil {
			return i
		}
	}
	return def
}

func (s source) duration(key string, def time.Duration) time.Duration {
	if raw := s.v.GetString(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return def
}

func (s source) list(key string, def []string) []string {
	raw := s.v.GetString(key)
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load loads configuration from environment variables
func Load(logger *slog.Logger) (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Load .env file in development
	if env == "development" || env == "local" {
		if err := godotenv.Load(); err != nil {
			logger.Warn("no .env file found, using environment variables",
				slog.String("error", err.Error()))
		} else {
			logger.Info(".env file loaded successfully")
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		logger.Info("config file loaded", slog.String("file", v.ConfigFileUsed()))
	}

	cfg := build(source{v: v}, env)

	var sm SecretsManager
	switch dir := os.Getenv("SECRETS_DIR"); {
	case cfg.IsProduction() && cfg.AWS.SecretName != "":
		awsSM, err := NewAWSSecretsManager(cfg.AWS.Region, cfg.AWS.SecretName, logger)
		if err != nil {
			return nil, err
		}
		sm = awsSM
	case dir != "":
		logger.Info("reading mounted secrets", slog.String("dir", dir))
		sm = NewDirSecretsManager(dir)
	}
	if sm != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := cfg.ApplySecrets(ctx, sm); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func build(s source, env string) *Config {
	redisHost := s.str("REDIS_HOST", "localhost")
	redisPort := s.str("REDIS_PORT", "6379")

	return &Config{
		App: AppConfig{
			Name:        s.str("APP_NAME", "resell-stock"),
			Environment: env,
			Version:     s.str("APP_VERSION", "dev"),
			LogLevel:    s.str("LOG_LEVEL", "debug"),
			LogFormat:   s.str("LOG_FORMAT", "json"),
			Debug:       s.boolean("APP_DEBUG", env == "development"),
		},
		Database: DatabaseConfig{
			Host:               s.str("DB_HOST", "localhost"),
			Port:               s.str("DB_PORT", "5432"),
			User:               s.str("DB_USER", "resell"),
			Password:           s.str("DB_PASSWORD", "resell_dev"),
			Name:               s.str("DB_NAME", "resell_stock"),
			SSLMode:            s.str("DB_SSL_MODE", "disable"),
			MaxConnections:     int32(s.integer("DB_MAX_CONNECTIONS", 25)),
			MinConnections:     int32(s.integer("DB_MIN_CONNECTIONS", 5)),
			MaxConnLifetime:    s.duration("DB_CONNECTION_LIFETIME", time.Hour),
			MaxConnIdleTime:    s.duration("DB_IDLE_TIME", 30*time.Minute),
			HealthCheckPeriod:  s.duration("DB_HEALTH_CHECK_PERIOD", time.Minute),
			ConnectTimeout:     s.duration("DB_CONNECT_TIMEOUT", 10*time.Second),
			StatementCacheMode: s.str("DB_STATEMENT_CACHE_MODE", "describe"),
			EnableQueryLogging: s.boolean("DB_QUERY_LOGGING", false),
			MigrationPath:      s.str("DB_MIGRATION_PATH", ""),
		},
		Redis: RedisConfig{
			Host:         redisHost,
			Port:         redisPort,
			Password:     s.str("REDIS_PASSWORD", ""),
			DB:           s.integer("REDIS_DB", 0),
			MaxRetries:   s.integer("REDIS_MAX_RETRIES", 3),
			DialTimeout:  s.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  s.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: s.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:     s.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: s.integer("REDIS_MIN_IDLE_CONNS", 2),
			PoolTimeout:  s.duration("REDIS_POOL_TIMEOUT", 4*time.Second),
			ViewTTL:      s.duration("REDIS_VIEW_TTL", 5*time.Minute),
		},
		Asynq: AsynqConfig{
			RedisAddr:       net.JoinHostPort(redisHost, redisPort),
			RedisPassword:   s.str("REDIS_PASSWORD", ""),
			RedisDB:         s.integer("ASYNQ_REDIS_DB", 1),
			Concurrency:     s.integer("ASYNQ_CONCURRENCY", 10),
			Queues:          parseQueues(s.str("ASYNQ_QUEUES", "critical:6,default:3,low:1")),
			StrictPriority:  s.boolean("ASYNQ_STRICT_PRIORITY", false),
			RetryMax:        s.integer("ASYNQ_RETRY_MAX", 3),
			ShutdownTimeout: s.duration("ASYNQ_SHUTDOWN_TIMEOUT", 30*time.Second),
			DigestCron:      s.str("ASYNQ_DIGEST_CRON", "0 8 * * *"),
			CleanupCron:     s.str("ASYNQ_CLEANUP_CRON", "@hourly"),
		},
		AWS: AWSConfig{
			Region:          s.str("AWS_REGION", "eu-west-3"),
			AccessKeyID:     s.str("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: s.str("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        s.str("AWS_S3_BUCKET", "resell-stock"),
			S3Endpoint:      s.str("AWS_S3_ENDPOINT", ""),
			UsePathStyle:    s.boolean("AWS_S3_PATH_STYLE", env == "development"),
			SecretName:      s.str("AWS_SECRET_NAME", ""),
		},
		Storage: StorageConfig{
			Driver:   s.str("STORAGE_DRIVER", "local"),
			LocalDir: s.str("STORAGE_LOCAL_DIR", "./data/storage"),
		},
		FileProcessing: FileProcessingConfig{
			PDFMaxSizeMB:      s.integer("PDF_MAX_SIZE_MB", 20),
			ExcelMaxSizeMB:    s.integer("EXCEL_MAX_SIZE_MB", 50),
			ProcessingTimeout: s.duration("PROCESSING_TIMEOUT", 5*time.Minute),
			UploadPrefix:      s.str("UPLOAD_PREFIX", "uploads"),
			CleanupMaxAge:     s.duration("UPLOAD_MAX_AGE", 24*time.Hour),
		},
		Security: SecurityConfig{
			RateLimitRequests: s.integer("RATE_LIMIT_REQUESTS", 100),
			RateLimitDuration: s.duration("RATE_LIMIT_DURATION", time.Minute),
			AllowedOrigins:    s.list("ALLOWED_ORIGINS", []string{"*"}),
			TrustedProxies:    s.list("TRUSTED_PROXIES", []string{}),
			SecureHeaders:     s.boolean("SECURE_HEADERS", env == "production"),
			RequestIDHeader:   s.str("REQUEST_ID_HEADER", "X-Request-ID"),
		},
		Server: ServerConfig{
			Host:            s.str("SERVER_HOST", "0.0.0.0"),
			Port:            s.str("SERVER_PORT", "8080"),
			ReadTimeout:     s.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    s.duration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     s.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:  s.duration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			MaxHeaderBytes:  s.integer("SERVER_MAX_HEADER_BYTES", 1<<20), // 1 MB
			MaxBodyMB:       s.integer("SERVER_MAX_BODY_MB", 50),
			GracefulTimeout: s.duration("SERVER_GRACEFUL_TIMEOUT", 30*time.Second),
			TLSEnabled:      s.boolean("TLS_ENABLED", false),
			TLSCertFile:     s.str("TLS_CERT_FILE", ""),
			TLSKeyFile:      s.str("TLS_KEY_FILE", ""),
		},
		Mail: MailConfig{
			SMTPHost:   s.str("SMTP_HOST", ""),
			SMTPPort:   s.str("SMTP_PORT", "587"),
			Username:   s.str("SMTP_USERNAME", ""),
			Password:   s.str("SMTP_PASSWORD", ""),
			From:       s.str("MAIL_FROM", ""),
			Recipients: s.list("DIGEST_RECIPIENTS", nil),
			Throttle:   s.duration("DIGEST_THROTTLE", 12*time.Hour),
			Tenants:    s.list("DIGEST_TENANTS", nil),
		},
		Tenant: TenantConfig{
			UserHeader:  s.str("TENANT_USER_HEADER", "X-User-ID"),
			RoleHeader:  s.str("TENANT_ROLE_HEADER", "X-User-Role"),
			AdminRole:   s.str("TENANT_ADMIN_ROLE", "admin"),
			RequireUser: s.boolean("TENANT_REQUIRE_USER", env == "production"),
		},
	}
}

// ApplySecrets overrides credentials with the values held by sm.
func (c *Config) ApplySecrets(ctx context.Context, sm SecretsManager) error {
	secrets, err := sm.GetSecrets(ctx, []string{"DB_PASSWORD", "REDIS_PASSWORD", "SMTP_PASSWORD"})
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if v, ok := secrets["DB_PASSWORD"]; ok {
		c.Database.Password = v
	}
	if v, ok := secrets["REDIS_PASSWORD"]; ok {
		c.Redis.Password = v
		c.Asynq.RedisPassword = v
	}
	if v, ok := secrets["SMTP_PASSWORD"]; ok {
		c.Mail.Password = v
	}
	return nil
}

// Validate runs the basic checks, plus the production and security ones
// when running in production.
func (c *Config) Validate() error {
	validators := []Validator{&BasicValidator{}}
	if c.IsProduction() {
		validators = append(validators, &ProductionValidator{}, &SecurityValidator{})
	}
	for _, v := range validators {
		if err := v.Validate(c); err != nil {
			return err
		}
	}
	return nil
}

// GetServerAddress returns the formatted server address
func (c *Config) GetServerAddress() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "local"
}

func parseQueues(queuesStr string) map[string]int {
	queues := make(map[string]int)
	pairs := strings.Split(queuesStr, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, ":")
		if len(parts) == 2 {
			name := strings.TrimSpace(parts[0])
			priority, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err == nil {
				queues[name] = priority
			}
		}
	}
	if len(queues) == 0 {
		queues["default"] = 1
	}
	return queues
}
