// internal/pkg/config/config_test.go
package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSource(values map[string]string) source {
	v := viper.New()
	for k, val := range values {
		v.Set(k, val)
	}
	return source{v: v}
}

func TestBuild_Defaults(t *testing.T) {
	cfg := build(testSource(nil), "development")

	assert.Equal(t, "resell-stock", cfg.App.Name)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 5*time.Minute, cfg.Redis.ViewTTL)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, "X-User-ID", cfg.Tenant.UserHeader)
	assert.False(t, cfg.Tenant.RequireUser)
	assert.Equal(t, map[string]int{"critical": 6, "default": 3, "low": 1}, cfg.Asynq.Queues)
	assert.False(t, cfg.Mail.Enabled())
	require.NoError(t, cfg.Validate())
}

func TestBuild_Overrides(t *testing.T) {
	cfg := build(testSource(map[string]string{
		"REDIS_HOST":         "cache",
		"REDIS_VIEW_TTL":     "30s",
		"DIGEST_RECIPIENTS":  "a@example.com, b@example.com,",
		"SMTP_HOST":          "smtp.example.com",
		"MAIL_FROM":          "stock@example.com",
		"DB_MAX_CONNECTIONS": "not-a-number",
	}), "staging")

	assert.Equal(t, "cache:6379", cfg.Asynq.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.Redis.ViewTTL)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Mail.Recipients)
	assert.True(t, cfg.Mail.Enabled())
	assert.Equal(t, int32(25), cfg.Database.MaxConnections)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		errText string
	}{
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: ErrMissingRequiredConfig,
		},
		{
			name:    "connection bounds",
			mutate:  func(c *Config) { c.Database.MinConnections = 50 },
			errText: "max_connections",
		},
		{
			name:    "unknown storage driver",
			mutate:  func(c *Config) { c.Storage.Driver = "ftp" },
			errText: "unknown storage driver",
		},
		{
			name: "s3 without bucket",
			mutate: func(c *Config) {
				c.Storage.Driver = "s3"
				c.AWS.S3Bucket = ""
			},
			wantErr: ErrMissingRequiredConfig,
		},
		{
			name: "production without ssl",
			mutate: func(c *Config) {
				c.App.Environment = "production"
			},
			errText: "SSL",
		},
		{
			name: "production with wildcard origin",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.Database.SSLMode = "require"
				c.Security.SecureHeaders = true
				c.Tenant.RequireUser = true
			},
			errText: "wildcard origin",
		},
		{
			name: "production ready",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.Database.SSLMode = "require"
				c.Security.SecureHeaders = true
				c.Security.AllowedOrigins = []string{"https://stock.example.com"}
				c.Tenant.RequireUser = true
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := build(testSource(nil), "development")
			tt.mutate(cfg)

			err := cfg.Validate()
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

type staticSecrets map[string]string

func (s staticSecrets) GetSecret(_ context.Context, key string) (string, error) {
	if v, ok := s[key]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func (s staticSecrets) GetSecrets(_ context.Context, keys []string) (map[string]string, error) {
	out := map[string]string{}
	for _, k := range keys {
		if v, ok := s[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s staticSecrets) RefreshSecrets(context.Context) error { return nil }

func TestApplySecrets(t *testing.T) {
	cfg := build(testSource(nil), "production")

	err := cfg.ApplySecrets(context.Background(), staticSecrets{
		"DB_PASSWORD":    "db-secret",
		"REDIS_PASSWORD": "redis-secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "db-secret", cfg.Database.Password)
	assert.Equal(t, "redis-secret", cfg.Redis.Password)
	assert.Equal(t, "redis-secret", cfg.Asynq.RedisPassword)
	assert.Empty(t, cfg.Mail.Password)
}

func TestDirSecretsManager(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "DB_PASSWORD"), []byte("db-secret\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smtp_password"), []byte("mail-secret"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "REDIS_PASSWORD"), []byte("  "), 0o600))

	sm := NewDirSecretsManager(dir)
	cfg := build(testSource(nil), "development")
	require.NoError(t, cfg.ApplySecrets(context.Background(), sm))

	assert.Equal(t, "db-secret", cfg.Database.Password)
	assert.Equal(t, "mail-secret", cfg.Mail.Password, "lowercase file names are accepted")
	assert.Empty(t, cfg.Redis.Password, "blank files are ignored")

	_, err := sm.GetSecret(context.Background(), "API_KEY")
	assert.Error(t, err)
}
