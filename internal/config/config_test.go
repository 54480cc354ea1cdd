package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins: ["https://dash.example.com"]

source:
  type: "postgres"
  dsn: "postgres://localhost/analytics?sslmode=disable"
  query: "SELECT * FROM rfm_segments"
  columns:
    customer_id: "customer_id"
    segment: "segment"

profiles:
  type: "dynamodb"
  table: "cluster-profiles"

redis:
  url: "redis://localhost:6379/0"
  lock_ttl_seconds: 60

reload:
  interval_seconds: 900
  timeout_seconds: 45

insights:
  currency_symbol: "$"
  playbook_path: "playbook.yaml"

logging:
  level: "debug"
  redact_ids: true
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"https://dash.example.com"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, SourcePostgres, cfg.Source.Type)
	assert.Equal(t, "SELECT * FROM rfm_segments", cfg.Source.Query)
	assert.Equal(t, "customer_id", cfg.Source.Columns.CustomerID)
	assert.Equal(t, "segment", cfg.Source.Columns.Segment)
	// unset columns fall back to defaults
	assert.Equal(t, "recency_days", cfg.Source.Columns.Recency)

	assert.Equal(t, ProfilesDynamoDB, cfg.Profiles.Type)
	assert.Equal(t, "cluster-profiles", cfg.Profiles.Table)

	assert.Equal(t, time.Minute, cfg.Redis.LockTTL())
	assert.Equal(t, 15*time.Minute, cfg.Reload.Interval())
	assert.Equal(t, 45*time.Second, cfg.Reload.Timeout())
	assert.Equal(t, "$", cfg.Insights.CurrencySymbol)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.RedactIDs)

	require.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "warn"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, SourceCSV, cfg.Source.Type)
	assert.Equal(t, "rfm_segmented_customers.csv", cfg.Source.Path)
	assert.Equal(t, "CustomerID", cfg.Source.Columns.CustomerID)
	assert.Equal(t, ProfilesNone, cfg.Profiles.Type)
	assert.Equal(t, "us-west-2", cfg.AWS.Region)
	assert.Equal(t, "segments:reload", cfg.Redis.LockKey)
	assert.Equal(t, 5*time.Minute, cfg.Redis.LockTTL())
	assert.Equal(t, time.Duration(0), cfg.Reload.Interval())
	assert.Equal(t, 2*time.Minute, cfg.Reload.Timeout())
	assert.Equal(t, "£", cfg.Insights.CurrencySymbol)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	configPath := writeConfig(t, `
source:
  type: "postgres"
  dsn: "postgres://file/db"
  query: "SELECT 1"
`)

	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("REDIS_URL", "redis://env:6379")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "postgres://env/db", cfg.Source.DSN)
	assert.Equal(t, "redis://env:6379", cfg.Redis.URL)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadFromEnv_DatabaseURLIgnoredForOtherSources(t *testing.T) {
	configPath := writeConfig(t, `
source:
  type: "csv"
  path: "customers.csv"
`)
	t.Setenv("DATABASE_URL", "postgres://env/db")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)
	assert.Empty(t, cfg.Source.DSN)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnv_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SEGMENTS_SOURCE_TYPE", "S3")
	t.Setenv("SEGMENTS_S3_BUCKET", "analytics")
	t.Setenv("SEGMENTS_S3_KEY", "rfm/latest.csv")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, SourceS3, cfg.Source.Type)
	assert.Equal(t, 8080, cfg.Server.Port)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"default csv", func(c *Config) {}, false},
		{"unknown source", func(c *Config) { c.Source.Type = "ftp" }, true},
		{"s3 without key", func(c *Config) { c.Source.Type = SourceS3; c.Source.Bucket = "b" }, true},
		{"s3", func(c *Config) { c.Source.Type = SourceS3; c.Source.Bucket = "b"; c.Source.Key = "k.csv" }, false},
		{"postgres without query", func(c *Config) { c.Source.Type = SourcePostgres; c.Source.DSN = "postgres://x" }, true},
		{"sqlite", func(c *Config) { c.Source.Type = SourceSQLite; c.Source.Path = "a.db"; c.Source.Query = "SELECT 1" }, false},
		{"snowflake without account", func(c *Config) { c.Source.Type = SourceSnowflake; c.Source.Query = "SELECT 1" }, true},
		{"snowflake", func(c *Config) {
			c.Source.Type = SourceSnowflake
			c.Source.Query = "SELECT 1"
			c.Snowflake.Account = "acct"
		}, false},
		{"http without url", func(c *Config) { c.Source.Type = SourceHTTP }, true},
		{"http", func(c *Config) { c.Source.Type = SourceHTTP; c.Source.URL = "https://exports.example.com/rfm.csv" }, false},
		{"csv profiles without path", func(c *Config) { c.Profiles.Type = ProfilesCSV }, true},
		{"dynamodb profiles without table", func(c *Config) { c.Profiles.Type = ProfilesDynamoDB }, true},
		{"unknown profiles", func(c *Config) { c.Profiles.Type = "redis" }, true},
		{"lock ttl shorter than reload", func(c *Config) {
			c.Redis.URL = "redis://localhost:6379"
			c.Redis.LockTTLSeconds = 60
			c.Reload.TimeoutSeconds = 120
		}, true},
		{"lock ttl covers reload", func(c *Config) {
			c.Redis.URL = "redis://localhost:6379"
			c.Redis.LockTTLSeconds = 120
			c.Reload.TimeoutSeconds = 120
		}, false},
		{"short ttl without redis", func(c *Config) { c.Redis.LockTTLSeconds = 1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetAWSProfile(t *testing.T) {
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	cfg := AWSConfig{Profile: "analytics"}

	t.Setenv("AWS_PROFILE_OVERRIDE", "")
	assert.Equal(t, "analytics", cfg.GetAWSProfile())

	t.Setenv("AWS_PROFILE_OVERRIDE", "iam")
	assert.Equal(t, "", cfg.GetAWSProfile())

	t.Setenv("AWS_PROFILE_OVERRIDE", "other")
	assert.Equal(t, "other", cfg.GetAWSProfile())
}

func TestServerAddr(t *testing.T) {
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	t.Setenv("SERVER_HOST", "")

	cfg := ServerConfig{Host: "127.0.0.1", Port: 8081}
	assert.Equal(t, "127.0.0.1:8081", cfg.Addr())
}
