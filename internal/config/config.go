package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/segment-insights/internal/segmentation"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Source    SourceConfig        `yaml:"source"`
	Profiles  ProfileSourceConfig `yaml:"profiles"`
	Snowflake SnowflakeConfig     `yaml:"snowflake"`
	AWS       AWSConfig           `yaml:"aws"`
	Redis     RedisConfig         `yaml:"redis"`
	Reload    ReloadConfig        `yaml:"reload"`
	Insights  InsightsConfig      `yaml:"insights"`
	Logging   LoggingConfig       `yaml:"logging"`
}

// Source types
const (
	SourceCSV       = "csv"
	SourceS3        = "s3"
	SourcePostgres  = "postgres"
	SourceSQLite    = "sqlite"
	SourceSnowflake = "snowflake"
	SourceHTTP      = "http"
)

// Profile source types
const (
	ProfilesNone     = "none"
	ProfilesCSV      = "csv"
	ProfilesDynamoDB = "dynamodb"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// SourceConfig describes where the segmented customer table is read from.
type SourceConfig struct {
	Type    string                 `yaml:"type"`
	Path    string                 `yaml:"path"`   // csv, sqlite
	Bucket  string                 `yaml:"bucket"` // s3
	Key     string                 `yaml:"key"`    // s3
	DSN     string                 `yaml:"dsn"`    // postgres, sqlite
	Query   string                 `yaml:"query"`  // sql sources
	URL     string                 `yaml:"url"`    // http
	Columns segmentation.ColumnMap `yaml:"columns"`
}

// ProfileSourceConfig describes where cluster display profiles come from.
type ProfileSourceConfig struct {
	Type  string `yaml:"type"`
	Path  string `yaml:"path"`  // csv
	Table string `yaml:"table"` // dynamodb
}

// SnowflakeConfig holds Snowflake connection settings
type SnowflakeConfig struct {
	ConnectionString string `yaml:"connection_string"`
	Account          string `yaml:"account"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	Database         string `yaml:"database"`
	Schema           string `yaml:"schema"`
	Warehouse        string `yaml:"warehouse"`
}

// AWSConfig holds shared AWS settings for the S3 and DynamoDB sources
type AWSConfig struct {
	Region   string `yaml:"region"`
	Profile  string `yaml:"profile"`  // Empty string uses default credential chain (IAM role on ECS)
	Endpoint string `yaml:"endpoint"` // S3/DynamoDB-compatible endpoint, e.g. MinIO or LocalStack

	// Static keys for non-AWS endpoints; empty uses the default chain
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c AWSConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.Profile
}

// RedisConfig holds the Redis connection used for reload coordination
type RedisConfig struct {
	URL            string `yaml:"url"`
	LockKey        string `yaml:"lock_key"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the reload lock TTL as a duration
func (c RedisConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ReloadConfig controls periodic snapshot refresh. Zero disables it.
type ReloadConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	TimeoutSeconds  int `yaml:"timeout_seconds"`
}

// Interval returns the reload interval as a duration
func (c ReloadConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Timeout returns the per-reload timeout as a duration
func (c ReloadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// InsightsConfig holds narrative settings
type InsightsConfig struct {
	CurrencySymbol string `yaml:"currency_symbol"`
	PlaybookPath   string `yaml:"playbook_path"` // empty uses the built-in playbook
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactIDs bool   `yaml:"redact_ids"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Source.Type == "" {
		cfg.Source.Type = SourceCSV
	}
	if cfg.Source.Type == SourceCSV && cfg.Source.Path == "" {
		cfg.Source.Path = "rfm_segmented_customers.csv"
	}
	cfg.Source.Columns = cfg.Source.Columns.WithDefaults()
	if cfg.Profiles.Type == "" {
		cfg.Profiles.Type = ProfilesNone
	}
	// Snowflake defaults
	if cfg.Snowflake.Database == "" {
		cfg.Snowflake.Database = "ANALYTICS"
	}
	if cfg.Snowflake.Schema == "" {
		cfg.Snowflake.Schema = "SEGMENTATION"
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-west-2"
	}
	if cfg.Redis.LockKey == "" {
		cfg.Redis.LockKey = "segments:reload"
	}
	if cfg.Redis.LockTTLSeconds == 0 {
		cfg.Redis.LockTTLSeconds = 300
	}
	if cfg.Reload.TimeoutSeconds == 0 {
		cfg.Reload.TimeoutSeconds = 120
	}
	if cfg.Insights.CurrencySymbol == "" {
		cfg.Insights.CurrencySymbol = "£"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks that the configured sources have what they need.
func (cfg *Config) Validate() error {
	s := cfg.Source
	switch s.Type {
	case SourceCSV:
		if s.Path == "" {
			return fmt.Errorf("source.path is required for csv sources")
		}
	case SourceS3:
		if s.Bucket == "" || s.Key == "" {
			return fmt.Errorf("source.bucket and source.key are required for s3 sources")
		}
	case SourcePostgres:
		if s.DSN == "" {
			return fmt.Errorf("source.dsn (or DATABASE_URL) is required for postgres sources")
		}
		if s.Query == "" {
			return fmt.Errorf("source.query is required for sql sources")
		}
	case SourceSQLite:
		if s.DSN == "" && s.Path == "" {
			return fmt.Errorf("source.dsn or source.path is required for sqlite sources")
		}
		if s.Query == "" {
			return fmt.Errorf("source.query is required for sql sources")
		}
	case SourceHTTP:
		if s.URL == "" {
			return fmt.Errorf("source.url is required for http sources")
		}
	case SourceSnowflake:
		if cfg.Snowflake.ConnectionString == "" && cfg.Snowflake.Account == "" {
			return fmt.Errorf("snowflake.account or snowflake.connection_string is required for snowflake sources")
		}
		if s.Query == "" {
			return fmt.Errorf("source.query is required for sql sources")
		}
	default:
		return fmt.Errorf("unknown source type %q", s.Type)
	}

	switch cfg.Profiles.Type {
	case ProfilesNone:
	case ProfilesCSV:
		if cfg.Profiles.Path == "" {
			return fmt.Errorf("profiles.path is required for csv profiles")
		}
	case ProfilesDynamoDB:
		if cfg.Profiles.Table == "" {
			return fmt.Errorf("profiles.table is required for dynamodb profiles")
		}
	default:
		return fmt.Errorf("unknown profiles type %q", cfg.Profiles.Type)
	}

	// The Redis lock is never extended, so it must outlive the slowest reload.
	if cfg.Redis.URL != "" && cfg.Redis.LockTTL() < cfg.Reload.Timeout() {
		return fmt.Errorf("redis.lock_ttl_seconds (%d) must be at least reload.timeout_seconds (%d)",
			cfg.Redis.LockTTLSeconds, cfg.Reload.TimeoutSeconds)
	}
	return nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
// A missing config file yields the defaults.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides configuration with environment variables if present.
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SEGMENTS_SOURCE_TYPE"); v != "" {
		cfg.Source.Type = strings.ToLower(v)
	}
	if v := os.Getenv("SEGMENTS_SOURCE_PATH"); v != "" {
		cfg.Source.Path = v
	}
	if v := os.Getenv("SEGMENTS_S3_BUCKET"); v != "" {
		cfg.Source.Bucket = v
	}
	if v := os.Getenv("SEGMENTS_S3_KEY"); v != "" {
		cfg.Source.Key = v
	}
	if v := os.Getenv("SEGMENTS_SOURCE_URL"); v != "" {
		cfg.Source.URL = v
	}
	if v := os.Getenv("SEGMENTS_SOURCE_QUERY"); v != "" {
		cfg.Source.Query = v
	}

	// Database override (critical for ECS deployment where config.yaml has local defaults)
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" && cfg.Source.Type == SourcePostgres {
		cfg.Source.DSN = dbURL
	}

	if v := os.Getenv("SNOWFLAKE_ACCOUNT"); v != "" {
		cfg.Snowflake.Account = v
	}
	if v := os.Getenv("SNOWFLAKE_USER"); v != "" {
		cfg.Snowflake.User = v
	}
	if v := os.Getenv("SNOWFLAKE_PASSWORD"); v != "" {
		cfg.Snowflake.Password = v
	}
	if v := os.Getenv("SNOWFLAKE_WAREHOUSE"); v != "" {
		cfg.Snowflake.Warehouse = v
	}

	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("AWS_ENDPOINT_URL"); v != "" {
		cfg.AWS.Endpoint = v
	}
	if v := os.Getenv("SEGMENTS_AWS_ACCESS_KEY_ID"); v != "" {
		cfg.AWS.AccessKeyID = v
	}
	if v := os.Getenv("SEGMENTS_AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.AWS.SecretAccessKey = v
	}
	if v := os.Getenv("PROFILES_DYNAMODB_TABLE"); v != "" {
		cfg.Profiles.Table = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// An overridden source type may need its own defaults.
	cfg.applyDefaults()
}
