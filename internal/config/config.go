package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Intelligence IntelligenceConfig `yaml:"intelligence"`
	Extraction   ExtractionConfig   `yaml:"extraction"`
	Crypto       CryptoConfig       `yaml:"crypto"`
	Archive      ArchiveConfig      `yaml:"archive"`
	Worker       WorkerConfig       `yaml:"worker"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	DevMode        bool     `yaml:"dev_mode"`
	DefaultOrgID   string   `yaml:"default_org_id"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the pool connection lifetime.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds Redis settings. An empty URL disables Redis and the
// refresh lock falls back to PostgreSQL advisory locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// IntelligenceConfig tunes the scoring pipeline.
type IntelligenceConfig struct {
	FreshnessWindowHours int    `yaml:"freshness_window_hours"`
	ThreadLimit          int    `yaml:"thread_limit"`
	EventLookbackDays    int    `yaml:"event_lookback_days"`
	LockWaitSeconds      int    `yaml:"lock_wait_seconds"`
	LockTTLSeconds       int    `yaml:"lock_ttl_seconds"`
	PredictionTTLHours   int    `yaml:"prediction_ttl_hours"`
	Timezone             string `yaml:"timezone"`
	TopDefault           int    `yaml:"top_default"`
}

// FreshnessWindow is how long a computed profile is served without recomputation.
func (c IntelligenceConfig) FreshnessWindow() time.Duration {
	return time.Duration(c.FreshnessWindowHours) * time.Hour
}

// EventLookback bounds calendar events considered for a subject.
func (c IntelligenceConfig) EventLookback() time.Duration {
	return time.Duration(c.EventLookbackDays) * 24 * time.Hour
}

// LockWait is how long a refresh waits for another in-flight refresh.
func (c IntelligenceConfig) LockWait() time.Duration {
	return time.Duration(c.LockWaitSeconds) * time.Second
}

// LockTTL bounds how long a crashed holder keeps the Redis lock.
func (c IntelligenceConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// PredictionTTL is the lifetime of stored predictions.
func (c IntelligenceConfig) PredictionTTL() time.Duration {
	return time.Duration(c.PredictionTTLHours) * time.Hour
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c IntelligenceConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ExtractionConfig holds the keyword dictionaries for signal extraction.
type ExtractionConfig struct {
	PainPoints  map[string]string `yaml:"pain_points"`
	Competitors []string          `yaml:"competitors"`
}

// CryptoConfig selects the field decryption backend: a local master key
// (hex or base64) or a remote decryption service.
type CryptoConfig struct {
	FieldKey       string `yaml:"field_key"`
	ServiceURL     string `yaml:"service_url"`
	ServiceToken   string `yaml:"service_token"`
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-request timeout for the remote service.
func (c CryptoConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ArchiveConfig holds the S3/DynamoDB snapshot archive settings.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Type      string `yaml:"type"` // "aws" or "local"
	LocalPath string `yaml:"local_path"`
	S3Bucket  string `yaml:"s3_bucket"`
	S3Prefix  string `yaml:"s3_prefix"`
	Table     string `yaml:"dynamodb_table"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	TTLDays   int    `yaml:"ttl_days"`
}

// WorkerConfig drives the stale profile refresher.
type WorkerConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	BatchSize       int `yaml:"batch_size"`
}

// Interval returns the refresher tick.
func (c WorkerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on; it defaults to true.
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// DefaultPainPoints is used when the config file defines no dictionary.
var DefaultPainPoints = map[string]string{
	"too expensive":        "pricing",
	"out of our budget":    "pricing",
	"interest rate":        "financing",
	"mortgage":             "financing",
	"commute":              "location",
	"school district":      "schools",
	"too small":            "space",
	"not enough space":     "space",
	"needs work":           "condition",
	"fixer":                "condition",
	"hoa":                  "hoa_fees",
	"closing costs":        "closing_costs",
	"relocating":           "relocation",
	"timeline":             "timing",
	"sell our house first": "contingent_sale",
}

// DefaultCompetitors is used when the config file lists none.
var DefaultCompetitors = []string{"Zillow", "Redfin", "Compass", "Opendoor", "Realtor.com", "Keller Williams", "RE/MAX", "Coldwell Banker"}

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

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}
	if cfg.Intelligence.FreshnessWindowHours == 0 {
		cfg.Intelligence.FreshnessWindowHours = 24
	}
	if cfg.Intelligence.ThreadLimit == 0 {
		cfg.Intelligence.ThreadLimit = 50
	}
	if cfg.Intelligence.EventLookbackDays == 0 {
		cfg.Intelligence.EventLookbackDays = 90
	}
	if cfg.Intelligence.LockWaitSeconds == 0 {
		cfg.Intelligence.LockWaitSeconds = 30
	}
	if cfg.Intelligence.LockTTLSeconds == 0 {
		cfg.Intelligence.LockTTLSeconds = 120
	}
	if cfg.Intelligence.PredictionTTLHours == 0 {
		cfg.Intelligence.PredictionTTLHours = 7 * 24
	}
	if cfg.Intelligence.Timezone == "" {
		cfg.Intelligence.Timezone = "UTC"
	}
	if cfg.Intelligence.TopDefault == 0 {
		cfg.Intelligence.TopDefault = 10
	}
	if len(cfg.Extraction.PainPoints) == 0 {
		cfg.Extraction.PainPoints = DefaultPainPoints
	}
	if len(cfg.Extraction.Competitors) == 0 {
		cfg.Extraction.Competitors = DefaultCompetitors
	}
	if cfg.Crypto.MaxRetries == 0 {
		cfg.Crypto.MaxRetries = 3
	}
	if cfg.Crypto.TimeoutSeconds == 0 {
		cfg.Crypto.TimeoutSeconds = 10
	}
	if cfg.Archive.Type == "" {
		cfg.Archive.Type = "aws"
	}
	if cfg.Archive.LocalPath == "" {
		cfg.Archive.LocalPath = "./data/archive"
	}
	if cfg.Archive.S3Prefix == "" {
		cfg.Archive.S3Prefix = "lead-intelligence"
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "us-west-2"
	}
	if cfg.Archive.TTLDays == 0 {
		cfg.Archive.TTLDays = 365
	}
	if cfg.Worker.IntervalSeconds == 0 {
		cfg.Worker.IntervalSeconds = 900
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = 100
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("FIELD_KEY"); v != "" {
		cfg.Crypto.FieldKey = v
	}
	if v := os.Getenv("DECRYPT_SERVICE_URL"); v != "" {
		cfg.Crypto.ServiceURL = v
	}
	if v := os.Getenv("DECRYPT_SERVICE_TOKEN"); v != "" {
		cfg.Crypto.ServiceToken = v
	}
	if v := os.Getenv("ARCHIVE_S3_BUCKET"); v != "" {
		cfg.Archive.S3Bucket = v
		cfg.Archive.Type = "aws"
		cfg.Archive.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DEV_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.DevMode = b
		}
	}
	if v := os.Getenv("DEFAULT_ORG_ID"); v != "" {
		cfg.Server.DefaultOrgID = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}

	return cfg, nil
}
