package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageS3    = "s3"
	StorageLocal = "local"

	minSecretLength = 32
)

// Secrets that ship in examples and must never reach a running deployment.
var knownDefaultSecrets = []string{
	"change-me",
	"changeme",
	"secret",
	"your-secret-key",
	"your-secret-key-change-in-production",
	"development-secret-change-me-in-production",
}

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret         string
	JWTExpiry         time.Duration
	AllowRegistration bool

	// Observability (optional)
	SentryDSN string

	// Storage
	StorageProvider  string // "s3" or "local"
	StorageLocalPath string

	// Storage - S3-compatible (AWS S3, MinIO, R2, etc.)
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // Optional: for S3-compatible services
	S3PublicURL string // Optional: base for permanent object URLs

	// Photos
	PhotoUploadExpiry time.Duration
	PhotoVerifyUpload bool
	PhotoMaxSize      int64

	// Ingestion
	DedupTolerance  time.Duration
	IngestRateLimit int // requests per minute per device

	// Background jobs
	StatsInterval time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "RushRoster"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:  envString("APP_URL", "http://localhost:8090"),
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/rushroster.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),

		// Security
		JWTSecret:         envRequired("JWT_SECRET"),
		JWTExpiry:         envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days
		AllowRegistration: envBool("ALLOW_REGISTRATION", true),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		StorageProvider:  strings.ToLower(envString("STORAGE_PROVIDER", StorageLocal)),
		StorageLocalPath: envString("STORAGE_LOCAL_PATH", "./data/uploads"),
		S3Region:         envString("S3_REGION", "us-east-1"),
		S3Bucket:         envString("S3_BUCKET", ""),
		S3AccessKey:      envString("S3_ACCESS_KEY", ""),
		S3SecretKey:      envString("S3_SECRET_KEY", ""),
		S3Endpoint:       envString("S3_ENDPOINT", ""),
		S3PublicURL:      envString("S3_PUBLIC_URL", ""),

		// Photos
		PhotoUploadExpiry: envDuration("PHOTO_UPLOAD_EXPIRY", time.Hour),
		PhotoVerifyUpload: envBool("PHOTO_VERIFY_UPLOAD", false),
		PhotoMaxSize:      envInt64("PHOTO_MAX_SIZE", 10<<20), // 10 MB

		// Ingestion
		DedupTolerance:  envDuration("DEDUP_TOLERANCE", 5*time.Second),
		IngestRateLimit: int(envInt64("INGEST_RATE_LIMIT", 120)),

		// Background jobs
		StatsInterval: envDuration("STATS_INTERVAL", time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	return cfg
}

// Validate checks settings that would make the server unsafe or unable to
// start. It never exits, so callers decide how fatal a failure is.
func (c *Config) Validate() error {
	var errs []error

	if c.AppEnv != "development" && c.AppEnv != "production" {
		errs = append(errs, fmt.Errorf("APP_ENV must be 'development' or 'production', got %q", c.AppEnv))
	}

	if len(c.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
	}
	for _, weak := range knownDefaultSecrets {
		if strings.EqualFold(c.JWTSecret, weak) {
			errs = append(errs, errors.New("JWT_SECRET is a known default value"))
			break
		}
	}

	switch c.DBDriver {
	case "sqlite", "pgx":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be 'sqlite' or 'pgx', got %q", c.DBDriver))
	}

	switch c.StorageProvider {
	case StorageLocal:
		if c.StorageLocalPath == "" {
			errs = append(errs, errors.New("STORAGE_LOCAL_PATH is required for local storage"))
		}
	case StorageS3:
		// Keys are optional; without them the default AWS credential chain applies.
		for key, v := range map[string]string{
			"S3_BUCKET": c.S3Bucket,
			"S3_REGION": c.S3Region,
		} {
			if v == "" {
				errs = append(errs, fmt.Errorf("%s is required for s3 storage", key))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_PROVIDER must be 's3' or 'local', got %q", c.StorageProvider))
	}

	if c.PhotoUploadExpiry <= 0 {
		errs = append(errs, errors.New("PHOTO_UPLOAD_EXPIRY must be positive"))
	}
	if c.PhotoMaxSize <= 0 {
		errs = append(errs, errors.New("PHOTO_MAX_SIZE must be positive"))
	}
	if c.DedupTolerance < 0 {
		errs = append(errs, errors.New("DEDUP_TOLERANCE must not be negative"))
	}
	if c.IngestRateLimit <= 0 {
		errs = append(errs, errors.New("INGEST_RATE_LIMIT must be positive"))
	}
	if c.StatsInterval <= 0 {
		errs = append(errs, errors.New("STATS_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("config invalid integer, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
