package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Uploads   UploadConfig
	Jobs      JobConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds physical file storage settings
type StorageConfig struct {
	// Root is the directory under which content-addressed paths are written
	Root string
}

// UploadConfig holds upload validation settings
type UploadConfig struct {
	// MaxBytes caps a single upload; checked before any hashing
	MaxBytes int64
	// Policy is a CEL expression over (name, extension, category, size_bytes)
	// that must evaluate to true for an upload to be accepted
	Policy string
}

// JobConfig holds thumbnail job queue tunables
type JobConfig struct {
	// MaxAttempts is the retry ceiling; the Nth failure dead-letters the job
	MaxAttempts int
	// LeaseDuration bounds how long a worker claim is honored before the job
	// becomes reclaimable
	LeaseDuration time.Duration
	// PollInterval is how long a worker sleeps when no job is eligible
	PollInterval time.Duration
	// APIBaseURL is where workers reach the worker protocol endpoints
	APIBaseURL string
	// ThumbnailEdge is the square edge size of generated thumbnails in pixels
	ThumbnailEdge int
}

// CacheConfig holds cache settings
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

// RateLimitConfig holds upload rate limit settings
type RateLimitConfig struct {
	Enabled     bool
	GlobalLimit int64
	ClientLimit int64
	WindowSec   int
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
	MetricsPort int
}

// DefaultUploadPolicy accepts the categories the catalog knows how to store
const DefaultUploadPolicy = `category in ["model", "texture", "sprite", "sound"] && size_bytes > 0`

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "modelibr"),
			User:        getEnv("POSTGRES_USER", "modelibr"),
			Password:    getEnv("POSTGRES_PASSWORD", "modelibr"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Root: getEnv("STORAGE_ROOT", "/var/lib/modelibr/files"),
		},
		Uploads: UploadConfig{
			MaxBytes: getEnvInt64("UPLOAD_MAX_BYTES", 500*1024*1024),
			Policy:   getEnv("UPLOAD_POLICY", DefaultUploadPolicy),
		},
		Jobs: JobConfig{
			MaxAttempts:   getEnvInt("JOB_MAX_ATTEMPTS", 3),
			LeaseDuration: getEnvDuration("JOB_LEASE_DURATION", 2*time.Minute),
			PollInterval:  getEnvDuration("WORKER_POLL_INTERVAL", 2*time.Second),
			APIBaseURL:    getEnv("WORKER_API_URL", "http://localhost:8080"),
			ThumbnailEdge: getEnvInt("THUMBNAIL_EDGE", 256),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getEnvBool("RATE_LIMIT_ENABLED", true),
			GlobalLimit: getEnvInt64("RATE_LIMIT_GLOBAL", 600),
			ClientLimit: getEnvInt64("RATE_LIMIT_CLIENT", 60),
			WindowSec:   getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", true),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
			MetricsPort: getEnvInt("METRICS_PORT", 9090),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Storage.Root == "" {
		return fmt.Errorf("storage root is required")
	}

	if c.Jobs.MaxAttempts < 1 {
		return fmt.Errorf("job max attempts must be >= 1, got %d", c.Jobs.MaxAttempts)
	}

	if c.Jobs.LeaseDuration <= 0 {
		return fmt.Errorf("job lease duration must be positive")
	}

	if c.Jobs.ThumbnailEdge < 1 {
		return fmt.Errorf("thumbnail edge must be >= 1, got %d", c.Jobs.ThumbnailEdge)
	}

	if strings.TrimSpace(c.Uploads.Policy) == "" {
		return fmt.Errorf("upload policy is required")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns the Redis host:port address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
