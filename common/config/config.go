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
	Service     ServiceConfig
	Database    DatabaseConfig
	BlobStore   BlobStoreConfig
	Phabricator PhabricatorConfig
	Transplant  TransplantConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string

	// Maximum landing submissions per requester per window. 0 disables
	// rate limiting.
	RequesterRateLimit int
	RateLimitWindowSec int
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

// BlobStoreConfig holds patch blob storage settings (redis-backed)
type BlobStoreConfig struct {
	Host     string
	Port     int
	Password string
	Bucket   string
}

// PhabricatorConfig holds settings for the code review service
type PhabricatorConfig struct {
	URL string

	// API key used when the client does not supply one of their own.
	// Must belong to a user with read-only access.
	UnprivilegedAPIKey string

	Timeout time.Duration
}

// TransplantConfig holds settings for the autoland service
type TransplantConfig struct {
	URL     string
	Timeout time.Duration

	// Pre-shared key the transplant service must present on pingback.
	APIKey string

	// Pingback requests are only allowed on deployments that opt in.
	PingbackEnabled bool

	// Base URL under which this service is reachable from transplant,
	// used to construct per-landing pingback URLs.
	PingbackHostURL string

	// Blocker rules for the dry-run assessment, as CEL expressions
	// evaluated against revision facts. Comma separated.
	BlockerRules []string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),

			RequesterRateLimit: getEnvInt("REQUESTER_RATE_LIMIT", 0),
			RateLimitWindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "lando"),
			User:        getEnv("POSTGRES_USER", "lando"),
			Password:    getEnv("POSTGRES_PASSWORD", "lando"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		BlobStore: BlobStoreConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			Bucket:   getEnv("PATCH_BUCKET_NAME", "lando-patches"),
		},
		Phabricator: PhabricatorConfig{
			URL:                getEnv("PHABRICATOR_URL", "https://phabricator.test"),
			UnprivilegedAPIKey: getEnv("PHABRICATOR_UNPRIVILEGED_API_KEY", ""),
			Timeout:            getEnvDuration("PHABRICATOR_TIMEOUT", 30*time.Second),
		},
		Transplant: TransplantConfig{
			URL:             getEnv("TRANSPLANT_URL", "https://autoland.test"),
			Timeout:         getEnvDuration("TRANSPLANT_TIMEOUT", 30*time.Second),
			APIKey:          getEnv("TRANSPLANT_API_KEY", ""),
			PingbackEnabled: getEnvBool("PINGBACK_ENABLED", false),
			PingbackHostURL: getEnv("PINGBACK_HOST_URL", "http://localhost:8080"),
			BlockerRules:    getEnvSlice("LANDING_BLOCKER_RULES", nil),
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

	if c.Phabricator.URL == "" {
		return fmt.Errorf("phabricator URL is required")
	}

	if c.Transplant.PingbackEnabled && c.Transplant.APIKey == "" {
		return fmt.Errorf("TRANSPLANT_API_KEY is required when pingback is enabled")
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

// BlobStoreAddr returns the redis address for the patch blob store
func (c *Config) BlobStoreAddr() string {
	return fmt.Sprintf("%s:%d", c.BlobStore.Host, c.BlobStore.Port)
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

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
