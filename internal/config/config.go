// Package config loads application configuration from environment variables
// and resolves per-request policy values through a pluggable Provider.
package config

import (
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Names of the policy values resolved on every request.
const (
	SASLimitHours  = "SAS_LIMIT_HOURS"
	SASIPRange     = "SAS_IP_RANGE"
	InlineMaxBytes = "INLINE_MAX_BYTES"
)

// ErrInvalid is wrapped by every error reporting an unusable configured value.
var ErrInvalid = errors.New("invalid configuration")

// Config holds the startup configuration for the service.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	// Optional. Audit trail is disabled when empty.
	DatabaseURL string

	// Optional YAML file layered under the environment for policy values.
	ConfigFile string

	// Object storage (any S3-compatible backend: MinIO locally, S3 in production)
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageRegion    string
	StorageUseSSL    bool
	StorageContainer string
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	return &Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		ConfigFile:  getEnv("CONFIG_FILE", ""),

		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
		StorageRegion:    getEnv("STORAGE_REGION", "us-east-1"),
		StorageUseSSL:    getEnv("STORAGE_USE_SSL", "false") == "true",
		StorageContainer: getEnv("STORAGE_CONTAINER", "uploads"),
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// StorageURL returns the base URL of the storage endpoint, including scheme.
func (c *Config) StorageURL() string {
	if c.StorageUseSSL {
		return "https://" + c.StorageEndpoint
	}
	return "http://" + c.StorageEndpoint
}

// Provider builds the policy-value provider for this configuration:
// the environment, optionally layered over ConfigFile.
func (c *Config) Provider() Provider {
	if c.ConfigFile == "" {
		return EnvProvider{}
	}
	return Layered{EnvProvider{}, FileProvider{Path: c.ConfigFile}}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
