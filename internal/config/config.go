package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// APP
	AppEnv   string
	Port     string
	LogLevel string
	LogDir   string

	// DevOps
	DevOpsBaseURL      string
	DevOpsAPIVersion   string
	DevOpsPAT          string
	DevOpsOrganization string
	DevOpsProject      string
	BatchSize          int
	RequestTimeout     time.Duration
	MaxRetries         int
	RateLimit          float64
	RateBurst          int
	TraversalWorkers   int

	// Storage: "azure" or "s3"
	StorageBackend string

	AzureStorageAccount   string
	AzureStorageContainer string
	AzureStorageSAS       string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	// Database is optional; without it admins come from env and runs are not kept.
	DatabaseURL string

	JWTSecret string

	// Admin login
	AdminUsername string
	AdminPassword string
}

func Load() (*Config, error) {
	cfg := &Config{
		// App
		AppEnv:   getEnv("APP_ENV", "development"),
		Port:     getEnv("PORT", "5000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogDir:   getEnv("LOG_DIR", ""),

		// DevOps
		DevOpsBaseURL:      strings.TrimSuffix(getEnv("DEVOPS_BASE_URL", "https://dev.azure.com"), "/"),
		DevOpsAPIVersion:   getEnv("DEVOPS_API_VERSION", "7.0"),
		DevOpsPAT:          getEnv("DEVOPS_PAT", ""),
		DevOpsOrganization: getEnv("DEVOPS_ORGANIZATION", ""),
		DevOpsProject:      getEnv("DEVOPS_PROJECT", ""),
		BatchSize:          getEnvInt("DEVOPS_BATCH_SIZE", 200),
		RequestTimeout:     getEnvDuration("DEVOPS_TIMEOUT", 30*time.Second),
		MaxRetries:         getEnvInt("DEVOPS_MAX_RETRIES", 0),
		RateLimit:          getEnvFloat("DEVOPS_RATE_LIMIT", 10),
		RateBurst:          getEnvInt("DEVOPS_RATE_BURST", 5),
		TraversalWorkers:   getEnvInt("TRAVERSAL_WORKERS", 4),

		// Storage
		StorageBackend:        strings.ToLower(getEnv("STORAGE_BACKEND", "azure")),
		AzureStorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		AzureStorageContainer: getEnv("AZURE_STORAGE_CONTAINER", ""),
		AzureStorageSAS:       getEnv("AZURE_STORAGE_SAS", ""),
		S3Endpoint:            getEnv("S3_ENDPOINT", ""),
		S3AccessKey:           getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:           getEnv("S3_SECRET_KEY", ""),
		S3Bucket:              getEnv("S3_BUCKET", "devops-reports"),
		S3UseSSL:              getEnvBool("S3_USE_SSL", true),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Admin login
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BatchSize < 1 || c.BatchSize > 200 {
		return fmt.Errorf("DEVOPS_BATCH_SIZE must be between 1 and 200, got %d", c.BatchSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("DEVOPS_MAX_RETRIES must not be negative")
	}
	if c.TraversalWorkers < 1 {
		c.TraversalWorkers = 1
	}
	switch c.StorageBackend {
	case "azure", "s3":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be azure or s3, got %q", c.StorageBackend)
	}
	return nil
}

// IsDevelopment reports whether the app runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// getEnv returns environment variable or default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat returns float from env or default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or plain seconds ("45").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
