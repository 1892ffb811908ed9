// Package config loads cropfit settings from the environment
package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Environment string
	// SizesFile is the JSON document declaring the size groups
	SizesFile string
	// Workers bounds how many images a batch reconciles at once
	Workers int
	Upload  UploadConfig
	Logging *LoggingConfig
	Cache   CacheConfig
}

// UploadConfig limits what ValidateUpload accepts
type UploadConfig struct {
	MaxSize      int64
	AllowedTypes []string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// CacheConfig configures the Redis fit cache
type CacheConfig struct {
	Enabled         bool
	Address         string
	Password        string
	Database        int
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	DefaultTTL      time.Duration
}

// Load creates a new configuration from environment variables with validation
func Load() (*Config, error) {
	config := &Config{
		Environment: getEnv("GO_ENV", "development"),
		SizesFile:   getEnv("SIZES_FILE", "sizes.json"),
		Workers:     getEnvInt("FIT_WORKERS", runtime.NumCPU()),
		Upload: UploadConfig{
			MaxSize:      parseSize(getEnv("MAX_UPLOAD_SIZE", "20MB")),
			AllowedTypes: parseList(getEnv("ALLOWED_IMAGE_FORMATS", "jpeg,png,gif,webp")),
		},
		Logging: &LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Cache: CacheConfig{
			Enabled:         getEnvBool("CACHE_ENABLED", false),
			Address:         getEnv("CACHE_ADDRESS", "localhost:6379"),
			Password:        getEnv("CACHE_PASSWORD", ""),
			Database:        getEnvInt("CACHE_DATABASE", 0),
			MaxRetries:      getEnvInt("CACHE_MAX_RETRIES", 3),
			MinRetryBackoff: getEnvDuration("CACHE_MIN_RETRY_BACKOFF", 8*time.Millisecond),
			MaxRetryBackoff: getEnvDuration("CACHE_MAX_RETRY_BACKOFF", 512*time.Millisecond),
			DialTimeout:     getEnvDuration("CACHE_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:     getEnvDuration("CACHE_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:    getEnvDuration("CACHE_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:        getEnvInt("CACHE_POOL_SIZE", 10),
			MinIdleConns:    getEnvInt("CACHE_MIN_IDLE_CONNS", 2),
			PoolTimeout:     getEnvDuration("CACHE_POOL_TIMEOUT", 4*time.Second),
			DefaultTTL:      getEnvDuration("CACHE_TTL", 24*time.Hour),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns defaultValue for unset variables and -1 for unparsable
// ones so Validate reports them
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvDuration treats unparsable durations like getEnvInt does
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return -1
	}
	return d
}

// parseSize parses size strings like "10MB", "512KB" into bytes
func parseSize(sizeStr string) int64 {
	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))

	for _, unit := range []struct {
		suffix string
		factor int64
	}{{"MB", 1024 * 1024}, {"KB", 1024}} {
		if num, ok := strings.CutSuffix(sizeStr, unit.suffix); ok {
			if n, err := strconv.ParseInt(num, 10, 64); err == nil {
				return n * unit.factor
			}
		}
	}

	// Default to 20MB if parsing fails
	return 20 * 1024 * 1024
}

// parseList parses comma-separated strings into lowercase slices
func parseList(listStr string) []string {
	items := strings.Split(listStr, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, strings.ToLower(trimmed))
		}
	}
	return result
}

// MustLoad loads configuration and panics on error
func MustLoad() *Config {
	config, err := Load()
	if err != nil {
		panic(err)
	}
	return config
}
