package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("configuration validation failed: %s", strings.Join(messages, "; "))
}

// Has checks if ValidationErrors contains any errors
func (ve ValidationErrors) Has() bool {
	return len(ve) > 0
}

var (
	validEnvironments = []string{"development", "production", "test", "staging"}
	validLevels       = []string{"debug", "info", "warn", "error"}
	validFormats      = []string{"json", "console"}
	knownImageFormats = []string{"jpeg", "png", "gif", "webp"}
)

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateGeneral()...)
	errs = append(errs, c.validateUpload()...)
	if c.Logging != nil {
		errs = append(errs, c.validateLogging()...)
	}
	if c.Cache.Enabled {
		errs = append(errs, c.validateCache()...)
	}

	if errs.Has() {
		return errs
	}
	return nil
}

func (c *Config) validateGeneral() ValidationErrors {
	var errs ValidationErrors

	if c.Environment != "" && !slices.Contains(validEnvironments, c.Environment) {
		errs = append(errs, ValidationError{
			Field:   "environment",
			Value:   c.Environment,
			Message: "environment must be one of: " + strings.Join(validEnvironments, ", "),
		})
	}

	if strings.TrimSpace(c.SizesFile) == "" {
		errs = append(errs, ValidationError{
			Field:   "sizes_file",
			Value:   c.SizesFile,
			Message: "sizes file cannot be empty",
		})
	}

	if c.Workers < 1 || c.Workers > 256 {
		errs = append(errs, ValidationError{
			Field:   "workers",
			Value:   c.Workers,
			Message: "workers must be between 1 and 256",
		})
	}

	return errs
}

func (c *Config) validateUpload() ValidationErrors {
	var errs ValidationErrors

	maxAllowed := int64(200 * 1024 * 1024)
	if c.Upload.MaxSize <= 0 || c.Upload.MaxSize > maxAllowed {
		errs = append(errs, ValidationError{
			Field:   "upload.max_size",
			Value:   c.Upload.MaxSize,
			Message: fmt.Sprintf("max upload size must be between 1 and %d bytes (200MB)", maxAllowed),
		})
	}

	if len(c.Upload.AllowedTypes) == 0 {
		errs = append(errs, ValidationError{
			Field:   "upload.allowed_types",
			Value:   c.Upload.AllowedTypes,
			Message: "at least one image format must be allowed",
		})
	}
	for _, format := range c.Upload.AllowedTypes {
		if !slices.Contains(knownImageFormats, format) {
			errs = append(errs, ValidationError{
				Field:   "upload.allowed_types",
				Value:   format,
				Message: "image format must be one of: " + strings.Join(knownImageFormats, ", "),
			})
		}
	}

	return errs
}

func (c *Config) validateLogging() ValidationErrors {
	var errs ValidationErrors

	if !slices.Contains(validLevels, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: "logging level must be one of: " + strings.Join(validLevels, ", "),
		})
	}

	if !slices.Contains(validFormats, strings.ToLower(c.Logging.Format)) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: "logging format must be either 'json' or 'console'",
		})
	}

	return errs
}

func (c *Config) validateCache() ValidationErrors {
	var errs ValidationErrors

	if c.Cache.Address == "" {
		errs = append(errs, ValidationError{
			Field:   "cache.address",
			Value:   c.Cache.Address,
			Message: "cache address cannot be empty when the cache is enabled",
		})
	}

	if c.Cache.Database < 0 || c.Cache.Database > 15 {
		errs = append(errs, ValidationError{
			Field:   "cache.database",
			Value:   c.Cache.Database,
			Message: "cache database must be between 0 and 15",
		})
	}

	if c.Cache.PoolSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "cache.pool_size",
			Value:   c.Cache.PoolSize,
			Message: "cache pool size must be greater than 0",
		})
	}

	if c.Cache.MaxRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "cache.max_retries",
			Value:   c.Cache.MaxRetries,
			Message: "cache max retries cannot be negative",
		})
	}

	for _, d := range []struct {
		field string
		value time.Duration
	}{
		{"cache.dial_timeout", c.Cache.DialTimeout},
		{"cache.read_timeout", c.Cache.ReadTimeout},
		{"cache.write_timeout", c.Cache.WriteTimeout},
		{"cache.ttl", c.Cache.DefaultTTL},
	} {
		if d.value <= 0 {
			errs = append(errs, ValidationError{
				Field:   d.field,
				Value:   d.value,
				Message: "duration must be greater than 0",
			})
		}
	}

	if c.Cache.MaxRetryBackoff < c.Cache.MinRetryBackoff {
		errs = append(errs, ValidationError{
			Field:   "cache.max_retry_backoff",
			Value:   c.Cache.MaxRetryBackoff,
			Message: "max retry backoff cannot be below min retry backoff",
		})
	}

	return errs
}

// MustValidate validates the configuration and panics on error
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("configuration validation failed: %v", err))
	}
}
