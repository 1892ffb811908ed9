package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"

	"cropfit/internal/config"
	"cropfit/internal/domain/sizes"
	"cropfit/internal/domain/thumbs"
	"cropfit/internal/observability"
	"cropfit/internal/platform/cache"
	"cropfit/internal/platform/imaging"
	"cropfit/internal/services/implementations"
)

// Container holds all the application dependencies
type Container struct {
	config *config.Config

	// Observability
	logger    *observability.Logger
	telemetry *observability.Provider
	metrics   *observability.FitMetrics

	// Sizes
	registry *sizes.Registry

	// Infrastructure (fitCache is nil when caching is off or unreachable)
	fitCache  *cache.FitCache
	inspector *imaging.Inspector

	// Services
	fitter           thumbs.Fitter
	thumbnailService *implementations.ThumbnailService
}

// NewContainer creates a new dependency injection container. The size
// registry is read from cfg.SizesFile.
func NewContainer(ctx context.Context, cfg *config.Config, telemetryCfg observability.Config) (*Container, error) {
	if cfg.Logging != nil {
		telemetryCfg.LogLevel = cfg.Logging.Level
		telemetryCfg.LogFormat = cfg.Logging.Format
	}
	telemetryCfg.Environment = cfg.Environment

	c := &Container{
		config: cfg,
		logger: observability.NewLogger(telemetryCfg),
	}
	if err := c.initializeServices(ctx, telemetryCfg); err != nil {
		return nil, errors.Join(err, c.Close(ctx))
	}
	return c, nil
}

// initializeServices initializes all services in the correct dependency order
func (c *Container) initializeServices(ctx context.Context, telemetryCfg observability.Config) error {
	otel.SetErrorHandler(otel.ErrorHandlerFunc(c.logger.OTELErrorHandler()))

	telemetry, err := observability.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	c.telemetry = telemetry

	c.metrics, err = observability.NewFitMetrics(telemetry.Meter(observability.InstrumentationName))
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	c.registry, err = loadRegistry(c.config.SizesFile)
	if err != nil {
		return err
	}

	// The cache only speeds up fitting, so an unreachable Redis is not fatal
	var fitCache thumbs.FitCache
	if c.config.Cache.Enabled {
		client, err := cache.NewRedisClient(c.config.Cache)
		if err != nil {
			c.logger.Warn(ctx).Err(err).Str("address", c.config.Cache.Address).
				Msg("fit cache unavailable, fitting without it")
		} else {
			c.fitCache = cache.NewFitCache(client)
			fitCache = c.fitCache
		}
	}

	c.inspector = imaging.NewInspector(c.config.Upload.MaxSize, c.config.Upload.AllowedTypes...)
	c.fitter = implementations.NewCachedFitter(fitCache, c.metrics, c.logger)
	c.thumbnailService = implementations.NewThumbnailService(
		c.registry,
		c.fitter,
		c.inspector,
		telemetry.Tracer(observability.InstrumentationName),
		c.metrics,
		c.logger,
		c.config.Workers,
	)

	c.logger.Debug(ctx).
		Strs("groups", c.registry.Names()).
		Bool("fit_cache", c.fitCache != nil).
		Int("workers", c.config.Workers).
		Msg("dependency injection container initialized")
	return nil
}

func loadRegistry(path string) (*sizes.Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sizes file: %w", err)
	}
	defer f.Close()

	registry, err := sizes.LoadRegistry(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load sizes from %s: %w", path, err)
	}
	return registry, nil
}

// Getters for accessing services

func (c *Container) Config() *config.Config {
	return c.config
}

func (c *Container) Logger() *observability.Logger {
	return c.logger
}

func (c *Container) Registry() *sizes.Registry {
	return c.registry
}

func (c *Container) Inspector() *imaging.Inspector {
	return c.inspector
}

// FitCache returns the Redis fit cache, or nil when fitting uncached
func (c *Container) FitCache() *cache.FitCache {
	return c.fitCache
}

func (c *Container) Fitter() thumbs.Fitter {
	return c.fitter
}

func (c *Container) ThumbnailService() thumbs.Service {
	return c.thumbnailService
}

// Close flushes telemetry and releases the cache connection
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.fitCache != nil {
		if err := c.fitCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close fit cache: %w", err))
		}
	}
	if c.telemetry != nil {
		if err := c.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
