package implementations

import (
	"context"
	"errors"

	"cropfit/internal/domain/geometry"
	"cropfit/internal/domain/sizes"
	"cropfit/internal/domain/thumbs"
	"cropfit/internal/observability"
	"cropfit/internal/platform/cache"
)

// CachedFitter implements thumbs.Fitter, consulting a fit cache before
// computing. Cache failures never fail a fit.
type CachedFitter struct {
	cache   thumbs.FitCache // can be nil
	metrics *observability.FitMetrics
	logger  *observability.Logger
}

// NewCachedFitter creates a fitter; with a nil cache it fits directly
func NewCachedFitter(fitCache thumbs.FitCache, metrics *observability.FitMetrics, logger *observability.Logger) *CachedFitter {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &CachedFitter{cache: fitCache, metrics: metrics, logger: logger.With("fitter")}
}

// Fit implements thumbs.Fitter
func (f *CachedFitter) Fit(ctx context.Context, size sizes.Size, region, bounds geometry.Box) (geometry.Box, error) {
	if f.cache != nil {
		box, err := f.cache.Get(ctx, size, region, bounds)
		if err == nil {
			f.metrics.RecordCacheLookup(ctx, true)
			f.metrics.RecordFit(ctx, size.Name, observability.OutcomeOK)
			return box, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			f.logger.Warn(ctx).Err(err).Str("size", size.Name).Msg("fit cache lookup failed")
		}
		f.metrics.RecordCacheLookup(ctx, false)
	}

	box, err := size.FitToCrop(region, bounds)
	if err != nil {
		outcome := observability.OutcomeError
		if errors.Is(err, sizes.ErrResizeTooSmall) {
			outcome = observability.OutcomeTooSmall
		}
		f.metrics.RecordFit(ctx, size.Name, outcome)
		return geometry.Box{}, err
	}
	f.metrics.RecordFit(ctx, size.Name, observability.OutcomeOK)

	if f.cache != nil {
		if err := f.cache.Set(ctx, size, region, bounds, box); err != nil {
			f.logger.Warn(ctx).Err(err).Str("size", size.Name).Msg("fit cache store failed")
		}
	}
	return box, nil
}
