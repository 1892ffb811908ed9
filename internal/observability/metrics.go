package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the scope of every tracer and meter cropfit creates
const InstrumentationName = "cropfit"

// Fit outcomes
const (
	OutcomeOK       = "ok"
	OutcomeTooSmall = "too_small"
	OutcomeError    = "error"
)

// FitMetrics holds the instruments recorded around crop fitting. A nil
// *FitMetrics records nothing.
type FitMetrics struct {
	fits              metric.Int64Counter
	cacheLookups      metric.Int64Counter
	reconcileDuration metric.Float64Histogram
	thumbsChanged     metric.Int64Counter
}

// NewFitMetrics creates and registers the fitting instruments on meter
func NewFitMetrics(meter metric.Meter) (*FitMetrics, error) {
	fits, err := meter.Int64Counter(
		"cropfit.fits",
		metric.WithDescription("Number of crop boxes computed"),
		metric.WithUnit("{fit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"cropfit.cache.lookups",
		metric.WithDescription("Fit cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	reconcileDuration, err := meter.Float64Histogram(
		"cropfit.reconcile.duration",
		metric.WithDescription("Duration of thumbnail set reconciliation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	thumbsChanged, err := meter.Int64Counter(
		"cropfit.thumbs.changed",
		metric.WithDescription("Thumbs refitted by reconciliation"),
		metric.WithUnit("{thumb}"),
	)
	if err != nil {
		return nil, err
	}

	return &FitMetrics{
		fits:              fits,
		cacheLookups:      cacheLookups,
		reconcileDuration: reconcileDuration,
		thumbsChanged:     thumbsChanged,
	}, nil
}

// RecordFit counts one fit of size with the given outcome
func (m *FitMetrics) RecordFit(ctx context.Context, size, outcome string) {
	if m == nil {
		return
	}
	m.fits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("size", size),
		attribute.String("outcome", outcome),
	))
}

// RecordCacheLookup counts a fit cache hit or miss
func (m *FitMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

// RecordReconcile records one reconciliation of group
func (m *FitMetrics) RecordReconcile(ctx context.Context, group string, start time.Time, changed int, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	attrs := metric.WithAttributes(
		attribute.String("group", group),
		attribute.String("outcome", outcome),
	)
	m.reconcileDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if changed > 0 {
		m.thumbsChanged.Add(ctx, int64(changed), metric.WithAttributes(attribute.String("group", group)))
	}
}
