package implementations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"cropfit/internal/domain/geometry"
	"cropfit/internal/domain/sizes"
	"cropfit/internal/domain/thumbs"
	"cropfit/internal/observability"
	"cropfit/internal/platform/imaging"
)

// ErrOverrideSingleCrop is returned for per-size crops sent to a group whose
// sizes share one crop
var ErrOverrideSingleCrop = errors.New("single-crop group does not accept per-size crops")

// ThumbnailService implements thumbs.Service
type ThumbnailService struct {
	registry   *sizes.Registry
	fitter     thumbs.Fitter
	reconciler *thumbs.Reconciler
	inspector  *imaging.Inspector
	tracer     trace.Tracer
	metrics    *observability.FitMetrics
	logger     *observability.Logger
	workers    int
}

var _ thumbs.Service = (*ThumbnailService)(nil)

// NewThumbnailService creates the thumbnail service. Nil fitter, inspector,
// tracer, metrics and logger fall back to direct fitting, an inspector
// accepting every format, the global tracer, no metrics and no logging.
func NewThumbnailService(
	registry *sizes.Registry,
	fitter thumbs.Fitter,
	inspector *imaging.Inspector,
	tracer trace.Tracer,
	metrics *observability.FitMetrics,
	logger *observability.Logger,
	workers int,
) *ThumbnailService {
	if fitter == nil {
		fitter = thumbs.DirectFitter{}
	}
	if inspector == nil {
		inspector = imaging.NewInspector(0)
	}
	if tracer == nil {
		tracer = otel.Tracer(observability.InstrumentationName)
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &ThumbnailService{
		registry:   registry,
		fitter:     fitter,
		reconciler: thumbs.NewReconciler(fitter),
		inspector:  inspector,
		tracer:     tracer,
		metrics:    metrics,
		logger:     logger.With("thumbnails"),
		workers:    max(workers, 1),
	}
}

// Reconcile computes the thumb set of one image of the group
func (s *ThumbnailService) Reconcile(ctx context.Context, groupName string, req thumbs.Request) (result *thumbs.Result, err error) {
	ctx, span := s.tracer.Start(ctx, "thumbnails.reconcile", trace.WithAttributes(
		attribute.String("cropfit.group", groupName),
		attribute.Int("cropfit.existing", len(req.Existing)),
		attribute.Int("cropfit.overrides", len(req.Overrides)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		changed := 0
		if result != nil {
			changed = len(result.ChangedNames())
		}
		s.metrics.RecordReconcile(ctx, groupName, start, changed, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	group, err := s.registry.Group(groupName)
	if err != nil {
		return nil, err
	}
	if group.SingleCrop && len(req.Overrides) > 0 {
		return nil, fmt.Errorf("%w: group %q", ErrOverrideSingleCrop, groupName)
	}

	result, err = s.reconciler.Reconcile(ctx, group.Sizes, req)
	if err != nil {
		s.logger.Warn(ctx).Err(err).Str("group", groupName).Msg("reconcile failed")
		return nil, err
	}

	changed := result.ChangedNames()
	span.SetAttributes(
		attribute.Int("cropfit.changed", len(changed)),
		attribute.Int("cropfit.skipped", len(result.Skipped)),
	)
	s.logger.Info(ctx).
		Str("group", groupName).
		Int("thumbs", len(result.Thumbs)).
		Strs("changed", changed).
		Int("skipped", len(result.Skipped)).
		Strs("removed", result.Removed).
		Msg("thumbnails reconciled")
	return result, nil
}

// ReconcileBatch reconciles independent images on a bounded worker pool.
// Results keep the order of reqs; the first failure cancels the rest.
func (s *ThumbnailService) ReconcileBatch(ctx context.Context, groupName string, reqs []thumbs.Request) ([]*thumbs.Result, error) {
	if _, err := s.registry.Group(groupName); err != nil {
		return nil, err
	}

	results := make([]*thumbs.Result, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := s.Reconcile(ctx, groupName, req)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Unlink turns an auto-derived thumb into an independent one
func (s *ThumbnailService) Unlink(ctx context.Context, groupName string, req thumbs.LinkRequest) (thumbs.Thumb, error) {
	ctx, span := s.tracer.Start(ctx, "thumbnails.unlink", trace.WithAttributes(
		attribute.String("cropfit.group", groupName),
		attribute.String("cropfit.thumb", req.Name),
	))
	defer span.End()

	group, err := s.registry.Group(groupName)
	if err != nil {
		return thumbs.Thumb{}, err
	}
	size, _, err := group.Find(req.Name)
	if err != nil {
		return thumbs.Thumb{}, err
	}
	thumb, err := findThumb(req.Thumbs, req.Name)
	if err != nil {
		return thumbs.Thumb{}, err
	}

	var reference thumbs.Thumb
	if thumb.IsAuto() {
		if reference, err = findThumb(req.Thumbs, thumb.Reference); err != nil {
			return thumbs.Thumb{}, err
		}
	}

	unlinked, err := thumbs.UnsetAsAutoCrop(ctx, s.fitter, thumb, reference, size, req.Bounds)
	if err != nil {
		span.RecordError(err)
		return thumbs.Thumb{}, err
	}
	s.logger.Info(ctx).Str("group", groupName).Str("thumb", req.Name).
		Str("reference", thumb.Reference).Msg("thumb unlinked")
	return unlinked, nil
}

// Relink makes a thumb derive from a reference thumb, by default the parent of
// its size
func (s *ThumbnailService) Relink(ctx context.Context, groupName string, req thumbs.LinkRequest) (thumbs.Thumb, error) {
	ctx, span := s.tracer.Start(ctx, "thumbnails.relink", trace.WithAttributes(
		attribute.String("cropfit.group", groupName),
		attribute.String("cropfit.thumb", req.Name),
		attribute.Bool("cropfit.force", req.Force),
	))
	defer span.End()

	group, err := s.registry.Group(groupName)
	if err != nil {
		return thumbs.Thumb{}, err
	}
	size, parent, err := group.Find(req.Name)
	if err != nil {
		return thumbs.Thumb{}, err
	}

	referenceName := req.Reference
	if referenceName == "" {
		referenceName = parent
	}
	if referenceName == "" {
		return thumbs.Thumb{}, &thumbs.InvariantViolationError{Name: req.Name,
			Message: "size has no parent and no reference was given"}
	}
	if _, _, err := group.Find(referenceName); err != nil {
		return thumbs.Thumb{}, err
	}

	thumb, err := findThumb(req.Thumbs, req.Name)
	if err != nil {
		return thumbs.Thumb{}, err
	}
	reference, err := findThumb(req.Thumbs, referenceName)
	if err != nil {
		return thumbs.Thumb{}, err
	}

	linked, err := thumbs.SetAsAutoCrop(ctx, s.fitter, thumb, reference, req.Thumbs, size, req.Bounds, req.Force)
	if err != nil {
		span.RecordError(err)
		var conflict *thumbs.RelinkConflictError
		if errors.As(err, &conflict) {
			s.logger.Info(ctx).Str("group", groupName).Str("thumb", req.Name).
				Stringer("current", conflict.Current).Stringer("proposed", conflict.Proposed).
				Msg("relink refused")
		}
		return thumbs.Thumb{}, err
	}
	s.logger.Info(ctx).Str("group", groupName).Str("thumb", req.Name).
		Str("reference", referenceName).Bool("changed", linked.Changed).Msg("thumb relinked")
	return linked, nil
}

// ValidateUpload rejects images smaller than the minimum required dimensions
// of the groups, all registered groups when none are named
func (s *ThumbnailService) ValidateUpload(ctx context.Context, data io.Reader, groups ...string) (geometry.Box, error) {
	ctx, span := s.tracer.Start(ctx, "thumbnails.validate_upload")
	defer span.End()

	if len(groups) == 0 {
		groups = s.registry.Names()
	}
	minWidth, minHeight, err := s.registry.MinRequiredDimensions(groups...)
	if err != nil {
		return geometry.Box{}, err
	}

	info, err := s.inspector.Inspect(ctx, data)
	if err != nil {
		span.RecordError(err)
		return geometry.Box{}, err
	}
	span.SetAttributes(
		attribute.String("image.format", info.Format),
		attribute.Int("image.width", info.Width),
		attribute.Int("image.height", info.Height),
	)

	if info.Width < minWidth || info.Height < minHeight {
		err := &sizes.ResizeTooSmallError{
			Size:           strings.Join(groups, ","),
			RequiredWidth:  minWidth,
			RequiredHeight: minHeight,
			ActualWidth:    info.Width,
			ActualHeight:   info.Height,
		}
		s.logger.Info(ctx).Err(err).Msg("upload rejected")
		return geometry.Box{}, err
	}
	return info.Bounds(), nil
}

func findThumb(stored []thumbs.Thumb, name string) (thumbs.Thumb, error) {
	for _, t := range stored {
		if t.Name == name {
			return t, nil
		}
	}
	return thumbs.Thumb{}, fmt.Errorf("%w: %s", thumbs.ErrThumbNotFound, name)
}
