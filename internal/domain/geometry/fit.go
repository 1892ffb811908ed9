package geometry

import (
	"fmt"
	"math"
)

// Target describes the constraints a fitted box must satisfy.
// A zero field means the constraint was not given.
type Target struct {
	Width     float64
	Height    float64
	MinWidth  float64
	MinHeight float64
}

// HasAspectRatio reports whether both Width and Height are fixed
func (t Target) HasAspectRatio() bool {
	return t.Width > 0 && t.Height > 0
}

// Validate rejects negative or non-finite constraints
func (t Target) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"width", t.Width},
		{"height", t.Height},
		{"min width", t.MinWidth},
		{"min height", t.MinHeight},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			return fmt.Errorf("%w: %s must be a finite non-negative number, got %v", ErrInvalidTarget, f.name, f.value)
		}
	}
	return nil
}

// BestFit computes the box closest to region that has the target aspect ratio,
// meets the target minimums where the image allows it, and lies within bounds.
//
// The region is scaled about its midpoint to the target aspect ratio, spreading
// the change across both axes, then grown to the minimum dimensions. The result
// is shifted inside bounds; an axis that overflows the image is re-anchored to the
// far edge and shrunk, and the other axis is shrunk by the same factor around its
// current midpoint. Coordinates are rounded half to even.
func BestFit(region, bounds Box, target Target) (Box, error) {
	if err := target.Validate(); err != nil {
		return Box{}, err
	}
	if err := region.Validate(); err != nil {
		return Box{}, fmt.Errorf("%w: region: %w", ErrDegenerateBox, err)
	}
	if err := bounds.Validate(); err != nil {
		return Box{}, fmt.Errorf("%w: bounds: %w", ErrDegenerateBox, err)
	}
	if region.IsEmpty() {
		return Box{}, fmt.Errorf("%w: region %s has no area", ErrDegenerateBox, region)
	}
	if bounds.IsEmpty() {
		return Box{}, fmt.Errorf("%w: bounds %s have no area", ErrDegenerateBox, bounds)
	}

	aspectRatio := region.AspectRatio()
	if target.HasAspectRatio() {
		aspectRatio = target.Width / target.Height
	}

	scale := math.Sqrt(aspectRatio / region.AspectRatio())
	w := region.Width() * scale
	h := w / aspectRatio

	if target.MinWidth > w || target.MinHeight > h {
		minScale := math.Max(target.MinWidth/w, target.MinHeight/h)
		w *= minScale
		h *= minScale
	}

	midX, midY := region.Midpoint()
	initial := Box{X1: midX - w/2, Y1: midY - h/2, X2: midX + w/2, Y2: midY + h/2}

	x1, x2, scaleX := clampAxis(initial.X1, initial.X2, bounds.X1, bounds.X2)
	y1, y2, scaleY := clampAxis(initial.Y1, initial.Y2, bounds.Y1, bounds.Y2)

	switch {
	case scaleY < scaleX:
		x1, x2 = shrinkAxis(x1, x2, scaleY/scaleX)
	case scaleX < scaleY:
		y1, y2 = shrinkAxis(y1, y2, scaleX/scaleY)
	}

	rw := math.RoundToEven(x2 - x1)
	rh := math.RoundToEven(y2 - y1)
	rx1 := math.RoundToEven(x1)
	ry1 := math.RoundToEven(y1)

	return Box{
		X1: rx1,
		Y1: ry1,
		X2: math.Min(math.RoundToEven(x2), math.Min(bounds.X2, rx1+rw)),
		Y2: math.Min(math.RoundToEven(y2), math.Min(bounds.Y2, ry1+rh)),
	}, nil
}

// clampAxis moves the span [lo, hi] inside [min, max]. A span overflowing max is
// re-anchored against max; scale is the fraction of the original length kept.
func clampAxis(lo, hi, min, max float64) (float64, float64, float64) {
	length := hi - lo
	scale := 1.0

	if lo < min {
		hi += min - lo
		lo = min
	}
	if hi > max {
		lo = math.Max(max-length, min)
		hi = max
		scale = (hi - lo) / length
	}
	return lo, hi, scale
}

// shrinkAxis trims the span by factor, evenly from both ends
func shrinkAxis(lo, hi, factor float64) (float64, float64) {
	length := hi - lo
	delta := length - length*factor
	return lo + delta/2, hi - delta/2
}
