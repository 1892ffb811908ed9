// Package thumbs reconciles the stored crop boxes of an image's thumbnails with
// its configured sizes and a newly submitted crop.
package thumbs

import (
	"context"
	"errors"
	"fmt"

	"cropfit/internal/domain/geometry"
	"cropfit/internal/domain/sizes"
)

// Thumb is the fitted geometry of one named size of an image.
//
// Crop is the region Box was fitted from: the selected crop for independent
// thumbs, or the reference thumb's box for auto-derived ones. Reference names
// the thumb this one is derived from and is empty for independent thumbs.
type Thumb struct {
	Name      string       `json:"name"`
	Reference string       `json:"reference,omitempty"`
	Crop      geometry.Box `json:"crop"`
	Box       geometry.Box `json:"box"`
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	Changed   bool         `json:"changed"`
}

// IsAuto reports whether the thumb derives its geometry from a reference thumb
func (t Thumb) IsAuto() bool {
	return t.Reference != ""
}

// DirectFitter fits without caching
type DirectFitter struct{}

func (DirectFitter) Fit(_ context.Context, size sizes.Size, region, bounds geometry.Box) (geometry.Box, error) {
	return size.FitToCrop(region, bounds)
}

// Domain errors
var (
	ErrInvariantViolation = errors.New("thumb invariant violated")
	ErrRelinkConflict     = errors.New("relinking would change crop")
	ErrNotAutoCrop        = errors.New("thumb is not an auto crop")
	ErrThumbNotFound      = errors.New("thumb not found")
)

// InvariantViolationError reports a reference chain longer than one level or a
// thumb referencing itself
type InvariantViolationError struct {
	Name      string
	Reference string
	Message   string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%s: thumb %q reference %q: %s", ErrInvariantViolation, e.Name, e.Reference, e.Message)
}

func (e *InvariantViolationError) Unwrap() error {
	return ErrInvariantViolation
}

// RelinkConflictError is returned when making a thumb auto-derived would move
// its manually chosen crop
type RelinkConflictError struct {
	Name      string
	Reference string
	Current   geometry.Box
	Proposed  geometry.Box
}

func (e *RelinkConflictError) Error() string {
	return fmt.Sprintf("%s: thumb %q linked to %q would move from %s to %s",
		ErrRelinkConflict, e.Name, e.Reference, e.Current, e.Proposed)
}

func (e *RelinkConflictError) Unwrap() error {
	return ErrRelinkConflict
}
