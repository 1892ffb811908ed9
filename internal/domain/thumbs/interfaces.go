package thumbs

import (
	"context"
	"io"

	"cropfit/internal/domain/geometry"
	"cropfit/internal/domain/sizes"
)

// Fitter computes the fitted box of a size. Implementations must be safe for
// concurrent use.
type Fitter interface {
	Fit(ctx context.Context, size sizes.Size, region, bounds geometry.Box) (geometry.Box, error)
}

// FitCache stores fitted boxes between runs
type FitCache interface {
	// Get returns a previously stored fit or an error on miss
	Get(ctx context.Context, size sizes.Size, region, bounds geometry.Box) (geometry.Box, error)

	// Set stores the fit of size within region and bounds
	Set(ctx context.Context, size sizes.Size, region, bounds, box geometry.Box) error
}

// LinkRequest asks to unlink or relink one thumb of an image
type LinkRequest struct {
	Name string `json:"name"`
	// Reference is the thumb to link to; empty means the size's parent
	Reference string       `json:"reference,omitempty"`
	Bounds    geometry.Box `json:"bounds"`
	Thumbs    []Thumb      `json:"thumbs"`
	Force     bool         `json:"force,omitempty"`
}

// Service manages the thumbnail geometry of images belonging to a size group
type Service interface {
	// Reconcile computes the thumb set of one image
	Reconcile(ctx context.Context, group string, req Request) (*Result, error)

	// ReconcileBatch reconciles independent images concurrently
	ReconcileBatch(ctx context.Context, group string, reqs []Request) ([]*Result, error)

	// Unlink turns an auto-derived thumb into an independent one
	Unlink(ctx context.Context, group string, req LinkRequest) (Thumb, error)

	// Relink makes a thumb derive from its reference again
	Relink(ctx context.Context, group string, req LinkRequest) (Thumb, error)

	// ValidateUpload checks that an image is large enough for every required
	// size of the groups and returns its bounds
	ValidateUpload(ctx context.Context, data io.Reader, groups ...string) (geometry.Box, error)
}
