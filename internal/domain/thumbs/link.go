package thumbs

import (
	"context"
	"fmt"

	"cropfit/internal/domain/geometry"
	"cropfit/internal/domain/sizes"
)

// RelinkTolerance is the per-coordinate distance, in pixels, under which a
// recomputed box counts as the same crop
const RelinkTolerance = 1.0

// UnsetAsAutoCrop turns an auto-derived thumb into an independent one. Its box
// is fitted once from the reference and stored as its own crop.
func UnsetAsAutoCrop(ctx context.Context, fitter Fitter, thumb, reference Thumb, size sizes.Size, bounds geometry.Box) (Thumb, error) {
	if !thumb.IsAuto() {
		return Thumb{}, fmt.Errorf("%w: %s", ErrNotAutoCrop, thumb.Name)
	}
	if thumb.Reference != reference.Name {
		return Thumb{}, &InvariantViolationError{Name: thumb.Name, Reference: reference.Name,
			Message: fmt.Sprintf("thumb is linked to %q", thumb.Reference)}
	}
	if err := checkReference(thumb, reference); err != nil {
		return Thumb{}, err
	}

	box, err := fitter.Fit(ctx, size, reference.Box, bounds)
	if err != nil {
		return Thumb{}, fmt.Errorf("thumb %q: %w", thumb.Name, err)
	}
	w, h := size.OutputSize(box)
	return Thumb{
		Name:    thumb.Name,
		Crop:    box,
		Box:     box,
		Width:   w,
		Height:  h,
		Changed: box != thumb.Box,
	}, nil
}

// SetAsAutoCrop makes thumb derive from reference. stored holds the other
// thumbs of the image: a thumb that is itself the reference of one of them
// cannot be linked. Unless force is set it refuses with a RelinkConflictError
// when that would move the stored box.
func SetAsAutoCrop(ctx context.Context, fitter Fitter, thumb, reference Thumb, stored []Thumb, size sizes.Size, bounds geometry.Box, force bool) (Thumb, error) {
	if err := checkReference(thumb, reference); err != nil {
		return Thumb{}, err
	}
	if err := checkDependents(thumb, reference, stored); err != nil {
		return Thumb{}, err
	}

	proposed, err := fitter.Fit(ctx, size, reference.Box, bounds)
	if err != nil {
		return Thumb{}, fmt.Errorf("thumb %q: %w", thumb.Name, err)
	}
	if !force && !proposed.Near(thumb.Box, RelinkTolerance) {
		return Thumb{}, &RelinkConflictError{
			Name:      thumb.Name,
			Reference: reference.Name,
			Current:   thumb.Box,
			Proposed:  proposed,
		}
	}

	w, h := size.OutputSize(proposed)
	return Thumb{
		Name:      thumb.Name,
		Reference: reference.Name,
		Crop:      reference.Box,
		Box:       proposed,
		Width:     w,
		Height:    h,
		Changed:   proposed != thumb.Box,
	}, nil
}

func checkReference(thumb, reference Thumb) error {
	if thumb.Name == reference.Name {
		return &InvariantViolationError{Name: thumb.Name, Reference: reference.Name, Message: "thumb cannot reference itself"}
	}
	if reference.IsAuto() {
		return &InvariantViolationError{Name: thumb.Name, Reference: reference.Name,
			Message: fmt.Sprintf("reference is itself derived from %q", reference.Reference)}
	}
	return nil
}

// checkDependents keeps references one level deep
func checkDependents(thumb, reference Thumb, stored []Thumb) error {
	for _, other := range stored {
		if other.Name != thumb.Name && other.Reference == thumb.Name {
			return &InvariantViolationError{Name: thumb.Name, Reference: reference.Name,
				Message: fmt.Sprintf("thumb is the reference of %q", other.Name)}
		}
	}
	return nil
}
