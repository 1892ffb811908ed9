package thumbs

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"

	"cropfit/internal/domain/geometry"
	"cropfit/internal/domain/sizes"
)

// Request is the input of a reconciliation
type Request struct {
	// Bounds is the original image, always (0,0,W,H)
	Bounds geometry.Box `json:"bounds"`
	// Crop is the newly submitted crop. The zero box keeps stored crops, or the
	// whole image for sizes without one.
	Crop geometry.Box `json:"crop"`
	// Overrides holds crops the user set explicitly for individual sizes
	Overrides map[string]geometry.Box `json:"overrides,omitempty"`
	// Existing holds the stored thumbs of the image
	Existing []Thumb `json:"existing,omitempty"`
}

// Skip records an optional size that could not be produced
type Skip struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Result is the reconciled thumb set in flattened size order
type Result struct {
	Thumbs  []Thumb  `json:"thumbs"`
	Skipped []Skip   `json:"skipped,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// Boxes returns the fitted box of every reconciled thumb by name
func (r *Result) Boxes() map[string]geometry.Box {
	boxes := make(map[string]geometry.Box, len(r.Thumbs))
	for _, t := range r.Thumbs {
		boxes[t.Name] = t.Box
	}
	return boxes
}

// ChangedNames returns the names of thumbs that were refitted, in order
func (r *Result) ChangedNames() []string {
	var changed []string
	for _, t := range r.Thumbs {
		if t.Changed {
			changed = append(changed, t.Name)
		}
	}
	return changed
}

// Thumb returns the reconciled thumb with the given name
func (r *Result) Thumb(name string) (Thumb, bool) {
	for _, t := range r.Thumbs {
		if t.Name == name {
			return t, true
		}
	}
	return Thumb{}, false
}

// Reconciler decides which thumbs of an image must be refitted
type Reconciler struct {
	fitter Fitter
}

// NewReconciler creates a reconciler; a nil fitter fits directly
func NewReconciler(fitter Fitter) *Reconciler {
	if fitter == nil {
		fitter = DirectFitter{}
	}
	return &Reconciler{fitter: fitter}
}

// plan is the resolved source of one size's geometry
type plan struct {
	size      sizes.Size
	existing  *Thumb
	reference string
	autoChild bool
}

// Reconcile computes the thumb set of one image.
//
// Independent sizes are refitted when they have no stored thumb, when their
// selected crop changed, or when their output dimensions changed. Auto-derived
// sizes follow their reference: they are refitted against the reference's
// fitted box whenever that box changed. Optional sizes the image is too small
// for are skipped; any other failure aborts without a partial result.
func (r *Reconciler) Reconcile(ctx context.Context, sizeList []sizes.Size, req Request) (*Result, error) {
	if err := req.Bounds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: bounds: %w", geometry.ErrDegenerateBox, err)
	}
	if req.Bounds.IsEmpty() {
		return nil, fmt.Errorf("%w: bounds %s have no area", geometry.ErrDegenerateBox, req.Bounds)
	}

	existing := make(map[string]Thumb, len(req.Existing))
	for _, t := range req.Existing {
		existing[t.Name] = t
	}

	plans, err := r.plan(sizeList, existing)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]Thumb, len(plans))
	skipped := make(map[string]Skip)

	// Independent thumbs first so references are available to derived ones
	for _, p := range plans {
		if p.reference != "" {
			continue
		}
		thumb, err := r.resolveIndependent(ctx, p, req)
		if err != nil {
			if skip, ok := skipFor(p.size, err); ok {
				skipped[p.size.Name] = skip
				continue
			}
			return nil, err
		}
		resolved[p.size.Name] = thumb
	}

	for _, p := range plans {
		if p.reference == "" {
			continue
		}
		ref, ok := resolved[p.reference]
		if !ok {
			refErr := fmt.Errorf("reference %q was not produced", p.reference)
			if s, wasSkipped := skipped[p.reference]; wasSkipped {
				refErr = fmt.Errorf("reference %q was skipped: %w", p.reference, s.Err)
			}
			if !p.size.Required {
				skipped[p.size.Name] = Skip{Name: p.size.Name, Reason: refErr.Error(), Err: refErr}
				continue
			}
			return nil, fmt.Errorf("thumb %q: %w", p.size.Name, refErr)
		}
		thumb, err := r.resolveDerived(ctx, p, ref, req.Bounds)
		if err != nil {
			if skip, ok := skipFor(p.size, err); ok {
				skipped[p.size.Name] = skip
				continue
			}
			return nil, err
		}
		resolved[p.size.Name] = thumb
	}

	result := &Result{}
	for _, p := range plans {
		if thumb, ok := resolved[p.size.Name]; ok {
			result.Thumbs = append(result.Thumbs, thumb)
		} else if skip, ok := skipped[p.size.Name]; ok {
			result.Skipped = append(result.Skipped, skip)
		}
	}
	for _, name := range sortedKeys(existing) {
		if !containsPlan(plans, name) {
			result.Removed = append(result.Removed, name)
		}
	}
	return result, nil
}

// plan resolves, in flattened order, where each size takes its geometry from
func (r *Reconciler) plan(sizeList []sizes.Size, existing map[string]Thumb) ([]plan, error) {
	parents := make(map[string]string)
	known := make(map[string]sizes.Size)
	for _, top := range sizeList {
		known[top.Name] = top
		for _, child := range top.Auto {
			known[child.Name] = child
			parents[child.Name] = top.Name
		}
	}

	var plans []plan
	for size := range sizes.Flatten(sizeList) {
		parent, autoChild := parents[size.Name]
		p := plan{size: size, reference: parent, autoChild: autoChild}
		if stored, ok := existing[size.Name]; ok {
			p.existing = &stored
			// A stored row decides whether the size is linked
			p.reference = stored.Reference
		}
		plans = append(plans, p)
	}

	for _, p := range plans {
		if p.reference == "" {
			continue
		}
		if p.reference == p.size.Name {
			return nil, &InvariantViolationError{Name: p.size.Name, Reference: p.reference, Message: "thumb cannot reference itself"}
		}
		if _, ok := known[p.reference]; !ok {
			return nil, &InvariantViolationError{Name: p.size.Name, Reference: p.reference, Message: "reference is not a configured size"}
		}
		if refPlan := findPlan(plans, p.reference); refPlan.reference != "" {
			return nil, &InvariantViolationError{Name: p.size.Name, Reference: p.reference, Message: "reference thumb has its own reference"}
		}
	}
	return plans, nil
}

func (r *Reconciler) resolveIndependent(ctx context.Context, p plan, req Request) (Thumb, error) {
	region, ok := req.Overrides[p.size.Name]
	if !ok {
		switch {
		case p.autoChild && p.existing != nil:
			// Unlinked auto sizes keep their own stored crop
			region = p.existing.Crop
		case req.Crop != geometry.Box{}:
			region = req.Crop
		case p.existing != nil:
			region = p.existing.Crop
		default:
			region = req.Bounds
		}
	}

	if p.existing != nil && p.existing.Crop == region && req.Bounds.Contains(p.existing.Box) &&
		stillFits(p.size, *p.existing) {
		kept := *p.existing
		kept.Changed = false
		return kept, nil
	}
	return r.fit(ctx, p.size, region, req.Bounds, "")
}

func (r *Reconciler) resolveDerived(ctx context.Context, p plan, ref Thumb, bounds geometry.Box) (Thumb, error) {
	if p.existing != nil && !ref.Changed && p.existing.Reference == ref.Name &&
		p.existing.Crop == ref.Box && bounds.Contains(p.existing.Box) && stillFits(p.size, *p.existing) {
		kept := *p.existing
		kept.Changed = false
		return kept, nil
	}
	return r.fit(ctx, p.size, ref.Box, bounds, ref.Name)
}

func (r *Reconciler) fit(ctx context.Context, size sizes.Size, region, bounds geometry.Box, reference string) (Thumb, error) {
	box, err := r.fitter.Fit(ctx, size, region, bounds)
	if err != nil {
		return Thumb{}, fmt.Errorf("thumb %q: %w", size.Name, err)
	}
	w, h := size.OutputSize(box)
	return Thumb{
		Name:      size.Name,
		Reference: reference,
		Crop:      region,
		Box:       box,
		Width:     w,
		Height:    h,
		Changed:   true,
	}, nil
}

// stillFits reports whether a stored thumb satisfies the current size: same
// output dimensions and a box no smaller than the minimums
func stillFits(size sizes.Size, stored Thumb) bool {
	if err := size.CheckResolution(stored.Box.Width(), stored.Box.Height()); err != nil {
		return false
	}
	w, h := size.OutputSize(stored.Box)
	return w == stored.Width && h == stored.Height
}

func skipFor(size sizes.Size, err error) (Skip, bool) {
	if size.Required || !errors.Is(err, sizes.ErrResizeTooSmall) {
		return Skip{}, false
	}
	return Skip{Name: size.Name, Reason: err.Error(), Err: err}, true
}

func findPlan(plans []plan, name string) plan {
	for _, p := range plans {
		if p.size.Name == name {
			return p
		}
	}
	return plan{}
}

func containsPlan(plans []plan, name string) bool {
	return slices.ContainsFunc(plans, func(p plan) bool { return p.size.Name == name })
}

func sortedKeys(m map[string]Thumb) []string {
	keys := slices.Collect(maps.Keys(m))
	sort.Strings(keys)
	return keys
}
