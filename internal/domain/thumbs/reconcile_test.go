package thumbs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropfit/internal/domain/geometry"
	"cropfit/internal/domain/sizes"
)

type fitCall struct {
	size   string
	region geometry.Box
}

// recordingFitter fits directly and remembers every region it was asked to fit
type recordingFitter struct {
	mu    sync.Mutex
	calls []fitCall
}

func (f *recordingFitter) Fit(ctx context.Context, size sizes.Size, region, bounds geometry.Box) (geometry.Box, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fitCall{size: size.Name, region: region})
	f.mu.Unlock()
	return DirectFitter{}.Fit(ctx, size, region, bounds)
}

func (f *recordingFitter) regionFor(name string) (geometry.Box, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].size == name {
			return f.calls[i].region, true
		}
	}
	return geometry.Box{}, false
}

var testBounds = geometry.Bounds(1200, 800)

func testSizes() []sizes.Size {
	return []sizes.Size{
		sizes.MustNew(sizes.Definition{Name: "main", Width: 800, Height: 600, Auto: []sizes.Definition{
			{Name: "main_square", Width: 200, Height: 200},
			{Name: "main_wide", Width: 320, Height: 180},
		}}),
		sizes.MustNew(sizes.Definition{Name: "banner", Width: 600, MinHeight: 100}),
		sizes.MustNew(sizes.Definition{Name: "huge", Width: 4000, Height: 3000, Required: boolPtr(false)}),
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func mustFit(t *testing.T, name string, region geometry.Box) geometry.Box {
	t.Helper()
	size, _, err := sizes.Find(testSizes(), name)
	require.NoError(t, err)
	box, err := size.FitToCrop(region, testBounds)
	require.NoError(t, err)
	return box
}

func thumbNames(thumbs []Thumb) []string {
	out := make([]string, 0, len(thumbs))
	for _, th := range thumbs {
		out = append(out, th.Name)
	}
	return out
}

func TestReconcile_FreshImage(t *testing.T) {
	fitter := &recordingFitter{}
	result, err := NewReconciler(fitter).Reconcile(context.Background(), testSizes(), Request{Bounds: testBounds})
	require.NoError(t, err)

	assert.Equal(t, []string{"main", "main_square", "main_wide", "banner"}, thumbNames(result.Thumbs))
	assert.Equal(t, []string{"main", "main_square", "main_wide", "banner"}, result.ChangedNames())

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "huge", result.Skipped[0].Name)
	assert.ErrorIs(t, result.Skipped[0].Err, sizes.ErrResizeTooSmall)

	main, ok := result.Thumb("main")
	require.True(t, ok)
	assert.Empty(t, main.Reference)
	assert.Equal(t, testBounds, main.Crop)
	assert.Equal(t, mustFit(t, "main", testBounds), main.Box)
	assert.Equal(t, 800, main.Width)
	assert.Equal(t, 600, main.Height)

	for _, child := range []string{"main_square", "main_wide"} {
		thumb, ok := result.Thumb(child)
		require.True(t, ok)
		assert.Equal(t, "main", thumb.Reference)
		assert.Equal(t, main.Box, thumb.Crop)

		region, called := fitter.regionFor(child)
		require.True(t, called)
		assert.Equal(t, main.Box, region, "auto size %s must be fitted against its parent's box", child)
		assert.Equal(t, mustFit(t, child, main.Box), thumb.Box)
	}

	boxes := result.Boxes()
	assert.Len(t, boxes, 4)
	assert.Equal(t, main.Box, boxes["main"])
}

func TestReconcile_UnchangedCropKeepsThumbs(t *testing.T) {
	ctx := context.Background()
	crop := geometry.Box{X1: 100, Y1: 50, X2: 900, Y2: 650}
	reconciler := NewReconciler(nil)

	first, err := reconciler.Reconcile(ctx, testSizes(), Request{Bounds: testBounds, Crop: crop})
	require.NoError(t, err)

	fitter := &recordingFitter{}
	second, err := NewReconciler(fitter).Reconcile(ctx, testSizes(), Request{
		Bounds:   testBounds,
		Crop:     crop,
		Existing: first.Thumbs,
	})
	require.NoError(t, err)

	assert.Empty(t, second.ChangedNames())
	// only the optional size without a stored thumb is attempted again
	assert.Equal(t, []fitCall{{size: "huge", region: crop}}, fitter.calls)
	assert.Equal(t, first.Boxes(), second.Boxes())
}

func TestReconcile_NewCropCascadesToAutoSizes(t *testing.T) {
	ctx := context.Background()
	reconciler := NewReconciler(nil)

	first, err := reconciler.Reconcile(ctx, testSizes(), Request{Bounds: testBounds})
	require.NoError(t, err)

	moved := geometry.Box{X1: 400, Y1: 200, X2: 1200, Y2: 800}
	second, err := reconciler.Reconcile(ctx, testSizes(), Request{
		Bounds:   testBounds,
		Crop:     moved,
		Existing: first.Thumbs,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"main", "main_square", "main_wide", "banner"}, second.ChangedNames())

	main, _ := second.Thumb("main")
	assert.Equal(t, moved, main.Crop)
	square, _ := second.Thumb("main_square")
	assert.Equal(t, main.Box, square.Crop)
	assert.Equal(t, mustFit(t, "main_square", main.Box), square.Box)
}

func TestReconcile_OverrideOnlyTouchesOneSize(t *testing.T) {
	ctx := context.Background()
	reconciler := NewReconciler(nil)

	first, err := reconciler.Reconcile(ctx, testSizes(), Request{Bounds: testBounds})
	require.NoError(t, err)

	bannerCrop := geometry.Box{X1: 0, Y1: 0, X2: 1200, Y2: 200}
	second, err := reconciler.Reconcile(ctx, testSizes(), Request{
		Bounds:    testBounds,
		Overrides: map[string]geometry.Box{"banner": bannerCrop},
		Existing:  first.Thumbs,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"banner"}, second.ChangedNames())
	banner, _ := second.Thumb("banner")
	assert.Equal(t, bannerCrop, banner.Crop)
	assert.Equal(t, mustFit(t, "banner", bannerCrop), banner.Box)
}

func TestReconcile_UnlinkedAutoSizeKeepsItsCrop(t *testing.T) {
	ctx := context.Background()
	reconciler := NewReconciler(nil)

	first, err := reconciler.Reconcile(ctx, testSizes(), Request{Bounds: testBounds})
	require.NoError(t, err)

	ownCrop := geometry.Box{X1: 0, Y1: 0, X2: 300, Y2: 300}
	existing := make([]Thumb, 0, len(first.Thumbs))
	for _, th := range first.Thumbs {
		if th.Name == "main_square" {
			th.Reference = ""
			th.Crop = ownCrop
			th.Box = mustFit(t, "main_square", ownCrop)
		}
		existing = append(existing, th)
	}

	second, err := reconciler.Reconcile(ctx, testSizes(), Request{
		Bounds:   testBounds,
		Crop:     geometry.Box{X1: 400, Y1: 200, X2: 1200, Y2: 800},
		Existing: existing,
	})
	require.NoError(t, err)

	square, _ := second.Thumb("main_square")
	assert.False(t, square.Changed)
	assert.Empty(t, square.Reference)
	assert.Equal(t, ownCrop, square.Crop)

	wide, _ := second.Thumb("main_wide")
	assert.True(t, wide.Changed)
}

func TestReconcile_OutputSizeChangeRefits(t *testing.T) {
	ctx := context.Background()
	reconciler := NewReconciler(nil)

	first, err := reconciler.Reconcile(ctx, testSizes(), Request{Bounds: testBounds})
	require.NoError(t, err)

	existing := append([]Thumb(nil), first.Thumbs...)
	existing[0].Width = 640
	existing[0].Height = 480

	second, err := reconciler.Reconcile(ctx, testSizes(), Request{Bounds: testBounds, Existing: existing})
	require.NoError(t, err)

	main, _ := second.Thumb("main")
	assert.True(t, main.Changed)
	assert.Equal(t, 800, main.Width)
}

func TestReconcile_RaisedMinimumRefits(t *testing.T) {
	ctx := context.Background()
	reconciler := NewReconciler(nil)
	crop := geometry.Box{X2: 200, Y2: 200}

	free := sizes.MustNew(sizes.Definition{Name: "free", MinWidth: 100, MinHeight: 100})
	first, err := reconciler.Reconcile(ctx, []sizes.Size{free}, Request{Bounds: testBounds, Crop: crop})
	require.NoError(t, err)
	stored, ok := first.Thumb("free")
	require.True(t, ok)
	require.Equal(t, crop, stored.Box)

	raised := sizes.MustNew(sizes.Definition{Name: "free", MinWidth: 400, MinHeight: 400})
	second, err := reconciler.Reconcile(ctx, []sizes.Size{raised}, Request{
		Bounds:   testBounds,
		Crop:     crop,
		Existing: first.Thumbs,
	})
	require.NoError(t, err)

	refit, ok := second.Thumb("free")
	require.True(t, ok)
	assert.True(t, refit.Changed)
	assert.NotEqual(t, crop, refit.Box)
	assert.NoError(t, raised.CheckResolution(refit.Box.Width(), refit.Box.Height()))
}

func TestReconcile_RemovedSizes(t *testing.T) {
	result, err := NewReconciler(nil).Reconcile(context.Background(), testSizes(), Request{
		Bounds: testBounds,
		Existing: []Thumb{
			{Name: "legacy", Crop: testBounds, Box: testBounds, Width: 10, Height: 10},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy"}, result.Removed)
}

func TestReconcile_Errors(t *testing.T) {
	tests := []struct {
		name          string
		sizes         []sizes.Size
		req           Request
		expectedError error
	}{
		{
			name:          "reference chain",
			sizes:         testSizes(),
			req:           Request{Bounds: testBounds, Existing: []Thumb{{Name: "banner", Reference: "main_square"}}},
			expectedError: ErrInvariantViolation,
		},
		{
			name:          "self reference",
			sizes:         testSizes(),
			req:           Request{Bounds: testBounds, Existing: []Thumb{{Name: "banner", Reference: "banner"}}},
			expectedError: ErrInvariantViolation,
		},
		{
			name:          "unknown reference",
			sizes:         testSizes(),
			req:           Request{Bounds: testBounds, Existing: []Thumb{{Name: "banner", Reference: "gone"}}},
			expectedError: ErrInvariantViolation,
		},
		{
			name:          "required size too large for image",
			sizes:         []sizes.Size{sizes.MustNew(sizes.Definition{Name: "poster", Width: 2000, Height: 1000})},
			req:           Request{Bounds: testBounds},
			expectedError: sizes.ErrResizeTooSmall,
		},
		{
			name:          "empty bounds",
			sizes:         testSizes(),
			req:           Request{},
			expectedError: geometry.ErrDegenerateBox,
		},
		{
			name:          "degenerate crop",
			sizes:         testSizes(),
			req:           Request{Bounds: testBounds, Crop: geometry.Box{X1: 10, Y1: 10, X2: 500, Y2: 10}},
			expectedError: geometry.ErrDegenerateBox,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewReconciler(nil).Reconcile(context.Background(), tt.sizes, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedError)
			assert.Nil(t, result)
		})
	}
}

func TestReconcile_OptionalAutoSizeOfSkippedParent(t *testing.T) {
	sizeList := []sizes.Size{
		sizes.MustNew(sizes.Definition{Name: "poster", Width: 2000, Height: 1000, Required: boolPtr(false), Auto: []sizes.Definition{
			{Name: "poster_small", Width: 200, Height: 100, Required: boolPtr(false)},
		}}),
	}

	result, err := NewReconciler(nil).Reconcile(context.Background(), sizeList, Request{Bounds: testBounds})
	require.NoError(t, err)
	assert.Empty(t, result.Thumbs)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "poster_small", result.Skipped[1].Name)
	assert.True(t, errors.Is(result.Skipped[1].Err, sizes.ErrResizeTooSmall))
}
