package thumbs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropfit/internal/domain/geometry"
	"cropfit/internal/domain/sizes"
)

func linkFixtures(t *testing.T) (main, square Thumb, squareSize sizes.Size) {
	t.Helper()
	mainBox := geometry.Box{X1: 100, Y1: 50, X2: 900, Y2: 650}
	squareSize, _, err := sizes.Find(testSizes(), "main_square")
	require.NoError(t, err)

	squareBox := mustFit(t, "main_square", mainBox)
	main = Thumb{Name: "main", Crop: mainBox, Box: mainBox, Width: 800, Height: 600}
	square = Thumb{Name: "main_square", Reference: "main", Crop: mainBox, Box: squareBox, Width: 200, Height: 200}
	return main, square, squareSize
}

func TestUnsetAsAutoCrop(t *testing.T) {
	main, square, size := linkFixtures(t)

	unlinked, err := UnsetAsAutoCrop(context.Background(), DirectFitter{}, square, main, size, testBounds)
	require.NoError(t, err)

	assert.False(t, unlinked.IsAuto())
	assert.Equal(t, square.Box, unlinked.Box)
	assert.Equal(t, unlinked.Box, unlinked.Crop)
	assert.False(t, unlinked.Changed)
}

func TestUnsetAsAutoCrop_Errors(t *testing.T) {
	main, square, size := linkFixtures(t)
	ctx := context.Background()

	_, err := UnsetAsAutoCrop(ctx, DirectFitter{}, main, square, size, testBounds)
	assert.ErrorIs(t, err, ErrNotAutoCrop)

	other := Thumb{Name: "banner", Box: testBounds}
	_, err = UnsetAsAutoCrop(ctx, DirectFitter{}, square, other, size, testBounds)
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestSetAsAutoCrop(t *testing.T) {
	main, square, size := linkFixtures(t)
	ctx := context.Background()

	t.Run("matching box relinks", func(t *testing.T) {
		independent := square
		independent.Reference = ""
		independent.Crop = square.Box

		linked, err := SetAsAutoCrop(ctx, DirectFitter{}, independent, main, nil, size, testBounds, false)
		require.NoError(t, err)
		assert.Equal(t, "main", linked.Reference)
		assert.Equal(t, main.Box, linked.Crop)
		assert.Equal(t, square.Box, linked.Box)
		assert.False(t, linked.Changed)
	})

	t.Run("moved crop is refused", func(t *testing.T) {
		manual := Thumb{Name: "main_square", Crop: geometry.Box{X2: 300, Y2: 300}, Box: geometry.Box{X2: 300, Y2: 300}, Width: 200, Height: 200}

		_, err := SetAsAutoCrop(ctx, DirectFitter{}, manual, main, nil, size, testBounds, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRelinkConflict)

		var conflict *RelinkConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, manual.Box, conflict.Current)
		assert.Equal(t, square.Box, conflict.Proposed)
	})

	t.Run("force overrides the conflict", func(t *testing.T) {
		manual := Thumb{Name: "main_square", Crop: geometry.Box{X2: 300, Y2: 300}, Box: geometry.Box{X2: 300, Y2: 300}, Width: 200, Height: 200}

		linked, err := SetAsAutoCrop(ctx, DirectFitter{}, manual, main, nil, size, testBounds, true)
		require.NoError(t, err)
		assert.Equal(t, square.Box, linked.Box)
		assert.True(t, linked.Changed)
	})

	t.Run("reference with its own reference", func(t *testing.T) {
		derived := Thumb{Name: "main_wide", Reference: "main", Box: main.Box}
		_, err := SetAsAutoCrop(ctx, DirectFitter{}, square, derived, nil, size, testBounds, true)
		assert.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("thumb that other thumbs derive from", func(t *testing.T) {
		banner := Thumb{Name: "banner", Crop: testBounds, Box: testBounds, Width: 600, Height: 400}
		stored := []Thumb{main, square, banner}
		mainSize, _, err := sizes.Find(testSizes(), "main")
		require.NoError(t, err)

		_, err = SetAsAutoCrop(ctx, DirectFitter{}, main, banner, stored, mainSize, testBounds, true)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvariantViolation)

		var violation *InvariantViolationError
		require.ErrorAs(t, err, &violation)
		assert.Equal(t, "main", violation.Name)
		assert.Contains(t, violation.Message, "main_square")
	})

	t.Run("stored siblings without dependents", func(t *testing.T) {
		independent := square
		independent.Reference = ""
		independent.Crop = square.Box

		linked, err := SetAsAutoCrop(ctx, DirectFitter{}, independent, main, []Thumb{main, independent}, size, testBounds, false)
		require.NoError(t, err)
		assert.Equal(t, "main", linked.Reference)
	})

	t.Run("self reference", func(t *testing.T) {
		_, err := SetAsAutoCrop(ctx, DirectFitter{}, main, main, nil, size, testBounds, true)
		assert.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("reference too small for the size", func(t *testing.T) {
		tiny := Thumb{Name: "main", Box: geometry.Box{X2: 50, Y2: 50}}
		bounds := geometry.Bounds(100, 100)
		_, err := SetAsAutoCrop(ctx, DirectFitter{}, square, tiny, nil, size, bounds, true)
		assert.ErrorIs(t, err, sizes.ErrResizeTooSmall)
	})
}
