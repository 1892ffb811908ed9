package geometry

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBox(t *testing.T) {
	tests := []struct {
		name          string
		coords        [4]float64
		expectedError error
	}{
		{"valid box", [4]float64{0, 0, 100, 50}, nil},
		{"zero area box", [4]float64{10, 10, 10, 10}, nil},
		{"inverted x", [4]float64{100, 0, 0, 50}, ErrInvalidBox},
		{"inverted y", [4]float64{0, 50, 100, 0}, ErrInvalidBox},
		{"NaN coordinate", [4]float64{math.NaN(), 0, 100, 50}, ErrInvalidBox},
		{"infinite coordinate", [4]float64{0, 0, math.Inf(1), 50}, ErrInvalidBox},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, err := NewBox(tt.coords[0], tt.coords[1], tt.coords[2], tt.coords[3])
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Equal(t, Box{}, box)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.coords, box.AsTuple())
		})
	}
}

func TestBox_Dimensions(t *testing.T) {
	box := Box{X1: 10, Y1: 20, X2: 110, Y2: 70}

	assert.Equal(t, 100.0, box.Width())
	assert.Equal(t, 50.0, box.Height())
	assert.Equal(t, 2.0, box.AspectRatio())

	midX, midY := box.Midpoint()
	assert.Equal(t, 60.0, midX)
	assert.Equal(t, 45.0, midY)
}

func TestBox_AspectRatio_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		box  Box
	}{
		{"zero height", Box{X1: 0, Y1: 10, X2: 100, Y2: 10}},
		{"zero box", Box{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, DegenerateAspectRatio, tt.box.AspectRatio())
			assert.True(t, tt.box.IsEmpty())
		})
	}
}

func TestBox_Contains(t *testing.T) {
	bounds := Bounds(800, 600)

	assert.True(t, bounds.Contains(Box{X1: 0, Y1: 0, X2: 800, Y2: 600}))
	assert.True(t, bounds.Contains(Box{X1: 100, Y1: 100, X2: 200, Y2: 200}))
	assert.False(t, bounds.Contains(Box{X1: -1, Y1: 0, X2: 200, Y2: 200}))
	assert.False(t, bounds.Contains(Box{X1: 0, Y1: 0, X2: 800, Y2: 601}))
}

func TestBox_Rect(t *testing.T) {
	box := Box{X1: 10.4, Y1: 20.5, X2: 110.6, Y2: 71.5}
	assert.Equal(t, image.Rect(10, 20, 111, 72), box.Rect())
}

func TestBox_Near(t *testing.T) {
	a := Box{X1: 10, Y1: 10, X2: 100, Y2: 100}

	assert.True(t, a.Near(a, 0))
	assert.True(t, a.Near(Box{X1: 11, Y1: 9, X2: 100, Y2: 101}, 1))
	assert.False(t, a.Near(Box{X1: 12, Y1: 10, X2: 100, Y2: 100}, 1))
}

func TestBox_String(t *testing.T) {
	assert.Equal(t, "(0,0,960,594)", Box{X2: 960, Y2: 594}.String())
}
