// Package geometry holds the rectangle value type and the best-fit crop algorithm
package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// Box is an axis-aligned rectangle in source image pixel coordinates.
// Boxes are plain values: copy and compare them with ==.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Domain errors
var (
	ErrInvalidBox    = errors.New("invalid box")
	ErrDegenerateBox = errors.New("degenerate box")
	ErrInvalidTarget = errors.New("invalid fit target")
)

// DegenerateAspectRatio is returned by AspectRatio for boxes with zero height
const DegenerateAspectRatio = 1.0

// NewBox creates a box, rejecting inverted or non-finite coordinates
func NewBox(x1, y1, x2, y2 float64) (Box, error) {
	b := Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
	if err := b.Validate(); err != nil {
		return Box{}, err
	}
	return b, nil
}

// Bounds returns the box covering a whole w x h image
func Bounds(w, h int) Box {
	return Box{X2: float64(w), Y2: float64(h)}
}

// Validate checks the x1<=x2, y1<=y2 invariant
func (b Box) Validate() error {
	for _, v := range b.AsTuple() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate in %s", ErrInvalidBox, b)
		}
	}
	if b.X1 > b.X2 || b.Y1 > b.Y2 {
		return fmt.Errorf("%w: inverted coordinates %s", ErrInvalidBox, b)
	}
	return nil
}

func (b Box) Width() float64 {
	return b.X2 - b.X1
}

func (b Box) Height() float64 {
	return b.Y2 - b.Y1
}

// AspectRatio returns width/height, or DegenerateAspectRatio when the box has no height
func (b Box) AspectRatio() float64 {
	if b.Height() == 0 {
		return DegenerateAspectRatio
	}
	return b.Width() / b.Height()
}

// Midpoint returns the center of the box
func (b Box) Midpoint() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

func (b Box) AsTuple() [4]float64 {
	return [4]float64{b.X1, b.Y1, b.X2, b.Y2}
}

// IsEmpty reports whether the box has no area
func (b Box) IsEmpty() bool {
	return b.Width() <= 0 || b.Height() <= 0
}

// Contains reports whether other lies entirely inside b
func (b Box) Contains(other Box) bool {
	return other.X1 >= b.X1 && other.Y1 >= b.Y1 && other.X2 <= b.X2 && other.Y2 <= b.Y2
}

// Rect converts the box to an image.Rectangle for pixel extraction
func (b Box) Rect() image.Rectangle {
	r := b.Round()
	return image.Rect(int(r.X1), int(r.Y1), int(r.X2), int(r.Y2))
}

// Round rounds every coordinate half to even
func (b Box) Round() Box {
	return Box{
		X1: math.RoundToEven(b.X1),
		Y1: math.RoundToEven(b.Y1),
		X2: math.RoundToEven(b.X2),
		Y2: math.RoundToEven(b.Y2),
	}
}

// Near reports whether every coordinate of b is within tolerance of other
func (b Box) Near(other Box, tolerance float64) bool {
	p, q := b.AsTuple(), other.AsTuple()
	for i := range p {
		if math.Abs(p[i]-q[i]) > tolerance {
			return false
		}
	}
	return true
}

func (b Box) String() string {
	return fmt.Sprintf("(%g,%g,%g,%g)", b.X1, b.Y1, b.X2, b.Y2)
}
