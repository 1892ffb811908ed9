package sizes

import (
	"fmt"
	"iter"
	"slices"
)

// Flatten yields each size followed by its auto sizes, in declaration order.
// The sequence can be ranged over any number of times.
func Flatten(sizes []Size) iter.Seq[Size] {
	return func(yield func(Size) bool) {
		for _, size := range sizes {
			if !yield(size) {
				return
			}
			for _, child := range size.Auto {
				if !yield(child) {
					return
				}
			}
		}
	}
}

// Find looks a size up by name in the flattened tree. parent is the name of the
// size declaring it as auto, or empty for top-level sizes.
func Find(sizes []Size, name string) (size Size, parent string, err error) {
	for _, top := range sizes {
		if top.Name == name {
			return top, "", nil
		}
		for _, child := range top.Auto {
			if child.Name == name {
				return child, top.Name, nil
			}
		}
	}
	return Size{}, "", fmt.Errorf("%w: %s", ErrSizeNotFound, name)
}

// AspectRatios returns the distinct ratios, rounded to two decimals, of every
// size with both dimensions fixed, in first-seen order
func AspectRatios(sizes []Size) []float64 {
	var ratios []float64
	for size := range Flatten(sizes) {
		if !size.HasAspectRatio() {
			continue
		}
		ratio := roundRatio(size.Width, size.Height)
		if !slices.Contains(ratios, ratio) {
			ratios = append(ratios, ratio)
		}
	}
	return ratios
}

// roundRatio computes w/h rounded to two decimals, ties rounding down. Integer
// arithmetic keeps the tie-break exact.
func roundRatio(w, h int) float64 {
	scaled := w * 100
	q, r := scaled/h, scaled%h
	if 2*r > h {
		q++
	}
	return float64(q) / 100
}

// ValidateSingleAspectRatio fails when sizes sharing one crop disagree on ratio
func ValidateSingleAspectRatio(group string, sizes []Size) error {
	ratios := AspectRatios(sizes)
	if len(ratios) > 1 {
		return configError(group, "", "sizes sharing one crop must have one aspect ratio, found %v", ratios)
	}
	return nil
}

// MinRequiredDimensions returns the smallest image resolution that can serve
// every required size in the given groups, auto sizes included
func MinRequiredDimensions(groups ...[]Size) (int, int) {
	var minW, minH int
	for _, group := range groups {
		for size := range Flatten(group) {
			if !size.Required {
				continue
			}
			minW = max(minW, size.MinWidth)
			minH = max(minH, size.MinHeight)
		}
	}
	return minW, minH
}
