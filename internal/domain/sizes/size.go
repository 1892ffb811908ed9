// Package sizes models named thumbnail sizes, their auto-derived children and
// the configuration-time checks run over groups of sizes.
package sizes

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cropfit/internal/domain/geometry"
)

// RetinaSuffix is appended to the name of a size's 2x companion
const RetinaSuffix = "@2x"

// roundingSlack is the pixel tolerance allowed when comparing a fitted box
// against a size's minimum dimensions
const roundingSlack = 1

// Size describes one named target size. Sizes are built with New and must be
// treated as read-only afterwards.
type Size struct {
	Name      string
	Label     string
	Width     int
	Height    int
	MinWidth  int
	MinHeight int
	MaxWidth  int
	MaxHeight int
	Retina    bool
	Auto      []Size
	Required  bool
}

// Definition is the raw input for New. Zero dimensions mean "not set" and a nil
// Required means true.
type Definition struct {
	Name      string
	Label     string
	Width     int
	Height    int
	MinWidth  int
	MinHeight int
	MaxWidth  int
	MaxHeight int
	Retina    bool
	Auto      []Definition
	Required  *bool
}

// New normalizes and validates a size definition together with its auto children
func New(def Definition) (Size, error) {
	size, err := build(def, false)
	if err != nil {
		return Size{}, err
	}
	return size, nil
}

// MustNew is New for package-level size declarations
func MustNew(def Definition) Size {
	size, err := New(def)
	if err != nil {
		panic(err)
	}
	return size
}

func build(def Definition, child bool) (Size, error) {
	size := Size{
		Name:      strings.TrimSpace(def.Name),
		Label:     strings.TrimSpace(def.Label),
		Width:     def.Width,
		Height:    def.Height,
		MinWidth:  max(def.Width, def.MinWidth),
		MinHeight: max(def.Height, def.MinHeight),
		MaxWidth:  def.MaxWidth,
		MaxHeight: def.MaxHeight,
		Retina:    def.Retina,
		Required:  def.Required == nil || *def.Required,
	}
	if size.Label == "" {
		size.Label = defaultLabel(size.Name)
	}

	if err := size.validate(); err != nil {
		return Size{}, err
	}

	if len(def.Auto) > 0 {
		if child {
			return Size{}, configError(size.Name, "auto", "auto sizes cannot declare their own auto sizes")
		}
		size.Auto = make([]Size, 0, len(def.Auto))
		for _, childDef := range def.Auto {
			autoSize, err := build(childDef, true)
			if err != nil {
				return Size{}, err
			}
			size.Auto = append(size.Auto, autoSize)
		}
	}

	return size, nil
}

func (s Size) validate() error {
	if s.Name == "" {
		return configError(s.Name, "name", "name cannot be empty")
	}

	dims := []struct {
		field string
		value int
	}{
		{"w", s.Width},
		{"h", s.Height},
		{"min_w", s.MinWidth},
		{"min_h", s.MinHeight},
		{"max_w", s.MaxWidth},
		{"max_h", s.MaxHeight},
	}
	for _, d := range dims {
		if d.value < 0 {
			return configError(s.Name, d.field, "must not be negative, got %d", d.value)
		}
	}

	if s.MinWidth == 0 && s.MinHeight == 0 {
		return configError(s.Name, "", "at least one of w, h, min_w or min_h is required")
	}
	if s.MaxWidth > 0 && s.MaxWidth < s.MinWidth {
		return configError(s.Name, "max_w", "%d is below the minimum width %d", s.MaxWidth, s.MinWidth)
	}
	if s.MaxHeight > 0 && s.MaxHeight < s.MinHeight {
		return configError(s.Name, "max_h", "%d is below the minimum height %d", s.MaxHeight, s.MinHeight)
	}
	return nil
}

func defaultLabel(name string) string {
	words := strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return cases.Title(language.English).String(strings.Join(strings.Fields(words), " "))
}

// HasAspectRatio reports whether both width and height are fixed
func (s Size) HasAspectRatio() bool {
	return s.Width > 0 && s.Height > 0
}

// AspectRatio returns w/h for sizes with both dimensions fixed
func (s Size) AspectRatio() (float64, bool) {
	if !s.HasAspectRatio() {
		return 0, false
	}
	return float64(s.Width) / float64(s.Height), true
}

// Target returns the fitting constraints for this size. Width and height are
// only passed as a hard target when both are set; otherwise the aspect ratio is
// inherited from the crop region and only the minimums apply.
func (s Size) Target() geometry.Target {
	target := geometry.Target{
		MinWidth:  float64(s.MinWidth),
		MinHeight: float64(s.MinHeight),
	}
	if s.HasAspectRatio() {
		target.Width = float64(s.Width)
		target.Height = float64(s.Height)
	}
	return target
}

// FitToCrop fits this size to region within bounds. It fails with a
// ResizeTooSmallError when the image cannot provide the minimum dimensions.
func (s Size) FitToCrop(region, bounds geometry.Box) (geometry.Box, error) {
	fitted, err := geometry.BestFit(region, bounds, s.Target())
	if err != nil {
		return geometry.Box{}, err
	}
	if err := s.CheckResolution(fitted.Width(), fitted.Height()); err != nil {
		return geometry.Box{}, err
	}
	return fitted, nil
}

// CheckResolution verifies that a w x h source area is large enough for this size
func (s Size) CheckResolution(w, h float64) error {
	if w+roundingSlack < float64(s.MinWidth) || h+roundingSlack < float64(s.MinHeight) {
		return &ResizeTooSmallError{
			Size:           s.Name,
			RequiredWidth:  s.MinWidth,
			RequiredHeight: s.MinHeight,
			ActualWidth:    int(math.Round(w)),
			ActualHeight:   int(math.Round(h)),
		}
	}
	return nil
}

// OutputSize returns the pixel dimensions a thumbnail rendered from fitted should have
func (s Size) OutputSize(fitted geometry.Box) (int, int) {
	if s.HasAspectRatio() {
		return s.Width, s.Height
	}

	ratio := fitted.AspectRatio()
	switch {
	case s.Width > 0:
		h := clamp(int(math.Round(float64(s.Width)/ratio)), s.MinHeight, s.MaxHeight)
		return s.Width, h
	case s.Height > 0:
		w := clamp(int(math.Round(float64(s.Height)*ratio)), s.MinWidth, s.MaxWidth)
		return w, s.Height
	}

	w, h := fitted.Width(), fitted.Height()
	scale := 1.0
	if s.MaxWidth > 0 && w > float64(s.MaxWidth) {
		scale = float64(s.MaxWidth) / w
	}
	if s.MaxHeight > 0 && h*scale > float64(s.MaxHeight) {
		scale = float64(s.MaxHeight) / h
	}
	return int(math.Round(w * scale)), int(math.Round(h * scale))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		v = lo
	}
	if hi > 0 && v > hi {
		v = hi
	}
	return v
}

// RetinaVariant returns the optional 2x companion of a retina size
func (s Size) RetinaVariant() (Size, bool) {
	if !s.Retina {
		return Size{}, false
	}
	return Size{
		Name:      s.Name + RetinaSuffix,
		Label:     s.Label + " " + RetinaSuffix,
		Width:     s.Width * 2,
		Height:    s.Height * 2,
		MinWidth:  s.MinWidth * 2,
		MinHeight: s.MinHeight * 2,
		MaxWidth:  s.MaxWidth * 2,
		MaxHeight: s.MaxHeight * 2,
		Required:  false,
	}, true
}

// Definition converts the size back into the input accepted by New
func (s Size) Definition() Definition {
	required := s.Required
	def := Definition{
		Name:      s.Name,
		Label:     s.Label,
		Width:     s.Width,
		Height:    s.Height,
		MinWidth:  s.MinWidth,
		MinHeight: s.MinHeight,
		MaxWidth:  s.MaxWidth,
		MaxHeight: s.MaxHeight,
		Retina:    s.Retina,
		Required:  &required,
	}
	for _, child := range s.Auto {
		def.Auto = append(def.Auto, child.Definition())
	}
	return def
}
