package sizes

import (
	"encoding/json"
	"fmt"
)

// TypeTag identifies a serialized Size inside larger JSON documents
const TypeTag = "Size"

type sizeJSON struct {
	Type      string     `json:"__type__"`
	Name      string     `json:"name"`
	Label     string     `json:"label,omitempty"`
	Width     int        `json:"w,omitempty"`
	Height    int        `json:"h,omitempty"`
	MinWidth  int        `json:"min_w,omitempty"`
	MinHeight int        `json:"min_h,omitempty"`
	MaxWidth  int        `json:"max_w,omitempty"`
	MaxHeight int        `json:"max_h,omitempty"`
	Retina    bool       `json:"retina"`
	Auto      []sizeJSON `json:"auto,omitempty"`
	Required  *bool      `json:"required,omitempty"`
}

func toJSON(s Size) sizeJSON {
	required := s.Required
	out := sizeJSON{
		Type:      TypeTag,
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
		out.Auto = append(out.Auto, toJSON(child))
	}
	return out
}

func (j sizeJSON) definition() (Definition, error) {
	if j.Type != TypeTag {
		return Definition{}, fmt.Errorf("%w: unexpected __type__ %q for size %q", ErrConfiguration, j.Type, j.Name)
	}
	def := Definition{
		Name:      j.Name,
		Label:     j.Label,
		Width:     j.Width,
		Height:    j.Height,
		MinWidth:  j.MinWidth,
		MinHeight: j.MinHeight,
		MaxWidth:  j.MaxWidth,
		MaxHeight: j.MaxHeight,
		Retina:    j.Retina,
		Required:  j.Required,
	}
	for _, child := range j.Auto {
		childDef, err := child.definition()
		if err != nil {
			return Definition{}, err
		}
		def.Auto = append(def.Auto, childDef)
	}
	return def, nil
}

// MarshalJSON encodes the size with its "__type__" discriminator
func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal(toJSON(s))
}

// UnmarshalJSON decodes a tagged size and validates it as New does
func (s *Size) UnmarshalJSON(data []byte) error {
	var raw sizeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode size: %w", err)
	}
	def, err := raw.definition()
	if err != nil {
		return err
	}
	size, err := New(def)
	if err != nil {
		return err
	}
	*s = size
	return nil
}
