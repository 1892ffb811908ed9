package sizes

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Group is a registered set of sizes for one kind of image. When SingleCrop is
// set the sizes share one crop widget and must agree on aspect ratio.
type Group struct {
	Name       string `json:"name"`
	SingleCrop bool   `json:"single_crop"`
	Sizes      []Size `json:"sizes"`
}

// NewGroup validates a size group at registration time
func NewGroup(name string, singleCrop bool, sizes []Size) (*Group, error) {
	if name == "" {
		return nil, configError(name, "group", "group name cannot be empty")
	}
	if len(sizes) == 0 {
		return nil, configError(name, "group", "group must declare at least one size")
	}

	seen := make(map[string]bool)
	for size := range Flatten(sizes) {
		if seen[size.Name] {
			return nil, configError(size.Name, "name", "duplicate size name in group %q", name)
		}
		seen[size.Name] = true
	}

	if singleCrop {
		if err := ValidateSingleAspectRatio(name, sizes); err != nil {
			return nil, err
		}
	}

	return &Group{Name: name, SingleCrop: singleCrop, Sizes: sizes}, nil
}

// MinRequiredDimensions returns the smallest acceptable upload for this group
func (g *Group) MinRequiredDimensions() (int, int) {
	return MinRequiredDimensions(g.Sizes)
}

// Find looks up a size of this group by name
func (g *Group) Find(name string) (Size, string, error) {
	return Find(g.Sizes, name)
}

// Registry holds the size groups known to the application
type Registry struct {
	groups map[string]*Group
}

// NewRegistry registers groups, rejecting duplicate group names
func NewRegistry(groups ...*Group) (*Registry, error) {
	r := &Registry{groups: make(map[string]*Group, len(groups))}
	for _, g := range groups {
		if _, exists := r.groups[g.Name]; exists {
			return nil, configError(g.Name, "group", "duplicate group name")
		}
		r.groups[g.Name] = g
	}
	return r, nil
}

// LoadRegistry decodes a sizes document of the form {"groups": [...]}
func LoadRegistry(data io.Reader) (*Registry, error) {
	var doc struct {
		Groups []Group `json:"groups"`
	}
	decoder := json.NewDecoder(data)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode sizes document: %w", err)
	}

	groups := make([]*Group, 0, len(doc.Groups))
	for _, raw := range doc.Groups {
		g, err := NewGroup(raw.Name, raw.SingleCrop, raw.Sizes)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return NewRegistry(groups...)
}

// Group returns the named group
func (r *Registry) Group(name string) (*Group, error) {
	g, ok := r.groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, name)
	}
	return g, nil
}

// Names returns the registered group names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MinRequiredDimensions returns the smallest acceptable upload across the named groups
func (r *Registry) MinRequiredDimensions(names ...string) (int, int, error) {
	sizeGroups := make([][]Size, 0, len(names))
	for _, name := range names {
		g, err := r.Group(name)
		if err != nil {
			return 0, 0, err
		}
		sizeGroups = append(sizeGroups, g.Sizes)
	}
	w, h := MinRequiredDimensions(sizeGroups...)
	return w, h, nil
}
