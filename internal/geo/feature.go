// Package geo holds the feature model shared by the boundary loaders and the
// map renderer. Geometries are go-geom values in lon/lat (EPSG:4326).
package geo

import (
	"github.com/twpayne/go-geom"
)

// Feature is a single boundary with its identifier and attributes.
type Feature struct {
	ID         string
	Properties map[string]any
	Geometry   geom.T
}

// Collection is a named layer of features, e.g. "counties" or "states".
type Collection struct {
	Name     string
	Features []Feature
}

// Len returns the number of features in the collection.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Features)
}

// Find returns the first feature with the given ID.
func (c *Collection) Find(id string) (Feature, bool) {
	if c == nil {
		return Feature{}, false
	}
	for _, f := range c.Features {
		if f.ID == id {
			return f, true
		}
	}
	return Feature{}, false
}

// Extent is a lon/lat bounding box.
type Extent struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Bounds returns the lon/lat extent of every geometry in the collection.
// The second result is false when the collection has no coordinates.
func Bounds(c *Collection) (Extent, bool) {
	var e Extent
	found := false
	if c == nil {
		return e, false
	}
	for _, f := range c.Features {
		if f.Geometry == nil || f.Geometry.Empty() {
			continue
		}
		b := f.Geometry.Bounds()
		if !found {
			e = Extent{MinLon: b.Min(0), MinLat: b.Min(1), MaxLon: b.Max(0), MaxLat: b.Max(1)}
			found = true
			continue
		}
		e.MinLon = min(e.MinLon, b.Min(0))
		e.MinLat = min(e.MinLat, b.Min(1))
		e.MaxLon = max(e.MaxLon, b.Max(0))
		e.MaxLat = max(e.MaxLat, b.Max(1))
	}
	return e, found
}
