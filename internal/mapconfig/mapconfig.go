// Package mapconfig describes map types: projection, sizing, layers and
// furniture. Named presets are built in and can be extended from YAML.
package mapconfig

import (
	"io"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/wagemap/internal/projection"
)

// MobileBreakpoint is the width below which a preset's mobile overrides apply.
const MobileBreakpoint = 600

// Preset names.
const (
	USACounties         = "usa-counties"
	USACountiesNational = "usa-counties-national"
)

// ErrUnknownPreset is returned by Configure for names not in the registry.
var ErrUnknownPreset = eris.New("unknown preset")

// Label is a fixed text label at a geographic position.
type Label struct {
	Lat   float64 `yaml:"lat"`
	Lng   float64 `yaml:"lng"`
	Text  string  `yaml:"label"`
	Class string  `yaml:"class"`
}

// TypeConfig is everything needed to draw one kind of map.
type TypeConfig struct {
	ProjectionName string      `yaml:"projection"`
	Center         *[2]float64 `yaml:"center,omitempty"`
	Rotate         *float64    `yaml:"rotate,omitempty"`
	Parallels      *[2]float64 `yaml:"parallels,omitempty"`
	// ScaleFactor multiplies the map width to give the projection scale.
	ScaleFactor float64 `yaml:"scale_factor"`
	// AspectRatio is width over height.
	AspectRatio float64 `yaml:"aspect_ratio"`
	// DotRadius multiplies the projection scale to give point radii.
	DotRadius  float64 `yaml:"dot_radius"`
	Graticules bool    `yaml:"graticules"`
	// ScaleBarDistance is the scale bar length in miles; zero draws none.
	ScaleBarDistance float64 `yaml:"scale_bar_distance"`
	// Paths lists the boundary layers drawn, bottom first.
	Paths []string `yaml:"paths"`
	// DataLayer is the layer classed by the wage series.
	DataLayer string  `yaml:"data_layer"`
	Labels    []Label `yaml:"labels"`
	// LabelLayer, when set, labels each feature of that layer at its
	// centroid with the LabelProperty value.
	LabelLayer    string `yaml:"label_layer"`
	LabelProperty string `yaml:"label_property"`

	// Mobile holds overrides applied below MobileBreakpoint. A zero Kind
	// means none.
	Mobile yaml.Node `yaml:"mobile,omitempty"`
}

// Base returns the defaults every preset extends.
func Base() TypeConfig {
	return TypeConfig{
		ProjectionName: projection.NameAlbersUSA,
		ScaleFactor:    1.1,
		AspectRatio:    4.0 / 3.0,
		DotRadius:      0.002,
		Paths:          []string{},
		DataLayer:      "counties",
		Labels:         []Label{},
	}
}

// Clone returns a deep copy.
func (c TypeConfig) Clone() TypeConfig {
	out := c
	if c.Center != nil {
		v := *c.Center
		out.Center = &v
	}
	if c.Rotate != nil {
		v := *c.Rotate
		out.Rotate = &v
	}
	if c.Parallels != nil {
		v := *c.Parallels
		out.Parallels = &v
	}
	out.Paths = append([]string{}, c.Paths...)
	out.Labels = append([]Label{}, c.Labels...)
	out.Mobile = cloneNode(c.Mobile)
	return out
}

func cloneNode(n yaml.Node) yaml.Node {
	out := n
	if n.Content != nil {
		out.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c := cloneNode(*child)
			out.Content[i] = &c
		}
	}
	return out
}

// Validate checks the config can be drawn.
func (c TypeConfig) Validate() error {
	if c.ScaleFactor <= 0 {
		return eris.Errorf("mapconfig: scale_factor must be positive, got %g", c.ScaleFactor)
	}
	if c.AspectRatio <= 0 {
		return eris.Errorf("mapconfig: aspect_ratio must be positive, got %g", c.AspectRatio)
	}
	if c.ScaleBarDistance < 0 {
		return eris.Errorf("mapconfig: scale_bar_distance must not be negative, got %g", c.ScaleBarDistance)
	}
	if len(c.Paths) == 0 {
		return eris.New("mapconfig: at least one path layer is required")
	}
	if _, err := c.Projection(); err != nil {
		return err
	}
	return nil
}

// HasLayer reports whether name is one of the drawn path layers.
func (c TypeConfig) HasLayer(name string) bool {
	for _, p := range c.Paths {
		if p == name {
			return true
		}
	}
	return false
}

// Projection builds the configured projection at its default scale and
// translate.
func (c TypeConfig) Projection() (projection.Projection, error) {
	p, err := projection.New(c.ProjectionName, projection.Options{
		Center:    c.Center,
		Parallels: c.Parallels,
		Rotate:    c.Rotate,
	})
	if err != nil {
		return nil, eris.Wrap(err, "mapconfig: projection")
	}
	return p, nil
}

func builtins() map[string]TypeConfig {
	counties := Base()
	counties.ProjectionName = projection.NameAlbers
	counties.Center = &[2]float64{20, 43.15}
	counties.ScaleFactor = 6.75
	counties.Paths = []string{"counties", "states"}

	national := Base()
	national.ProjectionName = projection.NameAlbersUSA
	national.ScaleFactor = 1.1
	national.Paths = []string{"counties", "states"}

	return map[string]TypeConfig{
		USACounties:         counties,
		USACountiesNational: national,
	}
}

// Registry holds named presets.
type Registry struct {
	presets map[string]TypeConfig
}

// NewRegistry returns a registry with the built-in presets.
func NewRegistry() *Registry {
	return &Registry{presets: builtins()}
}

// Names returns the preset names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is a known preset.
func (r *Registry) Has(name string) bool {
	_, ok := r.presets[name]
	return ok
}

// Configure returns a copy of the named preset sized for width. Mobile
// overrides are applied when width is below MobileBreakpoint.
func (r *Registry) Configure(name string, width int) (TypeConfig, error) {
	preset, ok := r.presets[name]
	if !ok {
		return TypeConfig{}, eris.Wrapf(ErrUnknownPreset, "mapconfig: %q", name)
	}
	out := preset.Clone()
	if width < MobileBreakpoint && preset.Mobile.Kind != 0 {
		if err := preset.Mobile.Decode(&out); err != nil {
			return TypeConfig{}, eris.Wrapf(err, "mapconfig: decode mobile overrides for %q", name)
		}
		out.Mobile = yaml.Node{}
	}
	return out, nil
}

// presetFile is the YAML layout of a presets file. Each preset extends the
// named preset, or Base when extends is empty.
type presetFile struct {
	Presets map[string]yaml.Node `yaml:"presets"`
}

type presetHeader struct {
	Extends string `yaml:"extends"`
}

// LoadPresets merges presets read from r into the registry. Presets may
// extend built-ins or each other; fields not set in YAML keep the extended
// preset's values.
func (r *Registry) LoadPresets(in io.Reader) error {
	var file presetFile
	if err := yaml.NewDecoder(in).Decode(&file); err != nil {
		if err == io.EOF {
			return nil
		}
		return eris.Wrap(err, "mapconfig: parse presets")
	}

	pending := make(map[string]yaml.Node, len(file.Presets))
	for name, node := range file.Presets {
		pending[name] = node
	}

	// Resolve in dependency order: a preset is ready once its parent is known.
	for len(pending) > 0 {
		progressed := false
		for _, name := range sortedKeys(pending) {
			node := pending[name]
			var hdr presetHeader
			if err := node.Decode(&hdr); err != nil {
				return eris.Wrapf(err, "mapconfig: decode preset %q", name)
			}
			parent := Base()
			if hdr.Extends != "" {
				if _, waiting := pending[hdr.Extends]; waiting && hdr.Extends != name {
					continue
				}
				p, ok := r.presets[hdr.Extends]
				if !ok {
					return eris.Errorf("mapconfig: preset %q extends unknown preset %q", name, hdr.Extends)
				}
				parent = p
			}
			cfg := parent.Clone()
			if err := node.Decode(&cfg); err != nil {
				return eris.Wrapf(err, "mapconfig: decode preset %q", name)
			}
			if err := cfg.Validate(); err != nil {
				return eris.Wrapf(err, "mapconfig: preset %q", name)
			}
			r.presets[name] = cfg
			delete(pending, name)
			progressed = true
		}
		if !progressed {
			return eris.Errorf("mapconfig: presets %v extend each other in a cycle", sortedKeys(pending))
		}
	}
	return nil
}

// LoadPresetsFile is LoadPresets for a file path.
func (r *Registry) LoadPresetsFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "mapconfig: open presets %s", path)
	}
	defer f.Close() //nolint
	return r.LoadPresets(f)
}

func sortedKeys(m map[string]yaml.Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
