// Package topojson decodes TopoJSON topologies into geo features.
//
// A topology stores every shared boundary once as an arc; geometries refer to
// arcs by index, with ^i (encoded as a negative index) meaning arc i reversed.
// Quantized topologies delta-encode arc positions on an integer grid that the
// transform maps back to lon/lat.
package topojson

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/wagemap/internal/geo"
)

// Topology is a decoded TopoJSON document. Arc decoding is cached on first
// conversion, so a Topology must not be converted from several goroutines.
type Topology struct {
	Type      string               `json:"type"`
	BBox      []float64            `json:"bbox,omitempty"`
	Transform *Transform           `json:"transform,omitempty"`
	Arcs      [][][]float64        `json:"arcs"`
	Objects   map[string]*Geometry `json:"objects"`

	decoded [][]float64 // absolute flat XY per arc, filled lazily
}

// Transform maps quantized positions to lon/lat.
type Transform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

// Geometry is a TopoJSON geometry object. Arcs and Coordinates nest to a
// depth that depends on Type, so they are kept raw until conversion.
type Geometry struct {
	Type        string          `json:"type"`
	ID          json.RawMessage `json:"id,omitempty"`
	Properties  map[string]any  `json:"properties,omitempty"`
	Arcs        json.RawMessage `json:"arcs,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometries  []*Geometry     `json:"geometries,omitempty"`
}

// ErrUnknownObject is returned when a named object is not in the topology.
var ErrUnknownObject = eris.New("topojson: unknown object")

// Validate checks the document type and that it carries objects.
func (t *Topology) Validate() error {
	if t.Type != "Topology" {
		return eris.Errorf("topojson: expected type Topology, got %q", t.Type)
	}
	if len(t.Objects) == 0 {
		return eris.New("topojson: topology has no objects")
	}
	return nil
}

// ObjectNames returns the topology's object names in sorted order.
func (t *Topology) ObjectNames() []string {
	names := make([]string, 0, len(t.Objects))
	for name := range t.Objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Features converts every object in the topology.
func Features(t *Topology) (map[string]*geo.Collection, error) {
	out := make(map[string]*geo.Collection, len(t.Objects))
	for _, name := range t.ObjectNames() {
		coll, err := Feature(t, name)
		if err != nil {
			return nil, err
		}
		out[name] = coll
	}
	return out, nil
}

// Feature converts the named object to a collection. A GeometryCollection
// yields one feature per member; any other object yields a single feature.
func Feature(t *Topology, name string) (*geo.Collection, error) {
	obj, ok := t.Objects[name]
	if !ok || obj == nil {
		return nil, eris.Wrapf(ErrUnknownObject, "topojson: object %q", name)
	}

	coll := &geo.Collection{Name: name}
	members := []*Geometry{obj}
	if obj.Type == "GeometryCollection" {
		members = obj.Geometries
	}

	for i, m := range members {
		g, err := t.geometry(m)
		if err != nil {
			return nil, eris.Wrapf(err, "topojson: object %q geometry %d", name, i)
		}
		id, err := decodeID(m.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "topojson: object %q geometry %d", name, i)
		}
		props := m.Properties
		if props == nil {
			props = map[string]any{}
		}
		coll.Features = append(coll.Features, geo.Feature{ID: id, Properties: props, Geometry: g})
	}

	return coll, nil
}

// decodeID renders string IDs verbatim and numeric IDs without exponent.
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", eris.Wrap(err, "decode id")
		}
		return s, nil
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return "", eris.Wrapf(err, "decode id %s", raw)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// geometry converts a single (possibly nested) TopoJSON geometry. Null
// geometries return nil.
func (t *Topology) geometry(g *Geometry) (geom.T, error) {
	if g == nil {
		return nil, nil
	}

	switch g.Type {
	case "", "null":
		return nil, nil

	case "Point":
		var c []float64
		if err := json.Unmarshal(g.Coordinates, &c); err != nil {
			return nil, eris.Wrap(err, "decode Point coordinates")
		}
		if len(c) < 2 {
			return nil, eris.New("Point needs two coordinates")
		}
		x, y := t.point(c)
		return geom.NewPointFlat(geom.XY, []float64{x, y}), nil

	case "MultiPoint":
		var cs [][]float64
		if err := json.Unmarshal(g.Coordinates, &cs); err != nil {
			return nil, eris.Wrap(err, "decode MultiPoint coordinates")
		}
		flat := make([]float64, 0, len(cs)*2)
		for _, c := range cs {
			if len(c) < 2 {
				return nil, eris.New("MultiPoint position needs two coordinates")
			}
			x, y := t.point(c)
			flat = append(flat, x, y)
		}
		return geom.NewMultiPointFlat(geom.XY, flat), nil

	case "LineString":
		var arcs []int
		if err := json.Unmarshal(g.Arcs, &arcs); err != nil {
			return nil, eris.Wrap(err, "decode LineString arcs")
		}
		flat, err := t.line(arcs)
		if err != nil {
			return nil, err
		}
		return geom.NewLineStringFlat(geom.XY, flat), nil

	case "MultiLineString":
		var lines [][]int
		if err := json.Unmarshal(g.Arcs, &lines); err != nil {
			return nil, eris.Wrap(err, "decode MultiLineString arcs")
		}
		flat, ends, err := t.lines(lines, t.line)
		if err != nil {
			return nil, err
		}
		return geom.NewMultiLineStringFlat(geom.XY, flat, ends), nil

	case "Polygon":
		var rings [][]int
		if err := json.Unmarshal(g.Arcs, &rings); err != nil {
			return nil, eris.Wrap(err, "decode Polygon arcs")
		}
		flat, ends, err := t.lines(rings, t.ring)
		if err != nil {
			return nil, err
		}
		return geom.NewPolygonFlat(geom.XY, flat, ends), nil

	case "MultiPolygon":
		var polys [][][]int
		if err := json.Unmarshal(g.Arcs, &polys); err != nil {
			return nil, eris.Wrap(err, "decode MultiPolygon arcs")
		}
		var flat []float64
		endss := make([][]int, 0, len(polys))
		for _, rings := range polys {
			pflat, pends, err := t.lines(rings, t.ring)
			if err != nil {
				return nil, err
			}
			offset := len(flat)
			for i := range pends {
				pends[i] += offset
			}
			flat = append(flat, pflat...)
			endss = append(endss, pends)
		}
		return geom.NewMultiPolygonFlat(geom.XY, flat, endss), nil

	case "GeometryCollection":
		gc := geom.NewGeometryCollection()
		for _, member := range g.Geometries {
			mg, err := t.geometry(member)
			if err != nil {
				return nil, err
			}
			if mg == nil {
				continue
			}
			if err := gc.Push(mg); err != nil {
				return nil, eris.Wrap(err, "push collection member")
			}
		}
		return gc, nil
	}

	return nil, eris.Errorf("unknown geometry type %q", g.Type)
}

// point maps a (possibly quantized) position to lon/lat.
func (t *Topology) point(c []float64) (float64, float64) {
	if t.Transform == nil {
		return c[0], c[1]
	}
	return c[0]*t.Transform.Scale[0] + t.Transform.Translate[0],
		c[1]*t.Transform.Scale[1] + t.Transform.Translate[1]
}

// arc returns the absolute flat coordinates of arc i, decoding every arc on
// first use. Quantized arcs are delta-encoded from the arc's first position.
func (t *Topology) arc(i int) ([]float64, error) {
	if t.decoded == nil {
		decoded := make([][]float64, len(t.Arcs))
		for ai, a := range t.Arcs {
			flat := make([]float64, 0, len(a)*2)
			var x, y float64
			for _, p := range a {
				if len(p) < 2 {
					return nil, eris.Errorf("arc %d has a short position", ai)
				}
				if t.Transform != nil {
					x += p[0]
					y += p[1]
					flat = append(flat,
						x*t.Transform.Scale[0]+t.Transform.Translate[0],
						y*t.Transform.Scale[1]+t.Transform.Translate[1])
				} else {
					flat = append(flat, p[0], p[1])
				}
			}
			decoded[ai] = flat
		}
		t.decoded = decoded
	}

	if i < 0 || i >= len(t.decoded) {
		return nil, eris.Errorf("arc index %d out of range (%d arcs)", i, len(t.decoded))
	}
	return t.decoded[i], nil
}

// line stitches arcs into one flat coordinate run. Consecutive arcs share an
// endpoint, so the junction is kept once.
func (t *Topology) line(arcs []int) ([]float64, error) {
	var flat []float64
	for _, idx := range arcs {
		reversed := idx < 0
		if reversed {
			idx = ^idx
		}
		a, err := t.arc(idx)
		if err != nil {
			return nil, err
		}
		if len(flat) >= 2 {
			flat = flat[:len(flat)-2]
		}
		start := len(flat)
		flat = append(flat, a...)
		if reversed {
			reversePairs(flat[start:])
		}
	}
	if len(flat) == 2 {
		flat = append(flat, flat[0], flat[1])
	}
	return flat, nil
}

// ring is a line padded to the four positions a closed ring needs.
func (t *Topology) ring(arcs []int) ([]float64, error) {
	flat, err := t.line(arcs)
	if err != nil {
		return nil, err
	}
	for len(flat) > 0 && len(flat) < 8 {
		flat = append(flat, flat[0], flat[1])
	}
	return flat, nil
}

// lines converts several arc lists with fn, returning go-geom flat coords and
// end offsets.
func (t *Topology) lines(parts [][]int, fn func([]int) ([]float64, error)) ([]float64, []int, error) {
	var flat []float64
	ends := make([]int, 0, len(parts))
	for _, p := range parts {
		f, err := fn(p)
		if err != nil {
			return nil, nil, err
		}
		flat = append(flat, f...)
		ends = append(ends, len(flat))
	}
	return flat, ends, nil
}

func reversePairs(flat []float64) {
	n := len(flat) / 2
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		flat[2*i], flat[2*j] = flat[2*j], flat[2*i]
		flat[2*i+1], flat[2*j+1] = flat[2*j+1], flat[2*i+1]
	}
}
