// Package geopath turns projected geometries into SVG path data.
package geopath

import (
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/wagemap/internal/projection"
)

// DefaultPointRadius is used when a Generator has no point radius.
const DefaultPointRadius = 4.5

// Generator renders geometries through a projection.
type Generator struct {
	Projection  projection.Projection
	PointRadius float64
	// Precision is the number of decimals kept in coordinates; negative keeps
	// the shortest exact representation.
	Precision int
}

// Path returns SVG path data for g, or "" when nothing projects.
func (gen Generator) Path(g geom.T) string {
	if g == nil {
		return ""
	}
	var b strings.Builder
	gen.write(&b, g)
	return b.String()
}

func (gen Generator) write(b *strings.Builder, g geom.T) {
	switch t := g.(type) {
	case *geom.Point:
		if !t.Empty() {
			gen.point(b, t.Coords())
		}
	case *geom.MultiPoint:
		for i := 0; i < t.NumPoints(); i++ {
			gen.point(b, t.Point(i).Coords())
		}
	case *geom.LineString:
		gen.line(b, t.Coords(), false)
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			gen.line(b, t.LineString(i).Coords(), false)
		}
	case *geom.Polygon:
		gen.polygon(b, t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			gen.polygon(b, t.Polygon(i))
		}
	case *geom.GeometryCollection:
		for _, member := range t.Geoms() {
			gen.write(b, member)
		}
	}
}

func (gen Generator) polygon(b *strings.Builder, p *geom.Polygon) {
	for i := 0; i < p.NumLinearRings(); i++ {
		gen.line(b, p.LinearRing(i).Coords(), true)
	}
}

// projectionFor picks the projection for a part starting at c.
func (gen Generator) projectionFor(c geom.Coord) (projection.Projection, bool) {
	if sel, ok := gen.Projection.(projection.Selector); ok {
		return sel.Select(c[0], c[1])
	}
	return gen.Projection, true
}

func (gen Generator) point(b *strings.Builder, c geom.Coord) {
	proj, ok := gen.projectionFor(c)
	if !ok {
		return
	}
	x, y, ok := proj.Project(c[0], c[1])
	if !ok {
		return
	}
	r := gen.PointRadius
	if r <= 0 {
		r = DefaultPointRadius
	}
	rs := gen.Num(r)
	b.WriteString("M" + gen.Num(x) + "," + gen.Num(y))
	b.WriteString("m0," + rs + "a" + rs + "," + rs + " 0 1,1 0," + gen.Num(-2*r))
	b.WriteString("a" + rs + "," + rs + " 0 1,1 0," + gen.Num(2*r) + "z")
}

// line writes one run of coordinates. Closed rings drop the repeated closing
// position and end with Z.
func (gen Generator) line(b *strings.Builder, coords []geom.Coord, closed bool) {
	if len(coords) == 0 {
		return
	}
	if closed && len(coords) > 1 && coords[0].Equal(geom.XY, coords[len(coords)-1]) {
		coords = coords[:len(coords)-1]
	}
	proj, ok := gen.projectionFor(coords[0])
	if !ok {
		return
	}

	n := 0
	for _, c := range coords {
		x, y, ok := proj.Project(c[0], c[1])
		if !ok {
			continue
		}
		if n == 0 {
			b.WriteByte('M')
		} else {
			b.WriteByte('L')
		}
		b.WriteString(gen.Num(x))
		b.WriteByte(',')
		b.WriteString(gen.Num(y))
		n++
	}
	if closed && n > 0 {
		b.WriteByte('Z')
	}
}

// Num formats a coordinate at the generator's precision.
func (gen Generator) Num(v float64) string {
	if gen.Precision >= 0 {
		pow := math.Pow(10, float64(gen.Precision))
		v = math.Round(v*pow) / pow
	}
	if v == 0 {
		v = 0 // normalizes -0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
