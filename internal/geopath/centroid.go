package geopath

import (
	"math"

	"github.com/twpayne/go-geom"
)

// centroidSum accumulates weighted positions per dimension: polygons by area,
// lines by length, points by count. The highest dimension present wins.
type centroidSum struct {
	area, ax, ay   float64
	length, lx, ly float64
	points, px, py float64
}

// Centroid returns the planar centroid of g in its own coordinate space.
// ok is false for empty geometries.
func Centroid(g geom.T) (x, y float64, ok bool) {
	if g == nil {
		return 0, 0, false
	}
	var s centroidSum
	s.add(g)

	switch {
	case s.area > 0:
		return s.ax / s.area, s.ay / s.area, true
	case s.length > 0:
		return s.lx / s.length, s.ly / s.length, true
	case s.points > 0:
		return s.px / s.points, s.py / s.points, true
	}
	return 0, 0, false
}

func (s *centroidSum) add(g geom.T) {
	switch t := g.(type) {
	case *geom.Point:
		if !t.Empty() {
			s.point(t.Coords())
		}
	case *geom.MultiPoint:
		for i := 0; i < t.NumPoints(); i++ {
			s.point(t.Point(i).Coords())
		}
	case *geom.LineString:
		s.line(t.Coords())
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			s.line(t.LineString(i).Coords())
		}
	case *geom.Polygon:
		s.polygon(t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			s.polygon(t.Polygon(i))
		}
	case *geom.GeometryCollection:
		for _, member := range t.Geoms() {
			s.add(member)
		}
	}
}

func (s *centroidSum) point(c geom.Coord) {
	s.points++
	s.px += c[0]
	s.py += c[1]
}

func (s *centroidSum) line(coords []geom.Coord) {
	for i := 1; i < len(coords); i++ {
		a, b := coords[i-1], coords[i]
		l := math.Hypot(b[0]-a[0], b[1]-a[1])
		s.length += l
		s.lx += l * (a[0] + b[0]) / 2
		s.ly += l * (a[1] + b[1]) / 2
	}
	for _, c := range coords {
		s.point(c)
	}
}

// polygon adds the outer ring's area and subtracts each hole's, regardless
// of winding.
func (s *centroidSum) polygon(p *geom.Polygon) {
	for i := 0; i < p.NumLinearRings(); i++ {
		coords := p.LinearRing(i).Coords()
		a, cx, cy := ringCentroid(coords)
		a = math.Abs(a)
		if i > 0 {
			a = -a
		}
		s.area += a
		s.ax += a * cx
		s.ay += a * cy
		s.line(coords)
	}
}

// ringCentroid returns the signed shoelace area and centroid of a ring.
func ringCentroid(coords []geom.Coord) (area, cx, cy float64) {
	n := len(coords)
	if n < 3 {
		return 0, 0, 0
	}
	var a, x, y float64
	for i := 0; i < n; i++ {
		p, q := coords[i], coords[(i+1)%n]
		cross := p[0]*q[1] - q[0]*p[1]
		a += cross
		x += (p[0] + q[0]) * cross
		y += (p[1] + q[1]) * cross
	}
	if a == 0 {
		return 0, 0, 0
	}
	return a / 2, x / (3 * a), y / (3 * a)
}
