package geo

import (
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadShapefile reads a shapefile into a Collection named after the file.
// DBF attributes become properties; idField (case-insensitive) becomes the
// feature ID. Null and unsupported shapes are skipped.
func LoadShapefile(shpPath, name, idField string) (*Collection, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	if name == "" {
		name = strings.TrimSuffix(filepath.Base(shpPath), filepath.Ext(shpPath))
	}

	fields := reader.Fields()
	names := make([]string, len(fields))
	idIdx := -1
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(names[i], idField) {
			idIdx = i
		}
	}
	if idField != "" && idIdx < 0 {
		return nil, eris.Errorf("geo: shapefile %s has no %s field", shpPath, idField)
	}

	coll := &Collection{Name: name}
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(names))
		for i, n := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				props[n] = val
			}
		}

		var id string
		if idIdx >= 0 {
			id = strings.TrimSpace(strings.TrimRight(reader.Attribute(idIdx), "\x00"))
		}

		coll.Features = append(coll.Features, Feature{ID: id, Properties: props, Geometry: g})
	}

	if skipped > 0 {
		zap.L().Debug("geo: skipped shapefile records",
			zap.String("layer", name),
			zap.Int("skipped", skipped),
		)
	}

	return coll, nil
}

// shapeToGeom converts a go-shp shape to a go-geom geometry.
// Returns nil for unsupported or empty shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})

	case *shp.MultiPoint:
		if len(s.Points) == 0 {
			return nil
		}
		flat := make([]float64, 0, len(s.Points)*2)
		for _, p := range s.Points {
			flat = append(flat, p.X, p.Y)
		}
		return geom.NewMultiPointFlat(geom.XY, flat)

	case *shp.PolyLine:
		return polyLineToMultiLineString(s)

	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	}
	return nil
}

// partRanges returns the [start, end) point ranges of each shapefile part.
func partRanges(parts []int32, numParts int32, numPoints int) [][2]int {
	ranges := make([][2]int, 0, numParts)
	for i := int32(0); i < numParts; i++ {
		start := int(parts[i])
		end := numPoints
		if i+1 < numParts {
			end = int(parts[i+1])
		}
		if start < 0 || end > numPoints || start >= end {
			continue
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for _, r := range partRanges(pl.Parts, pl.NumParts, len(pl.Points)) {
		ls := geom.NewLineStringFlat(geom.XY, flatPoints(pl.Points[r[0]:r[1]]))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("geo: skipping malformed linestring part", zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Shapefile outer rings wind clockwise and holes counter-clockwise; each
// hole is attached to the outer ring that precedes it.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Error(err))
		}
		current = nil
	}

	for _, r := range partRanges(p.Parts, p.NumParts, len(p.Points)) {
		flat := flatPoints(p.Points[r[0]:r[1]])
		ring := geom.NewLinearRingFlat(geom.XY, flat)
		hole := signedArea(flat) > 0

		if !hole || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("geo: skipping malformed polygon ring", zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func flatPoints(pts []shp.Point) []float64 {
	flat := make([]float64, 0, len(pts)*2)
	for _, pt := range pts {
		flat = append(flat, pt.X, pt.Y)
	}
	return flat
}

// signedArea is the shoelace area of a flat XY ring; positive when the ring
// winds counter-clockwise.
func signedArea(flat []float64) float64 {
	n := len(flat) / 2
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}
