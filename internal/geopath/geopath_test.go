package geopath

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/wagemap/internal/projection"
)

func identityGen() Generator {
	return Generator{Projection: projection.Identity(), Precision: -1}
}

func square(x0, y0, size float64) [][]geom.Coord {
	return [][]geom.Coord{{
		{x0, y0}, {x0 + size, y0}, {x0 + size, y0 + size}, {x0, y0 + size}, {x0, y0},
	}}
}

func TestPath_PolygonDropsClosingPoint(t *testing.T) {
	p := geom.NewPolygon(geom.XY).MustSetCoords(square(0, 0, 1))
	assert.Equal(t, "M0,0L1,0L1,1L0,1Z", identityGen().Path(p))
}

func TestPath_PolygonWithHole(t *testing.T) {
	rings := append(square(0, 0, 4), square(1, 1, 1)[0])
	p := geom.NewPolygon(geom.XY).MustSetCoords(rings)
	assert.Equal(t, "M0,0L4,0L4,4L0,4ZM1,1L2,1L2,2L1,2Z", identityGen().Path(p))
}

func TestPath_LineStringStaysOpen(t *testing.T) {
	ls := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0, 0}, {1, 2}, {0, 0}})
	assert.Equal(t, "M0,0L1,2L0,0", identityGen().Path(ls))
}

func TestPath_Point(t *testing.T) {
	gen := identityGen()
	gen.PointRadius = 1
	pt := geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{2, 3})
	assert.Equal(t, "M2,3m0,1a1,1 0 1,1 0,-2a1,1 0 1,1 0,2z", gen.Path(pt))
}

func TestPath_DefaultPointRadius(t *testing.T) {
	pt := geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{0, 0})
	assert.Contains(t, identityGen().Path(pt), "a4.5,4.5")
}

func TestPath_Precision(t *testing.T) {
	ls := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0.123456, -0.0001}, {1.98765, 2}})
	gen := Generator{Projection: projection.Identity(), Precision: 2}
	assert.Equal(t, "M0.12,0L1.99,2", gen.Path(ls))
}

func TestPath_NilAndEmpty(t *testing.T) {
	gen := identityGen()
	assert.Equal(t, "", gen.Path(nil))
	assert.Equal(t, "", gen.Path(geom.NewPointEmpty(geom.XY)))
	assert.Equal(t, "", gen.Path(geom.NewMultiPolygon(geom.XY)))
}

func TestPath_GeometryCollection(t *testing.T) {
	gc := geom.NewGeometryCollection()
	require.NoError(t, gc.Push(
		geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0, 0}, {1, 1}}),
		geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{2, 2}, {3, 3}}),
	))
	assert.Equal(t, "M0,0L1,1M2,2L3,3", identityGen().Path(gc))
}

func TestPath_CompositeSkipsUnprojectableParts(t *testing.T) {
	gen := Generator{Projection: projection.AlbersUSA(), Precision: 1}
	paris := geom.NewPolygon(geom.XY).MustSetCoords(square(2, 48, 1))
	assert.Equal(t, "", gen.Path(paris))

	kansas := geom.NewPolygon(geom.XY).MustSetCoords(square(-98, 38, 1))
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(paris))
	require.NoError(t, mp.Push(kansas))
	out := gen.Path(mp)
	assert.Equal(t, 1, strings.Count(out, "M"))
	assert.True(t, strings.HasSuffix(out, "Z"))
}

func TestPath_AlaskaRingUsesInset(t *testing.T) {
	proj := projection.AlbersUSA()
	gen := Generator{Projection: proj, Precision: -1}
	ls := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{-149.9, 61.2}, {-149, 61}})
	out := gen.Path(ls)

	x, y, ok := proj.Project(-149.9, 61.2)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(out, "M"+gen.Num(x)+","+gen.Num(y)+"L"))
}

func TestGraticule(t *testing.T) {
	g := Graticule()
	// 4 major meridians, the equator, 32 minor meridians and 16 minor parallels.
	require.Equal(t, 53, g.NumLineStrings())

	first := g.LineString(0).Coords()
	assert.Equal(t, -180.0, first[0][0])
	assert.InDelta(t, -90, first[0][1], 1e-5)
	assert.InDelta(t, 90, first[len(first)-1][1], 1e-5)

	equator := g.LineString(4).Coords()
	assert.Equal(t, 0.0, equator[0][1])
	assert.Equal(t, -180.0, equator[0][0])
	assert.Equal(t, 180.0, equator[len(equator)-1][0])
	assert.Len(t, equator, 145)

	minor := g.LineString(5).Coords()
	assert.Equal(t, -170.0, minor[0][0])
	assert.InDelta(t, -80, minor[0][1], 1e-5)
	assert.InDelta(t, 80, minor[len(minor)-1][1], 1e-5)
}

func TestCentroid(t *testing.T) {
	sq := geom.NewPolygon(geom.XY).MustSetCoords(square(0, 0, 2))
	x, y, ok := Centroid(sq)
	require.True(t, ok)
	assert.InDelta(t, 1, x, 1e-9)
	assert.InDelta(t, 1, y, 1e-9)

	holed := geom.NewPolygon(geom.XY).MustSetCoords(append(square(0, 0, 4), square(0, 0, 2)[0]))
	x, y, ok = Centroid(holed)
	require.True(t, ok)
	assert.InDelta(t, 28.0/12, x, 1e-9)
	assert.InDelta(t, 28.0/12, y, 1e-9)

	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(geom.NewPolygon(geom.XY).MustSetCoords(square(0, 0, 1))))
	require.NoError(t, mp.Push(geom.NewPolygon(geom.XY).MustSetCoords(square(10, 0, 1))))
	x, _, ok = Centroid(mp)
	require.True(t, ok)
	assert.InDelta(t, 5.5, x, 1e-9)
}

func TestCentroid_Fallbacks(t *testing.T) {
	ls := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0, 0}, {2, 0}})
	x, y, ok := Centroid(ls)
	require.True(t, ok)
	assert.InDelta(t, 1, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)

	pts := geom.NewMultiPoint(geom.XY).MustSetCoords([]geom.Coord{{0, 0}, {4, 2}})
	x, y, ok = Centroid(pts)
	require.True(t, ok)
	assert.InDelta(t, 2, x, 1e-9)
	assert.InDelta(t, 1, y, 1e-9)

	_, _, ok = Centroid(nil)
	assert.False(t, ok)
	_, _, ok = Centroid(geom.NewMultiPolygon(geom.XY))
	assert.False(t, ok)
}
