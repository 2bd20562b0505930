package topojson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

const fixture = `{
  "type": "Topology",
  "transform": {"scale": [0.5, 2], "translate": [-100, 30]},
  "arcs": [
    [[0, 0], [1, 0], [0, 1]],
    [[1, 1], [-1, 0], [0, -1]]
  ],
  "objects": {
    "counties": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "Polygon", "id": "01001", "arcs": [[0, 1]], "properties": {"name": "Autauga"}},
        {"type": "Polygon", "id": 2158, "arcs": [[-2, -1]]},
        {"type": null, "id": 99}
      ]
    },
    "states": {
      "type": "GeometryCollection",
      "geometries": [
        {"type": "MultiPolygon", "id": "01", "arcs": [[[0, 1]]]}
      ]
    },
    "capital": {"type": "Point", "coordinates": [2, 3]},
    "border": {"type": "LineString", "arcs": [0]}
  }
}`

func decodeFixture(t *testing.T) *Topology {
	t.Helper()
	var topo Topology
	require.NoError(t, json.Unmarshal([]byte(fixture), &topo))
	require.NoError(t, topo.Validate())
	return &topo
}

func TestFeature_PolygonStitching(t *testing.T) {
	topo := decodeFixture(t)

	coll, err := Feature(topo, "counties")
	require.NoError(t, err)
	require.Equal(t, 3, coll.Len())
	assert.Equal(t, "counties", coll.Name)

	autauga := coll.Features[0]
	assert.Equal(t, "01001", autauga.ID)
	assert.Equal(t, "Autauga", autauga.Properties["name"])
	poly, ok := autauga.Geometry.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, []float64{
		-100, 30,
		-99.5, 30,
		-99.5, 32,
		-100, 32,
		-100, 30,
	}, poly.FlatCoords())
}

func TestFeature_ReversedArcs(t *testing.T) {
	coll, err := Feature(decodeFixture(t), "counties")
	require.NoError(t, err)

	f := coll.Features[1]
	assert.Equal(t, "2158", f.ID, "numeric ids are rendered without exponent")
	assert.NotNil(t, f.Properties)
	poly := f.Geometry.(*geom.Polygon)
	assert.Equal(t, []float64{
		-100, 30,
		-100, 32,
		-99.5, 32,
		-99.5, 30,
		-100, 30,
	}, poly.FlatCoords())
}

func TestFeature_NullGeometry(t *testing.T) {
	coll, err := Feature(decodeFixture(t), "counties")
	require.NoError(t, err)
	assert.Equal(t, "99", coll.Features[2].ID)
	assert.Nil(t, coll.Features[2].Geometry)
}

func TestFeature_MultiPolygon(t *testing.T) {
	coll, err := Feature(decodeFixture(t), "states")
	require.NoError(t, err)
	require.Equal(t, 1, coll.Len())
	mp := coll.Features[0].Geometry.(*geom.MultiPolygon)
	assert.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 5, mp.Polygon(0).LinearRing(0).NumCoords())
}

func TestFeature_SingleObjects(t *testing.T) {
	topo := decodeFixture(t)

	capital, err := Feature(topo, "capital")
	require.NoError(t, err)
	require.Equal(t, 1, capital.Len())
	pt := capital.Features[0].Geometry.(*geom.Point)
	assert.Equal(t, []float64{-99, 36}, pt.FlatCoords(), "points are transformed without delta decoding")

	border, err := Feature(topo, "border")
	require.NoError(t, err)
	ls := border.Features[0].Geometry.(*geom.LineString)
	assert.Equal(t, []float64{-100, 30, -99.5, 30, -99.5, 32}, ls.FlatCoords())
}

func TestFeatures_AllObjects(t *testing.T) {
	all, err := Features(decodeFixture(t))
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Contains(t, all, "counties")
	assert.Contains(t, all, "states")
}

func TestFeature_UnknownObject(t *testing.T) {
	_, err := Feature(decodeFixture(t), "tracts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `object "tracts"`)
}

func TestFeature_ArcOutOfRange(t *testing.T) {
	topo := decodeFixture(t)
	topo.Objects["bad"] = &Geometry{Type: "LineString", Arcs: json.RawMessage(`[7]`)}

	_, err := Feature(topo, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arc index 7 out of range")
}

func TestFeature_UnknownType(t *testing.T) {
	topo := decodeFixture(t)
	topo.Objects["bad"] = &Geometry{Type: "Circle"}

	_, err := Feature(topo, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown geometry type "Circle"`)
}

func TestUnquantizedTopology(t *testing.T) {
	doc := `{"type":"Topology","arcs":[[[-90,30],[-89,30]],[[-89,30],[-89,31]]],
	  "objects":{"line":{"type":"LineString","arcs":[0,1]}}}`
	var topo Topology
	require.NoError(t, json.Unmarshal([]byte(doc), &topo))

	coll, err := Feature(&topo, "line")
	require.NoError(t, err)
	ls := coll.Features[0].Geometry.(*geom.LineString)
	assert.Equal(t, []float64{-90, 30, -89, 30, -89, 31}, ls.FlatCoords())
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Topology{Type: "FeatureCollection"}).Validate())
	assert.Error(t, (&Topology{Type: "Topology"}).Validate())
}
