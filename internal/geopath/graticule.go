package geopath

import (
	"math"

	"github.com/twpayne/go-geom"
)

const graticuleEpsilon = 1e-6

// Graticule returns the default 10° graticule: major meridians every 90°
// reaching the poles, the equator, and minor lines every 10° out to ±80°.
// Lines are densified every 2.5°.
func Graticule() *geom.MultiLineString {
	const (
		minorStep  = 10.0
		majorStepX = 90.0
		majorStepY = 360.0
		precision  = 2.5
	)
	majorY0, majorY1 := -90+graticuleEpsilon, 90-graticuleEpsilon
	minorY0, minorY1 := -80-graticuleEpsilon, 80+graticuleEpsilon
	x0, x1 := -180.0, 180.0

	mls := geom.NewMultiLineString(geom.XY)
	push := func(flat []float64) {
		_ = mls.Push(geom.NewLineStringFlat(geom.XY, flat))
	}

	for _, x := range steps(math.Ceil(x0/majorStepX)*majorStepX, x1, majorStepX) {
		push(meridian(x, majorY0, majorY1, precision))
	}
	for _, y := range steps(math.Ceil(majorY0/majorStepY)*majorStepY, majorY1, majorStepY) {
		push(parallel(y, x0, x1, precision))
	}
	for _, x := range steps(math.Ceil(x0/minorStep)*minorStep, x1, minorStep) {
		if math.Abs(math.Mod(x, majorStepX)) > graticuleEpsilon {
			push(meridian(x, minorY0, minorY1, precision))
		}
	}
	for _, y := range steps(math.Ceil(minorY0/minorStep)*minorStep, minorY1, minorStep) {
		if math.Abs(math.Mod(y, majorStepY)) > graticuleEpsilon {
			push(parallel(y, x0, x1, precision))
		}
	}
	return mls
}

// steps returns start, start+step, ... while below stop.
func steps(start, stop, step float64) []float64 {
	var out []float64
	for i := 0; ; i++ {
		v := start + float64(i)*step
		if v >= stop {
			return out
		}
		out = append(out, v)
	}
}

func meridian(x, y0, y1, precision float64) []float64 {
	var flat []float64
	for _, y := range steps(y0, y1-graticuleEpsilon, precision) {
		flat = append(flat, x, y)
	}
	return append(flat, x, y1)
}

func parallel(y, x0, x1, precision float64) []float64 {
	var flat []float64
	for _, x := range steps(x0, x1-graticuleEpsilon, precision) {
		flat = append(flat, x, y)
	}
	return append(flat, x1, y)
}
