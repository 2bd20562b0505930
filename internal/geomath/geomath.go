// Package geomath holds spherical helpers used to size map furniture.
package geomath

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wagemap/internal/projection"
)

// EarthRadiusMiles is the mean earth radius used for distances.
const EarthRadiusMiles = 3959.0

// DestinationPoint returns the lon/lat reached by travelling miles along a
// great circle from lat/lon at the given initial bearing (degrees clockwise
// from north). Longitude is normalized to [-180, 180).
func DestinationPoint(lat, lon, bearing, miles float64) (float64, float64) {
	delta := miles / EarthRadiusMiles
	theta := bearing * math.Pi / 180
	phi1 := lat * math.Pi / 180
	lambda1 := lon * math.Pi / 180

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)
	lambda2 = math.Mod(lambda2+3*math.Pi, 2*math.Pi) - math.Pi

	return lambda2 * 180 / math.Pi, phi2 * 180 / math.Pi
}

// ScaleBarEndPoint returns the screen end of a horizontal bar that starts at
// the start pixel and spans miles due east. The end keeps the start's y.
func ScaleBarEndPoint(proj projection.Projection, start [2]float64, miles float64) ([2]float64, error) {
	lon, lat, ok := proj.Invert(start[0], start[1])
	if !ok {
		return [2]float64{}, eris.Errorf("geomath: scale bar start %v has no geographic position", start)
	}
	destLon, destLat := DestinationPoint(lat, lon, 90, miles)
	x, _, ok := proj.Project(destLon, destLat)
	if !ok {
		return [2]float64{}, eris.Errorf("geomath: scale bar end for %g miles does not project", miles)
	}
	return [2]float64{x, start[1]}, nil
}
