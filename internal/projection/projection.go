// Package projection maps lon/lat degrees to screen pixels. Screen y grows
// downward, and every projection is positioned by a scale and a translate (the
// pixel the projection's center lands on).
package projection

import (
	"math"

	"github.com/rotisserie/eris"
)

const (
	radians = math.Pi / 180
	degrees = 180 / math.Pi
	epsilon = 1e-6
)

// Projection converts between geographic and screen coordinates.
type Projection interface {
	// Project returns the screen position of lon/lat; ok is false when the
	// point has no position (outside every inset of a composite projection).
	Project(lon, lat float64) (x, y float64, ok bool)
	// Invert returns the lon/lat under a screen position.
	Invert(x, y float64) (lon, lat float64, ok bool)
	Scale() float64
	Translate() (x, y float64)
	WithScale(k float64) Projection
	WithTranslate(x, y float64) Projection
}

// Selector is implemented by composite projections that choose a component
// per geometry part. Path generators project a whole ring with the
// projection selected for its first vertex so parts are not split across
// insets.
type Selector interface {
	Select(lon, lat float64) (Projection, bool)
}

// Options overrides projection parameters. Nil fields keep the defaults.
type Options struct {
	Center    *[2]float64
	Parallels *[2]float64
	Rotate    *float64
}

// Names of the projections New understands.
const (
	NameAlbers    = "albers"
	NameAlbersUSA = "albers-usa"
	NameIdentity  = "identity"
)

// New builds a projection by name.
func New(name string, opts Options) (Projection, error) {
	switch name {
	case NameAlbers, "":
		c := Albers()
		if opts.Parallels != nil {
			c = c.WithParallels(opts.Parallels[0], opts.Parallels[1])
		}
		if opts.Rotate != nil {
			c = c.WithRotate(*opts.Rotate)
		}
		if opts.Center != nil {
			c = c.WithCenter(opts.Center[0], opts.Center[1])
		}
		return c, nil
	case NameAlbersUSA:
		if opts.Center != nil || opts.Parallels != nil || opts.Rotate != nil {
			return nil, eris.New("projection: albers-usa does not take center, parallels or rotate")
		}
		return AlbersUSA(), nil
	case NameIdentity:
		return Identity(), nil
	}
	return nil, eris.Errorf("projection: unknown projection %q", name)
}

// Identity projects lon/lat unchanged; scale and translate still apply.
type identity struct {
	k      float64
	tx, ty float64
}

// Identity returns the identity projection (x = lon, y = lat).
func Identity() Projection {
	return identity{k: 1}
}

func (p identity) Project(lon, lat float64) (float64, float64, bool) {
	return lon*p.k + p.tx, lat*p.k + p.ty, true
}

func (p identity) Invert(x, y float64) (float64, float64, bool) {
	return (x - p.tx) / p.k, (y - p.ty) / p.k, true
}

func (p identity) Scale() float64                { return p.k }
func (p identity) Translate() (float64, float64) { return p.tx, p.ty }

func (p identity) WithScale(k float64) Projection {
	p.k = k
	return p
}

func (p identity) WithTranslate(x, y float64) Projection {
	p.tx, p.ty = x, y
	return p
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
