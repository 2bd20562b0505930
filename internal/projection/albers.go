package projection

import "math"

// Conic is an Albers conic equal-area projection. The center is given in the
// rotated frame: with the default rotation of 96°, a center longitude of 20°
// corresponds to 76°W.
type Conic struct {
	parallels [2]float64
	rotate    float64
	center    [2]float64
	k         float64
	tx, ty    float64

	// derived by reset
	n, c, rho0 float64
	cosPhi0    float64
	dx, dy     float64
}

// Albers returns the conterminous-U.S. Albers projection: parallels 29.5°N and
// 45.5°N, rotated 96°, centered at [-0.6, 38.7], scale 1070, translate [480, 250].
func Albers() *Conic {
	c := &Conic{
		parallels: [2]float64{29.5, 45.5},
		rotate:    96,
		center:    [2]float64{-0.6, 38.7},
		k:         1070,
		tx:        480,
		ty:        250,
	}
	c.reset()
	return c
}

func (p *Conic) clone() *Conic {
	c := *p
	return &c
}

// WithParallels returns a copy with new standard parallels.
func (p *Conic) WithParallels(phi0, phi1 float64) *Conic {
	c := p.clone()
	c.parallels = [2]float64{phi0, phi1}
	c.reset()
	return c
}

// WithRotate returns a copy rotated by lambda degrees of longitude.
func (p *Conic) WithRotate(lambda float64) *Conic {
	c := p.clone()
	c.rotate = lambda
	c.reset()
	return c
}

// WithCenter returns a copy centered on lon/lat in the rotated frame.
func (p *Conic) WithCenter(lon, lat float64) *Conic {
	c := p.clone()
	c.center = [2]float64{lon, lat}
	c.reset()
	return c
}

// WithScale implements Projection.
func (p *Conic) WithScale(k float64) Projection {
	c := p.clone()
	c.k = k
	c.reset()
	return c
}

// WithTranslate implements Projection.
func (p *Conic) WithTranslate(x, y float64) Projection {
	c := p.clone()
	c.tx, c.ty = x, y
	c.reset()
	return c
}

// Scale implements Projection.
func (p *Conic) Scale() float64 { return p.k }

// Translate implements Projection.
func (p *Conic) Translate() (float64, float64) { return p.tx, p.ty }

// Center returns the center in the rotated frame.
func (p *Conic) Center() (float64, float64) { return p.center[0], p.center[1] }

func (p *Conic) reset() {
	phi0 := p.parallels[0] * radians
	phi1 := p.parallels[1] * radians
	sinPhi0 := math.Sin(phi0)
	p.n = (sinPhi0 + math.Sin(phi1)) / 2
	p.cosPhi0 = math.Cos(phi0)
	p.c = 1 + sinPhi0*(2*p.n-sinPhi0)
	p.rho0 = math.Sqrt(p.c) / p.n

	// The center is projected without rotation.
	cx, cy := p.raw(p.center[0]*radians, p.center[1]*radians)
	p.dx = p.tx - cx*p.k
	p.dy = p.ty + cy*p.k
}

// raw is the unscaled projection of radians. Parallels symmetric about the
// equator degenerate to the cylindrical equal-area case.
func (p *Conic) raw(lambda, phi float64) (float64, float64) {
	if math.Abs(p.n) < epsilon {
		return lambda * p.cosPhi0, math.Sin(phi) / p.cosPhi0
	}
	rho := math.Sqrt(p.c-2*p.n*math.Sin(phi)) / p.n
	lambda *= p.n
	return rho * math.Sin(lambda), p.rho0 - rho*math.Cos(lambda)
}

func (p *Conic) rawInvert(x, y float64) (float64, float64) {
	if math.Abs(p.n) < epsilon {
		return x / p.cosPhi0, asin(y * p.cosPhi0)
	}
	rho0y := p.rho0 - y
	return math.Atan2(x, rho0y) / p.n,
		asin((p.c - (x*x+rho0y*rho0y)*p.n*p.n) / (2 * p.n))
}

// Project implements Projection.
func (p *Conic) Project(lon, lat float64) (float64, float64, bool) {
	lambda := wrap(lon*radians + p.rotate*radians)
	x, y := p.raw(lambda, lat*radians)
	sx, sy := x*p.k+p.dx, p.dy-y*p.k
	return sx, sy, finite(sx, sy)
}

// Invert implements Projection.
func (p *Conic) Invert(x, y float64) (float64, float64, bool) {
	lambda, phi := p.rawInvert((x-p.dx)/p.k, (p.dy-y)/p.k)
	lambda = wrap(lambda - p.rotate*radians)
	lon, lat := lambda*degrees, phi*degrees
	return lon, lat, finite(lon, lat)
}

// wrap normalizes a longitude in radians to [-π, π].
func wrap(lambda float64) float64 {
	if lambda > math.Pi {
		return lambda - 2*math.Pi
	}
	if lambda < -math.Pi {
		return lambda + 2*math.Pi
	}
	return lambda
}

func asin(x float64) float64 {
	if x > 1 {
		return math.Pi / 2
	}
	if x < -1 {
		return -math.Pi / 2
	}
	return math.Asin(x)
}
