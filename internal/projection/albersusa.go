package projection

// Composite is the U.S. composite projection: the lower 48 states with Alaska
// (at 0.35× scale) and Hawaii inset below the southwest corner.
type Composite struct {
	lower48 *Conic
	alaska  *Conic
	hawaii  *Conic
	k       float64
	tx, ty  float64
}

// inset extents in units of scale, relative to the translate.
var (
	lower48Extent = [4]float64{-0.455, -0.238, 0.455, 0.238}
	alaskaExtent  = [4]float64{-0.425, 0.120, -0.214, 0.234}
	hawaiiExtent  = [4]float64{-0.214, 0.166, -0.115, 0.234}
)

// AlbersUSA returns the composite projection at scale 1070, translate [480, 250].
func AlbersUSA() *Composite {
	p := &Composite{
		lower48: Albers(),
		alaska:  Albers().WithRotate(154).WithCenter(-2, 58.5).WithParallels(55, 65),
		hawaii:  Albers().WithRotate(157).WithCenter(-3, 19.9).WithParallels(8, 18),
		k:       1070,
		tx:      480,
		ty:      250,
	}
	p.reset()
	return p
}

func (p *Composite) reset() {
	k, x, y := p.k, p.tx, p.ty
	p.lower48 = p.lower48.WithScale(k).WithTranslate(x, y).(*Conic)
	p.alaska = p.alaska.WithScale(k*0.35).WithTranslate(x-0.307*k, y+0.201*k).(*Conic)
	p.hawaii = p.hawaii.WithScale(k).WithTranslate(x-0.205*k, y+0.212*k).(*Conic)
}

// WithScale implements Projection.
func (p *Composite) WithScale(k float64) Projection {
	c := *p
	c.k = k
	c.reset()
	return &c
}

// WithTranslate implements Projection.
func (p *Composite) WithTranslate(x, y float64) Projection {
	c := *p
	c.tx, c.ty = x, y
	c.reset()
	return &c
}

// Scale implements Projection.
func (p *Composite) Scale() float64 { return p.k }

// Translate implements Projection.
func (p *Composite) Translate() (float64, float64) { return p.tx, p.ty }

func (p *Composite) inside(ext [4]float64, x, y float64, shrink float64) bool {
	x0 := p.tx + ext[0]*p.k + shrink
	y0 := p.ty + ext[1]*p.k + shrink
	x1 := p.tx + ext[2]*p.k - shrink
	y1 := p.ty + ext[3]*p.k - shrink
	return x >= x0 && x <= x1 && y >= y0 && y <= y1
}

// Select implements Selector: the first inset whose extent holds the
// projected point.
func (p *Composite) Select(lon, lat float64) (Projection, bool) {
	if x, y, ok := p.lower48.Project(lon, lat); ok && p.inside(lower48Extent, x, y, 0) {
		return p.lower48, true
	}
	if x, y, ok := p.alaska.Project(lon, lat); ok && p.inside(alaskaExtent, x, y, epsilon) {
		return p.alaska, true
	}
	if x, y, ok := p.hawaii.Project(lon, lat); ok && p.inside(hawaiiExtent, x, y, epsilon) {
		return p.hawaii, true
	}
	return nil, false
}

// Project implements Projection.
func (p *Composite) Project(lon, lat float64) (float64, float64, bool) {
	sub, ok := p.Select(lon, lat)
	if !ok {
		return 0, 0, false
	}
	return sub.Project(lon, lat)
}

// Invert implements Projection. The inset is chosen by where the screen
// position falls.
func (p *Composite) Invert(x, y float64) (float64, float64, bool) {
	ux := (x - p.tx) / p.k
	uy := (y - p.ty) / p.k
	switch {
	case uy >= alaskaExtent[1] && uy < alaskaExtent[3] && ux >= alaskaExtent[0] && ux < alaskaExtent[2]:
		return p.alaska.Invert(x, y)
	case uy >= hawaiiExtent[1] && uy < hawaiiExtent[3] && ux >= hawaiiExtent[0] && ux < hawaiiExtent[2]:
		return p.hawaii.Invert(x, y)
	}
	return p.lower48.Invert(x, y)
}
