// Package render draws county wage-quintile choropleths as SVG element trees.
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wagemap/internal/classify"
	"github.com/sells-group/wagemap/internal/geo"
	"github.com/sells-group/wagemap/internal/geomath"
	"github.com/sells-group/wagemap/internal/geopath"
	"github.com/sells-group/wagemap/internal/mapconfig"
	"github.com/sells-group/wagemap/internal/projection"
	"github.com/sells-group/wagemap/internal/wages"
)

// Scale bar placement relative to the bottom-left corner, and the gap
// between the bar and its label.
const (
	scaleBarInset  = 10
	scaleBarBottom = 35
	scaleBarLabelX = 5
	footerGap      = 50
)

var (
	// ErrUnknownLayer is returned when a configured path layer has no data.
	ErrUnknownLayer = eris.New("unknown layer")
	// ErrUnknownFrame is returned when the wage series has no such frame.
	ErrUnknownFrame = eris.New("unknown frame")
)

// Instance is one placement of a map type.
type Instance struct {
	// Container is the id of the element the map is drawn into.
	Container string
	Width     int
	Data      map[string]*geo.Collection
	Frame     string
}

// Options tunes the output.
type Options struct {
	// Precision is the number of decimals kept in path coordinates; negative
	// keeps full precision.
	Precision int
}

// DefaultOptions keeps two decimals.
func DefaultOptions() Options {
	return Options{Precision: 2}
}

// Result is a drawn map.
type Result struct {
	Width     int
	Height    int
	FooterTop int
	// Root is the div.graphic-wrapper holding the svg.
	Root *Element
}

// Map draws one map.
func Map(cfg mapconfig.TypeConfig, inst Instance, table *wages.Table, opts Options) (*Result, error) {
	if inst.Width <= 0 {
		return nil, eris.Errorf("render: width must be positive, got %d", inst.Width)
	}
	if cfg.AspectRatio <= 0 || cfg.ScaleFactor <= 0 {
		return nil, eris.Errorf("render: invalid map type (aspect_ratio %g, scale_factor %g)", cfg.AspectRatio, cfg.ScaleFactor)
	}
	if table != nil && !table.HasFrame(inst.Frame) {
		return nil, eris.Wrapf(ErrUnknownFrame, "render: %q", inst.Frame)
	}

	width := float64(inst.Width)
	height := int(math.Ceil(width / cfg.AspectRatio))
	scale := width * cfg.ScaleFactor

	base, err := cfg.Projection()
	if err != nil {
		return nil, eris.Wrap(err, "render: projection")
	}
	proj := base.WithScale(scale).WithTranslate(width/2, float64(height)/2)

	gen := geopath.Generator{
		Projection:  proj,
		PointRadius: cfg.DotRadius * scale,
		Precision:   opts.Precision,
	}

	wrapper := El("div", "class", "graphic-wrapper")
	svg := wrapper.Append(El("svg", "width", strconv.Itoa(inst.Width), "height", strconv.Itoa(height)))

	if cfg.Graticules {
		g := svg.Append(El("g", "class", "graticules"))
		g.Append(El("path", "d", gen.Path(geopath.Graticule())))
	}

	paths := svg.Append(El("g", "class", "paths"))
	for _, layer := range cfg.Paths {
		coll, ok := inst.Data[layer]
		if !ok || coll == nil {
			return nil, eris.Wrapf(ErrUnknownLayer, "render: %q", layer)
		}
		group := paths.Append(El("g", "class", layer))
		drawn := 0
		for i := range coll.Features {
			f := &coll.Features[i]
			d := gen.Path(f.Geometry)
			if d == "" {
				continue
			}
			var class string
			if layer == cfg.DataLayer {
				class = classify.County(table, f, inst.Frame)
			} else {
				class = classify.Feature(f)
			}
			p := group.Append(El("path", "d", d, "class", class))
			if f.ID != "" {
				p.Set("data-id", f.ID)
			}
			drawn++
		}
		zap.L().Debug("render: drew layer",
			zap.String("component", "render"),
			zap.String("layer", layer),
			zap.Int("features", coll.Len()),
			zap.Int("drawn", drawn),
		)
	}
	paths.Append(El("g", "class", "selection"))

	if labels := drawLabels(cfg, inst, proj, opts); labels != nil {
		svg.Append(labels)
	}

	if cfg.ScaleBarDistance > 0 {
		if bar, err := drawScaleBar(proj, height, cfg.ScaleBarDistance, gen); err != nil {
			zap.L().Warn("render: skipping scale bar", zap.String("component", "render"), zap.Error(err))
		} else {
			svg.Append(bar)
		}
	}

	return &Result{
		Width:     inst.Width,
		Height:    height,
		FooterTop: height + footerGap,
		Root:      wrapper,
	}, nil
}

func drawScaleBar(proj projection.Projection, height int, miles float64, gen geopath.Generator) (*Element, error) {
	start := [2]float64{scaleBarInset, float64(height - scaleBarBottom)}
	end, err := geomath.ScaleBarEndPoint(proj, start, miles)
	if err != nil {
		return nil, err
	}

	g := El("g", "class", "scale-bar")
	g.Append(El("line",
		"x1", gen.Num(start[0]),
		"y1", gen.Num(start[1]),
		"x2", gen.Num(end[0]),
		"y2", gen.Num(end[1]),
	))
	text := g.Append(El("text",
		"x", gen.Num(end[0]+scaleBarLabelX),
		"y", gen.Num(end[1]),
	))
	text.Text = ScaleBarLabel(miles)
	return g, nil
}

// ScaleBarLabel formats a distance as "1 mile" or "N miles".
func ScaleBarLabel(miles float64) string {
	unit := " mile"
	if miles != 1 {
		unit += "s"
	}
	return strconv.FormatFloat(miles, 'f', -1, 64) + unit
}

// drawLabels places the fixed labels and, when a label layer is set, one
// label per feature at its geographic centroid.
func drawLabels(cfg mapconfig.TypeConfig, inst Instance, proj projection.Projection, opts Options) *Element {
	gen := geopath.Generator{Precision: opts.Precision}
	g := El("g", "class", "labels")

	add := func(lon, lat float64, text, class string) {
		x, y, ok := proj.Project(lon, lat)
		if !ok || text == "" {
			return
		}
		t := g.Append(El("text", "x", gen.Num(x), "y", gen.Num(y), "class", strings.TrimSpace("label "+class)))
		t.Text = text
	}

	for _, l := range cfg.Labels {
		add(l.Lng, l.Lat, l.Text, l.Class)
	}
	if coll := inst.Data[cfg.LabelLayer]; cfg.LabelLayer != "" && coll != nil {
		for i := range coll.Features {
			f := &coll.Features[i]
			lon, lat, ok := geopath.Centroid(f.Geometry)
			if !ok {
				continue
			}
			v, ok := f.Properties[cfg.LabelProperty]
			if !ok || v == nil {
				continue
			}
			add(lon, lat, fmt.Sprint(v), classify.Slug(f.ID))
		}
	}

	if len(g.Children) == 0 {
		return nil
	}
	return g
}
