// Package dataset loads everything a map is drawn from: boundary layers and
// the wage series.
package dataset

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/wagemap/internal/config"
	"github.com/sells-group/wagemap/internal/fetcher"
	"github.com/sells-group/wagemap/internal/geo"
	"github.com/sells-group/wagemap/internal/topojson"
	"github.com/sells-group/wagemap/internal/wages"
)

// StoreSource is the Wages value that reads the series from the wage store.
const StoreSource = "store"

// WageSource supplies a previously imported wage series.
type WageSource interface {
	LoadWages(ctx context.Context) (*wages.Table, error)
}

// Dataset is one consistent load of boundaries and wages.
type Dataset struct {
	Layers   map[string]*geo.Collection
	Wages    *wages.Table
	Frames   []string
	LoadedAt time.Time
}

// Layer returns the named boundary layer.
func (d *Dataset) Layer(name string) (*geo.Collection, bool) {
	c, ok := d.Layers[name]
	return c, ok && c != nil
}

// LayerNames returns the loaded layer names, sorted.
func (d *Dataset) LayerNames() []string {
	names := make([]string, 0, len(d.Layers))
	for name := range d.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generation identifies this load; later loads have larger generations.
func (d *Dataset) Generation() int64 {
	return d.LoadedAt.UnixNano()
}

// HasFrame reports whether frame can be drawn.
func (d *Dataset) HasFrame(frame string) bool {
	for _, f := range d.Frames {
		if f == frame {
			return true
		}
	}
	return false
}

// Loader reads datasets from configured sources.
type Loader struct {
	cfg      config.DataConfig
	resolver *fetcher.Resolver
	store    WageSource
}

// NewLoader creates a Loader. store may be nil unless the wage source is
// StoreSource.
func NewLoader(cfg config.DataConfig, resolver *fetcher.Resolver, store WageSource) *Loader {
	return &Loader{cfg: cfg, resolver: resolver, store: store}
}

// Sources lists every source the loader reads, for change detection.
func (l *Loader) Sources() []string {
	var out []string
	if l.cfg.Topology != "" {
		out = append(out, l.cfg.Topology)
	}
	names := make([]string, 0, len(l.cfg.Layers))
	for name := range l.cfg.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, l.cfg.Layers[name])
	}
	if l.cfg.Wages != "" && l.cfg.Wages != StoreSource {
		out = append(out, l.cfg.Wages)
	}
	return out
}

// Load reads the topology, each shapefile layer and the wage series
// concurrently.
func Load(ctx context.Context, cfg config.DataConfig, resolver *fetcher.Resolver, store WageSource) (*Dataset, error) {
	return NewLoader(cfg, resolver, store).Load(ctx)
}

// Load implements the package-level Load.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	start := time.Now()
	log := zap.L().With(zap.String("component", "dataset"))

	var (
		mu     sync.Mutex
		topo   map[string]*geo.Collection
		shapes = make(map[string]*geo.Collection, len(l.cfg.Layers))
		table  *wages.Table
	)

	g, gctx := errgroup.WithContext(ctx)

	if l.cfg.Topology != "" {
		g.Go(func() error {
			c, err := l.loadTopology(gctx, l.cfg.Topology)
			if err != nil {
				return err
			}
			topo = c
			return nil
		})
	}
	for name, src := range l.cfg.Layers {
		g.Go(func() error {
			c, err := l.loadShapefile(gctx, name, src)
			if err != nil {
				return err
			}
			mu.Lock()
			shapes[name] = c
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		t, err := l.loadWages(gctx)
		if err != nil {
			return err
		}
		table = t
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Shapefile layers win over same-named topology objects.
	layers := make(map[string]*geo.Collection, len(topo)+len(shapes))
	maps.Copy(layers, topo)
	maps.Copy(layers, shapes)
	if len(layers) == 0 {
		return nil, eris.New("dataset: no boundary layers configured")
	}

	frames, err := resolveFrames(l.cfg.Frames, table)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Layers:   layers,
		Wages:    table,
		Frames:   frames,
		LoadedAt: time.Now(),
	}
	log.Info("dataset: loaded",
		zap.Strings("layers", ds.LayerNames()),
		zap.Int("counties", table.Len()),
		zap.Strings("frames", frames),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

// resolveFrames checks the configured frames against the series, or takes
// every frame of the series when none are configured.
func resolveFrames(configured []string, table *wages.Table) ([]string, error) {
	if len(configured) == 0 {
		return table.Frames(), nil
	}
	for _, f := range configured {
		if !table.HasFrame(f) {
			return nil, eris.Errorf("dataset: frame %q is not in the wage series (have %s)", f, strings.Join(table.Frames(), ", "))
		}
	}
	return append([]string(nil), configured...), nil
}

func (l *Loader) loadTopology(ctx context.Context, src string) (map[string]*geo.Collection, error) {
	rc, err := l.resolver.Open(ctx, src)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open topology")
	}
	defer rc.Close() //nolint:errcheck

	topo, err := fetcher.DecodeJSONObject[topojson.Topology](rc)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: decode topology %s", src)
	}
	if err := topo.Validate(); err != nil {
		return nil, eris.Wrapf(err, "dataset: topology %s", src)
	}
	layers, err := topojson.Features(topo)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: topology %s", src)
	}
	return layers, nil
}

// loadShapefile reads a .shp source, or the first .shp inside a .zip.
func (l *Loader) loadShapefile(ctx context.Context, name, src string) (*geo.Collection, error) {
	dir := filepath.Join(l.tempDir(), name)
	path, err := l.resolver.Localize(ctx, src, dir)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: layer %s", name)
	}

	switch fetcher.Ext(path) {
	case ".zip":
		extractDir := filepath.Join(dir, "extracted")
		if err := os.MkdirAll(extractDir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "dataset: layer %s: create extract dir", name)
		}
		if _, err := fetcher.ExtractZIP(path, extractDir); err != nil {
			return nil, eris.Wrapf(err, "dataset: layer %s", name)
		}
		if path, err = fetcher.FindFile(extractDir, ".shp"); err != nil {
			return nil, eris.Wrapf(err, "dataset: layer %s", name)
		}
	case ".shp":
	default:
		return nil, eris.Errorf("dataset: layer %s: unsupported boundary format %q", name, fetcher.Ext(path))
	}

	c, err := geo.LoadShapefile(path, name, l.idField())
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: layer %s", name)
	}
	return c, nil
}

func (l *Loader) loadWages(ctx context.Context) (*wages.Table, error) {
	src := l.cfg.Wages
	switch {
	case src == "":
		return nil, eris.New("dataset: no wage source configured")
	case src == StoreSource:
		if l.store == nil {
			return nil, eris.New("dataset: wage source is the store but no store is configured")
		}
		t, err := l.store.LoadWages(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "dataset: load wages from store")
		}
		return t, nil
	}
	return l.LoadWagesFile(ctx, src)
}

// LoadWagesFile reads a CSV or XLSX wage series from a path or URL.
func (l *Loader) LoadWagesFile(ctx context.Context, src string) (*wages.Table, error) {
	if fetcher.Ext(src) == ".xlsx" {
		path, err := l.resolver.Localize(ctx, src, filepath.Join(l.tempDir(), "wages"))
		if err != nil {
			return nil, eris.Wrap(err, "dataset: wages")
		}
		t, err := wages.LoadXLSX(ctx, path)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: wages %s", src)
		}
		return t, nil
	}

	rc, err := l.resolver.Open(ctx, src)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open wages")
	}
	defer rc.Close() //nolint:errcheck
	t, err := wages.LoadCSV(ctx, rc)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: wages %s", src)
	}
	return t, nil
}

func (l *Loader) tempDir() string {
	if l.cfg.TempDir != "" {
		return l.cfg.TempDir
	}
	return filepath.Join(os.TempDir(), "wagemap")
}

func (l *Loader) idField() string {
	if l.cfg.IDField != "" {
		return l.cfg.IDField
	}
	return "GEOID"
}
