package dataset

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wagemap/internal/fetcher"
)

// Versioner reports a token that changes with a source's content.
type Versioner interface {
	Version(ctx context.Context, src string) (string, error)
}

// Watcher holds the current dataset and swaps in a fresh load when any
// source changes.
type Watcher struct {
	loader   *Loader
	versions Versioner

	mu       sync.RWMutex
	current  *Dataset
	version  string
	onReload []func(*Dataset)

	reloadMu sync.Mutex
}

// NewWatcher wraps an already loaded dataset. versions defaults to the
// loader's resolver.
func NewWatcher(loader *Loader, ds *Dataset, versions Versioner) *Watcher {
	if versions == nil {
		versions = loader.resolver
	}
	return &Watcher{loader: loader, versions: versions, current: ds}
}

// Current returns the dataset in use.
func (w *Watcher) Current() *Dataset {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnReload registers fn to run after each successful reload.
func (w *Watcher) OnReload(fn func(*Dataset)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Prime records the sources' current version so the next Reload only loads
// on change.
func (w *Watcher) Prime(ctx context.Context) error {
	v, err := w.sourceVersion(ctx)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.version = v
	w.mu.Unlock()
	return nil
}

// Reload loads the dataset again when the sources' version changed, or
// always when force is set. Sources whose version is unknown only reload
// when forced. It reports whether a new dataset was swapped in. The current
// dataset stays in place when loading fails.
func (w *Watcher) Reload(ctx context.Context, force bool) (bool, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	v, err := w.sourceVersion(ctx)
	if err != nil {
		return false, err
	}
	w.mu.RLock()
	unchanged := v == "" || v == w.version
	w.mu.RUnlock()
	if unchanged && !force {
		return false, nil
	}

	ds, err := w.loader.Load(ctx)
	if err != nil {
		return false, eris.Wrap(err, "dataset: reload")
	}

	w.mu.Lock()
	w.current = ds
	w.version = v
	hooks := append([]func(*Dataset){}, w.onReload...)
	w.mu.Unlock()

	for _, fn := range hooks {
		fn(ds)
	}
	zap.L().Info("dataset: reloaded",
		zap.String("component", "dataset"),
		zap.Bool("forced", force),
		zap.String("version", v),
	)
	return true, nil
}

// Run polls for changes every interval until ctx is done. Failed polls are
// logged and retried on the next tick.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Reload(ctx, false); err != nil {
				zap.L().Warn("dataset: poll failed", zap.String("component", "dataset"), zap.Error(err))
			}
		}
	}
}

// sourceVersion joins every source's version. It is empty when any source
// has no change detection.
func (w *Watcher) sourceVersion(ctx context.Context) (string, error) {
	var parts []string
	for _, src := range w.loader.Sources() {
		v, err := w.versions.Version(ctx, src)
		if err != nil {
			return "", eris.Wrapf(err, "dataset: version of %s", src)
		}
		if v == "" {
			return "", nil
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, "|"), nil
}

var _ Versioner = (*fetcher.Resolver)(nil)
