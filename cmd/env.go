package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wagemap/internal/config"
	"github.com/sells-group/wagemap/internal/dataset"
	"github.com/sells-group/wagemap/internal/fetcher"
	"github.com/sells-group/wagemap/internal/mapconfig"
	"github.com/sells-group/wagemap/internal/render"
	"github.com/sells-group/wagemap/internal/store"
)

// mapEnv holds what every map command loads.
type mapEnv struct {
	Loader  *dataset.Loader
	Dataset *dataset.Dataset
	Presets *mapconfig.Registry
	Store   store.Store
}

// Close releases the store, if one was opened.
func (e *mapEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func newResolver(c *config.Config) *fetcher.Resolver {
	timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
	return fetcher.NewResolver(fetcher.Options{
		HTTP: fetcher.HTTPOptions{
			UserAgent:  c.Fetch.UserAgent,
			Timeout:    timeout,
			MaxRetries: c.Fetch.MaxRetries,
		},
		FTP: fetcher.FTPOptions{Timeout: timeout},
		Breaker: fetcher.BreakerOptions{
			FailureThreshold: c.Fetch.BreakerThreshold,
			ResetTimeout:     time.Duration(c.Fetch.BreakerResetSecs) * time.Second,
		},
	})
}

func loadPresets(c *config.Config) (*mapconfig.Registry, error) {
	reg := mapconfig.NewRegistry()
	if c.Map.PresetsFile != "" {
		if err := reg.LoadPresetsFile(c.Map.PresetsFile); err != nil {
			return nil, err
		}
	}
	if !reg.Has(c.Map.Preset) {
		return nil, eris.Errorf("unknown map preset %q (have %v)", c.Map.Preset, reg.Names())
	}
	return reg, nil
}

func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.New(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initMapEnv loads presets and the dataset. The store is opened only when the
// wage series is read from it.
func initMapEnv(ctx context.Context, c *config.Config) (*mapEnv, error) {
	presets, err := loadPresets(c)
	if err != nil {
		return nil, err
	}

	env := &mapEnv{Presets: presets}
	var wageSource dataset.WageSource
	if c.Data.Wages == dataset.StoreSource {
		st, err := openStore(ctx, c)
		if err != nil {
			return nil, err
		}
		env.Store = st
		wageSource = st
	}

	env.Loader = dataset.NewLoader(c.Data, newResolver(c), wageSource)
	ds, err := env.Loader.Load(ctx)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "load dataset")
	}
	env.Dataset = ds
	return env, nil
}

func renderOptions(c *config.Config) render.Options {
	return render.Options{Precision: c.Render.Precision}
}
