// Package server serves wage maps rendered to the requested width.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/wagemap/internal/dataset"
	"github.com/sells-group/wagemap/internal/mapconfig"
	"github.com/sells-group/wagemap/internal/render"
)

// Map widths outside this range are clamped.
const (
	MinWidth = 120
	MaxWidth = 2000
)

// DatasetSource holds the dataset maps are drawn from.
type DatasetSource interface {
	Current() *dataset.Dataset
	Reload(ctx context.Context, force bool) (bool, error)
}

// Options configures a Server.
type Options struct {
	Title          string
	Preset         string
	Width          int
	Render         render.Options
	AllowedOrigins []string
}

// Server renders maps over HTTP.
type Server struct {
	data    DatasetSource
	presets *mapconfig.Registry
	cache   *RenderCache
	opts    Options
}

// New creates a Server. cache may be nil.
func New(data DatasetSource, presets *mapconfig.Registry, cache *RenderCache, opts Options) *Server {
	if opts.Preset == "" {
		opts.Preset = mapconfig.USACounties
	}
	if opts.Width <= 0 {
		opts.Width = 320
	}
	if opts.Title == "" {
		opts.Title = "County wage quintiles"
	}
	return &Server{data: data, presets: presets, cache: cache, opts: opts}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{FooterTopHeader, CacheHeader, RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handlePage)
	r.Get("/maps/{frame}.svg", s.handleMap)
	r.Route("/api", func(r chi.Router) {
		r.Get("/counties/{fips}", s.handleCounty)
		r.Get("/coverage", s.handleCoverage)
	})
	r.Get("/cache/stats", s.handleCacheStats)
	r.Post("/admin/reload", s.handleReload)
	r.Post("/admin/cache/purge", s.handleCachePurge)
	return r
}

func (s *Server) origins() []string {
	if len(s.opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.AllowedOrigins
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
