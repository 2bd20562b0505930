package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wagemap/internal/dataset"
	"github.com/sells-group/wagemap/internal/render"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ds := s.data.Current()
	resp := map[string]any{"status": "ok"}
	if ds != nil {
		resp["counties"] = ds.Wages.Len()
		resp["frames"] = ds.Frames
		resp["loaded_at"] = ds.LoadedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	preset := r.URL.Query().Get("preset")
	if preset == "" {
		preset = s.opts.Preset
	}
	if !s.presets.Has(preset) {
		writeError(w, http.StatusNotFound, "unknown preset")
		return
	}

	var buf bytes.Buffer
	page := render.NewLivePage(s.opts.Title, preset, s.data.Current().Frames)
	if err := render.WritePage(&buf, page); err != nil {
		zap.L().Error("server: page failed", zap.String("component", "server"), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "page failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// parseWidth reads the width query parameter, clamped to [MinWidth, MaxWidth].
func (s *Server) parseWidth(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("width")
	if raw == "" {
		return s.opts.Width, nil
	}
	width, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "server: width %q", raw)
	}
	return min(max(width, MinWidth), MaxWidth), nil
}

// handleMap serves /maps/{frame}.svg?width=&preset=.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	frame := chi.URLParam(r, "frame")
	ds := s.data.Current()
	if !ds.HasFrame(frame) {
		writeError(w, http.StatusNotFound, "unknown frame")
		return
	}
	preset := r.URL.Query().Get("preset")
	if preset == "" {
		preset = s.opts.Preset
	}
	if !s.presets.Has(preset) {
		writeError(w, http.StatusNotFound, "unknown preset")
		return
	}
	width, err := s.parseWidth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid width")
		return
	}

	key := MapKey{Generation: ds.Generation(), Preset: preset, Frame: frame, Width: width}
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			writeSVG(w, cached, "hit")
			return
		}
	}

	rendered, err := s.renderMap(ds, preset, frame, width)
	if err != nil {
		zap.L().Error("server: map render failed",
			zap.String("component", "server"),
			zap.String("preset", preset),
			zap.String("frame", frame),
			zap.Int("width", width),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}

	if s.cache != nil {
		s.cache.Put(key, rendered)
	}
	writeSVG(w, rendered, "miss")
}

func (s *Server) renderMap(ds *dataset.Dataset, preset, frame string, width int) (Rendered, error) {
	cfg, err := s.presets.Configure(preset, width)
	if err != nil {
		return Rendered{}, err
	}
	res, err := render.Map(cfg, render.Instance{
		Container: render.ContainerID(frame),
		Width:     width,
		Data:      ds.Layers,
		Frame:     frame,
	}, ds.Wages, s.opts.Render)
	if err != nil {
		return Rendered{}, err
	}
	var buf bytes.Buffer
	if err := render.WriteSVG(&buf, res.Root); err != nil {
		return Rendered{}, err
	}
	return Rendered{SVG: buf.Bytes(), FooterTop: res.FooterTop}, nil
}

func writeSVG(w http.ResponseWriter, m Rendered, cache string) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set(FooterTopHeader, strconv.Itoa(m.FooterTop))
	w.Header().Set(CacheHeader, cache)
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(m.SVG)
}

type countyResponse struct {
	FIPS      string            `json:"fips"`
	AreaTitle string            `json:"area_title"`
	County    string            `json:"county"`
	State     string            `json:"state"`
	Quintiles map[string]string `json:"quintiles"`
}

func (s *Server) handleCounty(w http.ResponseWriter, r *http.Request) {
	row, ok := dataset.Lookup(s.data.Current(), chi.URLParam(r, "fips"))
	if !ok {
		writeError(w, http.StatusNotFound, "county not found")
		return
	}
	writeJSON(w, http.StatusOK, countyResponse{
		FIPS:      row.FIPS,
		AreaTitle: row.AreaTitle,
		County:    row.County,
		State:     row.State,
		Quintiles: row.Quintiles,
	})
}

type coverageResponse struct {
	*dataset.CoverageReport
	Ratio float64 `json:"ratio"`
}

// handleCoverage reports the join for ?layer=, defaulting to the preset's
// data layer.
func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	layer := r.URL.Query().Get("layer")
	if layer == "" {
		cfg, err := s.presets.Configure(s.opts.Preset, s.opts.Width)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "unknown default preset")
			return
		}
		layer = cfg.DataLayer
	}
	report, err := dataset.Coverage(s.data.Current(), layer)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown layer")
		return
	}
	writeJSON(w, http.StatusOK, coverageResponse{CoverageReport: report, Ratio: report.Ratio()})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "cache disabled"})
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

// handleCachePurge drops cached maps for ?preset=, or all of them.
func (s *Server) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeJSON(w, http.StatusOK, map[string]int{"removed": 0})
		return
	}
	var removed int
	if preset := r.URL.Query().Get("preset"); preset != "" {
		if !s.presets.Has(preset) {
			writeError(w, http.StatusNotFound, "unknown preset")
			return
		}
		removed = s.cache.InvalidatePreset(preset)
	} else {
		removed = s.cache.Purge()
	}
	zap.L().Info("server: cache purged",
		zap.String("component", "server"),
		zap.Int("removed", removed),
	)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// handleReload forces a dataset reload and drops maps of the old dataset.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	reloaded, err := s.data.Reload(r.Context(), true)
	if err != nil {
		zap.L().Error("server: reload failed", zap.String("component", "server"), zap.Error(err))
		writeError(w, http.StatusBadGateway, "reload failed")
		return
	}
	if reloaded && s.cache != nil {
		s.cache.Advance(s.data.Current().Generation())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded": reloaded,
		"frames":   s.data.Current().Frames,
	})
}
