// Package store persists imported wage series so the map can be served
// without the original files.
package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wagemap/internal/config"
	"github.com/sells-group/wagemap/internal/db"
	"github.com/sells-group/wagemap/internal/wages"
)

// Import modes.
const (
	ModeReplace = "replace"
	ModeMerge   = "merge"
)

// Import records one SaveWages or MergeWages call.
type Import struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Counties   int       `json:"counties"`
	Rows       int64     `json:"rows"`
	Frames     []string  `json:"frames"`
	ImportedAt time.Time `json:"imported_at"`
}

// Store defines the persistence interface for wage series.
type Store interface {
	// SaveWages replaces the stored series with t. It returns rows written.
	SaveWages(ctx context.Context, t *wages.Table) (int64, error)
	// MergeWages inserts or updates t's rows, keeping other stored rows.
	MergeWages(ctx context.Context, t *wages.Table) (int64, error)
	LoadWages(ctx context.Context) (*wages.Table, error)
	LastImport(ctx context.Context) (*Import, error)

	Migrate(ctx context.Context) error
	Close() error
}

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &db.PoolConfig{MaxConns: cfg.MaxConns})
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

var wageColumns = []string{"fips", "area_title", "county", "state", "frame", "quintile"}

// wageRows flattens t into one row per county and frame.
func wageRows(t *wages.Table) [][]any {
	frames := t.Frames()
	rows := make([][]any, 0, t.Len()*len(frames))
	for _, r := range t.Rows() {
		for _, frame := range frames {
			rows = append(rows, []any{r.FIPS, r.AreaTitle, r.County, r.State, frame, r.Quintiles[frame]})
		}
	}
	return rows
}

// tableBuilder reassembles stored rows into a table.
type tableBuilder struct {
	frames map[string]bool
	rows   []*wages.Row
	byFIPS map[string]*wages.Row
}

func newTableBuilder() *tableBuilder {
	return &tableBuilder{frames: make(map[string]bool), byFIPS: make(map[string]*wages.Row)}
}

func (b *tableBuilder) add(fips, areaTitle, county, state, frame, quintile string) {
	r, ok := b.byFIPS[fips]
	if !ok {
		r = &wages.Row{FIPS: fips, AreaTitle: areaTitle, County: county, State: state, Quintiles: make(map[string]string)}
		b.byFIPS[fips] = r
		b.rows = append(b.rows, r)
	}
	r.Quintiles[frame] = quintile
	b.frames[frame] = true
}

func (b *tableBuilder) table() *wages.Table {
	frames := make([]string, 0, len(b.frames))
	for f := range b.frames {
		frames = append(frames, f)
	}
	sort.Strings(frames)
	t := wages.NewTable(frames)
	for _, r := range b.rows {
		t.Add(r)
	}
	return t
}

func joinFrames(frames []string) string {
	return strings.Join(frames, ",")
}

func splitFrames(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
