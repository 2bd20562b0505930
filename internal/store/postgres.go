package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/wagemap/internal/db"
	"github.com/sells-group/wagemap/internal/wages"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS county_wages (
	fips       TEXT NOT NULL,
	area_title TEXT NOT NULL,
	county     TEXT NOT NULL,
	state      TEXT NOT NULL,
	frame      TEXT NOT NULL,
	quintile   TEXT NOT NULL,
	PRIMARY KEY (fips, frame)
);

CREATE TABLE IF NOT EXISTS wage_imports (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	mode        TEXT NOT NULL,
	counties    INTEGER NOT NULL,
	rows        BIGINT NOT NULL,
	frames      TEXT NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_county_wages_state ON county_wages(state);
CREATE INDEX IF NOT EXISTS idx_wage_imports_imported_at ON wage_imports(imported_at);
`

// Migrate creates the tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const insertImport = `INSERT INTO wage_imports (id, mode, counties, rows, frames, imported_at) VALUES ($1, $2, $3, $4, $5, $6)`

// SaveWages implements Store. The old series is deleted and the new one
// copied in within one transaction.
func (s *PostgresStore) SaveWages(ctx context.Context, t *wages.Table) (int64, error) {
	var n int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM county_wages`); err != nil {
			return eris.Wrap(err, "postgres: clear wages")
		}
		var err error
		if n, err = db.CopyFrom(ctx, tx, "county_wages", wageColumns, wageRows(t)); err != nil {
			return eris.Wrap(err, "postgres: copy wages")
		}
		return recordImport(ctx, tx, ModeReplace, t, n)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// MergeWages implements Store. The upsert and its import record commit
// together.
func (s *PostgresStore) MergeWages(ctx context.Context, t *wages.Table) (int64, error) {
	var n int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		n, err = db.BulkUpsert(ctx, tx, db.UpsertConfig{
			Table:        "county_wages",
			Columns:      wageColumns,
			ConflictKeys: []string{"fips", "frame"},
		}, wageRows(t))
		if err != nil {
			return eris.Wrap(err, "postgres: merge wages")
		}
		return recordImport(ctx, tx, ModeMerge, t, n)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func recordImport(ctx context.Context, tx db.Tx, mode string, t *wages.Table, n int64) error {
	if _, err := tx.Exec(ctx, insertImport,
		uuid.New().String(), mode, t.Len(), n, joinFrames(t.Frames()), time.Now().UTC(),
	); err != nil {
		return eris.Wrap(err, "postgres: record import")
	}
	return nil
}

// LoadWages implements Store.
func (s *PostgresStore) LoadWages(ctx context.Context) (*wages.Table, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT fips, area_title, county, state, frame, quintile FROM county_wages ORDER BY length(fips), fips, frame`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query wages")
	}
	defer rows.Close()

	b := newTableBuilder()
	for rows.Next() {
		var fips, title, county, state, frame, quintile string
		if err := rows.Scan(&fips, &title, &county, &state, &frame, &quintile); err != nil {
			return nil, eris.Wrap(err, "postgres: scan wage")
		}
		b.add(fips, title, county, state, frame, quintile)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate wages")
	}
	return b.table(), nil
}

// LastImport implements Store. It returns nil when nothing was imported.
func (s *PostgresStore) LastImport(ctx context.Context) (*Import, error) {
	var (
		imp    Import
		frames string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, mode, counties, rows, frames, imported_at FROM wage_imports ORDER BY imported_at DESC LIMIT 1`,
	).Scan(&imp.ID, &imp.Mode, &imp.Counties, &imp.Rows, &frames, &imp.ImportedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: last import")
	}
	imp.Frames = splitFrames(frames)
	return &imp, nil
}
