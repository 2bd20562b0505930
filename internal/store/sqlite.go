package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/wagemap/internal/wages"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	id          TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	counties    INTEGER NOT NULL,
	rows        INTEGER NOT NULL,
	frames      TEXT NOT NULL,
	imported_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_county_wages_state ON county_wages(state);
CREATE INDEX IF NOT EXISTS idx_wage_imports_imported_at ON wage_imports(imported_at);
`

// Migrate creates the tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertWage = `INSERT INTO county_wages (fips, area_title, county, state, frame, quintile) VALUES (?, ?, ?, ?, ?, ?)`

const sqliteUpsertWage = sqliteInsertWage + `
ON CONFLICT (fips, frame) DO UPDATE SET
	area_title = excluded.area_title,
	county = excluded.county,
	state = excluded.state,
	quintile = excluded.quintile`

// SaveWages implements Store.
func (s *SQLiteStore) SaveWages(ctx context.Context, t *wages.Table) (int64, error) {
	return s.write(ctx, t, ModeReplace)
}

// MergeWages implements Store.
func (s *SQLiteStore) MergeWages(ctx context.Context, t *wages.Table) (int64, error) {
	return s.write(ctx, t, ModeMerge)
}

func (s *SQLiteStore) write(ctx context.Context, t *wages.Table, mode string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	query := sqliteUpsertWage
	if mode == ModeReplace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM county_wages`); err != nil {
			return 0, eris.Wrap(err, "sqlite: clear wages")
		}
		query = sqliteInsertWage
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare wage insert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, row := range wageRows(t) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert wage %v", row[0])
		}
		n++
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wage_imports (id, mode, counties, rows, frames, imported_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), mode, t.Len(), n, joinFrames(t.Frames()), time.Now().UTC(),
	); err != nil {
		return 0, eris.Wrap(err, "sqlite: record import")
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return n, nil
}

// LoadWages implements Store.
func (s *SQLiteStore) LoadWages(ctx context.Context) (*wages.Table, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fips, area_title, county, state, frame, quintile FROM county_wages ORDER BY length(fips), fips, frame`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query wages")
	}
	defer rows.Close()

	b := newTableBuilder()
	for rows.Next() {
		var fips, title, county, state, frame, quintile string
		if err := rows.Scan(&fips, &title, &county, &state, &frame, &quintile); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan wage")
		}
		b.add(fips, title, county, state, frame, quintile)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate wages")
	}
	return b.table(), nil
}

// LastImport implements Store. It returns nil when nothing was imported.
func (s *SQLiteStore) LastImport(ctx context.Context) (*Import, error) {
	var (
		imp    Import
		frames string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, mode, counties, rows, frames, imported_at FROM wage_imports ORDER BY imported_at DESC, rowid DESC LIMIT 1`,
	).Scan(&imp.ID, &imp.Mode, &imp.Counties, &imp.Rows, &frames, &imp.ImportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last import")
	}
	imp.Frames = splitFrames(frames)
	return &imp, nil
}
