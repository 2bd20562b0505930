package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgres_Migrate(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS county_wages`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveWages(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM county_wages`).WillReturnResult(pgxmock.NewResult("DELETE", 6))
	mock.ExpectCopyFrom(pgx.Identifier{"county_wages"}, wageColumns).WillReturnResult(4)
	mock.ExpectExec(`INSERT INTO wage_imports`).
		WithArgs(pgxmock.AnyArg(), ModeReplace, 2, int64(4), "1990,2015", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := st.SaveWages(context.Background(), sampleTable())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveWagesRollsBackOnCopyError(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM county_wages`).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"county_wages"}, wageColumns).WillReturnError(fmt.Errorf("conn reset"))
	mock.ExpectRollback()

	_, err := st.SaveWages(context.Background(), sampleTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: copy wages")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_MergeWages(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_stage_county_wages"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_county_wages"}, wageColumns).WillReturnResult(4)
	mock.ExpectExec(`INSERT INTO "county_wages" .* ON CONFLICT \("fips", "frame"\) DO UPDATE`).
		WillReturnResult(pgxmock.NewResult("INSERT", 4))
	mock.ExpectExec(`INSERT INTO wage_imports`).
		WithArgs(pgxmock.AnyArg(), ModeMerge, 2, int64(4), "1990,2015", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := st.MergeWages(context.Background(), sampleTable())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_MergeWagesRollsBackWhenImportFails(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_county_wages"}, wageColumns).WillReturnResult(4)
	mock.ExpectExec(`INSERT INTO "county_wages"`).WillReturnResult(pgxmock.NewResult("INSERT", 4))
	mock.ExpectExec(`INSERT INTO wage_imports`).
		WithArgs(pgxmock.AnyArg(), ModeMerge, 2, int64(4), "1990,2015", pgxmock.AnyArg()).
		WillReturnError(fmt.Errorf("constraint"))
	mock.ExpectRollback()

	_, err := st.MergeWages(context.Background(), sampleTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: record import")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LoadWages(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows(wageColumns).
		AddRow("1001", "Autauga County, Alabama", "Autauga County", "Alabama", "1990", "3").
		AddRow("1001", "Autauga County, Alabama", "Autauga County", "Alabama", "2015", "4").
		AddRow("46113", "Oglala Lakota County, South Dakota", "Oglala Lakota County", "South Dakota", "2015", "1")
	mock.ExpectQuery(`SELECT fips, area_title, county, state, frame, quintile FROM county_wages`).WillReturnRows(rows)

	got, err := st.LoadWages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1990", "2015"}, got.Frames())
	assert.Equal(t, 2, got.Len())

	row, ok := got.Lookup("46102")
	require.True(t, ok)
	assert.Equal(t, "South Dakota", row.State)
	_, ok = row.Quintile("1990")
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LastImport(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`FROM wage_imports ORDER BY imported_at DESC`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "mode", "counties", "rows", "frames", "imported_at"}).
			AddRow("abc", ModeReplace, 3, int64(6), "1990,2015", at))

	imp, err := st.LastImport(context.Background())
	require.NoError(t, err)
	require.NotNil(t, imp)
	assert.Equal(t, "abc", imp.ID)
	assert.Equal(t, 3, imp.Counties)
	assert.Equal(t, []string{"1990", "2015"}, imp.Frames)
	assert.Equal(t, at, imp.ImportedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LastImportNone(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`FROM wage_imports`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "mode", "counties", "rows", "frames", "imported_at"}))

	imp, err := st.LastImport(context.Background())
	require.NoError(t, err)
	assert.Nil(t, imp)
}
