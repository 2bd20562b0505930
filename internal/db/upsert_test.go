package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wageColumns = []string{"fips", "frame", "quintile"}

func wageUpsert() UpsertConfig {
	return UpsertConfig{
		Table:        "county_wages",
		Columns:      wageColumns,
		ConflictKeys: []string{"fips", "frame"},
	}
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, wageUpsert(), nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_InvalidConfig(t *testing.T) {
	rows := [][]any{{"1001", "1990", "3"}}
	tests := []struct {
		name string
		cfg  UpsertConfig
		want string
	}{
		{"no table", UpsertConfig{Columns: wageColumns, ConflictKeys: []string{"fips"}}, "no table specified"},
		{"no columns", UpsertConfig{Table: "county_wages", ConflictKeys: []string{"fips"}}, "no columns specified"},
		{"no keys", UpsertConfig{Table: "county_wages", Columns: wageColumns}, "no conflict keys specified"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BulkUpsert(context.Background(), nil, tt.cfg, rows)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUpsertStatements(t *testing.T) {
	create, merge := wageUpsert().statements()
	assert.Equal(t,
		`CREATE TEMP TABLE "_stage_county_wages" (LIKE "county_wages" INCLUDING DEFAULTS) ON COMMIT DROP`,
		create)
	assert.Equal(t,
		`INSERT INTO "county_wages" ("fips", "frame", "quintile") SELECT "fips", "frame", "quintile" FROM "_stage_county_wages" ON CONFLICT ("fips", "frame") DO UPDATE SET "quintile" = EXCLUDED."quintile"`,
		merge)
}

func TestUpsertStatements_KeysOnly(t *testing.T) {
	cfg := UpsertConfig{Table: "wagemap.frames", Columns: []string{"frame"}, ConflictKeys: []string{"frame"}}
	create, merge := cfg.statements()
	assert.Contains(t, create, `"_stage_wagemap_frames"`)
	assert.Contains(t, create, `LIKE "wagemap"."frames"`)
	assert.Contains(t, merge, `ON CONFLICT ("frame") DO NOTHING`)
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TEMP TABLE "_stage_county_wages"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_county_wages"}, wageColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "county_wages" .* ON CONFLICT \("fips", "frame"\) DO UPDATE SET "quintile" = EXCLUDED."quintile"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	n, err := BulkUpsert(context.Background(), mock, wageUpsert(),
		[][]any{{"1001", "1990", "3"}, {"1001", "2015", "4"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_county_wages"}, wageColumns).WillReturnError(fmt.Errorf("disk full"))

	_, err = BulkUpsert(context.Background(), mock, wageUpsert(), [][]any{{"1001", "1990", "3"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fill staging table for county_wages")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM county_wages`).WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCommit()

	err = WithTx(context.Background(), mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), `DELETE FROM county_wages`)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = WithTx(context.Background(), mock, func(pgx.Tx) error {
		return fmt.Errorf("boom")
	})
	require.EqualError(t, err, "boom")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"county_wages"`, sanitizeTable("county_wages"))
	assert.Equal(t, `"wagemap"."county_wages"`, sanitizeTable("wagemap.county_wages"))
}
