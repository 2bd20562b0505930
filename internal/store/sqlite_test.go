package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wagemap/internal/config"
	"github.com/sells-group/wagemap/internal/wages"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func sampleTable() *wages.Table {
	t := wages.NewTable([]string{"1990", "2015"})
	t.Add(&wages.Row{
		FIPS: "1001", AreaTitle: "Autauga County, Alabama", County: "Autauga County", State: "Alabama",
		Quintiles: map[string]string{"1990": "3", "2015": "4"},
	})
	t.Add(&wages.Row{
		FIPS: "11001", AreaTitle: "District of Columbia", County: "District of Columbia", State: "DC",
		Quintiles: map[string]string{"1990": "5", "2015": ""},
	})
	return t
}

func TestSQLite_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLiteStore(t)

	n, err := st.SaveWages(ctx, sampleTable())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	got, err := st.LoadWages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1990", "2015"}, got.Frames())
	require.Equal(t, 2, got.Len())

	row, ok := got.Lookup("01001")
	require.True(t, ok)
	assert.Equal(t, "Alabama", row.State)
	q, ok := row.Quintile("2015")
	assert.True(t, ok)
	assert.Equal(t, "4", q)

	dc, ok := got.Lookup("11001")
	require.True(t, ok)
	_, ok = dc.Quintile("2015")
	assert.False(t, ok, "empty quintile stays missing")

	assert.Equal(t, "1001", got.Rows()[0].FIPS)
}

func TestSQLite_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLiteStore(t)

	_, err := st.SaveWages(ctx, sampleTable())
	require.NoError(t, err)

	next := wages.NewTable([]string{"2020"})
	next.Add(&wages.Row{FIPS: "2270", AreaTitle: "Wade Hampton Census Area, Alaska", State: "Alaska",
		Quintiles: map[string]string{"2020": "1"}})
	_, err = st.SaveWages(ctx, next)
	require.NoError(t, err)

	got, err := st.LoadWages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2020"}, got.Frames())
	assert.Equal(t, 1, got.Len())
	_, ok := got.Lookup("02158")
	assert.True(t, ok, "renamed code resolves")
}

func TestSQLite_MergeKeepsOtherRows(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLiteStore(t)

	_, err := st.SaveWages(ctx, sampleTable())
	require.NoError(t, err)

	update := wages.NewTable([]string{"2015"})
	update.Add(&wages.Row{FIPS: "1001", AreaTitle: "Autauga County, Alabama", County: "Autauga County",
		State: "Alabama", Quintiles: map[string]string{"2015": "1"}})
	n, err := st.MergeWages(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := st.LoadWages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	row, _ := got.Lookup("1001")
	q, _ := row.Quintile("2015")
	assert.Equal(t, "1", q)
	q, _ = row.Quintile("1990")
	assert.Equal(t, "3", q)
}

func TestSQLite_LastImport(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLiteStore(t)

	imp, err := st.LastImport(ctx)
	require.NoError(t, err)
	assert.Nil(t, imp)

	_, err = st.SaveWages(ctx, sampleTable())
	require.NoError(t, err)
	_, err = st.MergeWages(ctx, sampleTable())
	require.NoError(t, err)

	imp, err = st.LastImport(ctx)
	require.NoError(t, err)
	require.NotNil(t, imp)
	assert.Equal(t, ModeMerge, imp.Mode)
	assert.Equal(t, 2, imp.Counties)
	assert.Equal(t, int64(4), imp.Rows)
	assert.Equal(t, []string{"1990", "2015"}, imp.Frames)
	assert.NotEmpty(t, imp.ID)
	assert.False(t, imp.ImportedAt.IsZero())
}

func TestSQLite_LoadEmpty(t *testing.T) {
	got, err := newTestSQLiteStore(t).LoadWages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Empty(t, got.Frames())
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	st, err := New(ctx, config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "w.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, st)
	require.NoError(t, st.Close())

	_, err = New(ctx, config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "mysql"`)
}
