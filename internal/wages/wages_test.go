package wages

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

const sampleCSV = `area_fips,area_title,1990,2015
1001,"Autauga County, Alabama",3,4
02270,"Kusilvak Census Area, Alaska",1,1
11001,District of Columbia,5,5
46113,"Oglala Lakota County, South Dakota",1,1
,"Unknown, Nowhere",2,2
`

func loadSample(t *testing.T) *Table {
	t.Helper()
	tbl, err := LoadCSV(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	return tbl
}

func TestLoadCSV(t *testing.T) {
	tbl := loadSample(t)
	assert.Equal(t, 4, tbl.Len())
	assert.Equal(t, []string{"1990", "2015"}, tbl.Frames())
	assert.True(t, tbl.HasFrame("2015"))
	assert.False(t, tbl.HasFrame("2000"))

	row, ok := tbl.Lookup("01001")
	require.True(t, ok)
	assert.Equal(t, "1001", row.FIPS)
	assert.Equal(t, "Autauga County", row.County)
	assert.Equal(t, "Alabama", row.State)
	q, ok := row.Quintile("2015")
	assert.True(t, ok)
	assert.Equal(t, "4", q)

	_, ok = row.Quintile("2000")
	assert.False(t, ok)
}

func TestLoadCSV_DistrictOfColumbia(t *testing.T) {
	row, ok := loadSample(t).Lookup("11001")
	require.True(t, ok)
	assert.Equal(t, "District of Columbia", row.County)
	assert.Equal(t, "DC", row.State)
}

func TestLookup_RetiredCodes(t *testing.T) {
	tbl := loadSample(t)

	row, ok := tbl.Lookup("02158")
	require.True(t, ok)
	assert.Equal(t, "2270", row.FIPS)

	row, ok = tbl.Lookup("46102")
	require.True(t, ok)
	assert.Equal(t, "46113", row.FIPS)

	_, ok = tbl.Lookup("99999")
	assert.False(t, ok)
}

func TestLookup_NilTable(t *testing.T) {
	var tbl *Table
	_, ok := tbl.Lookup("1001")
	assert.False(t, ok)
	assert.Equal(t, 0, tbl.Len())
}

func TestRows_InsertionOrder(t *testing.T) {
	rows := loadSample(t).Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, "1001", rows[0].FIPS)
	assert.Equal(t, "46113", rows[3].FIPS)
}

func TestAdd_ReplacesDuplicate(t *testing.T) {
	tbl := NewTable([]string{"1990"})
	tbl.Add(&Row{FIPS: "01001", Quintiles: map[string]string{"1990": "1"}})
	tbl.Add(&Row{FIPS: "1001", Quintiles: map[string]string{"1990": "2"}})
	require.Equal(t, 1, tbl.Len())
	row, _ := tbl.Lookup("1001")
	assert.Equal(t, "2", row.Quintiles["1990"])
}

func TestNormalizeFIPS(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"01001", "1001"},
		{" 06037 ", "6037"},
		{"02158", "2270"},
		{"2158", "2270"},
		{"46102", "46113"},
		{"46113", "46113"},
		{"000", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFIPS(tt.in))
		})
	}
}

func TestSplitAreaTitle(t *testing.T) {
	county, state := SplitAreaTitle("Cook County, Illinois")
	assert.Equal(t, "Cook County", county)
	assert.Equal(t, "Illinois", state)

	county, state = SplitAreaTitle("Nowhere")
	assert.Equal(t, "Nowhere", county)
	assert.Equal(t, "", state)
}

func TestLoadCSV_MissingColumn(t *testing.T) {
	_, err := LoadCSV(context.Background(), strings.NewReader("area_title,1990\nX,1\n"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), "area_fips")
}

func TestLoadCSV_Empty(t *testing.T) {
	_, err := LoadCSV(context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty file")
}

func TestLoadCSV_ByteOrderMark(t *testing.T) {
	tbl, err := LoadCSV(context.Background(), strings.NewReader("\ufeffarea_fips,area_title,1990\n1001,\"A, B\",2\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}

func TestLoadXLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rec := range [][]string{
		{"area_fips", "area_title", "1990", "2015"},
		{"1001", "Autauga County, Alabama", "3", "4"},
		{"11001", "District of Columbia", "5", "5"},
	} {
		row := sheet.AddRow()
		for _, v := range rec {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "wages.xlsx")
	require.NoError(t, f.Save(path))

	tbl, err := LoadXLSX(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"1990", "2015"}, tbl.Frames())
	row, ok := tbl.Lookup("11001")
	require.True(t, ok)
	assert.Equal(t, "DC", row.State)
}

func TestLoadXLSX_MissingFile(t *testing.T) {
	_, err := LoadXLSX(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wages: load xlsx")
}
