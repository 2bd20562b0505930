// Package wages loads the county wage-quintile series and joins it to
// boundary features by FIPS code.
package wages

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wagemap/internal/fetcher"
)

// Column names every wage file carries. All other columns are frames.
const (
	ColumnFIPS      = "area_fips"
	ColumnAreaTitle = "area_title"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = eris.New("missing required column")

// renames maps retired county FIPS codes found in older boundary files to the
// codes the wage series uses.
var renames = map[string]string{
	"2158":  "2270",  // Wade Hampton Census Area, AK -> Kusilvak
	"46102": "46113", // Shannon County, SD -> Oglala Lakota
}

// Row is one county in the series.
type Row struct {
	FIPS      string
	AreaTitle string
	County    string
	State     string
	// Quintiles maps a frame (year) to the county's quintile in that frame.
	Quintiles map[string]string
}

// Quintile returns the row's value for frame.
func (r *Row) Quintile(frame string) (string, bool) {
	q, ok := r.Quintiles[frame]
	return q, ok && q != ""
}

// Table is the wage series keyed by FIPS.
type Table struct {
	frames []string
	rows   map[string]*Row
	order  []string
}

// NewTable returns an empty table with the given frames.
func NewTable(frames []string) *Table {
	return &Table{
		frames: append([]string(nil), frames...),
		rows:   make(map[string]*Row),
	}
}

// Add inserts or replaces the row with r's FIPS. The key is stored without
// leading zeros.
func (t *Table) Add(r *Row) {
	r.FIPS = TrimFIPS(r.FIPS)
	if _, ok := t.rows[r.FIPS]; !ok {
		t.order = append(t.order, r.FIPS)
	}
	t.rows[r.FIPS] = r
}

// Lookup finds the row for a boundary feature ID.
func (t *Table) Lookup(featureID string) (*Row, bool) {
	if t == nil {
		return nil, false
	}
	r, ok := t.rows[NormalizeFIPS(featureID)]
	return r, ok
}

// Frames returns the frame names in file order.
func (t *Table) Frames() []string {
	return append([]string(nil), t.frames...)
}

// HasFrame reports whether frame is a column of the series.
func (t *Table) HasFrame(frame string) bool {
	for _, f := range t.frames {
		if f == frame {
			return true
		}
	}
	return false
}

// Len returns the number of counties.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Rows returns the rows in insertion order.
func (t *Table) Rows() []*Row {
	out := make([]*Row, 0, len(t.order))
	for _, fips := range t.order {
		out = append(out, t.rows[fips])
	}
	return out
}

// TrimFIPS strips whitespace and leading zeros.
func TrimFIPS(id string) string {
	return strings.TrimLeft(strings.TrimSpace(id), "0")
}

// NormalizeFIPS converts a boundary feature ID to the key used by the series:
// leading zeros are dropped and retired county codes are renamed.
func NormalizeFIPS(id string) string {
	fips := TrimFIPS(id)
	if renamed, ok := renames[fips]; ok {
		return renamed
	}
	return fips
}

// SplitAreaTitle splits "County, ST" into its parts. The District of Columbia
// has no state suffix and is assigned DC.
func SplitAreaTitle(title string) (county, state string) {
	parts := strings.Split(title, ", ")
	county = parts[0]
	if len(parts) > 1 {
		state = parts[1]
	}
	if county == "District of Columbia" {
		state = "DC"
	}
	return county, state
}

// Parse builds a table from a header and a stream of records.
func Parse(ctx context.Context, header []string, rows <-chan []string) (*Table, error) {
	fipsIdx, titleIdx := -1, -1
	var frames []string
	frameIdx := make(map[int]string)
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch h {
		case ColumnFIPS:
			fipsIdx = i
		case ColumnAreaTitle:
			titleIdx = i
		case "":
		default:
			frames = append(frames, h)
			frameIdx[i] = h
		}
	}
	if fipsIdx < 0 {
		return nil, eris.Wrapf(ErrMissingColumn, "wages: %s", ColumnFIPS)
	}
	if titleIdx < 0 {
		return nil, eris.Wrapf(ErrMissingColumn, "wages: %s", ColumnAreaTitle)
	}

	t := NewTable(frames)
	skipped := 0
	for rec := range rows {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "wages: parse cancelled")
		}
		if fipsIdx >= len(rec) || TrimFIPS(rec[fipsIdx]) == "" {
			skipped++
			continue
		}
		r := &Row{FIPS: rec[fipsIdx], Quintiles: make(map[string]string, len(frames))}
		if titleIdx < len(rec) {
			r.AreaTitle = strings.TrimSpace(rec[titleIdx])
			r.County, r.State = SplitAreaTitle(r.AreaTitle)
		}
		for i, frame := range frameIdx {
			if i < len(rec) {
				r.Quintiles[frame] = strings.TrimSpace(rec[i])
			}
		}
		t.Add(r)
	}

	zap.L().Debug("wages: parsed table",
		zap.String("component", "wages"),
		zap.Int("counties", t.Len()),
		zap.Strings("frames", frames),
		zap.Int("skipped", skipped),
	)
	return t, nil
}

// LoadCSV reads a wage series from CSV.
func LoadCSV(ctx context.Context, r io.Reader) (*Table, error) {
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{TrimSpace: true})
	t, err := parseStream(ctx, rowCh, errCh)
	if err != nil {
		return nil, eris.Wrap(err, "wages: load csv")
	}
	return t, nil
}

// LoadXLSX reads a wage series from the first sheet of a workbook.
func LoadXLSX(ctx context.Context, path string) (*Table, error) {
	rowCh, errCh := fetcher.StreamXLSX(ctx, path, fetcher.XLSXOptions{TrimSpace: true})
	t, err := parseStream(ctx, rowCh, errCh)
	if err != nil {
		return nil, eris.Wrap(err, "wages: load xlsx")
	}
	return t, nil
}

// parseStream treats the first record as the header. The row channel is
// always drained so the producer can exit.
func parseStream(ctx context.Context, rowCh <-chan []string, errCh <-chan error) (*Table, error) {
	defer func() {
		for range rowCh {
		}
	}()

	header, ok := <-rowCh
	if !ok {
		if err := <-errCh; err != nil {
			return nil, err
		}
		return nil, eris.New("wages: empty file")
	}

	t, err := Parse(ctx, header, rowCh)
	if err != nil {
		return nil, err
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return t, nil
}
