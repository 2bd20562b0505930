package dataset

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/wagemap/internal/geo"
	"github.com/sells-group/wagemap/internal/wages"
)

// CoverageReport describes how well a layer joins to the wage series.
type CoverageReport struct {
	Layer     string `json:"layer"`
	Features  int    `json:"features"`
	Matched   int    `json:"matched"`
	Unmatched int    `json:"unmatched"`
	// UnmatchedIDs are feature IDs with no wage row.
	UnmatchedIDs []string `json:"unmatched_ids"`
	// UnusedFIPS are wage rows no feature joined to.
	UnusedFIPS []string `json:"unused_fips"`
	// Extent is the layer's lon/lat bounding box, nil when it has no coordinates.
	Extent *geo.Extent `json:"extent,omitempty"`
}

// Ratio is the matched share of features.
func (r CoverageReport) Ratio() float64 {
	if r.Features == 0 {
		return 0
	}
	return float64(r.Matched) / float64(r.Features)
}

// Coverage joins layer's features to the wage series.
func Coverage(ds *Dataset, layer string) (*CoverageReport, error) {
	coll, ok := ds.Layer(layer)
	if !ok {
		return nil, eris.Errorf("dataset: unknown layer %q", layer)
	}

	report := &CoverageReport{Layer: layer, Features: coll.Len()}
	if e, ok := geo.Bounds(coll); ok {
		report.Extent = &e
	}
	used := make(map[string]bool, ds.Wages.Len())
	for _, f := range coll.Features {
		row, ok := ds.Wages.Lookup(f.ID)
		if !ok {
			report.Unmatched++
			report.UnmatchedIDs = append(report.UnmatchedIDs, f.ID)
			continue
		}
		report.Matched++
		used[row.FIPS] = true
	}
	for _, row := range ds.Wages.Rows() {
		if !used[row.FIPS] {
			report.UnusedFIPS = append(report.UnusedFIPS, row.FIPS)
		}
	}
	sort.Strings(report.UnmatchedIDs)
	sort.Strings(report.UnusedFIPS)
	return report, nil
}

// Lookup finds the wage row for a FIPS code in ds.
func Lookup(ds *Dataset, fips string) (*wages.Row, bool) {
	return ds.Wages.Lookup(fips)
}
