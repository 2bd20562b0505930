package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/wagemap/internal/dataset"
)

var coverageLayer string

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Report how boundary features join to the wage series",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initMapEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		layer := coverageLayer
		if layer == "" {
			mapCfg, err := env.Presets.Configure(cfg.Map.Preset, cfg.Render.Width)
			if err != nil {
				return err
			}
			layer = mapCfg.DataLayer
		}

		report, err := dataset.Coverage(env.Dataset, layer)
		if err != nil {
			return err
		}
		printCoverage(cmd.OutOrStdout(), report)
		return nil
	},
}

func printCoverage(w io.Writer, r *dataset.CoverageReport) {
	fmt.Fprintf(w, "layer %s: %d/%d features matched (%.1f%%)\n", r.Layer, r.Matched, r.Features, r.Ratio()*100)
	if e := r.Extent; e != nil {
		fmt.Fprintf(w, "extent: lon %.2f..%.2f, lat %.2f..%.2f\n", e.MinLon, e.MaxLon, e.MinLat, e.MaxLat)
	}
	if len(r.UnmatchedIDs) > 0 {
		fmt.Fprintf(w, "no wage data: %s\n", strings.Join(r.UnmatchedIDs, ", "))
	}
	if len(r.UnusedFIPS) > 0 {
		fmt.Fprintf(w, "no boundary: %s\n", strings.Join(r.UnusedFIPS, ", "))
	}
}

func init() {
	coverageCmd.Flags().StringVar(&coverageLayer, "layer", "", "boundary layer to check (default the preset's data layer)")
	rootCmd.AddCommand(coverageCmd)
}
