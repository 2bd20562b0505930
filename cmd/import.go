package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wagemap/internal/dataset"
	"github.com/sells-group/wagemap/internal/store"
)

var (
	importFile  string
	importMerge bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a wage series file into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		src := importFile
		if src == "" {
			src = cfg.Data.Wages
		}
		if src == "" || src == dataset.StoreSource {
			return eris.New("a wage file is required (--file or data.wages)")
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		loader := dataset.NewLoader(cfg.Data, newResolver(cfg), nil)
		n, err := importWages(ctx, st, loader, src, importMerge)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("file", src),
			zap.String("driver", cfg.Store.Driver),
			zap.Bool("merge", importMerge),
			zap.Int64("rows", n),
		)
		return nil
	},
}

// importWages reads src and writes it to st, replacing the stored series
// unless merge is set.
func importWages(ctx context.Context, st store.Store, loader *dataset.Loader, src string, merge bool) (int64, error) {
	table, err := loader.LoadWagesFile(ctx, src)
	if err != nil {
		return 0, eris.Wrap(err, "import wages")
	}
	if table.Len() == 0 {
		return 0, eris.Errorf("import wages: %s has no counties", src)
	}

	var n int64
	if merge {
		n, err = st.MergeWages(ctx, table)
	} else {
		n, err = st.SaveWages(ctx, table)
	}
	if err != nil {
		return 0, eris.Wrap(err, "import wages")
	}
	return n, nil
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "CSV or XLSX wage file, path or URL (default data.wages)")
	importCmd.Flags().BoolVar(&importMerge, "merge", false, "update matching counties instead of replacing the stored series")
	rootCmd.AddCommand(importCmd)
}
