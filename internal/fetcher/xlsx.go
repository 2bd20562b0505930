package fetcher

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures StreamXLSX.
type XLSXOptions struct {
	Sheet     string // first sheet when empty
	TrimSpace bool
}

// StreamXLSX reads one sheet of a workbook and sends its non-blank rows,
// formatted as displayed, on the row channel.
func StreamXLSX(ctx context.Context, path string, opts XLSXOptions) (<-chan []string, <-chan error) {
	return stream(ctx, "xlsx", opts.TrimSpace, func(emit func([]string) error) error {
		f, err := xlsx.OpenFile(path)
		if err != nil {
			return eris.Wrap(err, "xlsx: open file")
		}
		sheet, err := pickSheet(f, opts.Sheet)
		if err != nil {
			return err
		}
		for _, row := range sheet.Rows {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "xlsx: context cancelled")
			}
			if row == nil {
				continue
			}
			cells := make([]string, len(row.Cells))
			for i, cell := range row.Cells {
				cells[i] = cell.String()
			}
			if err := emit(cells); err != nil {
				return err
			}
		}
		return nil
	})
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}
