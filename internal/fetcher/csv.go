package fetcher

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	Delimiter  rune // ',' when zero
	Comment    rune
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV parses r on a goroutine and sends every non-blank record,
// the header included, on the row channel. A leading byte order mark is
// dropped and records may have differing field counts.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	return stream(ctx, "csv", opts.TrimSpace, func(emit func([]string) error) error {
		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.Comment = opts.Comment
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		for {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "csv: context cancelled")
			}
			record, err := reader.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return eris.Wrap(err, "csv: read row")
			}
			if err := emit(record); err != nil {
				return err
			}
		}
	})
}
