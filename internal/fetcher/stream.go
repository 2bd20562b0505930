package fetcher

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// streamBuffer is the row channel capacity for StreamCSV and StreamXLSX.
const streamBuffer = 64

// stream runs produce on its own goroutine. Records passed to emit are cleaned
// and forwarded on the row channel; blank records are dropped. The error
// channel carries at most one error. Both channels close when produce returns.
func stream(ctx context.Context, kind string, trim bool, produce func(emit func([]string) error) error) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, streamBuffer)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		first := true
		emit := func(rec []string) error {
			if first && len(rec) > 0 {
				rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
				first = false
			}
			if blank := cleanRecord(rec, trim); blank {
				return nil
			}
			select {
			case rowCh <- rec:
				return nil
			case <-ctx.Done():
				return eris.Wrapf(ctx.Err(), "%s: context cancelled", kind)
			}
		}
		if err := produce(emit); err != nil {
			errCh <- err
		}
	}()
	return rowCh, errCh
}

// cleanRecord trims fields in place when trim is set and reports whether
// every field is empty.
func cleanRecord(rec []string, trim bool) bool {
	blank := true
	for i, field := range rec {
		if trim {
			field = strings.TrimSpace(field)
			rec[i] = field
		}
		if strings.TrimSpace(field) != "" {
			blank = false
		}
	}
	return blank
}
