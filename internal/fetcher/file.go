package fetcher

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// writeAtomic copies r into a sibling .part file and renames it to path once
// the copy completes. A failed copy leaves nothing at path.
func writeAtomic(path string, r io.Reader) (int64, error) {
	part := path + ".part"
	f, err := os.Create(part)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(part)
		return n, eris.Wrap(err, "fetcher: write file")
	}
	if err := os.Rename(part, path); err != nil {
		_ = os.Remove(part)
		return n, eris.Wrap(err, "fetcher: rename download")
	}
	return n, nil
}
