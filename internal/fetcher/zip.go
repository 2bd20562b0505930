package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// MaxZIPEntryBytes caps the uncompressed size of one extracted entry.
// National county boundary files are well under it.
const MaxZIPEntryBytes = 1 << 30

// ExtractZIP unpacks a boundary archive into destDir and returns the paths of
// the files written. Entries naming paths outside destDir are rejected.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var written []string
	for _, entry := range r.File {
		name := filepath.FromSlash(entry.Name)
		if !filepath.IsLocal(name) {
			return written, eris.Errorf("zip: entry %q escapes the destination", entry.Name)
		}
		dest := filepath.Join(destDir, name)

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return written, eris.Wrap(err, "zip: create directory")
			}
			continue
		}
		if entry.UncompressedSize64 > MaxZIPEntryBytes {
			return written, eris.Errorf("zip: entry %q is larger than %d bytes", entry.Name, MaxZIPEntryBytes)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return written, eris.Wrap(err, "zip: create parent directory")
		}
		if err := extractEntry(entry, dest); err != nil {
			return written, err
		}
		written = append(written, dest)
	}
	return written, nil
}

func extractEntry(entry *zip.File, dest string) error {
	rc, err := entry.Open()
	if err != nil {
		return eris.Wrapf(err, "zip: open %s", entry.Name)
	}
	defer rc.Close() //nolint:errcheck

	n, err := writeAtomic(dest, io.LimitReader(rc, MaxZIPEntryBytes+1))
	if err != nil {
		return eris.Wrapf(err, "zip: extract %s", entry.Name)
	}
	if n > MaxZIPEntryBytes {
		_ = os.Remove(dest)
		return eris.Errorf("zip: entry %q is larger than %d bytes", entry.Name, MaxZIPEntryBytes)
	}
	return nil
}

// FindFile returns the first regular file under dir, in lexical walk order,
// whose extension matches ext case-insensitively.
func FindFile(dir, ext string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ext) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "zip: walk %s", dir)
	}
	if found == "" {
		return "", eris.Errorf("zip: no %s file under %s", ext, dir)
	}
	return found, nil
}
