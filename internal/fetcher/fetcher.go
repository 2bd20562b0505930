// Package fetcher resolves data sources (local paths, HTTP and FTP URLs) and
// parses the CSV, JSON, XLSX and ZIP payloads the map is built from.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Versioner is implemented by fetchers that can detect content changes
// without downloading.
type Versioner interface {
	Version(ctx context.Context, url string) (string, error)
}

// Options configures a Resolver.
type Options struct {
	HTTP    HTTPOptions
	FTP     FTPOptions
	Breaker BreakerOptions
}

// Resolver opens data sources by scheme. Plain paths and file:// URLs are read
// from disk, http(s):// through an HTTPFetcher and ftp:// through an FTPFetcher.
type Resolver struct {
	fetchers map[string]Fetcher
	breakers *hostBreakers
}

// NewResolver creates a Resolver with HTTP and FTP fetchers.
func NewResolver(opts Options) *Resolver {
	httpFetcher := NewHTTPFetcher(opts.HTTP)
	return &Resolver{
		fetchers: map[string]Fetcher{
			"http":  httpFetcher,
			"https": httpFetcher,
			"ftp":   NewFTPFetcher(opts.FTP),
		},
		breakers: newHostBreakers(opts.Breaker),
	}
}

// WithFetcher overrides the fetcher used for a scheme.
func (r *Resolver) WithFetcher(scheme string, f Fetcher) *Resolver {
	r.fetchers[scheme] = f
	return r
}

// IsRemote reports whether src is a URL with a non-file scheme.
func IsRemote(src string) bool {
	scheme, _ := splitScheme(src)
	return scheme != "" && scheme != "file"
}

// Ext returns the lowercased file extension of a path or URL path.
func Ext(src string) string {
	_, p := splitScheme(src)
	return strings.ToLower(filepath.Ext(p))
}

func splitScheme(src string) (string, string) {
	u, err := url.Parse(src)
	if err != nil || len(u.Scheme) < 2 {
		// Single-letter schemes are Windows drive letters.
		return "", src
	}
	if u.Scheme == "file" {
		return "file", u.Path
	}
	return strings.ToLower(u.Scheme), u.Path
}

// Open returns a reader for the source. The caller must close it.
func (r *Resolver) Open(ctx context.Context, src string) (io.ReadCloser, error) {
	scheme, p := splitScheme(src)
	if scheme == "" || scheme == "file" {
		f, err := os.Open(p)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", p)
		}
		return f, nil
	}

	f, ok := r.fetchers[scheme]
	if !ok {
		return nil, eris.Errorf("fetcher: unsupported scheme %q", scheme)
	}

	zap.L().Debug("fetcher: downloading", zap.String("source", src))
	var rc io.ReadCloser
	err := r.breakers.guard(ctx, src, func(ctx context.Context) error {
		var err error
		rc, err = f.Download(ctx, src)
		return err
	})
	return rc, err
}

// Localize returns a local path holding the source's bytes. Local sources are
// returned unchanged; remote sources are downloaded into dir.
func (r *Resolver) Localize(ctx context.Context, src, dir string) (string, error) {
	scheme, p := splitScheme(src)
	if scheme == "" || scheme == "file" {
		if _, err := os.Stat(p); err != nil {
			return "", eris.Wrapf(err, "fetcher: stat %s", p)
		}
		return p, nil
	}

	f, ok := r.fetchers[scheme]
	if !ok {
		return "", eris.Errorf("fetcher: unsupported scheme %q", scheme)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create download dir")
	}
	name := filepath.Base(p)
	if name == "." || name == "/" || name == "" {
		name = "download"
	}
	dest := filepath.Join(dir, name)

	var n int64
	err := r.breakers.guard(ctx, src, func(ctx context.Context) error {
		var err error
		n, err = f.DownloadToFile(ctx, src, dest)
		return err
	})
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: localize %s", src)
	}
	zap.L().Info("fetcher: downloaded source",
		zap.String("source", src),
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return dest, nil
}

// Version returns a token that changes whenever the source's content does:
// the ETag for HTTP sources, size and modification time for local and FTP
// files.
// Sources without change detection return an empty token.
func (r *Resolver) Version(ctx context.Context, src string) (string, error) {
	scheme, p := splitScheme(src)
	if scheme == "" || scheme == "file" {
		info, err := os.Stat(p)
		if err != nil {
			return "", eris.Wrapf(err, "fetcher: stat %s", p)
		}
		return fmt.Sprintf("%d-%s", info.Size(), info.ModTime().UTC().Format(time.RFC3339Nano)), nil
	}

	vf, ok := r.fetchers[scheme].(Versioner)
	if !ok {
		return "", nil
	}
	var v string
	err := r.breakers.guard(ctx, src, func(ctx context.Context) error {
		var err error
		v, err = vf.Version(ctx, src)
		return err
	})
	return v, err
}
