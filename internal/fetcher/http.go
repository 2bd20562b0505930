package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// fallbackRate paces hosts without a configured HostRate.
const fallbackRate rate.Limit = 20

// HostRate is the request budget for one host. Adaptive hosts speed up after
// successful responses and slow down on 429, staying within [Rate/4, Rate*2].
type HostRate struct {
	Rate     rate.Limit
	Burst    int
	Adaptive bool
}

// DefaultHostRates covers the census boundary and BLS wage-series hosts.
// www.bls.gov throttles unregistered clients, so it adapts.
func DefaultHostRates() map[string]HostRate {
	return map[string]HostRate{
		"www2.census.gov": {Rate: 5, Burst: 5},
		"data.bls.gov":    {Rate: 2, Burst: 2},
		"www.bls.gov":     {Rate: 2, Burst: 2, Adaptive: true},
	}
}

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Hosts       map[string]HostRate
}

// hostLimiter paces requests to a single host.
type hostLimiter struct {
	mu       sync.Mutex
	lim      *rate.Limiter
	adaptive bool
	floor    rate.Limit
	ceil     rate.Limit
	cur      rate.Limit
}

func newHostLimiter(hr HostRate) *hostLimiter {
	if hr.Rate <= 0 {
		hr.Rate = fallbackRate
	}
	if hr.Burst <= 0 {
		hr.Burst = int(math.Max(1, float64(hr.Rate)))
	}
	return &hostLimiter{
		lim:      rate.NewLimiter(hr.Rate, hr.Burst),
		adaptive: hr.Adaptive,
		floor:    hr.Rate / 4,
		ceil:     hr.Rate * 2,
		cur:      hr.Rate,
	}
}

func (h *hostLimiter) wait(ctx context.Context) error {
	return h.lim.Wait(ctx)
}

// succeeded raises an adaptive limit by 20%.
func (h *hostLimiter) succeeded() {
	if h.adaptive {
		h.adjust(1.2)
	}
}

// throttled halves an adaptive limit.
func (h *hostLimiter) throttled() {
	if h.adaptive {
		h.adjust(0.5)
	}
}

func (h *hostLimiter) adjust(factor float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.cur * rate.Limit(factor)
	next = min(max(next, h.floor), h.ceil)
	if next == h.cur {
		return
	}
	h.cur = next
	h.lim.SetLimit(next)
	if factor < 1 {
		zap.L().Warn("fetcher: slowing host after 429",
			zap.Float64("rate", float64(next)),
		)
	}
}

func (h *hostLimiter) limit() rate.Limit {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur
}

// HTTPFetcher downloads over HTTP(S) with per-host pacing and retries on
// transport errors, 429 and 5xx responses.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu    sync.Mutex
	hosts map[string]*hostLimiter
}

// NewHTTPFetcher creates an HTTPFetcher, filling unset options with defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = time.Second
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "wagemap/1.0"
	}
	if opts.Hosts == nil {
		opts.Hosts = DefaultHostRates()
	}

	hosts := make(map[string]*hostLimiter, len(opts.Hosts))
	for host, hr := range opts.Hosts {
		hosts[host] = newHostLimiter(hr)
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:  opts,
		hosts: hosts,
	}
}

// limiter returns the host's limiter, creating a fallback one on first use.
func (f *HTTPFetcher) limiter(host string) *hostLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hosts[host]
	if !ok {
		h = newHostLimiter(HostRate{Rate: fallbackRate})
		f.hosts[host] = h
	}
	return h
}

func (f *HTTPFetcher) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	lim := f.limiter(req.URL.Host)
	src := req.URL.Redacted()

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if attempt > 0 {
			if err := sleep(ctx, f.delay(attempt-1, lastErr)); err != nil {
				return nil, eris.Wrap(err, "http: retry wait")
			}
		}
		if err := lim.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "http: rate limiter wait")
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			zap.L().Warn("fetcher: request failed",
				zap.String("url", src),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests {
				lim.throttled()
			}
			lastErr = &statusError{
				code:       resp.StatusCode,
				url:        src,
				retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			}
			zap.L().Warn("fetcher: retryable status",
				zap.String("url", src),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			continue
		}

		lim.succeeded()
		return resp, nil
	}
	return nil, eris.Wrap(lastErr, "http: retries exhausted")
}

// statusError is a retryable HTTP response.
type statusError struct {
	code       int
	url        string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return "http " + strconv.Itoa(e.code) + " from " + e.url
}

// delay is the wait before the next attempt: the server's Retry-After when it
// sent one, otherwise exponential backoff with jitter. Both are capped.
func (f *HTTPFetcher) delay(attempt int, lastErr error) time.Duration {
	if se, ok := lastErr.(*statusError); ok && se.retryAfter > 0 {
		return min(se.retryAfter, f.opts.MaxBackoff)
	}
	d := time.Duration(float64(f.opts.BaseBackoff) * math.Pow(2, float64(attempt)))
	d = min(d, f.opts.MaxBackoff)
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

// parseRetryAfter reads delay-seconds or an HTTP date. Unparseable or past
// values give 0.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	at, err := http.ParseTime(v)
	if err != nil || !at.After(now) {
		return 0
	}
	return at.Sub(now)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (f *HTTPFetcher) request(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "http: build %s request", method)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	return req, nil
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := f.request(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := f.do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "http: download")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("http: download: unexpected status %d from %s", resp.StatusCode, req.URL.Redacted())
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL into path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck
	return writeAtomic(path, body)
}

// Version returns the URL's ETag or Last-Modified value.
func (f *HTTPFetcher) Version(ctx context.Context, rawURL string) (string, error) {
	return f.HeadETag(ctx, rawURL)
}

// HeadETag returns the URL's ETag, or its Last-Modified header when the server
// sends no ETag.
func (f *HTTPFetcher) HeadETag(ctx context.Context, rawURL string) (string, error) {
	req, err := f.request(ctx, http.MethodHead, rawURL)
	if err != nil {
		return "", err
	}
	resp, err := f.do(ctx, req)
	if err != nil {
		return "", eris.Wrap(err, "http: head")
	}
	defer resp.Body.Close() //nolint:errcheck

	if etag := resp.Header.Get("ETag"); etag != "" {
		return etag, nil
	}
	return resp.Header.Get("Last-Modified"), nil
}
