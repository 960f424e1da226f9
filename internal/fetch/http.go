// Package fetch performs single network retrievals: page bodies as text and
// file downloads streamed to disk.
package fetch

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxPageBytes bounds how much of a page body is read as text.
const maxPageBytes = 2 << 20 // 2 MiB

// copyChunkSize is the buffer size for streaming downloads to disk.
const copyChunkSize = 32 * 1024

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxAttempts  int // total attempts per request; default 1 (no retry)
	RateLimiters map[string]*rate.Limiter
}

// HTTPFetcher implements page fetches and file downloads over net/http.
type HTTPFetcher struct {
	client   *http.Client
	opts     Options
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	}
	limiters := make(map[string]*rate.Limiter)
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: limiters,
	}
}

// limiterFor returns the configured per-host limiter, if any.
func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return f.limiters[u.Host]
}

func (f *HTTPFetcher) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if lim := f.limiterFor(req.URL.String()); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}
	}

	var lastErr error
	for attempt := range f.opts.MaxAttempts {
		cloned := req.Clone(ctx)
		resp, err := f.client.Do(cloned)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("fetch: http %d from %s", resp.StatusCode, req.URL.String())
		} else {
			return resp, nil
		}

		if attempt < f.opts.MaxAttempts-1 {
			zap.L().Warn("fetch: request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
			f.backoff(ctx, attempt)
		}
	}

	return nil, eris.Wrap(lastErr, "fetch: attempts exhausted")
}

func (f *HTTPFetcher) backoff(ctx context.Context, attempt int) {
	base := time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(d) / 2))
	d = d + jitter

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// FetchPage issues a single GET and reads the full body as text. Non-2xx
// status, timeout, and connection errors all yield an error outcome.
func (f *HTTPFetcher) FetchPage(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", eris.Errorf("fetch: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", eris.Wrap(err, "fetch: read body")
	}

	return string(body), nil
}

// DownloadToFile streams the URL's body to the destination path in bounded
// chunks and returns the resolved absolute path and byte count. A partially
// written file on failure is left in place; cleanup is the caller's call.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL, path string) (string, int64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", 0, eris.Wrap(err, "fetch: resolve path")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return abs, 0, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.do(ctx, req)
	if err != nil {
		return abs, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return abs, 0, eris.Errorf("fetch: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return abs, 0, eris.Wrap(err, "fetch: create directory")
	}

	file, err := os.Create(abs)
	if err != nil {
		return abs, 0, eris.Wrap(err, "fetch: create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.CopyBuffer(file, resp.Body, make([]byte, copyChunkSize))
	if err != nil {
		return abs, n, eris.Wrap(err, "fetch: write file")
	}

	zap.L().Debug("fetch: download complete",
		zap.String("url", rawURL),
		zap.String("path", abs),
		zap.Int64("bytes", n),
	)
	return abs, n, nil
}
