package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// maxBodyBytes caps how much HTML is read from a single page.
const maxBodyBytes = 2 << 20 // 2 MiB

// LocalScraper fetches raw HTML via net/http and detects blocks. Free, no
// browser process. Falls through to the headless scraper when blocked.
type LocalScraper struct {
	client          *http.Client
	userAgent       string
	minContentBytes int
}

// NewLocalScraper creates a LocalScraper with sensible defaults.
func NewLocalScraper(userAgent string, timeout time.Duration, minContentBytes int) *LocalScraper {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if minContentBytes <= 0 {
		minContentBytes = 100
	}
	return &LocalScraper{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent:       userAgent,
		minContentBytes: minContentBytes,
	}
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches a URL and returns its raw HTML. Blocked, erroring, and
// near-empty pages all fail so the chain can try the next scraper.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	blocked, blockType := DetectBlock(resp, body, l.minContentBytes)
	if blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}

	return &Result{
		URL:        targetURL,
		HTML:       string(body),
		StatusCode: resp.StatusCode,
		Source:     "local_http",
	}, nil
}
