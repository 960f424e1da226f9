package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// ChromeScraper renders pages in a headless browser and returns the DOM
// after JavaScript has run. Much slower than LocalScraper; used as the
// fallback for blocked or JS-only pages.
type ChromeScraper struct {
	headless  bool
	timeout   time.Duration
	userAgent string
}

// NewChromeScraper creates a ChromeScraper.
func NewChromeScraper(headless bool, timeout time.Duration, userAgent string) *ChromeScraper {
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	return &ChromeScraper{
		headless:  headless,
		timeout:   timeout,
		userAgent: userAgent,
	}
}

func (c *ChromeScraper) Name() string { return "chrome" }

// Supports rejects direct file URLs; the browser would download rather than
// render them.
func (c *ChromeScraper) Supports(url string) bool {
	lower := strings.ToLower(url)
	for _, ext := range []string{".pdf", ".doc", ".docx", ".zip", ".xls", ".xlsx"} {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	return true
}

// Scrape navigates to the URL and captures the rendered outer HTML.
func (c *ChromeScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if c.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.userAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, c.timeout)
	defer cancelRun()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "chrome: render %s", targetURL)
	}

	if strings.TrimSpace(html) == "" {
		return nil, eris.New("chrome: empty page")
	}

	return &Result{
		URL:        targetURL,
		HTML:       html,
		StatusCode: 200,
		Source:     "chrome",
	}, nil
}
