package scrape

import (
	"context"
)

// Result holds a scraped page as raw HTML with its source.
type Result struct {
	URL        string
	HTML       string
	StatusCode int
	Source     string // e.g. "local_http", "chrome"
}

// Scraper fetches a single URL and returns its raw HTML.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
