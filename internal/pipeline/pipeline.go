// Package pipeline runs the per-URL harvest sequence: scrape the page, clean
// its content, discover document and image links, download what the
// classifier accepts, and analyze the page text.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prodocs/harvest-cli/internal/classify"
	"github.com/prodocs/harvest-cli/internal/model"
	"github.com/prodocs/harvest-cli/internal/scrape"
	"github.com/prodocs/harvest-cli/pkg/anthropic"
)

// PageScraper fetches a page's raw HTML.
type PageScraper interface {
	Scrape(ctx context.Context, url string) (*scrape.Result, error)
}

// Extractor derives text, document links, and images from page HTML.
type Extractor interface {
	CleanText(html string) (string, error)
	FindDocumentLinks(pageURL, html string) ([]model.DocumentLink, error)
	FindImages(pageURL, html string) ([]model.ImageRef, error)
}

// Downloader streams a URL to a file and reports the final path and size.
type Downloader interface {
	DownloadToFile(ctx context.Context, url, path string) (string, int64, error)
}

// Analyzer produces a structured analysis of page text.
type Analyzer interface {
	Analyze(ctx context.Context, text, instruction string) (*anthropic.Analysis, error)
}

// Options configures a Pipeline.
type Options struct {
	StorageDir          string
	DownloadConcurrency int
	Instruction         string // analysis focus; empty skips the analyze step
	DownloadImages      bool
}

// Pipeline holds the collaborators for processing one work item at a time.
// Safe for concurrent Run calls.
type Pipeline struct {
	scraper    PageScraper
	extractor  Extractor
	downloader Downloader
	classifier *classify.Classifier
	analyzer   Analyzer
	opts       Options
}

// New creates a Pipeline. analyzer may be nil; the analyze step is then
// skipped.
func New(scraper PageScraper, extractor Extractor, downloader Downloader, classifier *classify.Classifier, analyzer Analyzer, opts Options) *Pipeline {
	if opts.DownloadConcurrency <= 0 {
		opts.DownloadConcurrency = 5
	}
	if opts.StorageDir == "" {
		opts.StorageDir = "data"
	}
	return &Pipeline{
		scraper:    scraper,
		extractor:  extractor,
		downloader: downloader,
		classifier: classifier,
		analyzer:   analyzer,
		opts:       opts,
	}
}

const (
	stepFetchPage         = "fetch_page"
	stepCleanContent      = "clean_content"
	stepDiscoverLinks     = "discover_links"
	stepDownloadDocuments = "download_documents"
	stepDownloadImages    = "download_images"
	stepAnalyze           = "analyze"
)

// Run processes one work item and always returns a result; errors are folded
// into the result's status rather than returned. Only a failed page fetch is
// fatal, every later step degrades.
func (p *Pipeline) Run(ctx context.Context, item model.WorkItem) *model.PipelineResult {
	log := zap.L().With(zap.String("url", item.URL), zap.String("label", item.Label))
	log.Info("pipeline: processing url")

	result := &model.PipelineResult{
		URL:             item.URL,
		Label:           item.Label,
		Status:          model.StatusSuccess,
		DownloadedFiles: make(map[string][]string),
	}

	trackStep := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		step := model.StepResult{
			Name:       name,
			Status:     model.StepComplete,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			step.Status = model.StepFailed
			step.Error = err.Error()
			log.Warn("pipeline: step failed",
				zap.String("step", name),
				zap.Int64("duration_ms", step.DurationMs),
				zap.Error(err),
			)
		}
		result.Steps = append(result.Steps, step)
		return err
	}
	skipStep := func(name string) {
		result.Steps = append(result.Steps, model.StepResult{
			Name:   name,
			Status: model.StepSkipped,
		})
	}

	// Fetch the page. This is the one fatal step.
	var page *scrape.Result
	err := trackStep(stepFetchPage, func() error {
		var scrapeErr error
		page, scrapeErr = p.scraper.Scrape(ctx, item.URL)
		return scrapeErr
	})
	if err != nil {
		result.Status = model.StatusError
		result.Error = "Failed to scrape page"
		return result
	}

	// Clean the content. A conversion failure degrades to raw HTML so the
	// analyze step still has something to chew on.
	_ = trackStep(stepCleanContent, func() error {
		text, cleanErr := p.extractor.CleanText(page.HTML)
		if cleanErr != nil {
			result.RawText = page.HTML
			return cleanErr
		}
		result.RawText = text
		return nil
	})
	result.ContentLength = len(result.RawText)

	// Discover links and images on the page.
	var links []model.DocumentLink
	var images []model.ImageRef
	_ = trackStep(stepDiscoverLinks, func() error {
		var findErr error
		links, findErr = p.extractor.FindDocumentLinks(item.URL, page.HTML)
		if findErr != nil {
			return findErr
		}
		images, findErr = p.extractor.FindImages(item.URL, page.HTML)
		return findErr
	})

	accepted := p.classifyLinks(links)
	if len(accepted) > 0 {
		_ = trackStep(stepDownloadDocuments, func() error {
			return p.downloadDocuments(ctx, item.URL, accepted, result)
		})
	} else {
		skipStep(stepDownloadDocuments)
	}

	if p.opts.DownloadImages && len(images) > 0 {
		_ = trackStep(stepDownloadImages, func() error {
			return p.downloadImages(ctx, item.URL, images, result)
		})
	} else {
		skipStep(stepDownloadImages)
	}

	// Analyze the cleaned text. Failure degrades; the downloads stand.
	if p.analyzer != nil && p.opts.Instruction != "" && result.RawText != "" {
		_ = trackStep(stepAnalyze, func() error {
			analysis, analyzeErr := p.analyzer.Analyze(ctx, result.RawText, p.opts.Instruction)
			if analyzeErr != nil {
				return analyzeErr
			}
			result.Analysis = analysis
			return nil
		})
	} else {
		skipStep(stepAnalyze)
	}

	log.Info("pipeline: url complete",
		zap.Int("files", result.FileCount()),
		zap.Int("content_length", result.ContentLength),
	)
	return result
}

// classifyLinks applies the extension gate and category matching, returning
// only downloadable links with their category set.
func (p *Pipeline) classifyLinks(links []model.DocumentLink) []model.DocumentLink {
	var accepted []model.DocumentLink
	for _, link := range links {
		if !p.classifier.AllowedURL(link.URL) {
			continue
		}
		category, ok := p.classifier.Classify(link.AnchorText)
		if !ok {
			continue
		}
		link.Category = category
		accepted = append(accepted, link)
	}
	return accepted
}

// downloadDocuments fetches accepted links concurrently into
// storageDir/<siteHash>/<category>/. Individual failures are logged and
// skipped; the step only fails if every download fails.
func (p *Pipeline) downloadDocuments(ctx context.Context, pageURL string, links []model.DocumentLink, result *model.PipelineResult) error {
	siteDir := filepath.Join(p.opts.StorageDir, classify.SiteHash(pageURL))

	var mu sync.Mutex
	var lastErr error
	failed := 0

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.DownloadConcurrency)

	for _, link := range links {
		g.Go(func() error {
			name := classify.StoredFilename(link.AnchorText, link.URL)
			dest := filepath.Join(siteDir, link.Category, name)

			// Re-runs are idempotent: an existing file is recorded, not
			// re-fetched.
			if _, statErr := os.Stat(dest); statErr == nil {
				mu.Lock()
				result.DownloadedFiles[link.Category] = append(result.DownloadedFiles[link.Category], dest)
				mu.Unlock()
				return nil
			}

			path, _, dlErr := p.downloader.DownloadToFile(gCtx, link.URL, dest)
			if dlErr != nil {
				zap.L().Warn("pipeline: document download failed",
					zap.String("url", link.URL),
					zap.Error(dlErr),
				)
				mu.Lock()
				failed++
				lastErr = dlErr
				mu.Unlock()
				return nil
			}

			mu.Lock()
			result.DownloadedFiles[link.Category] = append(result.DownloadedFiles[link.Category], path)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if failed == len(links) {
		return lastErr
	}
	return nil
}

// downloadImages fetches page images into storageDir/<siteHash>/images/.
func (p *Pipeline) downloadImages(ctx context.Context, pageURL string, images []model.ImageRef, result *model.PipelineResult) error {
	imageDir := filepath.Join(p.opts.StorageDir, classify.SiteHash(pageURL), "images")

	var mu sync.Mutex
	var lastErr error
	failed := 0

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.DownloadConcurrency)

	for _, img := range images {
		g.Go(func() error {
			dest := filepath.Join(imageDir, classify.ImageFilename(img.URL))

			if _, statErr := os.Stat(dest); statErr == nil {
				mu.Lock()
				result.DownloadedFiles["images"] = append(result.DownloadedFiles["images"], dest)
				mu.Unlock()
				return nil
			}

			path, _, dlErr := p.downloader.DownloadToFile(gCtx, img.URL, dest)
			if dlErr != nil {
				zap.L().Debug("pipeline: image download failed",
					zap.String("url", img.URL),
					zap.Error(dlErr),
				)
				mu.Lock()
				failed++
				lastErr = dlErr
				mu.Unlock()
				return nil
			}

			mu.Lock()
			result.DownloadedFiles["images"] = append(result.DownloadedFiles["images"], path)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if failed == len(images) {
		return lastErr
	}
	return nil
}
