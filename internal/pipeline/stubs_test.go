package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rotisserie/eris"

	"github.com/prodocs/harvest-cli/internal/model"
	"github.com/prodocs/harvest-cli/internal/scrape"
	"github.com/prodocs/harvest-cli/pkg/anthropic"
)

type stubScraper struct {
	html string
	err  error
}

func (s *stubScraper) Scrape(_ context.Context, url string) (*scrape.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &scrape.Result{URL: url, HTML: s.html, StatusCode: 200, Source: "stub"}, nil
}

type stubExtractor struct {
	text     string
	cleanErr error
	links    []model.DocumentLink
	images   []model.ImageRef
	findErr  error
}

func (e *stubExtractor) CleanText(_ string) (string, error) {
	if e.cleanErr != nil {
		return "", e.cleanErr
	}
	return e.text, nil
}

func (e *stubExtractor) FindDocumentLinks(_, _ string) ([]model.DocumentLink, error) {
	if e.findErr != nil {
		return nil, e.findErr
	}
	return e.links, nil
}

func (e *stubExtractor) FindImages(_, _ string) ([]model.ImageRef, error) {
	if e.findErr != nil {
		return nil, e.findErr
	}
	return e.images, nil
}

// stubDownloader writes a marker file for each download and can fail for
// selected URLs.
type stubDownloader struct {
	failURLs map[string]bool
	calls    atomic.Int32
}

func (d *stubDownloader) DownloadToFile(_ context.Context, url, path string) (string, int64, error) {
	d.calls.Add(1)
	if d.failURLs[url] {
		return path, 0, eris.Errorf("download failed: %s", url)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return path, 0, err
	}
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		return path, 0, err
	}
	return path, 7, nil
}

type stubAnalyzer struct {
	analysis *anthropic.Analysis
	err      error
	calls    atomic.Int32
}

func (a *stubAnalyzer) Analyze(_ context.Context, _, _ string) (*anthropic.Analysis, error) {
	a.calls.Add(1)
	if a.err != nil {
		return nil, a.err
	}
	return a.analysis, nil
}

func stepByName(result *model.PipelineResult, name string) (model.StepResult, bool) {
	for _, s := range result.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return model.StepResult{}, false
}
