package pipeline

import (
	"context"
	"os"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodocs/harvest-cli/internal/classify"
	"github.com/prodocs/harvest-cli/internal/model"
	"github.com/prodocs/harvest-cli/pkg/anthropic"
)

func newClassifier(t *testing.T) *classify.Classifier {
	t.Helper()
	c, err := classify.New(nil, nil)
	require.NoError(t, err)
	return c
}

func TestRun_HappyPath(t *testing.T) {
	extractor := &stubExtractor{
		text: "XR-100 compact widget",
		links: []model.DocumentLink{
			{URL: "https://a.example/docs/manual.pdf", AnchorText: "User Manual"},
			{URL: "https://a.example/docs/spec.pdf", AnchorText: "Spec Sheet"},
		},
	}
	analyzer := &stubAnalyzer{analysis: &anthropic.Analysis{MainCategory: "widgets"}}
	p := New(
		&stubScraper{html: "<html>page</html>"},
		extractor,
		&stubDownloader{},
		newClassifier(t),
		analyzer,
		Options{StorageDir: t.TempDir(), Instruction: "industrial widgets"},
	)

	result := p.Run(context.Background(), model.WorkItem{Label: "XR-100", URL: "https://a.example/xr100"})

	assert.Equal(t, model.StatusSuccess, result.Status)
	assert.Equal(t, "XR-100", result.Label)
	assert.Equal(t, "XR-100 compact widget", result.RawText)
	assert.Equal(t, len("XR-100 compact widget"), result.ContentLength)
	assert.Len(t, result.DownloadedFiles["manual"], 1)
	assert.Len(t, result.DownloadedFiles["specification"], 1)
	assert.Equal(t, 2, result.FileCount())
	require.NotNil(t, result.Analysis)
	assert.Equal(t, "widgets", result.Analysis.MainCategory)

	for _, name := range []string{stepFetchPage, stepCleanContent, stepDiscoverLinks, stepDownloadDocuments, stepAnalyze} {
		step, ok := stepByName(result, name)
		require.True(t, ok, "missing step %s", name)
		assert.Equal(t, model.StepComplete, step.Status, name)
	}
}

func TestRun_FetchFailureIsFatal(t *testing.T) {
	analyzer := &stubAnalyzer{}
	p := New(
		&stubScraper{err: eris.New("connection refused")},
		&stubExtractor{},
		&stubDownloader{},
		newClassifier(t),
		analyzer,
		Options{StorageDir: t.TempDir(), Instruction: "x"},
	)

	result := p.Run(context.Background(), model.WorkItem{URL: "https://down.example"})

	assert.Equal(t, model.StatusError, result.Status)
	assert.Equal(t, "Failed to scrape page", result.Error)
	assert.Equal(t, int32(0), analyzer.calls.Load(), "nothing runs after a fetch failure")

	require.Len(t, result.Steps, 1)
	assert.Equal(t, stepFetchPage, result.Steps[0].Name)
	assert.Equal(t, model.StepFailed, result.Steps[0].Status)
	assert.Contains(t, result.Steps[0].Error, "connection refused")
}

func TestRun_CleanFailureDegradesToRawHTML(t *testing.T) {
	p := New(
		&stubScraper{html: "<html>raw content</html>"},
		&stubExtractor{cleanErr: eris.New("converter choked")},
		&stubDownloader{},
		newClassifier(t),
		nil,
		Options{StorageDir: t.TempDir()},
	)

	result := p.Run(context.Background(), model.WorkItem{URL: "https://a.example"})

	assert.Equal(t, model.StatusSuccess, result.Status)
	assert.Equal(t, "<html>raw content</html>", result.RawText)

	step, ok := stepByName(result, stepCleanContent)
	require.True(t, ok)
	assert.Equal(t, model.StepFailed, step.Status)
}

func TestRun_ClassifierGatesDownloads(t *testing.T) {
	dl := &stubDownloader{}
	p := New(
		&stubScraper{html: "<html/>"},
		&stubExtractor{
			text: "t",
			links: []model.DocumentLink{
				{URL: "https://a.example/manual.pdf", AnchorText: "User Manual"},
				{URL: "https://a.example/archive.zip", AnchorText: "Manual Archive"}, // bad extension
				{URL: "https://a.example/press.pdf", AnchorText: "Press Release"},    // no category
			},
		},
		dl,
		newClassifier(t),
		nil,
		Options{StorageDir: t.TempDir()},
	)

	result := p.Run(context.Background(), model.WorkItem{URL: "https://a.example"})

	assert.Equal(t, 1, result.FileCount())
	assert.Equal(t, int32(1), dl.calls.Load())
}

func TestRun_NoAcceptedLinksSkipsDownloadStep(t *testing.T) {
	p := New(
		&stubScraper{html: "<html/>"},
		&stubExtractor{text: "t"},
		&stubDownloader{},
		newClassifier(t),
		nil,
		Options{StorageDir: t.TempDir()},
	)

	result := p.Run(context.Background(), model.WorkItem{URL: "https://a.example"})

	step, ok := stepByName(result, stepDownloadDocuments)
	require.True(t, ok)
	assert.Equal(t, model.StepSkipped, step.Status)
}

func TestRun_PartialDownloadFailureStillSucceeds(t *testing.T) {
	p := New(
		&stubScraper{html: "<html/>"},
		&stubExtractor{
			text: "t",
			links: []model.DocumentLink{
				{URL: "https://a.example/good.pdf", AnchorText: "User Manual"},
				{URL: "https://a.example/bad.pdf", AnchorText: "Install Manual"},
			},
		},
		&stubDownloader{failURLs: map[string]bool{"https://a.example/bad.pdf": true}},
		newClassifier(t),
		nil,
		Options{StorageDir: t.TempDir()},
	)

	result := p.Run(context.Background(), model.WorkItem{URL: "https://a.example"})

	assert.Equal(t, model.StatusSuccess, result.Status)
	assert.Equal(t, 1, result.FileCount())

	step, ok := stepByName(result, stepDownloadDocuments)
	require.True(t, ok)
	assert.Equal(t, model.StepComplete, step.Status, "a partial failure does not fail the step")
}

func TestRun_AllDownloadsFailedFailsStepNotItem(t *testing.T) {
	p := New(
		&stubScraper{html: "<html/>"},
		&stubExtractor{
			text:  "t",
			links: []model.DocumentLink{{URL: "https://a.example/bad.pdf", AnchorText: "User Manual"}},
		},
		&stubDownloader{failURLs: map[string]bool{"https://a.example/bad.pdf": true}},
		newClassifier(t),
		nil,
		Options{StorageDir: t.TempDir()},
	)

	result := p.Run(context.Background(), model.WorkItem{URL: "https://a.example"})

	assert.Equal(t, model.StatusSuccess, result.Status)

	step, ok := stepByName(result, stepDownloadDocuments)
	require.True(t, ok)
	assert.Equal(t, model.StepFailed, step.Status)
}

func TestRun_ExistingFileIsNotRefetched(t *testing.T) {
	dir := t.TempDir()
	links := []model.DocumentLink{{URL: "https://a.example/manual.pdf", AnchorText: "User Manual"}}
	mk := func(dl *stubDownloader) *Pipeline {
		return New(
			&stubScraper{html: "<html/>"},
			&stubExtractor{text: "t", links: links},
			dl,
			newClassifier(t),
			nil,
			Options{StorageDir: dir},
		)
	}

	first := &stubDownloader{}
	result1 := mk(first).Run(context.Background(), model.WorkItem{URL: "https://a.example"})
	require.Equal(t, 1, result1.FileCount())
	require.Equal(t, int32(1), first.calls.Load())

	second := &stubDownloader{}
	result2 := mk(second).Run(context.Background(), model.WorkItem{URL: "https://a.example"})

	assert.Equal(t, int32(0), second.calls.Load(), "re-run records the existing file without fetching")
	assert.Equal(t, result1.DownloadedFiles, result2.DownloadedFiles)
}

func TestRun_ImagesDownloadedWhenEnabled(t *testing.T) {
	images := []model.ImageRef{
		{URL: "https://a.example/front.png", Alt: "Front"},
		{URL: "https://a.example/side.jpg"},
	}
	p := New(
		&stubScraper{html: "<html/>"},
		&stubExtractor{text: "t", images: images},
		&stubDownloader{},
		newClassifier(t),
		nil,
		Options{StorageDir: t.TempDir(), DownloadImages: true},
	)

	result := p.Run(context.Background(), model.WorkItem{URL: "https://a.example"})

	assert.Len(t, result.DownloadedFiles["images"], 2)
}

func TestRun_ImagesSkippedWhenDisabled(t *testing.T) {
	dl := &stubDownloader{}
	p := New(
		&stubScraper{html: "<html/>"},
		&stubExtractor{text: "t", images: []model.ImageRef{{URL: "https://a.example/x.png"}}},
		dl,
		newClassifier(t),
		nil,
		Options{StorageDir: t.TempDir()},
	)

	result := p.Run(context.Background(), model.WorkItem{URL: "https://a.example"})

	assert.Empty(t, result.DownloadedFiles["images"])
	step, ok := stepByName(result, stepDownloadImages)
	require.True(t, ok)
	assert.Equal(t, model.StepSkipped, step.Status)
	assert.Equal(t, int32(0), dl.calls.Load())
}

func TestRun_AnalyzeSkippedWithoutInstruction(t *testing.T) {
	analyzer := &stubAnalyzer{analysis: &anthropic.Analysis{}}
	p := New(
		&stubScraper{html: "<html/>"},
		&stubExtractor{text: "t"},
		&stubDownloader{},
		newClassifier(t),
		analyzer,
		Options{StorageDir: t.TempDir()},
	)

	result := p.Run(context.Background(), model.WorkItem{URL: "https://a.example"})

	assert.Nil(t, result.Analysis)
	assert.Equal(t, int32(0), analyzer.calls.Load())
	step, ok := stepByName(result, stepAnalyze)
	require.True(t, ok)
	assert.Equal(t, model.StepSkipped, step.Status)
}

func TestRun_AnalyzeFailureDegrades(t *testing.T) {
	p := New(
		&stubScraper{html: "<html/>"},
		&stubExtractor{
			text:  "t",
			links: []model.DocumentLink{{URL: "https://a.example/manual.pdf", AnchorText: "User Manual"}},
		},
		&stubDownloader{},
		newClassifier(t),
		&stubAnalyzer{err: eris.New("api quota exceeded")},
		Options{StorageDir: t.TempDir(), Instruction: "widgets"},
	)

	result := p.Run(context.Background(), model.WorkItem{URL: "https://a.example"})

	assert.Equal(t, model.StatusSuccess, result.Status, "downloads stand even when analysis fails")
	assert.Nil(t, result.Analysis)
	assert.Equal(t, 1, result.FileCount())

	step, ok := stepByName(result, stepAnalyze)
	require.True(t, ok)
	assert.Equal(t, model.StepFailed, step.Status)
}

func TestRun_FilesLandUnderSiteAndCategory(t *testing.T) {
	dir := t.TempDir()
	p := New(
		&stubScraper{html: "<html/>"},
		&stubExtractor{
			text:  "t",
			links: []model.DocumentLink{{URL: "https://a.example/m.pdf", AnchorText: "User Manual"}},
		},
		&stubDownloader{},
		newClassifier(t),
		nil,
		Options{StorageDir: dir},
	)

	result := p.Run(context.Background(), model.WorkItem{URL: "https://a.example/xr100"})

	require.Len(t, result.DownloadedFiles["manual"], 1)
	path := result.DownloadedFiles["manual"][0]
	assert.Contains(t, path, dir)
	assert.Contains(t, path, "manual")
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
