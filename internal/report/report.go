// Package report aggregates batch results and exports them as a detail JSON
// plus a summary CSV. Exports are deterministic: the same results in the
// same order produce byte-identical files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/prodocs/harvest-cli/internal/model"
)

// Fixed output names keep re-exports reproducible.
const (
	DetailFilename  = "batch_detail.json"
	SummaryFilename = "batch_summary.csv"
)

// Summarize aggregates results into a BatchSummary. Results must be in input
// order; failure details preserve that order.
func Summarize(results []*model.PipelineResult) model.BatchSummary {
	summary := model.BatchSummary{
		Total:           len(results),
		FilesByCategory: make(map[string]int),
	}

	for _, r := range results {
		if r.Status == model.StatusSuccess {
			summary.Succeeded++
		} else {
			summary.Failed++
			summary.Failures = append(summary.Failures, model.FailureDetail{
				URL:   r.URL,
				Label: r.Label,
				Error: r.Error,
			})
		}
		for category, files := range r.DownloadedFiles {
			summary.FilesByCategory[category] += len(files)
			summary.TotalFiles += len(files)
		}
	}

	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Succeeded) / float64(summary.Total)
	}
	return summary
}

// Export writes the detail JSON and summary CSV into dir and returns their
// paths. Files are written to a temp name and renamed so a crash never
// leaves a torn report.
func Export(dir string, results []*model.PipelineResult, summary model.BatchSummary) (detailPath, summaryPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", eris.Wrap(err, "report: create output dir")
	}

	detailPath = filepath.Join(dir, DetailFilename)
	summaryPath = filepath.Join(dir, SummaryFilename)

	if err := exportDetail(detailPath, results, summary); err != nil {
		return "", "", err
	}
	if err := exportSummaryCSV(summaryPath, results); err != nil {
		return "", "", err
	}

	zap.L().Info("report: exported",
		zap.String("detail", detailPath),
		zap.String("summary", summaryPath),
		zap.Int("results", len(results)),
	)
	return detailPath, summaryPath, nil
}

// detailReport is the top-level shape of the detail JSON.
type detailReport struct {
	Summary model.BatchSummary      `json:"summary"`
	Results []*model.PipelineResult `json:"results"`
}

func exportDetail(path string, results []*model.PipelineResult, summary model.BatchSummary) error {
	data, err := json.MarshalIndent(detailReport{Summary: summary, Results: results}, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal detail")
	}
	return writeAtomic(path, append(data, '\n'))
}

func exportSummaryCSV(path string, results []*model.PipelineResult) error {
	var buf strings.Builder
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"url", "label", "status", "files", "content_length", "error"}); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, r := range results {
		row := []string{
			r.URL,
			r.Label,
			string(r.Status),
			strconv.Itoa(r.FileCount()),
			strconv.Itoa(r.ContentLength),
			r.Error,
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "report: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "report: flush csv")
	}

	return writeAtomic(path, []byte(buf.String()))
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "report: rename to %s", path)
	}
	return nil
}

// FormatSummary renders a summary for terminal output.
func FormatSummary(summary model.BatchSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Processed %d URLs: %d succeeded, %d failed (%.1f%% success)\n",
		summary.Total, summary.Succeeded, summary.Failed, summary.SuccessRate*100)
	fmt.Fprintf(&b, "Downloaded %d files\n", summary.TotalFiles)

	if len(summary.FilesByCategory) > 0 {
		categories := make([]string, 0, len(summary.FilesByCategory))
		for c := range summary.FilesByCategory {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		for _, c := range categories {
			fmt.Fprintf(&b, "  %-16s %d\n", c, summary.FilesByCategory[c])
		}
	}

	if len(summary.Failures) > 0 {
		b.WriteString("Failures:\n")
		for _, f := range summary.Failures {
			label := f.Label
			if label == "" {
				label = "-"
			}
			fmt.Fprintf(&b, "  %s (%s): %s\n", f.URL, label, f.Error)
		}
	}

	return b.String()
}
