// Package source parses heterogeneous input files into a uniform WorkItem
// stream. Supported formats: line-delimited text, CSV, XLSX/XLS, and JSON
// lists of records.
package source

import (
	"bufio"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/prodocs/harvest-cli/internal/model"
)

// Sentinel errors, checkable with errors.Is through any wrapping.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoURLColumn       = errors.New("no URL column found")
	ErrEmptyInput        = errors.New("no valid work items in input")
)

// supportedExtensions is the input-format allow-list.
var supportedExtensions = map[string]bool{
	".txt":  true,
	".csv":  true,
	".xlsx": true,
	".xls":  true,
	".json": true,
}

// Read parses the file at path into WorkItems, preserving input order and
// duplicates. defaultLabel is applied to every item whose source carries no
// label of its own.
func Read(ctx context.Context, path, defaultLabel string) ([]model.WorkItem, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return nil, eris.Wrapf(ErrUnsupportedFormat, "source: %s", ext)
	}

	var (
		items []model.WorkItem
		err   error
	)
	switch ext {
	case ".txt":
		items, err = readLines(path, defaultLabel)
	case ".csv":
		items, err = readCSV(ctx, path, defaultLabel)
	case ".xlsx", ".xls":
		items, err = readXLSXItems(ctx, path, defaultLabel)
	case ".json":
		items, err = readJSON(ctx, path, defaultLabel)
	}
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, eris.Wrapf(ErrEmptyInput, "source: %s", path)
	}

	zap.L().Info("source: input parsed",
		zap.String("path", path),
		zap.Int("items", len(items)),
	)
	return items, nil
}

// readLines reads one URL per non-empty, non-comment line.
func readLines(path, defaultLabel string) ([]model.WorkItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "source: open file")
	}
	defer f.Close() //nolint:errcheck

	var items []model.WorkItem
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, model.WorkItem{Label: defaultLabel, URL: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "source: scan lines")
	}
	return items, nil
}

// itemsFromTable maps header + rows to WorkItems. The URL column is the first
// header containing url, link, or website (case-insensitive); as a last
// resort the first column is used when its values parse as absolute URLs.
// The label column is the first header containing model, label, or name.
func itemsFromTable(header []string, rows [][]string, defaultLabel string) ([]model.WorkItem, error) {
	urlCol, ok := findColumn(header, "url", "link", "website")
	if !ok {
		if !firstColumnLooksLikeURL(rows) {
			return nil, eris.Wrap(ErrNoURLColumn, "source: tabular input")
		}
		urlCol = 0
	}

	labelCol, hasLabel := findColumn(header, "model", "label", "name")

	var items []model.WorkItem
	for _, row := range rows {
		if urlCol >= len(row) {
			continue
		}
		u := strings.TrimSpace(row[urlCol])
		if u == "" {
			continue
		}
		label := defaultLabel
		if hasLabel && labelCol < len(row) && strings.TrimSpace(row[labelCol]) != "" {
			label = strings.TrimSpace(row[labelCol])
		}
		items = append(items, model.WorkItem{Label: label, URL: u})
	}
	return items, nil
}

// findColumn returns the index of the first header cell containing any of the
// given substrings, case-insensitively.
func findColumn(header []string, substrings ...string) (int, bool) {
	for i, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		for _, s := range substrings {
			if strings.Contains(lower, s) {
				return i, true
			}
		}
	}
	return 0, false
}

func firstColumnLooksLikeURL(rows [][]string) bool {
	for _, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(row[0]))
		return err == nil && u.Scheme != "" && u.Host != ""
	}
	return false
}
