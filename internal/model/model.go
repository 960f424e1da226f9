package model

import (
	"time"

	"github.com/prodocs/harvest-cli/pkg/anthropic"
)

// ItemStatus is the terminal state of one work item.
type ItemStatus string

const (
	StatusSuccess ItemStatus = "success"
	StatusFailed  ItemStatus = "failed"
	StatusError   ItemStatus = "error"
)

// StepStatus is the outcome of a single pipeline step.
type StepStatus string

const (
	StepComplete StepStatus = "complete"
	StepFailed   StepStatus = "failed"
	StepSkipped  StepStatus = "skipped"
)

// WorkItem is one (label, URL) pair to be processed. Immutable once read.
type WorkItem struct {
	Label string `json:"label,omitempty"`
	URL   string `json:"url"`
}

// DocumentLink is a document reference discovered on a fetched page.
// Category is assigned by the classifier; links that fail the extension
// gate or match no category are discarded before download.
type DocumentLink struct {
	URL        string `json:"url"`
	AnchorText string `json:"anchor_text"`
	Category   string `json:"category,omitempty"`
}

// ImageRef is an image reference discovered on a fetched page.
type ImageRef struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// StepResult records the outcome of one pipeline step for the audit trail.
type StepResult struct {
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	DurationMs int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

// PipelineResult is the terminal record for one WorkItem. Exactly one exists
// per item that entered the orchestrator, including items that error or
// time out.
type PipelineResult struct {
	URL             string              `json:"url"`
	Label           string              `json:"label,omitempty"`
	Status          ItemStatus          `json:"status"`
	DownloadedFiles map[string][]string `json:"downloaded_files,omitempty"`
	Analysis        *anthropic.Analysis `json:"analysis,omitempty"`
	RawText         string              `json:"raw_text,omitempty"`
	ContentLength   int                 `json:"content_length"`
	Error           string              `json:"error,omitempty"`
	Steps           []StepResult        `json:"steps,omitempty"`
}

// FileCount returns the total number of downloaded files across categories.
func (r PipelineResult) FileCount() int {
	n := 0
	for _, files := range r.DownloadedFiles {
		n += len(files)
	}
	return n
}

// FailureDetail describes one non-success item in a batch summary.
type FailureDetail struct {
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
	Error string `json:"error"`
}

// BatchStatus tracks a persisted batch's lifecycle.
type BatchStatus string

const (
	BatchRunning  BatchStatus = "running"
	BatchComplete BatchStatus = "complete"
)

// Batch is a persisted batch run.
type Batch struct {
	ID        string        `json:"id"`
	InputPath string        `json:"input_path"`
	Total     int           `json:"total"`
	Status    BatchStatus   `json:"status"`
	Summary   *BatchSummary `json:"summary,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BatchSummary aggregates a completed batch.
type BatchSummary struct {
	Total           int             `json:"total"`
	Succeeded       int             `json:"succeeded"`
	Failed          int             `json:"failed"`
	SuccessRate     float64         `json:"success_rate"`
	TotalFiles      int             `json:"total_files"`
	FilesByCategory map[string]int  `json:"files_by_category,omitempty"`
	Failures        []FailureDetail `json:"failures,omitempty"`
}
