// Package batch fans a list of work items across a bounded pool of pipeline
// runs and collects exactly one result per item.
package batch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prodocs/harvest-cli/internal/model"
)

// Runner processes one work item to a terminal result.
type Runner interface {
	Run(ctx context.Context, item model.WorkItem) *model.PipelineResult
}

// Options configures an Orchestrator.
type Options struct {
	Concurrency    int
	PerItemTimeout time.Duration // zero disables the per-item deadline

	// OnProgress is invoked after each item reaches a terminal state, in
	// completion order. Optional.
	OnProgress func(done, total int)

	// OnResult is invoked with each item's input index and result as it
	// completes. Optional; used for incremental persistence.
	OnResult func(index int, result *model.PipelineResult)
}

// Orchestrator runs batches. An individual item's failure never aborts the
// batch; every item that enters gets a result.
type Orchestrator struct {
	runner Runner
	opts   Options
}

// New creates an Orchestrator.
func New(runner Runner, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	return &Orchestrator{runner: runner, opts: opts}
}

// Run processes all items with bounded concurrency and returns one result
// per item, in input order.
func (o *Orchestrator) Run(ctx context.Context, items []model.WorkItem) []*model.PipelineResult {
	total := len(items)
	results := make([]*model.PipelineResult, total)

	zap.L().Info("batch: starting",
		zap.Int("items", total),
		zap.Int("concurrency", o.opts.Concurrency),
	)

	start := time.Now()

	// Completion callbacks are serialized under one mutex so the done count
	// observed by OnProgress never moves backwards, however sibling items
	// interleave.
	var mu sync.Mutex
	done := 0

	g := &errgroup.Group{}
	g.SetLimit(o.opts.Concurrency)

	for i, item := range items {
		g.Go(func() error {
			result := o.runOne(ctx, item)
			results[i] = result

			mu.Lock()
			done++
			if o.opts.OnResult != nil {
				o.opts.OnResult(i, result)
			}
			if o.opts.OnProgress != nil {
				o.opts.OnProgress(done, total)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("batch: complete",
		zap.Int("items", total),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results
}

// runOne executes a single item, bounding it with the per-item timeout. The
// pipeline goroutine is not cancelled on timeout; it is abandoned and its
// late result discarded, so one stuck URL cannot poison the slot's context.
func (o *Orchestrator) runOne(ctx context.Context, item model.WorkItem) *model.PipelineResult {
	if ctx.Err() != nil {
		return &model.PipelineResult{
			URL:    item.URL,
			Label:  item.Label,
			Status: model.StatusFailed,
			Error:  "batch cancelled before processing",
		}
	}

	if o.opts.PerItemTimeout <= 0 {
		return o.runner.Run(ctx, item)
	}

	resultCh := make(chan *model.PipelineResult, 1)
	go func() {
		resultCh <- o.runner.Run(ctx, item)
	}()

	timer := time.NewTimer(o.opts.PerItemTimeout)
	defer timer.Stop()

	select {
	case result := <-resultCh:
		return result
	case <-timer.C:
		zap.L().Warn("batch: item timed out",
			zap.String("url", item.URL),
			zap.Duration("timeout", o.opts.PerItemTimeout),
		)
		return &model.PipelineResult{
			URL:    item.URL,
			Label:  item.Label,
			Status: model.StatusError,
			Error:  "timeout",
		}
	case <-ctx.Done():
		return &model.PipelineResult{
			URL:    item.URL,
			Label:  item.Label,
			Status: model.StatusFailed,
			Error:  "batch cancelled during processing",
		}
	}
}
