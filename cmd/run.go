package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prodocs/harvest-cli/internal/batch"
	"github.com/prodocs/harvest-cli/internal/classify"
	"github.com/prodocs/harvest-cli/internal/config"
	"github.com/prodocs/harvest-cli/internal/extract"
	"github.com/prodocs/harvest-cli/internal/fetch"
	"github.com/prodocs/harvest-cli/internal/model"
	"github.com/prodocs/harvest-cli/internal/pipeline"
	"github.com/prodocs/harvest-cli/internal/report"
	"github.com/prodocs/harvest-cli/internal/scrape"
	"github.com/prodocs/harvest-cli/internal/source"
	"github.com/prodocs/harvest-cli/internal/store"
	anthropicpkg "github.com/prodocs/harvest-cli/pkg/anthropic"
)

var (
	runInput       string
	runLabel       string
	runOutputDir   string
	runImages      bool
	runInstruction string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a batch of URLs from an input file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		items, err := source.Read(ctx, runInput, runLabel)
		if err != nil {
			return eris.Wrapf(err, "read input %s", runInput)
		}
		zap.L().Info("input loaded",
			zap.String("path", runInput),
			zap.Int("items", len(items)),
		)

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		record, err := st.CreateBatch(ctx, runInput, len(items))
		if err != nil {
			return eris.Wrap(err, "create batch")
		}

		orchestrator := batch.New(p, batch.Options{
			Concurrency:    cfg.Batch.Concurrency,
			PerItemTimeout: cfg.Batch.ItemTimeout(),
			OnProgress: func(done, total int) {
				fmt.Fprintf(os.Stderr, "\rProcessed %d/%d", done, total)
				if done == total {
					fmt.Fprintln(os.Stderr)
				}
			},
			OnResult: func(index int, result *model.PipelineResult) {
				if recErr := st.RecordItem(ctx, record.ID, index, result); recErr != nil {
					zap.L().Warn("record item failed",
						zap.Int("index", index),
						zap.Error(recErr),
					)
				}
			},
		})

		results := orchestrator.Run(ctx, items)

		summary := report.Summarize(results)
		if err := st.CompleteBatch(ctx, record.ID, summary); err != nil {
			zap.L().Warn("complete batch failed", zap.Error(err))
		}

		outDir := runOutputDir
		if outDir == "" {
			outDir = cfg.Storage.Dir
		}
		detailPath, summaryPath, err := report.Export(outDir, results, summary)
		if err != nil {
			return eris.Wrap(err, "export reports")
		}

		fmt.Print(report.FormatSummary(summary))
		fmt.Printf("Detail:  %s\nSummary: %s\n", detailPath, summaryPath)
		return nil
	},
}

// initStore opens the configured SQLite store.
func initStore() (store.Store, error) {
	st, err := store.NewSQLite(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// buildPipeline wires the scraper chain, extractor, downloader, classifier,
// and analyzer from config.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	classifier, err := classify.New(cfg.Classify.Categories, cfg.Classify.AllowedExtensions)
	if err != nil {
		return nil, eris.Wrap(err, "build classifier")
	}

	scrapers := []scrape.Scraper{
		scrape.NewLocalScraper(cfg.Fetch.UserAgent, time.Duration(cfg.Scrape.TimeoutSecs)*time.Second, cfg.Scrape.MinContentBytes),
	}
	if cfg.Scrape.Headless {
		scrapers = append(scrapers, scrape.NewChromeScraper(true, time.Duration(cfg.Scrape.TimeoutSecs)*3*time.Second, cfg.Fetch.UserAgent))
	}

	fetcher := fetch.NewHTTPFetcher(fetch.Options{
		UserAgent:   cfg.Fetch.UserAgent,
		Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxAttempts: cfg.Fetch.MaxAttempts,
	})

	var analyzer pipeline.Analyzer
	if cfg.Analysis.Key != "" {
		client := anthropicpkg.NewClient(cfg.Analysis.Key)
		analyzer = anthropicpkg.NewAnalyzer(client, cfg.Analysis.Model, cfg.Analysis.MaxTokens, cfg.Analysis.QuotaCalls, cfg.Analysis.QuotaWindow())
	} else {
		zap.L().Info("no analysis key configured, analyze step disabled")
	}

	instruction := runInstruction
	if instruction == "" {
		instruction = cfg.Analysis.Instruction
	}

	return pipeline.New(
		scrape.NewChain(scrapers...),
		extract.NewHTMLExtractor(),
		fetcher,
		classifier,
		analyzer,
		pipeline.Options{
			StorageDir:          cfg.Storage.Dir,
			DownloadConcurrency: cfg.Batch.DownloadConcurrency,
			Instruction:         instruction,
			DownloadImages:      runImages,
		},
	), nil
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "input file: .txt, .csv, .xlsx, .xls, or .json (required)")
	runCmd.Flags().StringVar(&runLabel, "label", "", "default label for inputs without a label column")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "report output directory (default: storage dir)")
	runCmd.Flags().BoolVar(&runImages, "images", false, "also download page images")
	runCmd.Flags().StringVar(&runInstruction, "instruction", "", "analysis focus, overrides config")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}
