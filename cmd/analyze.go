package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tourscan/internal/config"
	"github.com/sells-group/tourscan/internal/crawl"
	"github.com/sells-group/tourscan/internal/detect"
	"github.com/sells-group/tourscan/internal/patterns"
	"github.com/sells-group/tourscan/internal/sched"
	"github.com/sells-group/tourscan/internal/store"
	"github.com/sells-group/tourscan/internal/table"
)

var (
	analyzeInput       string
	analyzeOutput      string
	analyzeLimit       int
	analyzeBatchSize   int
	analyzeConcurrency int
	analyzeRetry       bool
	analyzeNoLedger    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze every website in a spreadsheet",
	Long: `Reads a CSV or XLSX sheet of websites, crawls each one, and writes
detection results back into the sheet. Progress is checkpointed into the
sheet itself, so an interrupted run resumes where it left off.

Examples:
  # Full run, results written in place
  tourscan analyze --input operators.csv

  # Work on a copy, first 50 rows only
  tourscan analyze --input operators.xlsx --output scored.xlsx --limit 50`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, err := resolveSheetPath(analyzeInput, analyzeOutput)
		if err != nil {
			return err
		}

		tbl, err := table.Load(path)
		if err != nil {
			return eris.Wrap(err, "analyze: load sheet")
		}
		zap.L().Info("sheet loaded",
			zap.String("path", path),
			zap.Int("rows", tbl.Len()),
			zap.Int("pending", tbl.PendingCount()),
		)

		if analyzeRetry {
			if n := tbl.ResetFailed(); n > 0 {
				zap.L().Info("failed rows queued for retry", zap.Int("count", n))
			}
		}

		crawler, err := newCrawler()
		if err != nil {
			return err
		}

		opts := sched.Options{
			Phases:      phaseSequence(),
			BackupEvery: cfg.Table.BackupEveryBatches,
			Limit:       analyzeLimit,
		}
		if !analyzeNoLedger {
			opts.Ledger = openLedger(ctx)
		}
		if opts.Ledger != nil {
			defer func() { _ = opts.Ledger.Close() }()
		}

		stats, err := sched.New(tbl, crawler, opts).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "analyze: run")
		}

		for tier, n := range stats.Tiers {
			zap.L().Info("prospect tier", zap.String("tier", tier), zap.Int("count", n))
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "path to CSV or XLSX sheet (required)")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "copy the sheet here and work on the copy (default: in place)")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "max rows to process (0 = all)")
	analyzeCmd.Flags().IntVar(&analyzeBatchSize, "batch-size", 0, "override first-phase batch size")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 0, "override first-phase concurrency")
	analyzeCmd.Flags().BoolVar(&analyzeRetry, "retry", false, "also re-queue rows that failed in a previous run")
	analyzeCmd.Flags().BoolVar(&analyzeNoLedger, "no-ledger", false, "skip the run-history database")
	_ = analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}

// newCrawler assembles the crawler from config: pattern tables (with optional
// override file), extractor, and HTTP fetch contexts.
func newCrawler() (*crawl.Crawler, error) {
	tables := patterns.Default()
	if cfg.Patterns.OverridePath != "" {
		var err error
		tables, err = patterns.Load(cfg.Patterns.OverridePath)
		if err != nil {
			return nil, eris.Wrap(err, "analyze: load patterns")
		}
	}

	ext, err := detect.NewExtractor(tables)
	if err != nil {
		return nil, eris.Wrap(err, "analyze: compile patterns")
	}

	return crawl.New(crawl.NewHTTPFactory(cfg.Crawl), ext, tables, cfg.Crawl), nil
}

// phaseSequence applies CLI overrides to the first phase. Retry phases keep
// their configured settings so the wide-then-patient ordering holds.
func phaseSequence() []config.PhaseConfig {
	phases := cfg.Phases.Sequence()
	if analyzeBatchSize > 0 {
		phases[0].BatchSize = analyzeBatchSize
	}
	if analyzeConcurrency > 0 {
		phases[0].Concurrency = analyzeConcurrency
	}
	return phases
}

// openLedger opens the run-history database, or returns nil when it cannot.
func openLedger(ctx context.Context) *store.Ledger {
	ledger, err := store.Open(cfg.Store.DatabaseURL)
	if err != nil {
		zap.L().Warn("run ledger unavailable", zap.Error(err))
		return nil
	}
	if err := ledger.Migrate(ctx); err != nil {
		zap.L().Warn("run ledger migrate failed", zap.Error(err))
		_ = ledger.Close()
		return nil
	}
	return ledger
}

// resolveSheetPath decides which sheet the run operates on. A fresh output
// path gets a copy of the input; an existing one is resumed as-is, since it
// already carries checkpointed progress from a prior run.
func resolveSheetPath(input, output string) (string, error) {
	if output == "" || output == input {
		return input, nil
	}
	if _, err := os.Stat(output); err == nil {
		zap.L().Info("resuming existing output sheet", zap.String("path", output))
		return output, nil
	} else if !os.IsNotExist(err) {
		return "", eris.Wrap(err, "analyze: stat output")
	}
	if err := copyFile(input, output); err != nil {
		return "", err
	}
	return output, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return eris.Wrap(err, "analyze: read input")
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return eris.Wrap(err, "analyze: write output copy")
	}
	return nil
}
