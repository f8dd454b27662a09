// Package sched drives analysis over the whole sheet in three scripted
// phases. The first phase runs wide and fast; each retry phase takes the
// previous phase's failures with fewer workers and longer timeouts, so sites
// that buckled under aggressive settings get calmer second and third chances.
package sched

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tourscan/internal/config"
	"github.com/sells-group/tourscan/internal/crawl"
	"github.com/sells-group/tourscan/internal/detect"
	"github.com/sells-group/tourscan/internal/prospect"
	"github.com/sells-group/tourscan/internal/store"
	"github.com/sells-group/tourscan/internal/table"
)

// SiteAnalyzer analyzes one site under a phase's settings.
type SiteAnalyzer interface {
	Crawl(ctx context.Context, rootURL string, phase config.PhaseConfig) (*detect.Result, error)
}

// RunStats summarizes a finished run.
type RunStats struct {
	Batches    int
	Completed  int
	Failed     int
	InvalidURL int
	Tiers      map[string]int
}

// Map flattens the stats for the run ledger.
func (s *RunStats) Map() map[string]int {
	m := map[string]int{
		"batches":     s.Batches,
		"completed":   s.Completed,
		"failed":      s.Failed,
		"invalid_url": s.InvalidURL,
	}
	for tier, n := range s.Tiers {
		m["tier_"+tier] = n
	}
	return m
}

// Options configures a Scheduler.
type Options struct {
	Phases      []config.PhaseConfig
	Ledger      *store.Ledger // nil disables the run ledger
	BackupEvery int
	Limit       int // max rows to process this run, 0 = all
}

// Scheduler owns one run over one sheet.
type Scheduler struct {
	tbl         *table.Table
	analyzer    SiteAnalyzer
	phases      []config.PhaseConfig
	ledger      *store.Ledger
	backupEvery int
	limit       int
	attempted   map[int]struct{}
}

// New creates a Scheduler.
func New(tbl *table.Table, analyzer SiteAnalyzer, opts Options) *Scheduler {
	return &Scheduler{
		tbl:         tbl,
		analyzer:    analyzer,
		phases:      opts.Phases,
		ledger:      opts.Ledger,
		backupEvery: opts.BackupEvery,
		limit:       opts.Limit,
		attempted:   make(map[int]struct{}),
	}
}

// Run executes all phases to completion. Checkpoint failures abort the run;
// backup and ledger failures only warn, since they cost history rather than
// correctness.
func (s *Scheduler) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{Tiers: make(map[string]int)}

	s.backup("start")

	var runID string
	if s.ledger != nil {
		run, err := s.ledger.CreateRun(ctx, s.tbl.Path())
		if err != nil {
			zap.L().Warn("run ledger unavailable, continuing without it", zap.Error(err))
			s.ledger = nil
		} else {
			runID = run.ID
		}
	}

	for i, phase := range s.phases {
		if i > 0 {
			// A retry that cannot be attempted must not reset terminal
			// statuses, or the run ends with the row stuck pending.
			if s.limitSpent(stats) {
				break
			}
			retried := s.tbl.ResetFailed()
			if retried == 0 {
				break
			}
			zap.L().Info("retrying failed sites",
				zap.String("phase", phase.Name),
				zap.Int("sites", retried),
			)
		}
		if err := s.runPhase(ctx, phase, runID, stats); err != nil {
			s.finishLedger(ctx, runID, store.RunStatusFailed, stats)
			return stats, err
		}
	}

	if err := s.restoreUnretried(); err != nil {
		s.finishLedger(ctx, runID, store.RunStatusFailed, stats)
		return stats, err
	}

	s.finishLedger(ctx, runID, store.RunStatusComplete, stats)
	zap.L().Info("run finished",
		zap.Int("batches", stats.Batches),
		zap.Int("completed", stats.Completed),
		zap.Int("failed", stats.Failed),
		zap.Int("invalid_url", stats.InvalidURL),
	)
	return stats, nil
}

func (s *Scheduler) runPhase(ctx context.Context, phase config.PhaseConfig, runID string, stats *RunStats) error {
	for {
		size := phase.BatchSize
		if s.limit > 0 {
			remaining := s.limit - (stats.Completed + stats.Failed + stats.InvalidURL)
			if remaining <= 0 {
				return nil
			}
			if remaining < size {
				size = remaining
			}
		}
		pool := s.tbl.Pool(size)
		if len(pool) == 0 {
			return nil
		}
		stats.Batches++

		zap.L().Info("starting batch",
			zap.String("phase", phase.Name),
			zap.Int("batch", stats.Batches),
			zap.Int("sites", len(pool)),
			zap.Int("remaining", s.tbl.PendingCount()),
		)

		// Claim the batch before launching so a crash mid-batch is visible
		// in the checkpoint and recoverable on reload.
		for _, idx := range pool {
			s.tbl.MarkInProgress(idx)
			s.attempted[idx] = struct{}{}
		}
		if err := s.tbl.Checkpoint(); err != nil {
			return err
		}

		start := time.Now()
		outcomes := s.runBatch(ctx, phase, pool)

		completed, failed := 0, 0
		for n, idx := range pool {
			oc := outcomes[n]
			if !s.tbl.SetOutcome(idx, oc) {
				continue
			}
			switch oc.Status {
			case table.StatusCompleted:
				completed++
				stats.Completed++
				stats.Tiers[oc.Prospect]++
			case table.StatusInvalidURL:
				stats.InvalidURL++
			default:
				failed++
				stats.Failed++
			}
		}

		if err := s.tbl.Checkpoint(); err != nil {
			return err
		}
		if s.ledger != nil {
			if err := s.ledger.RecordBatch(ctx, store.Batch{
				RunID:      runID,
				Phase:      phase.Name,
				Pool:       len(pool),
				Completed:  completed,
				Failed:     failed,
				DurationMs: time.Since(start).Milliseconds(),
			}); err != nil {
				zap.L().Warn("record batch failed", zap.Error(err))
			}
		}
		if s.backupEvery > 0 && stats.Batches%s.backupEvery == 0 {
			s.backup(phase.Name)
		}

		if s.tbl.PendingCount() > 0 {
			if err := sleepCtx(ctx, phase.InterBatchDelay()); err != nil {
				return err
			}
		}
	}
}

// runBatch analyzes the pool concurrently. Each goroutine writes only its own
// outcome slot; the table is touched exclusively between batches.
func (s *Scheduler) runBatch(ctx context.Context, phase config.PhaseConfig, pool []int) []table.Outcome {
	outcomes := make([]table.Outcome, len(pool))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(phase.Concurrency)

	for n, idx := range pool {
		rawURL := s.tbl.URL(idx)
		g.Go(func() error {
			outcomes[n] = s.analyzeSite(gctx, rawURL, phase)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *Scheduler) analyzeSite(ctx context.Context, rawURL string, phase config.PhaseConfig) table.Outcome {
	target, err := crawl.NormalizeURL(rawURL)
	if err != nil {
		zap.L().Warn("invalid url", zap.String("url", rawURL), zap.Error(err))
		return table.Outcome{Status: table.StatusInvalidURL, Err: err.Error()}
	}

	result, err := s.analyzer.Crawl(ctx, target, phase)
	if err != nil {
		zap.L().Warn("site analysis failed",
			zap.String("url", target),
			zap.String("phase", phase.Name),
			zap.Error(err),
		)
		return table.Outcome{Status: table.StatusFailed, Err: err.Error()}
	}

	tier, confidence := prospect.Classify(result)
	zap.L().Info("site analyzed",
		zap.String("url", target),
		zap.Bool("has_chatbot", result.HasChatbot),
		zap.Int("pages", result.PagesAnalyzed),
		zap.String("prospect", string(tier)),
	)
	return table.Outcome{
		Status:     table.StatusCompleted,
		Result:     result,
		Prospect:   string(tier),
		Confidence: string(confidence),
	}
}

func (s *Scheduler) limitSpent(stats *RunStats) bool {
	return s.limit > 0 && stats.Completed+stats.Failed+stats.InvalidURL >= s.limit
}

// restoreUnretried puts rows that were reset for a retry but never got one
// back to FAILED, so every attempted row ends the run with a terminal status.
func (s *Scheduler) restoreUnretried() error {
	restored := 0
	for idx := range s.attempted {
		if s.tbl.Status(idx) == table.StatusPending {
			s.tbl.MarkFailed(idx)
			restored++
		}
	}
	if restored == 0 {
		return nil
	}
	zap.L().Info("restored failed status on unretried rows", zap.Int("rows", restored))
	return s.tbl.Checkpoint()
}

func (s *Scheduler) backup(label string) {
	path, err := s.tbl.Backup()
	if err != nil {
		zap.L().Warn("backup failed", zap.String("label", label), zap.Error(err))
		return
	}
	zap.L().Info("backup written", zap.String("path", path))
}

func (s *Scheduler) finishLedger(ctx context.Context, runID, status string, stats *RunStats) {
	if s.ledger == nil || runID == "" {
		return
	}
	if err := s.ledger.FinishRun(ctx, runID, status, stats.Map()); err != nil {
		zap.L().Warn("finish run ledger failed", zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
