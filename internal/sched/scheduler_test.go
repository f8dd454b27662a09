package sched

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tourscan/internal/config"
	"github.com/sells-group/tourscan/internal/detect"
	"github.com/sells-group/tourscan/internal/table"
)

// fakeAnalyzer scripts per-URL failures and records attempt counts and the
// concurrency high-water mark.
type fakeAnalyzer struct {
	mu        sync.Mutex
	attempts  map[string]int
	failUntil map[string]int // fail while attempts <= n
	delay     time.Duration

	inFlight, maxInFlight int
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		attempts:  make(map[string]int),
		failUntil: make(map[string]int),
	}
}

func (f *fakeAnalyzer) Crawl(ctx context.Context, rootURL string, phase config.PhaseConfig) (*detect.Result, error) {
	f.mu.Lock()
	f.attempts[rootURL]++
	attempt := f.attempts[rootURL]
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	failUntil := f.failUntil[rootURL]
	f.mu.Unlock()

	if attempt <= failUntil {
		return nil, eris.Errorf("fake: connection refused (attempt %d)", attempt)
	}

	r := detect.NewResult()
	r.BookingTech.Add("fareharbor")
	r.PagesAnalyzed = phase.MaxPagesPerSite
	return r, nil
}

func testPhases() []config.PhaseConfig {
	return []config.PhaseConfig{
		{Name: "aggressive", Concurrency: 4, BatchSize: 10, TimeoutMs: 1000, MaxPagesPerSite: 3},
		{Name: "conservative_retry", Concurrency: 3, BatchSize: 10, TimeoutMs: 2000, MaxPagesPerSite: 5},
		{Name: "patient_retry", Concurrency: 2, BatchSize: 10, TimeoutMs: 3000, MaxPagesPerSite: 7},
	}
}

func writeSheet(t *testing.T, urls []string) *table.Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sites.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	require.NoError(t, w.Write([]string{"Website URL"}))
	for _, u := range urls {
		require.NoError(t, w.Write([]string{u}))
	}
	w.Flush()
	require.NoError(t, f.Close())

	tbl, err := table.Load(path)
	require.NoError(t, err)
	return tbl
}

func TestRun_AllSucceedFirstPhase(t *testing.T) {
	tbl := writeSheet(t, []string{"a.example.com", "b.example.com"})
	fake := newFakeAnalyzer()

	stats, err := New(tbl, fake, Options{Phases: testPhases()}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 1, stats.Batches)
	assert.Equal(t, table.StatusCompleted, tbl.Status(0))
	assert.Equal(t, table.StatusCompleted, tbl.Status(1))
	assert.Equal(t, 2, stats.Tiers["GOOD"])
}

func TestRun_FailedSitesRetriedNextPhase(t *testing.T) {
	tbl := writeSheet(t, []string{"flaky.example.com", "solid.example.com"})
	fake := newFakeAnalyzer()
	fake.failUntil["https://flaky.example.com"] = 1 // fails once, then succeeds

	stats, err := New(tbl, fake, Options{Phases: testPhases()}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, table.StatusCompleted, tbl.Status(0))
	assert.Equal(t, table.StatusCompleted, tbl.Status(1))
	assert.Equal(t, 2, fake.attempts["https://flaky.example.com"])
	assert.Equal(t, 1, fake.attempts["https://solid.example.com"])
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
}

func TestRun_PermanentFailureStaysFailed(t *testing.T) {
	tbl := writeSheet(t, []string{"dead.example.com"})
	fake := newFakeAnalyzer()
	fake.failUntil["https://dead.example.com"] = 100

	stats, err := New(tbl, fake, Options{Phases: testPhases()}).Run(context.Background())
	require.NoError(t, err)

	// One attempt per phase, no more.
	assert.Equal(t, 3, fake.attempts["https://dead.example.com"])
	assert.Equal(t, table.StatusFailed, tbl.Status(0))
	assert.Equal(t, 0, stats.Completed)
}

func TestRun_InvalidURLIsTerminal(t *testing.T) {
	tbl := writeSheet(t, []string{"notadomain", "ok.example.com"})
	fake := newFakeAnalyzer()

	stats, err := New(tbl, fake, Options{Phases: testPhases()}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, table.StatusInvalidURL, tbl.Status(0))
	assert.Equal(t, table.StatusCompleted, tbl.Status(1))
	assert.Equal(t, 1, stats.InvalidURL)
	// The invalid row is never handed to the analyzer again.
	assert.Empty(t, fake.attempts["notadomain"])
	assert.Len(t, fake.attempts, 1)
}

func TestRun_ConcurrencyBounded(t *testing.T) {
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = string(rune('a'+i)) + ".example.com"
	}
	tbl := writeSheet(t, urls)

	fake := newFakeAnalyzer()
	fake.delay = 20 * time.Millisecond

	phases := testPhases()
	phases[0].Concurrency = 2

	_, err := New(tbl, fake, Options{Phases: phases}).Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, fake.maxInFlight, 2)
}

func TestRun_LimitStopsEarly(t *testing.T) {
	tbl := writeSheet(t, []string{"a.example.com", "b.example.com", "c.example.com"})
	fake := newFakeAnalyzer()

	stats, err := New(tbl, fake, Options{Phases: testPhases(), Limit: 2}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, tbl.PendingCount())
}

func TestRun_LimitKeepsFailedTerminal(t *testing.T) {
	tbl := writeSheet(t, []string{"dead.example.com"})
	fake := newFakeAnalyzer()
	fake.failUntil["https://dead.example.com"] = 100

	_, err := New(tbl, fake, Options{Phases: testPhases(), Limit: 1}).Run(context.Background())
	require.NoError(t, err)

	// The budget is spent after the first attempt; the row must not be
	// reset into a retry it will never get.
	assert.Equal(t, 1, fake.attempts["https://dead.example.com"])
	assert.Equal(t, table.StatusFailed, tbl.Status(0))
}

func TestRun_LimitMidRetryRestoresFailed(t *testing.T) {
	tbl := writeSheet(t, []string{"x.example.com", "y.example.com"})
	fake := newFakeAnalyzer()
	fake.failUntil["https://x.example.com"] = 100
	fake.failUntil["https://y.example.com"] = 100

	// Budget of 3: both rows fail the first phase and are reset for the
	// retry, but only one more attempt fits. The unretried row must end
	// FAILED, not pending.
	_, err := New(tbl, fake, Options{Phases: testPhases(), Limit: 3}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, table.StatusFailed, tbl.Status(0))
	assert.Equal(t, table.StatusFailed, tbl.Status(1))
	total := fake.attempts["https://x.example.com"] + fake.attempts["https://y.example.com"]
	assert.Equal(t, 3, total)
}

func TestRun_BatchesSplitBySize(t *testing.T) {
	tbl := writeSheet(t, []string{"a.example.com", "b.example.com", "c.example.com"})
	fake := newFakeAnalyzer()

	phases := testPhases()
	phases[0].BatchSize = 2

	stats, err := New(tbl, fake, Options{Phases: phases}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, 3, stats.Completed)
}

func TestRun_ResumesFromCheckpoint(t *testing.T) {
	tbl := writeSheet(t, []string{"a.example.com", "b.example.com"})
	fake := newFakeAnalyzer()
	fake.failUntil["https://b.example.com"] = 100

	_, err := New(tbl, fake, Options{Phases: testPhases()}).Run(context.Background())
	require.NoError(t, err)

	// Reload the checkpointed sheet and run again: the completed row is
	// untouched, the failed row gets fresh phases.
	reloaded, err := table.Load(tbl.Path())
	require.NoError(t, err)
	assert.Equal(t, table.StatusCompleted, reloaded.Status(0))
	assert.Equal(t, table.StatusFailed, reloaded.Status(1))

	fake2 := newFakeAnalyzer()
	reloaded.ResetFailed()
	stats, err := New(reloaded, fake2, Options{Phases: testPhases()}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Completed)
	assert.Empty(t, fake2.attempts["https://a.example.com"])
	assert.Equal(t, table.StatusCompleted, reloaded.Status(1))
}
