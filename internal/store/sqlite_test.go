package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	l, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() }) //nolint:errcheck
	require.NoError(t, l.Migrate(context.Background()))
	return l
}

func TestLedger_CreateAndFinishRun(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	run, err := l.CreateRun(ctx, "operators.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	stats := map[string]int{"completed": 10, "failed": 2, "tier_GOOD": 4}
	require.NoError(t, l.FinishRun(ctx, run.ID, RunStatusComplete, stats))

	latest, err := l.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, RunStatusComplete, latest.Status)
	assert.Equal(t, stats, latest.Stats)
}

func TestLedger_FinishUnknownRun(t *testing.T) {
	l := newTestLedger(t)
	err := l.FinishRun(context.Background(), "nope", RunStatusComplete, nil)
	assert.Error(t, err)
}

func TestLedger_LatestRunEmpty(t *testing.T) {
	l := newTestLedger(t)
	run, err := l.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestLedger_RecordAndListBatches(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	run, err := l.CreateRun(ctx, "operators.csv")
	require.NoError(t, err)

	require.NoError(t, l.RecordBatch(ctx, Batch{
		RunID: run.ID, Phase: "aggressive", Pool: 80, Completed: 70, Failed: 10, DurationMs: 90000,
	}))
	require.NoError(t, l.RecordBatch(ctx, Batch{
		RunID: run.ID, Phase: "conservative_retry", Pool: 10, Completed: 6, Failed: 4, DurationMs: 60000,
	}))

	batches, err := l.RunBatches(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "aggressive", batches[0].Phase)
	assert.Equal(t, 70, batches[0].Completed)
	assert.Equal(t, "conservative_retry", batches[1].Phase)
	assert.Equal(t, int64(60000), batches[1].DurationMs)
}
