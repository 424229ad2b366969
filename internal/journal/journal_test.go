package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terracol/terracol/internal/model"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRunLifecycle(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	runID, err := j.StartRun(ctx, "netherlands", 20)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	report := model.NewReport("netherlands", 20)
	report.Record(model.Outcome{Tile: "N052E004", State: model.TileStateConverted, Rows: 12960000})
	report.Record(model.Outcome{
		Tile: "N052E005", State: model.TileStateFailed,
		ErrKind: model.ErrKindNotFound, ErrMsg: "http 404",
	})
	for _, o := range report.Outcomes() {
		require.NoError(t, j.RecordOutcome(ctx, runID, o))
	}
	require.NoError(t, j.FinishRun(ctx, runID, report))

	runs, err := j.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "netherlands", runs[0].Region)
	assert.Equal(t, 1, runs[0].Converted)
	assert.Equal(t, 1, runs[0].Failed)
	assert.Equal(t, int64(12960000), runs[0].Rows)
	assert.Equal(t, "failed", runs[0].Status)
	require.NotNil(t, runs[0].Finished)

	outcomes, err := j.Outcomes(ctx, runID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, model.ErrKindNotFound, outcomes[1].ErrKind)
	assert.Equal(t, "http 404", outcomes[1].ErrMsg)
}

func TestListRunsNewestFirst(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	first, err := j.StartRun(ctx, "netherlands", 20)
	require.NoError(t, err)
	second, err := j.StartRun(ctx, "europe", 2660)
	require.NoError(t, err)

	runs, err := j.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	// Same-timestamp ordering is not guaranteed, but both must list.
	runs, err = j.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.Contains(t, ids, first)
	assert.Contains(t, ids, second)
}

func TestFinishRunComplete(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	runID, err := j.StartRun(ctx, "netherlands", 1)
	require.NoError(t, err)

	report := model.NewReport("netherlands", 1)
	report.Record(model.Outcome{Tile: "N050E003", State: model.TileStateConverted, Rows: 10})
	require.NoError(t, j.FinishRun(ctx, runID, report))

	runs, err := j.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "complete", runs[0].Status)
}
