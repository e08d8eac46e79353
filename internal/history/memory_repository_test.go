package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beachwatch/beachwatch/internal/contract"
	"github.com/beachwatch/beachwatch/internal/history"
)

var base = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

func newReport(minutes int, outcome contract.Outcome) *contract.Report {
	started := base.Add(time.Duration(minutes) * time.Minute)
	return &contract.Report{
		RunID:      uuid.New(),
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Results: []contract.Result{{
			Scenario: "list-measurements-by-station",
			Outcome:  outcome,
			Failures: []contract.Failure{{Field: "status", Expected: "200", Actual: "503"}},
		}},
	}
}

func TestMemoryRepository_LatestEmpty(t *testing.T) {
	repo := history.NewMemoryRepository(0)

	_, err := repo.Latest(context.Background())
	assert.ErrorIs(t, err, history.ErrNotFound)

	runs, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestMemoryRepository_SaveAndLatest(t *testing.T) {
	ctx := context.Background()
	repo := history.NewMemoryRepository(0)

	older := newReport(0, contract.OutcomePassed)
	newer := newReport(15, contract.OutcomeFailed)
	require.NoError(t, repo.Save(ctx, newer))
	require.NoError(t, repo.Save(ctx, older))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.RunID, latest.RunID)
	assert.False(t, latest.Passed())

	got, err := repo.Get(ctx, older.RunID)
	require.NoError(t, err)
	assert.Equal(t, older.StartedAt, got.StartedAt)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestMemoryRepository_ListNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	repo := history.NewMemoryRepository(0)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		r := newReport(i, contract.OutcomePassed)
		ids = append(ids, r.RunID)
		require.NoError(t, repo.Save(ctx, r))
	}

	runs, err := repo.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[4], runs[0].RunID)
	assert.Equal(t, ids[3], runs[1].RunID)
	assert.Equal(t, ids[2], runs[2].RunID)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMemoryRepository_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	repo := history.NewMemoryRepository(2)

	first := newReport(0, contract.OutcomePassed)
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, newReport(1, contract.OutcomePassed)))
	require.NoError(t, repo.Save(ctx, newReport(2, contract.OutcomePassed)))

	runs, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.NotEqual(t, first.RunID, r.RunID)
	}
}

func TestMemoryRepository_SaveReplacesSameRun(t *testing.T) {
	ctx := context.Background()
	repo := history.NewMemoryRepository(0)

	r := newReport(0, contract.OutcomeFailed)
	require.NoError(t, repo.Save(ctx, r))
	r.Results[0].Outcome = contract.OutcomePassed
	require.NoError(t, repo.Save(ctx, r))

	runs, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Passed())
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := history.NewMemoryRepository(0)

	r := newReport(0, contract.OutcomeFailed)
	require.NoError(t, repo.Save(ctx, r))

	r.Results[0].Failures[0].Actual = "mutated by caller"

	got, err := repo.Latest(ctx)
	require.NoError(t, err)
	got.Results[0].Outcome = contract.OutcomePassed

	again, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, contract.OutcomeFailed, again.Results[0].Outcome)
	assert.Equal(t, "503", again.Results[0].Failures[0].Actual)
}
