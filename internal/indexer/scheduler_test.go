package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScheduler() *Scheduler {
	return NewScheduler(nil, SchedulerOpts{
		Concurrency:      2,
		BatchSize:        10,
		MaxHeightRetries: 3,
	})
}

func TestHandleFailuresRequeuesAtFront(t *testing.T) {
	s := testScheduler()
	s.pending = []int64{50, 51}

	s.handleFailures([]int64{7, 5})

	// Failed heights go to the front in ascending order so gaps close
	// before the tail advances.
	assert.Equal(t, []int64{5, 7, 50, 51}, s.pending)
	assert.Equal(t, 1, s.retries[5])
	assert.Equal(t, 1, s.retries[7])
}

func TestHandleFailuresGivesUpAfterMaxRetries(t *testing.T) {
	s := testScheduler()

	s.handleFailures([]int64{5})
	s.handleFailures([]int64{5})
	require.Equal(t, []int64{5, 5}, s.pending)
	require.Equal(t, 2, s.retries[5])

	// The third failure exhausts the budget: the height is dropped
	// from the queue and its retry state is cleared, leaving the gap
	// for the backfill scanner.
	s.handleFailures([]int64{5})
	assert.Equal(t, []int64{5, 5}, s.pending)
	assert.NotContains(t, s.retries, 5)
}

func TestClearRetryResetsBudget(t *testing.T) {
	s := testScheduler()

	s.handleFailures([]int64{9})
	s.handleFailures([]int64{9})
	require.Equal(t, 2, s.retries[9])

	// A success wipes the count, so a later transient failure starts
	// from a full budget instead of inheriting old strikes.
	s.clearRetry(9)
	s.handleFailures([]int64{9})
	assert.Equal(t, 1, s.retries[9])
}

func TestRequeuePrepends(t *testing.T) {
	s := testScheduler()
	s.pending = []int64{20}

	s.requeue([]int64{10, 11})
	assert.Equal(t, []int64{10, 11, 20}, s.pending)

	s.requeue(nil)
	assert.Equal(t, []int64{10, 11, 20}, s.pending)
}

func TestExtendBatch(t *testing.T) {
	batch := extendBatch(nil, 101, 200, 5)
	assert.Equal(t, []int64{101, 102, 103, 104, 105}, batch)

	// Caught up with the tip.
	assert.Empty(t, extendBatch(nil, 201, 200, 5))
}

func TestExtendBatchSkipsRequeuedHeights(t *testing.T) {
	// Height 102 failed earlier while 103+ committed, so it is both in
	// the requeued batch and inside the tip extension range. It must
	// be handed to exactly one worker.
	batch := extendBatch([]int64{102}, 101, 110, 4)
	assert.Equal(t, []int64{102, 101, 103, 104}, batch)
}
