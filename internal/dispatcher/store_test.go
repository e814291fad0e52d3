package dispatcher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoffjay/taskfabricd/internal/protocol"
)

func TestEnqueueAssignsSequentialIDs(t *testing.T) {
	s := NewStore()

	id1 := s.Enqueue("reverse", json.RawMessage(`"abc"`))
	id2 := s.Enqueue("upper", json.RawMessage(`"def"`))

	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)
	assert.Equal(t, 2, s.QueueDepth())

	stats := s.Stats()
	assert.Equal(t, 2, stats.TotalTasks)
	assert.Equal(t, 2, stats.OpenTasks)
}

func TestClaimRemovesFromQueueAndMarksBusy(t *testing.T) {
	s := NewStore()
	id := s.Enqueue("reverse", json.RawMessage(`"abc"`))

	ok := s.claim(id, "10.0.0.5:6000")
	require.True(t, ok)
	assert.Equal(t, 0, s.QueueDepth())
	assert.True(t, s.isBusy("10.0.0.5:6000"))

	ok = s.claim(id, "10.0.0.6:6000")
	assert.False(t, ok, "a task already claimed cannot be claimed twice")
}

func TestReleaseRevertsClaimAndRequeues(t *testing.T) {
	s := NewStore()
	id := s.Enqueue("reverse", json.RawMessage(`"abc"`))
	require.True(t, s.claim(id, "10.0.0.5:6000"))

	s.release(id, "10.0.0.5:6000")

	assert.False(t, s.isBusy("10.0.0.5:6000"))
	assert.Equal(t, 1, s.QueueDepth())
}

func TestCompleteStoresResultAndUpdatesStats(t *testing.T) {
	s := NewStore()
	id := s.Enqueue("reverse", json.RawMessage(`"abc"`))
	require.True(t, s.claim(id, "10.0.0.5:6000"))

	ok := s.Complete(id, json.RawMessage(`"cba"`))
	require.True(t, ok)

	task, found := s.Get(id)
	require.True(t, found)
	assert.Equal(t, protocol.StatusDone, task.Status)
	assert.JSONEq(t, `"cba"`, string(task.Result))
	assert.False(t, s.isBusy("10.0.0.5:6000"))

	stats := s.Stats()
	assert.Equal(t, 1, stats.CompletedTasks)
	assert.Equal(t, 0, stats.OpenTasks)
}

func TestCompleteIsIdempotentForAlreadyDoneTask(t *testing.T) {
	s := NewStore()
	id := s.Enqueue("reverse", json.RawMessage(`"abc"`))
	require.True(t, s.claim(id, "10.0.0.5:6000"))
	require.True(t, s.Complete(id, json.RawMessage(`"cba"`)))

	ok := s.Complete(id, json.RawMessage(`"something-else"`))
	require.True(t, ok, "a duplicate RESULT_RETURN for a done task is a no-op success")

	task, _ := s.Get(id)
	assert.JSONEq(t, `"cba"`, string(task.Result), "the duplicate must not overwrite the stored result")

	stats := s.Stats()
	assert.Equal(t, 1, stats.CompletedTasks, "the duplicate must not double-count")
}

func TestCompleteUnknownTaskReturnsFalse(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Complete(999, json.RawMessage(`"x"`)))
}

func TestFailStoresErrorAndUpdatesFailedBucket(t *testing.T) {
	s := NewStore()
	id := s.Enqueue("wait", json.RawMessage(`"not-a-number"`))
	require.True(t, s.claim(id, "10.0.0.5:6000"))

	ok := s.Fail(id, "Error processing task: invalid duration")
	require.True(t, ok)

	task, found := s.Get(id)
	require.True(t, found)
	assert.Equal(t, protocol.StatusFailed, task.Status)
	assert.False(t, s.isBusy("10.0.0.5:6000"))

	stats := s.Stats()
	assert.Equal(t, 1, stats.FailedTasks)
	assert.Equal(t, 0, stats.CompletedTasks)
	assert.Equal(t, 0, stats.OpenTasks)
}

func TestStatsInvariantHoldsAcrossMixedOutcomes(t *testing.T) {
	s := NewStore()
	done := s.Enqueue("reverse", json.RawMessage(`"a"`))
	failed := s.Enqueue("wait", json.RawMessage(`"b"`))
	_ = s.Enqueue("upper", json.RawMessage(`"c"`))

	require.True(t, s.claim(done, "10.0.0.5:6000"))
	require.True(t, s.Complete(done, json.RawMessage(`"a-reversed"`)))

	require.True(t, s.claim(failed, "10.0.0.6:6000"))
	require.True(t, s.Fail(failed, "Error processing task: bad input"))

	stats := s.Stats()
	assert.Equal(t, stats.TotalTasks, stats.OpenTasks+stats.CompletedTasks+stats.FailedTasks)
}

func TestPendingReturnsQueueOrderTruncated(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.Enqueue("reverse", json.RawMessage(`"x"`))
	}

	pending := s.Pending(3)
	require.Len(t, pending, 3)
	assert.Equal(t, uint64(1), pending[0].ID)
	assert.Equal(t, uint64(3), pending[2].ID)
}

func TestAllReturnsEveryTask(t *testing.T) {
	s := NewStore()
	s.Enqueue("reverse", json.RawMessage(`"x"`))
	s.Enqueue("upper", json.RawMessage(`"y"`))

	assert.Len(t, s.All(), 2)
}
