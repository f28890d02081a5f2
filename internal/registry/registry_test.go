package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testState(runID string) *blackboard.State {
	return blackboard.NewState(runID, blackboard.Selection{RegionID: "r"}, blackboard.Scenario{ScenarioID: "s"})
}

func TestAcquire_RegistersPendingRun(t *testing.T) {
	reg := New()

	w, err := reg.Acquire("run-1")
	require.NoError(t, err)
	defer w.Release()

	assert.Equal(t, "run-1", w.RunID())
	assert.Equal(t, 1, reg.Len())

	snap, err := reg.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, blackboard.RunStatusPending, snap.Status)
	assert.Nil(t, snap.State)
	assert.NotZero(t, snap.CreatedAtMs)
}

func TestAcquire_OneWriterPerRun(t *testing.T) {
	reg := New()

	w, err := reg.Acquire("run-1")
	require.NoError(t, err)

	_, err = reg.Acquire("run-1")
	require.Error(t, err)
	assert.True(t, IsWriterBusy(err))
	assert.Contains(t, err.Error(), "run-1")

	// A different run is unaffected.
	other, err := reg.Acquire("run-2")
	require.NoError(t, err)
	other.Release()

	w.Release()
	again, err := reg.Acquire("run-1")
	require.NoError(t, err, "writer can be reacquired after release")
	again.Release()
}

func TestAcquire_EmptyRunID(t *testing.T) {
	_, err := New().Acquire("")
	assert.Error(t, err)
}

func TestGet_NotFound(t *testing.T) {
	_, err := New().Get("missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsWriterBusy(err))
}

func TestPublish_ReplacesSnapshot(t *testing.T) {
	reg := New()
	w, err := reg.Acquire("run-1")
	require.NoError(t, err)
	defer w.Release()

	state := testState("run-1")
	require.NoError(t, w.Publish(blackboard.RunStatusRunning, state, nil))

	snap, err := reg.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, blackboard.RunStatusRunning, snap.Status)
	assert.Same(t, state, snap.State)

	payload := &blackboard.ErrorPayload{Stage: blackboard.StageMeasures, Reason: "stage_computation", Message: "boom"}
	require.NoError(t, w.Publish(blackboard.RunStatusFailed, state, payload))

	snap, err = reg.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, blackboard.RunStatusFailed, snap.Status)
	assert.Equal(t, payload, snap.Error)
	assert.GreaterOrEqual(t, snap.UpdatedAtMs, snap.CreatedAtMs)
}

func TestPublish_AfterRelease(t *testing.T) {
	reg := New()
	w, err := reg.Acquire("run-1")
	require.NoError(t, err)

	w.Release()
	w.Release() // idempotent

	err = w.Publish(blackboard.RunStatusCompleted, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already released")
}

func TestPublish_InvalidStatus(t *testing.T) {
	reg := New()
	w, err := reg.Acquire("run-1")
	require.NoError(t, err)
	defer w.Release()

	assert.Error(t, w.Publish("exploded", nil, nil))
}

func TestList_OldestFirst(t *testing.T) {
	reg := New()
	for _, id := range []string{"b", "a", "c"} {
		w, err := reg.Acquire(id)
		require.NoError(t, err)
		w.Release()
	}

	list := reg.List()
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		prev, cur := list[i-1], list[i]
		ordered := prev.CreatedAtMs < cur.CreatedAtMs || (prev.CreatedAtMs == cur.CreatedAtMs && prev.RunID < cur.RunID)
		assert.True(t, ordered)
	}
}

func TestConcurrentWritersAndReaders(t *testing.T) {
	reg := New()
	const runs = 8
	const updates = 50

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		runID := fmt.Sprintf("run-%d", i)
		w, err := reg.Acquire(runID)
		require.NoError(t, err)

		wg.Add(2)
		go func() {
			defer wg.Done()
			defer w.Release()
			state := testState(runID)
			for j := 0; j < updates; j++ {
				_ = w.Publish(blackboard.RunStatusRunning, state, nil)
			}
			_ = w.Publish(blackboard.RunStatusCompleted, state, nil)
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < updates; j++ {
				snap, err := reg.Get(runID)
				if err != nil {
					t.Errorf("get %s: %v", runID, err)
					return
				}
				if snap.RunID != runID {
					t.Errorf("snapshot for %s carries run %s", runID, snap.RunID)
					return
				}
			}
		}()
	}
	wg.Wait()

	for _, snap := range reg.List() {
		assert.Equal(t, blackboard.RunStatusCompleted, snap.Status, snap.RunID)
	}
}
