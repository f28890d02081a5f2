package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

// recorder collects updates; Run notifies synchronously so no locking is needed.
type recorder struct {
	updates []Update
}

func (r *recorder) Observe(_ context.Context, u Update) {
	r.updates = append(r.updates, u)
}

func TestObservers_SuccessSequence(t *testing.T) {
	engineLevel := &recorder{}
	runLevel := &recorder{}
	engine := newTestEngine(t, WithObserver(engineLevel))

	req := suzhouRequest("run-obs")
	req.Observers = []Observer{runLevel}
	engine.Run(context.Background(), req)

	// run started, started+completed per stage, run completed
	require.Len(t, engineLevel.updates, 2+2*len(blackboard.Stages))
	assert.Equal(t, engineLevel.updates, runLevel.updates)

	first := engineLevel.updates[0]
	assert.Empty(t, first.Stage)
	assert.Equal(t, StatusStarted, first.Status)
	assert.Equal(t, blackboard.RunStatusRunning, first.RunStatus)

	for i, stage := range blackboard.Stages {
		started := engineLevel.updates[1+2*i]
		completed := engineLevel.updates[2+2*i]
		assert.Equal(t, stage, started.Stage)
		assert.Equal(t, StatusStarted, started.Status)
		assert.False(t, started.State.Has(stage))
		assert.Equal(t, stage, completed.Stage)
		assert.Equal(t, StatusCompleted, completed.Status)
		assert.True(t, completed.State.Has(stage))
	}

	last := engineLevel.updates[len(engineLevel.updates)-1]
	assert.Empty(t, last.Stage)
	assert.Equal(t, blackboard.RunStatusCompleted, last.RunStatus)
	assert.Nil(t, last.Error)
}

func TestObservers_FailureCarriesPayload(t *testing.T) {
	rec := &recorder{}
	engine := newTestEngine(t, WithObserver(rec))

	engine.Run(context.Background(), zeroDemandRequest("run-obs-fail"))

	last := rec.updates[len(rec.updates)-1]
	assert.Equal(t, blackboard.StageMeasures, last.Stage)
	assert.Equal(t, StatusFailed, last.Status)
	assert.Equal(t, blackboard.RunStatusFailed, last.RunStatus)
	require.NotNil(t, last.Error)
	assert.Equal(t, ReasonInconsistentUpstream, last.Error.Reason)
	assert.Equal(t, last.Error.Message, last.Detail)
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) PublishRunEvent(context.Context, *blackboard.RunEvent) error {
	p.calls++
	return errors.New("connection refused")
}

func TestPublishEvents_ErrorsDoNotFailRun(t *testing.T) {
	pub := &failingPublisher{}
	engine := newTestEngine(t, WithObserver(PublishEvents(pub, nil)))

	out := engine.Run(context.Background(), suzhouRequest("run-pub-err"))

	assert.False(t, out.Failed())
	assert.Equal(t, 2+2*len(blackboard.Stages), pub.calls)
}

func TestPublishEvents_Redis(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := client.SubscribeRunEvents(ctx, "run-redis")
	require.NoError(t, err)
	defer sub.Close()

	engine := newTestEngine(t, WithObserver(PublishEvents(client, nil)))

	// Drain concurrently: the run publishes more events than the subscription buffers.
	received := make(chan []*blackboard.RunEvent, 1)
	go func() {
		var events []*blackboard.RunEvent
		for e := range sub.Events() {
			events = append(events, e)
			if e.RunStatus.IsTerminal() {
				break
			}
		}
		received <- events
	}()

	out := engine.Run(ctx, zeroDemandRequest("run-redis"))
	require.True(t, out.Failed())

	var events []*blackboard.RunEvent
	select {
	case events = <-received:
	case <-ctx.Done():
		t.Fatal("timed out waiting for run events")
	}

	// run started, geo, baseline, measures started, measures failed
	require.Len(t, events, 7)
	assert.Equal(t, StatusStarted, events[0].Status)
	for _, e := range events {
		assert.Equal(t, "run-redis", e.RunID)
		assert.NotZero(t, e.TimestampMs)
	}
	last := events[len(events)-1]
	assert.Equal(t, blackboard.StageMeasures, last.Stage)
	assert.Equal(t, StatusFailed, last.Status)
	assert.Equal(t, blackboard.RunStatusFailed, last.RunStatus)
	assert.Contains(t, last.Detail, "no energy demand")
}
