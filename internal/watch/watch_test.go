package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dyluth/parkplan/internal/filter"
	"github.com/dyluth/parkplan/pkg/blackboard"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("json")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatJSON, f)

	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}

func TestWriteEvent(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 5, 0, time.Local).UnixMilli()
	tests := []struct {
		name  string
		event blackboard.RunEvent
		want  string
	}{
		{
			name:  "run started",
			event: blackboard.RunEvent{RunID: "0123456789", Status: "started", RunStatus: blackboard.RunStatusRunning, TimestampMs: ts},
			want:  "[09:30:05] 01234567 ▶ run started\n",
		},
		{
			name:  "stage completed",
			event: blackboard.RunEvent{RunID: "run-1", Stage: blackboard.StageGeo, Status: "completed", RunStatus: blackboard.RunStatusRunning, TimestampMs: ts},
			want:  "[09:30:05] run-1 • geo completed\n",
		},
		{
			name:  "stage failed",
			event: blackboard.RunEvent{RunID: "run-1", Stage: blackboard.StageMeasures, Status: "failed", RunStatus: blackboard.RunStatusFailed, Detail: "no demand", TimestampMs: ts},
			want:  "[09:30:05] run-1 ✗ measures failed: no demand\n",
		},
		{
			name:  "input rejected",
			event: blackboard.RunEvent{RunID: "run-1", Status: "failed", RunStatus: blackboard.RunStatusFailed},
			want:  "[--:--:--] run-1 ✗ input failed\n",
		},
		{
			name:  "run completed",
			event: blackboard.RunEvent{RunID: "run-1", Status: "completed", RunStatus: blackboard.RunStatusCompleted, TimestampMs: ts},
			want:  "[09:30:05] run-1 ✓ run completed\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteEvent(&buf, &tt.event, OutputFormatDefault))
			assert.Equal(t, tt.want, buf.String())
		})
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		e := blackboard.RunEvent{RunID: "run-1", Stage: blackboard.StagePolicy, Status: "started", RunStatus: blackboard.RunStatusRunning}
		require.NoError(t, WriteEvent(&buf, &e, OutputFormatJSON))
		var decoded blackboard.RunEvent
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, e, decoded)
	})
}

func TestStream_UntilTerminal(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	defer mr.Close()

	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := client.SubscribeRunEvents(ctx, "")
	require.NoError(t, err)
	defer sub.Close()

	events := []*blackboard.RunEvent{
		{RunID: "run-1", Status: "started", RunStatus: blackboard.RunStatusRunning},
		{RunID: "run-1", Stage: blackboard.StageGeo, Status: "completed", RunStatus: blackboard.RunStatusRunning},
		{RunID: "run-1", Status: "completed", RunStatus: blackboard.RunStatusCompleted},
		{RunID: "run-2", Status: "started", RunStatus: blackboard.RunStatusRunning},
	}
	for _, e := range events {
		require.NoError(t, client.PublishRunEvent(ctx, e))
	}

	var buf bytes.Buffer
	n, err := Stream(ctx, sub, &buf, Options{Format: OutputFormatJSON, UntilTerminal: true})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], `"run_status":"completed"`)
}

func TestStream_Filter(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := client.SubscribeRunEvents(ctx, "run-1")
	require.NoError(t, err)
	defer sub.Close()

	events := []*blackboard.RunEvent{
		{RunID: "run-1", Status: "started", RunStatus: blackboard.RunStatusRunning},
		{RunID: "run-1", Stage: blackboard.StageGeo, Status: "started", RunStatus: blackboard.RunStatusRunning},
		{RunID: "run-1", Stage: blackboard.StageGeo, Status: "completed", RunStatus: blackboard.RunStatusRunning},
		{RunID: "run-1", Stage: blackboard.StageBaseline, Status: "completed", RunStatus: blackboard.RunStatusRunning},
		{RunID: "run-1", Status: "completed", RunStatus: blackboard.RunStatusCompleted},
	}
	for _, e := range events {
		require.NoError(t, client.PublishRunEvent(ctx, e))
	}

	var buf bytes.Buffer
	n, err := Stream(ctx, sub, &buf, Options{
		Format:        OutputFormatDefault,
		UntilTerminal: true,
		Filter:        &filter.Criteria{StageGlob: "geo"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), "geo started")
	assert.Contains(t, buf.String(), "geo completed")
	assert.NotContains(t, buf.String(), "baseline")
}

func TestStream_StopsOnContext(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	defer mr.Close()

	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := client.SubscribeRunEvents(ctx, "run-1")
	require.NoError(t, err)
	defer sub.Close()

	cancel()
	n, err := Stream(ctx, sub, &bytes.Buffer{}, Options{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
