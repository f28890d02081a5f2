package blackboard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateJSON_PreservesOrderAndReviews(t *testing.T) {
	s := NewState("run-1", Selection{RegionID: "r1", AdminCodes: []string{"320500"}}, Scenario{ScenarioID: "demo"})
	var err error
	for _, stage := range []Stage{StageGeo, StageBaseline, StageMeasures} {
		s, err = s.WithResult(validResult(stage))
		require.NoError(t, err)
	}
	s = s.WithReviewItems(ReviewItem{CheckpointID: "c1", Stage: StageGeo, Severity: SeverityMedium})
	s = s.WithLog(NewLogEntry(StageGeo, "started").Complete("completed", "done"))

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded State
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "run-1", decoded.RunID())
	assert.Equal(t, []Stage{StageGeo, StageBaseline, StageMeasures}, decoded.Stages())
	assert.Equal(t, s.ReviewItems(), decoded.ReviewItems())
	assert.Equal(t, s.Log(), decoded.Log())
	assert.Equal(t, "r1", decoded.Selection().RegionID)
}

func TestStateJSON_RejectsDuplicateStage(t *testing.T) {
	r := validResult(StageGeo)
	raw := stateJSON{
		RunID:    "run-1",
		Scenario: Scenario{ScenarioID: "demo"},
		Results:  []StageResult{r, validResult(StageGeo)},
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)

	var decoded State
	err = json.Unmarshal(data, &decoded)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already published")
}

func TestStateJSON_ContainsAggregatedGaps(t *testing.T) {
	r := validResult(StageGeo)
	r.DataGaps = []DataGap{{Category: "area", Description: "missing", Severity: SeverityHigh}}
	s, err := NewState("run-1", Selection{}, Scenario{ScenarioID: "demo"}).WithResult(r)
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	gaps, ok := generic["data_gaps"].([]any)
	require.True(t, ok)
	require.Len(t, gaps, 1)
	gap := gaps[0].(map[string]any)
	assert.Equal(t, "geo", gap["stage"])
	assert.Equal(t, "area", gap["category"])
}

func TestRunEventCodec(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		e := &RunEvent{RunID: "run-1", Stage: StagePolicy, Status: "completed", RunStatus: RunStatusRunning, TimestampMs: 42}
		data, err := EncodeRunEvent(e)
		require.NoError(t, err)

		decoded, err := DecodeRunEvent(data)
		require.NoError(t, err)
		assert.Equal(t, e, decoded)
	})

	t.Run("rejects empty run id", func(t *testing.T) {
		_, err := EncodeRunEvent(&RunEvent{RunStatus: RunStatusRunning})
		assert.Error(t, err)

		_, err = DecodeRunEvent([]byte(`{"status":"completed"}`))
		assert.Error(t, err)
	})

	t.Run("rejects invalid run status", func(t *testing.T) {
		_, err := EncodeRunEvent(&RunEvent{RunID: "run-1", RunStatus: "paused"})
		assert.Error(t, err)
	})

	t.Run("rejects malformed payload", func(t *testing.T) {
		_, err := DecodeRunEvent([]byte(`{not json`))
		assert.Error(t, err)
	})
}
