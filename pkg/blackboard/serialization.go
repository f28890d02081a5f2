package blackboard

import (
	"encoding/json"
	"fmt"
)

// Serialization helpers for the blackboard State.
//
// State keeps its fields unexported to stay append-only, so it carries its own JSON
// codec. Results are encoded as an ordered array rather than an object so that the
// execution order survives a round trip through any consumer.

type stateJSON struct {
	RunID       string          `json:"run_id"`
	Selection   Selection       `json:"selection"`
	Scenario    Scenario        `json:"scenario"`
	Stages      []Stage         `json:"stages"`
	Results     []StageResult   `json:"results"`
	ReviewItems []ReviewItem    `json:"review_items"`
	DataGaps    []StageDataGap  `json:"data_gaps"`
	Log         []StageLogEntry `json:"log"`
}

// MarshalJSON encodes the state with results in execution order. The aggregated data
// gaps are included for consumers; they are derived and ignored when decoding.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		RunID:       s.runID,
		Selection:   s.Selection(),
		Scenario:    s.Scenario(),
		Stages:      s.Stages(),
		Results:     s.Results(),
		ReviewItems: s.ReviewItems(),
		DataGaps:    s.DataGaps(),
		Log:         s.Log(),
	})
}

// UnmarshalJSON rebuilds a state, re-applying the one-result-per-stage invariant.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}

	decoded := NewState(raw.RunID, raw.Selection, raw.Scenario)
	for i, r := range raw.Results {
		next, err := decoded.WithResult(r)
		if err != nil {
			return fmt.Errorf("invalid result at index %d: %w", i, err)
		}
		decoded = next
	}
	decoded = decoded.WithReviewItems(raw.ReviewItems...)
	for _, entry := range raw.Log {
		decoded = decoded.WithLog(entry)
	}

	*s = *decoded
	return nil
}

// EncodeRunEvent converts a RunEvent to its wire form.
func EncodeRunEvent(e *RunEvent) ([]byte, error) {
	if e.RunID == "" {
		return nil, fmt.Errorf("run event has empty run_id")
	}
	if err := e.RunStatus.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run event: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run event: %w", err)
	}
	return data, nil
}

// DecodeRunEvent parses a RunEvent from its wire form.
func DecodeRunEvent(payload []byte) (*RunEvent, error) {
	var e RunEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run event: %w", err)
	}
	if e.RunID == "" {
		return nil, fmt.Errorf("run event has empty run_id")
	}
	return &e, nil
}
