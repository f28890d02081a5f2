package blackboard

import (
	"fmt"
	"time"
)

// State is the blackboard of one run. It is append-only and copy-on-write: every
// With* method returns a new State and leaves the receiver untouched, so a State
// handed to a stage can never be changed behind its back.
//
// The zero value is not usable; create states with NewState.
type State struct {
	runID     string
	selection Selection
	scenario  Scenario
	order     []Stage               // insertion order = execution order
	results   map[Stage]StageResult // stage -> published result
	reviews   []ReviewItem
	log       []StageLogEntry
}

// StageDataGap is a data gap annotated with the stage that recorded it.
type StageDataGap struct {
	Stage Stage `json:"stage"`
	DataGap
}

// NewState creates the empty blackboard for a run.
func NewState(runID string, selection Selection, scenario Scenario) *State {
	return &State{
		runID:     runID,
		selection: selection.clone(),
		scenario:  scenario.clone(),
		order:     []Stage{},
		results:   make(map[Stage]StageResult),
		reviews:   []ReviewItem{},
		log:       []StageLogEntry{},
	}
}

// RunID returns the run identifier.
func (s *State) RunID() string { return s.runID }

// Selection returns a copy of the initiating park selection.
func (s *State) Selection() Selection { return s.selection.clone() }

// Scenario returns a copy of the initiating scenario.
func (s *State) Scenario() Scenario { return s.scenario.clone() }

// Has reports whether a stage has published its result.
func (s *State) Has(stage Stage) bool {
	_, ok := s.results[stage]
	return ok
}

// Result returns a copy of the published result of a stage. Changing the copy does
// not change the state.
func (s *State) Result(stage Stage) (StageResult, bool) {
	r, ok := s.results[stage]
	if !ok {
		return StageResult{}, false
	}
	return cloneResult(r), true
}

// Stages returns the published stages in execution order.
func (s *State) Stages() []Stage {
	out := make([]Stage, len(s.order))
	copy(out, s.order)
	return out
}

// Results returns copies of the published results in execution order.
func (s *State) Results() []StageResult {
	out := make([]StageResult, 0, len(s.order))
	for _, stage := range s.order {
		out = append(out, cloneResult(s.results[stage]))
	}
	return out
}

// ReviewItems returns all review checkpoints raised so far, oldest first.
func (s *State) ReviewItems() []ReviewItem {
	return cloneReviewItems(s.reviews)
}

// Log returns the stage log, oldest first.
func (s *State) Log() []StageLogEntry {
	out := make([]StageLogEntry, len(s.log))
	copy(out, s.log)
	return out
}

// DataGaps aggregates the data gaps of every published result, verbatim, in stage order.
func (s *State) DataGaps() []StageDataGap {
	var out []StageDataGap
	for _, stage := range s.order {
		for _, gap := range s.results[stage].DataGaps {
			out = append(out, StageDataGap{Stage: stage, DataGap: gap})
		}
	}
	if out == nil {
		out = []StageDataGap{}
	}
	return out
}

// WithResult returns a new State with the result published under its stage.
// A stage may publish at most once per run.
func (s *State) WithResult(r StageResult) (*State, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stage result: %w", err)
	}
	if _, exists := s.results[r.Stage]; exists {
		return nil, fmt.Errorf("stage %q already published a result for run %s", r.Stage, s.runID)
	}

	next := s.clone()
	next.order = append(next.order, r.Stage)
	next.results[r.Stage] = cloneResult(r)
	return next, nil
}

// WithReviewItems returns a new State with the items appended. Existing items are kept.
func (s *State) WithReviewItems(items ...ReviewItem) *State {
	if len(items) == 0 {
		return s
	}
	next := s.clone()
	next.reviews = append(next.reviews, cloneReviewItems(items)...)
	return next
}

// WithLog returns a new State with the log entry appended.
func (s *State) WithLog(entry StageLogEntry) *State {
	next := s.clone()
	next.log = append(next.log, entry)
	return next
}

// NewLogEntry starts a log entry for a stage in the "running" status.
func NewLogEntry(stage Stage, detail string) StageLogEntry {
	return StageLogEntry{
		Stage:       stage,
		Status:      "running",
		Detail:      detail,
		StartedAtMs: time.Now().UnixMilli(),
	}
}

// Complete closes a log entry with a final status.
func (e StageLogEntry) Complete(status, detail string) StageLogEntry {
	e.Status = status
	if detail != "" {
		e.Detail = detail
	}
	e.FinishedAtMs = time.Now().UnixMilli()
	return e
}

func (s *State) clone() *State {
	next := &State{
		runID:     s.runID,
		selection: s.selection,
		scenario:  s.scenario,
		order:     make([]Stage, len(s.order), len(s.order)+1),
		results:   make(map[Stage]StageResult, len(s.results)+1),
		reviews:   make([]ReviewItem, len(s.reviews)),
		log:       make([]StageLogEntry, len(s.log)),
	}
	copy(next.order, s.order)
	copy(next.reviews, s.reviews)
	copy(next.log, s.log)
	for k, v := range s.results {
		next.results[k] = v
	}
	return next
}
