// Package blackboard provides the typed data contract shared by every stage of the
// park planning pipeline. A run's blackboard is an append-only, stage-keyed set of
// immutable StageResults plus the review checkpoints raised along the way.
package blackboard

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Stage identifies one discrete step of the planning pipeline.
type Stage string

const (
	// StageGeo normalizes the park selection and scores input coverage
	StageGeo Stage = "geo"

	// StageBaseline estimates scope 1/2 energy use and emissions
	StageBaseline Stage = "baseline"

	// StageMeasures screens the built-in measure catalog
	StageMeasures Stage = "measures"

	// StagePolicy matches measures against the policy corpus and aggregates subsidies
	StagePolicy Stage = "policy"

	// StageFinance rolls measures and subsidies into financial metrics
	StageFinance Stage = "finance"

	// StageReport is produced by the narrative layer outside the planning core
	StageReport Stage = "report"
)

// Stages is the fixed total order of stages computed by the planning core.
// StageReport is deliberately absent.
var Stages = []Stage{StageGeo, StageBaseline, StageMeasures, StagePolicy, StageFinance}

// Validate checks if the Stage is a valid enum value.
func (s Stage) Validate() error {
	switch s {
	case StageGeo, StageBaseline, StageMeasures, StagePolicy, StageFinance, StageReport:
		return nil
	default:
		return fmt.Errorf("unknown stage: %q", s)
	}
}

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	// RunStatusPending indicates the run is registered but no stage has executed
	RunStatusPending RunStatus = "pending"

	// RunStatusRunning indicates stages are executing
	RunStatusRunning RunStatus = "running"

	// RunStatusCompleted indicates every core stage published a result
	RunStatusCompleted RunStatus = "completed"

	// RunStatusFailed indicates a stage computation failed; no later stage executed
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (rs RunStatus) IsTerminal() bool {
	return rs == RunStatusCompleted || rs == RunStatusFailed
}

// Validate checks if the RunStatus is a valid enum value.
func (rs RunStatus) Validate() error {
	switch rs {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown run status: %q", rs)
	}
}

// Severity grades data gaps and review items.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Validate checks if the Severity is a valid enum value.
func (s Severity) Validate() error {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return nil
	default:
		return fmt.Errorf("unknown severity: %q", s)
	}
}

// DataGap records missing or low-confidence input. Gaps never halt a run.
type DataGap struct {
	Category    string   `json:"category" yaml:"category"`
	Description string   `json:"description" yaml:"description"`
	Severity    Severity `json:"severity" yaml:"severity"`
}

// ReviewItem is a checkpoint that needs human confirmation before the result is final.
// Review items are never resolved automatically.
type ReviewItem struct {
	CheckpointID    string   `json:"checkpoint_id"`
	Stage           Stage    `json:"stage"`
	Issue           string   `json:"issue"`
	EditableFields  []string `json:"editable_fields"`
	SuggestedAction string   `json:"suggested_action"`
	Severity        Severity `json:"severity"`
}

// Validate checks if the ReviewItem has valid field values.
func (ri *ReviewItem) Validate() error {
	if ri.CheckpointID == "" {
		return fmt.Errorf("review item checkpoint_id cannot be empty")
	}
	if err := ri.Stage.Validate(); err != nil {
		return fmt.Errorf("invalid review item stage: %w", err)
	}
	if err := ri.Severity.Validate(); err != nil {
		return fmt.Errorf("invalid review item severity: %w", err)
	}
	return nil
}

// StageLogEntry is one line of the run log kept alongside the results.
type StageLogEntry struct {
	Stage        Stage  `json:"stage"`
	Status       string `json:"status"` // "running", "completed" or "failed"
	Detail       string `json:"detail"`
	StartedAtMs  int64  `json:"started_at_ms"`
	FinishedAtMs int64  `json:"finished_at_ms,omitempty"`
}

// Reproducibility stamps which component and which input data produced a result.
type Reproducibility struct {
	Component        string `json:"component"`
	ComponentVersion string `json:"component_version"`
	InputVersion     string `json:"input_version"`
}

// Assumption is a modelling constant or proxy a result depends on. Sensitivity grades
// how much the result moves when the assumption is wrong.
type Assumption struct {
	Name        string   `json:"name"`
	Value       string   `json:"value"`
	Unit        string   `json:"unit,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Source      string   `json:"source,omitempty"`
	Sensitivity Severity `json:"sensitivity"`
}

// Evidence cites the data a result was derived from.
type Evidence struct {
	EvidenceID  string `json:"evidence_id"`
	Description string `json:"description"`
	Source      string `json:"source"`
	URI         string `json:"uri,omitempty"`
}

// StageResult is the unit of inter-stage communication. Once published on a State it
// is never modified; later stages read it and publish their own result instead.
type StageResult struct {
	ID              string             `json:"id"`      // UUID
	Stage           Stage              `json:"stage"`   // Stage that produced this result
	Metrics         map[string]float64 `json:"metrics"` // Named numeric metrics
	Labels          map[string]string  `json:"labels"`  // Named categorical metrics
	Artifacts       Artifacts          `json:"artifacts"`
	Confidence      float64            `json:"confidence"` // [0,1]
	Assumptions     []Assumption       `json:"assumptions"`
	Evidence        []Evidence         `json:"evidence"`
	DataGaps        []DataGap          `json:"data_gaps"`
	Reproducibility Reproducibility    `json:"reproducibility"`
	CreatedAtMs     int64              `json:"created_at_ms"`
}

// Artifacts is a tagged variant: exactly one field is set, matching the result's stage.
type Artifacts struct {
	Geo      *GeoArtifact      `json:"geo,omitempty"`
	Baseline *BaselineArtifact `json:"baseline,omitempty"`
	Measures *MeasuresArtifact `json:"measures,omitempty"`
	Policy   *PolicyArtifact   `json:"policy,omitempty"`
	Finance  *FinanceArtifact  `json:"finance,omitempty"`
}

// stage returns the stage of the single populated variant, or an error when zero or
// several variants are set.
func (a Artifacts) stage() (Stage, error) {
	var found []Stage
	if a.Geo != nil {
		found = append(found, StageGeo)
	}
	if a.Baseline != nil {
		found = append(found, StageBaseline)
	}
	if a.Measures != nil {
		found = append(found, StageMeasures)
	}
	if a.Policy != nil {
		found = append(found, StagePolicy)
	}
	if a.Finance != nil {
		found = append(found, StageFinance)
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("no artifact variant set")
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("multiple artifact variants set: %v", found)
	}
}

// Validate checks if the StageResult has valid field values.
// Returns an error if any validation fails.
func (r *StageResult) Validate() error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid result ID: not a valid UUID")
	}

	if err := r.Stage.Validate(); err != nil {
		return fmt.Errorf("invalid stage: %w", err)
	}

	artifactStage, err := r.Artifacts.stage()
	if err != nil {
		return fmt.Errorf("invalid artifacts: %w", err)
	}
	if artifactStage != r.Stage {
		return fmt.Errorf("artifact variant %q does not match stage %q", artifactStage, r.Stage)
	}

	for i, gap := range r.DataGaps {
		if gap.Category == "" {
			return fmt.Errorf("data gap at index %d has empty category", i)
		}
		if err := gap.Severity.Validate(); err != nil {
			return fmt.Errorf("data gap at index %d: %w", i, err)
		}
	}

	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence must be within [0,1], got %v", r.Confidence)
	}

	for i, a := range r.Assumptions {
		if a.Name == "" {
			return fmt.Errorf("assumption at index %d has empty name", i)
		}
		if err := a.Sensitivity.Validate(); err != nil {
			return fmt.Errorf("assumption '%s': %w", a.Name, err)
		}
	}

	for i, e := range r.Evidence {
		if e.EvidenceID == "" || e.Source == "" {
			return fmt.Errorf("evidence at index %d needs an id and a source", i)
		}
	}

	if r.Reproducibility.Component == "" {
		return fmt.Errorf("reproducibility component cannot be empty")
	}

	return nil
}

// Metric returns a named metric and whether it was published.
func (r *StageResult) Metric(name string) (float64, bool) {
	v, ok := r.Metrics[name]
	return v, ok
}

// RunEvent is published for every stage transition so that watchers can follow a run.
type RunEvent struct {
	RunID       string    `json:"run_id"`
	Stage       Stage     `json:"stage,omitempty"`
	Status      string    `json:"status"` // stage status, or the run status for run-level events
	RunStatus   RunStatus `json:"run_status"`
	Detail      string    `json:"detail,omitempty"`
	TimestampMs int64     `json:"timestamp_ms"`
}

// ErrorPayload is the structured error attached to a failed run.
type ErrorPayload struct {
	Stage   Stage  `json:"stage,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
