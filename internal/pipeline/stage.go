package pipeline

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

// ComponentVersion is stamped on every result this build produces.
var ComponentVersion = "0.1.0"

// Stage is one step of the fixed pipeline order. Compute reads the committed results
// of its upstream stages from the state and returns its own result; it never modifies
// the state it is given.
type Stage interface {
	Name() blackboard.Stage
	Upstream() []blackboard.Stage
	Compute(state *blackboard.State) (Output, error)
}

// Output is what a stage hands back to the engine for publishing.
type Output struct {
	Result      blackboard.StageResult
	ReviewItems []blackboard.ReviewItem
}

// newResult starts a result envelope for a stage.
func newResult(stage blackboard.Stage, component, inputVersion string) blackboard.StageResult {
	return blackboard.StageResult{
		ID:          uuid.New().String(),
		Stage:       stage,
		Metrics:     make(map[string]float64),
		Labels:      make(map[string]string),
		Assumptions: []blackboard.Assumption{},
		Evidence:    []blackboard.Evidence{},
		DataGaps:    []blackboard.DataGap{},
		Reproducibility: blackboard.Reproducibility{
			Component:        component,
			ComponentVersion: ComponentVersion,
			InputVersion:     inputVersion,
		},
		CreatedAtMs: time.Now().UnixMilli(),
	}
}

func inputVersion(sc blackboard.Scenario) string {
	if sc.ParamVersion != "" {
		return sc.ParamVersion
	}
	return "unversioned"
}

func reviewItem(stage blackboard.Stage, id, issue, action string, severity blackboard.Severity, fields ...string) blackboard.ReviewItem {
	if fields == nil {
		fields = []string{}
	}
	return blackboard.ReviewItem{
		CheckpointID:    id,
		Stage:           stage,
		Issue:           issue,
		EditableFields:  fields,
		SuggestedAction: action,
		Severity:        severity,
	}
}

func assumption(name, value, unit, reason, source string, sensitivity blackboard.Severity) blackboard.Assumption {
	return blackboard.Assumption{
		Name:        name,
		Value:       value,
		Unit:        unit,
		Reason:      reason,
		Source:      source,
		Sensitivity: sensitivity,
	}
}

func evidence(id, description, source, uri string) blackboard.Evidence {
	return blackboard.Evidence{EvidenceID: id, Description: description, Source: source, URI: uri}
}

// Confidence bounds for stages that derive confidence from several signals.
const (
	minConfidence = 0.15
	maxConfidence = 0.90
)

func boundConfidence(c float64) float64 {
	return math.Max(minConfidence, math.Min(maxConfidence, c))
}

func highGapCount(gaps []blackboard.DataGap) int {
	n := 0
	for _, g := range gaps {
		if g.Severity == blackboard.SeverityHigh {
			n++
		}
	}
	return n
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
