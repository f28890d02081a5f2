package blackboard

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validResult(stage Stage) StageResult {
	r := StageResult{
		ID:              uuid.New().String(),
		Stage:           stage,
		Metrics:         map[string]float64{"value": 1},
		Labels:          map[string]string{},
		DataGaps:        []DataGap{},
		Reproducibility: Reproducibility{Component: "test", ComponentVersion: "0.0.1"},
	}
	switch stage {
	case StageGeo:
		r.Artifacts.Geo = &GeoArtifact{}
	case StageBaseline:
		r.Artifacts.Baseline = &BaselineArtifact{}
	case StageMeasures:
		r.Artifacts.Measures = &MeasuresArtifact{}
	case StagePolicy:
		r.Artifacts.Policy = &PolicyArtifact{}
	case StageFinance:
		r.Artifacts.Finance = &FinanceArtifact{}
	}
	return r
}

// TestStageResultValidate_Valid tests that results of every core stage validate
func TestStageResultValidate_Valid(t *testing.T) {
	for _, stage := range Stages {
		r := validResult(stage)
		if err := r.Validate(); err != nil {
			t.Errorf("valid %s result failed validation: %v", stage, err)
		}
	}
}

// TestStageResultValidate_InvalidID tests that a non-UUID ID fails validation
func TestStageResultValidate_InvalidID(t *testing.T) {
	r := validResult(StageGeo)
	r.ID = "not-a-uuid"

	if err := r.Validate(); err == nil {
		t.Error("expected validation error for invalid ID")
	}
}

// TestStageResultValidate_ArtifactMismatch tests that the artifact variant must match the stage
func TestStageResultValidate_ArtifactMismatch(t *testing.T) {
	r := validResult(StageGeo)
	r.Stage = StageBaseline

	if err := r.Validate(); err == nil {
		t.Error("expected validation error for mismatched artifact variant")
	}
}

// TestStageResultValidate_NoArtifact tests that an empty variant fails validation
func TestStageResultValidate_NoArtifact(t *testing.T) {
	r := validResult(StageGeo)
	r.Artifacts = Artifacts{}

	if err := r.Validate(); err == nil {
		t.Error("expected validation error for missing artifact")
	}
}

// TestStageResultValidate_MultipleArtifacts tests that a tagged variant holds one value
func TestStageResultValidate_MultipleArtifacts(t *testing.T) {
	r := validResult(StageGeo)
	r.Artifacts.Baseline = &BaselineArtifact{}

	if err := r.Validate(); err == nil {
		t.Error("expected validation error for multiple artifacts")
	}
}

// TestStageResultValidate_BadGap tests data gap validation
func TestStageResultValidate_BadGap(t *testing.T) {
	r := validResult(StageGeo)
	r.DataGaps = []DataGap{{Category: "area", Severity: "critical"}}

	if err := r.Validate(); err == nil {
		t.Error("expected validation error for unknown severity")
	}

	r.DataGaps = []DataGap{{Severity: SeverityLow}}
	if err := r.Validate(); err == nil {
		t.Error("expected validation error for empty category")
	}
}

// TestStageResultValidate_Confidence tests the confidence range
func TestStageResultValidate_Confidence(t *testing.T) {
	for _, c := range []float64{0, 0.55, 1} {
		r := validResult(StageGeo)
		r.Confidence = c
		if err := r.Validate(); err != nil {
			t.Errorf("confidence %v should be valid: %v", c, err)
		}
	}
	for _, c := range []float64{-0.1, 1.2, math.NaN()} {
		r := validResult(StageGeo)
		r.Confidence = c
		if err := r.Validate(); err == nil {
			t.Errorf("confidence %v should fail validation", c)
		}
	}
}

// TestStageResultValidate_AssumptionsAndEvidence tests audit record validation
func TestStageResultValidate_AssumptionsAndEvidence(t *testing.T) {
	r := validResult(StageBaseline)
	r.Assumptions = []Assumption{{Name: "grid_emission_factor", Value: "0.58", Unit: "tCO2/MWh", Sensitivity: SeverityHigh}}
	r.Evidence = []Evidence{{EvidenceID: "EVID-GEO", Description: "entity count", Source: "geo_result"}}
	if err := r.Validate(); err != nil {
		t.Fatalf("valid audit records failed validation: %v", err)
	}

	bad := r
	bad.Assumptions = []Assumption{{Value: "0.58", Sensitivity: SeverityHigh}}
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error for unnamed assumption")
	}

	bad = r
	bad.Assumptions = []Assumption{{Name: "x", Sensitivity: "extreme"}}
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error for unknown sensitivity")
	}

	bad = r
	bad.Evidence = []Evidence{{EvidenceID: "EVID-1"}}
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error for evidence without source")
	}
}

// TestStageValidate tests the Stage enum
func TestStageValidate(t *testing.T) {
	valid := []Stage{StageGeo, StageBaseline, StageMeasures, StagePolicy, StageFinance, StageReport}
	for _, s := range valid {
		if err := s.Validate(); err != nil {
			t.Errorf("stage %q should be valid: %v", s, err)
		}
	}

	if err := Stage("insight").Validate(); err == nil {
		t.Error("unknown stage should fail validation")
	}
}

// TestStagesOrder pins the fixed stage order
func TestStagesOrder(t *testing.T) {
	expected := []Stage{StageGeo, StageBaseline, StageMeasures, StagePolicy, StageFinance}
	if len(Stages) != len(expected) {
		t.Fatalf("expected %d stages, got %d", len(expected), len(Stages))
	}
	for i := range expected {
		if Stages[i] != expected[i] {
			t.Errorf("stage %d = %q, expected %q", i, Stages[i], expected[i])
		}
	}
}

// TestRunStatus tests the RunStatus enum and terminal detection
func TestRunStatus(t *testing.T) {
	tests := []struct {
		status   RunStatus
		terminal bool
	}{
		{RunStatusPending, false},
		{RunStatusRunning, false},
		{RunStatusCompleted, true},
		{RunStatusFailed, true},
	}

	for _, tt := range tests {
		if err := tt.status.Validate(); err != nil {
			t.Errorf("status %q should be valid: %v", tt.status, err)
		}
		if tt.status.IsTerminal() != tt.terminal {
			t.Errorf("%q IsTerminal() = %v, expected %v", tt.status, tt.status.IsTerminal(), tt.terminal)
		}
	}

	if err := RunStatus("paused").Validate(); err == nil {
		t.Error("unknown run status should fail validation")
	}
}

// TestReviewItemValidate tests review item validation
func TestReviewItemValidate(t *testing.T) {
	item := ReviewItem{CheckpointID: "geo_low_completeness", Stage: StageGeo, Severity: SeverityHigh}
	if err := item.Validate(); err != nil {
		t.Errorf("valid review item failed validation: %v", err)
	}

	item.CheckpointID = ""
	if err := item.Validate(); err == nil {
		t.Error("expected error for empty checkpoint_id")
	}
}

// TestScenarioValidate tests scenario preconditions
func TestScenarioValidate(t *testing.T) {
	good := Scenario{ScenarioID: "demo", ElectricityPrice: 0.8, CarbonPrice: 60}
	if err := good.Validate(); err != nil {
		t.Errorf("valid scenario failed validation: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Scenario)
	}{
		{"empty id", func(s *Scenario) { s.ScenarioID = "" }},
		{"negative electricity price", func(s *Scenario) { s.ElectricityPrice = -1 }},
		{"negative carbon price", func(s *Scenario) { s.CarbonPrice = -1 }},
		{"discount rate at -1", func(s *Scenario) { s.DiscountRate = Float(-1) }},
		{"zero horizon", func(s *Scenario) { s.HorizonYears = Int(0) }},
		{"zero grid factor", func(s *Scenario) { s.GridEmissionFactor = Float(0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := good
			tt.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// TestSelectionValidate tests selection preconditions
func TestSelectionValidate(t *testing.T) {
	sel := Selection{AreaKm2: Float(12)}
	if err := sel.Validate(); err != nil {
		t.Errorf("valid selection failed validation: %v", err)
	}

	sel.Facility.RoofAreaM2 = Float(-5)
	if err := sel.Validate(); err == nil {
		t.Error("expected error for negative roof area")
	}

	sel = Selection{Facility: FacilityProfile{PeakLoadRatio: Float(1.5)}}
	if err := sel.Validate(); err == nil {
		t.Error("expected error for peak ratio above 1")
	}

	sel = Selection{AreaKm2: Float(0)}
	if err := sel.Validate(); err == nil {
		t.Error("expected error for zero area")
	}
}

// TestMeasuresArtifactCandidates tests exclusion filtering keeps order
func TestMeasuresArtifactCandidates(t *testing.T) {
	a := MeasuresArtifact{Measures: []Measure{
		{ID: "A"}, {ID: "B", Excluded: true}, {ID: "C"},
	}}

	got := a.Candidates()
	if len(got) != 2 || got[0].ID != "A" || got[1].ID != "C" {
		t.Errorf("Candidates() = %+v, expected A and C", got)
	}
}

// TestTagSet tests tag set helpers
func TestTagSet(t *testing.T) {
	if !(TagSet{}).IsEmpty() {
		t.Error("zero tag set should be empty")
	}
	ts := TagSet{AdminCodes: []string{"320500"}, MeasureIDs: []string{"PV_ROOF", "BESS_TOU"}}
	if ts.IsEmpty() {
		t.Error("tag set should not be empty")
	}
	if ts.Len() != 3 {
		t.Errorf("Len() = %d, expected 3", ts.Len())
	}
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"320500", "C34", "320000"},
		NormalizeTags([]string{" 320500", "C34", "", "320500 ", "  ", "320000", "C34"}))
	assert.Equal(t, []string{}, NormalizeTags(nil))
}
