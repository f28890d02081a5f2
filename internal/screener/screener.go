// Package screener scores the built-in measure catalog against a park's energy
// tendency and facility profile.
package screener

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Weights weigh the three applicability sub-scores.
type Weights struct {
	Tendency  float64
	Readiness float64
	Prior     float64
}

// Options configures a Screener.
type Options struct {
	Threshold float64    // measures must score strictly above this
	Weights   Weights    // normalized to sum to 1
	Catalog   []Template // nil selects DefaultCatalog
}

// Screener is safe for concurrent use; it holds no mutable state.
type Screener struct {
	threshold float64
	weights   Weights
	catalog   []Template
}

// Threshold returns the inclusion threshold.
func (s *Screener) Threshold() float64 { return s.threshold }

// Weights returns the normalized sub-score weights.
func (s *Screener) Weights() Weights { return s.weights }

// Result is the outcome of one screening pass.
type Result struct {
	Measures       []blackboard.Measure // best first; excluded measures last with score 0
	DataGaps       []blackboard.DataGap
	Dropped        []string // IDs scored at or below the threshold
	RequiredInputs []string // missing inputs across the catalog, sorted
}

// New validates the options and creates a Screener.
func New(opts Options) (*Screener, error) {
	if opts.Threshold < 0 || opts.Threshold >= 1 {
		return nil, fmt.Errorf("inclusion threshold must be within [0, 1), got %v", opts.Threshold)
	}

	w := opts.Weights
	sum := w.Tendency + w.Readiness + w.Prior
	if w.Tendency < 0 || w.Readiness < 0 || w.Prior < 0 || sum <= 0 {
		return nil, fmt.Errorf("weights must be non-negative and not all zero: %+v", w)
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	seen := make(map[string]bool, len(catalog))
	for _, t := range catalog {
		if t.ID == "" {
			return nil, fmt.Errorf("catalog template has empty id")
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate catalog template '%s'", t.ID)
		}
		seen[t.ID] = true
		if len(t.RequiredInputs) == 0 {
			return nil, fmt.Errorf("catalog template '%s' declares no required inputs", t.ID)
		}
	}

	return &Screener{
		threshold: opts.Threshold,
		weights:   Weights{Tendency: w.Tendency / sum, Readiness: w.Readiness / sum, Prior: w.Prior / sum},
		catalog:   catalog,
	}, nil
}

// CheckTendency rejects an energy tendency the catalog cannot be scored against.
func CheckTendency(t blackboard.EnergyTendency) error {
	values := map[string]float64{
		"electricity_share":    t.ElectricityShare,
		"thermal_share":        t.ThermalShare,
		"peak_share":           t.PeakShare,
		"scope1_tco2":          t.Scope1TCO2,
		"scope2_tco2":          t.Scope2TCO2,
		"grid_emission_factor": t.GridEmissionFactor,
	}
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("energy tendency %s is invalid: %v", name, v)
		}
	}
	if t.ElectricityShare > 1 || t.ThermalShare > 1 || t.PeakShare > 1 {
		return fmt.Errorf("energy tendency shares must be within [0, 1]")
	}
	total := t.ElectricityShare + t.ThermalShare
	if total == 0 {
		return fmt.Errorf("energy tendency is empty: baseline has no energy demand to screen against")
	}
	if math.Abs(total-1) > 1e-6 {
		return fmt.Errorf("energy tendency shares do not sum to 1 (electricity %v + thermal %v)", t.ElectricityShare, t.ThermalShare)
	}
	if t.GridEmissionFactor == 0 {
		return fmt.Errorf("energy tendency grid emission factor is zero")
	}
	return nil
}

// Screen scores every catalog template. Missing inputs depress readiness and are
// recorded as data gaps. A measure missing every required input is kept with score 0
// and marked excluded so downstream stages can see it was considered.
func (s *Screener) Screen(tendency blackboard.EnergyTendency, profile blackboard.FacilityProfile) Result {
	result := Result{
		Measures:       []blackboard.Measure{},
		DataGaps:       []blackboard.DataGap{},
		Dropped:        []string{},
		RequiredInputs: []string{},
	}
	required := make(map[string]bool)

	for _, t := range s.catalog {
		var missing []string
		for _, in := range t.RequiredInputs {
			if !in.Present(profile) {
				missing = append(missing, string(in))
				required[string(in)] = true
			}
		}

		measure := s.evaluate(t, tendency, profile, missing)

		switch {
		case measure.Excluded:
			result.DataGaps = append(result.DataGaps, blackboard.DataGap{
				Category:    "measure_input",
				Description: fmt.Sprintf("%s excluded: all required inputs missing (%s)", t.ID, strings.Join(missing, ", ")),
				Severity:    blackboard.SeverityHigh,
			})
			result.Measures = append(result.Measures, measure)
		case measure.Score <= s.threshold:
			result.Dropped = append(result.Dropped, t.ID)
			if len(missing) > 0 {
				result.DataGaps = append(result.DataGaps, partialGap(t.ID, missing))
			}
		default:
			if len(missing) > 0 {
				result.DataGaps = append(result.DataGaps, partialGap(t.ID, missing))
			}
			result.Measures = append(result.Measures, measure)
		}
	}

	sort.SliceStable(result.Measures, func(i, j int) bool {
		a, b := result.Measures[i], result.Measures[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CAPEX != b.CAPEX {
			return a.CAPEX < b.CAPEX
		}
		return a.ID < b.ID
	})

	for in := range required {
		result.RequiredInputs = append(result.RequiredInputs, in)
	}
	sort.Strings(result.RequiredInputs)

	return result
}

func (s *Screener) evaluate(t Template, tendency blackboard.EnergyTendency, profile blackboard.FacilityProfile, missing []string) blackboard.Measure {
	sub := blackboard.SubScores{
		Tendency:  clamp01(t.Dimension.fit(tendency)),
		Readiness: float64(len(t.RequiredInputs)-len(missing)) / float64(len(t.RequiredInputs)),
		Prior:     clamp01(t.Prior),
	}

	reduction := t.Scope.emissions(tendency) * t.ReductionRatio
	if t.Size != nil {
		reduction = t.Size(reduction, tendency, profile)
	}
	reduction = math.Max(0, reduction)

	savedMWh := t.Scope.energySavedMWh(reduction, tendency)
	benefit := savedMWh*1000*tendency.ElectricityPrice*t.EnergyValue + reduction*tendency.CarbonPrice

	measure := blackboard.Measure{
		ID:                  t.ID,
		Label:               t.Label,
		Dimension:           string(t.Dimension),
		Tags:                blackboard.TagSet{AdminCodes: []string{}, IndustryCodes: []string{}, MeasureIDs: []string{t.ID}},
		CAPEX:               reduction * t.CapexPerTCO2,
		AnnualReductionTCO2: reduction,
		AnnualBenefit:       benefit,
		SubScores:           sub,
		MissingInputs:       missing,
	}
	if measure.MissingInputs == nil {
		measure.MissingInputs = []string{}
	}

	if len(missing) == len(t.RequiredInputs) {
		measure.Excluded = true
		measure.Score = 0
		return measure
	}

	measure.Score = clamp01(s.weights.Tendency*sub.Tendency + s.weights.Readiness*sub.Readiness + s.weights.Prior*sub.Prior)
	return measure
}

func partialGap(id string, missing []string) blackboard.DataGap {
	return blackboard.DataGap{
		Category:    "measure_input",
		Description: fmt.Sprintf("%s sizing uses proxies: missing %s", id, strings.Join(missing, ", ")),
		Severity:    blackboard.SeverityMedium,
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
