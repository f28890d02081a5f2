package pipeline

import (
	"fmt"

	"github.com/dyluth/parkplan/internal/screener"
	"github.com/dyluth/parkplan/pkg/blackboard"
)

// measuresStage screens the measure catalog against the baseline tendency.
type measuresStage struct {
	screener *screener.Screener
}

func (measuresStage) Name() blackboard.Stage { return blackboard.StageMeasures }

func (measuresStage) Upstream() []blackboard.Stage {
	return []blackboard.Stage{blackboard.StageGeo, blackboard.StageBaseline}
}

func (s measuresStage) Compute(state *blackboard.State) (Output, error) {
	geo, err := geoArtifact(state, blackboard.StageMeasures)
	if err != nil {
		return Output{}, err
	}
	baseline, err := baselineArtifact(state, blackboard.StageMeasures)
	if err != nil {
		return Output{}, err
	}
	if err := screener.CheckTendency(baseline.Tendency); err != nil {
		return Output{}, &StageComputationError{Stage: blackboard.StageMeasures, Reason: ReasonInconsistentUpstream, Err: err}
	}

	screened := s.screener.Screen(baseline.Tendency, state.Selection().Facility)

	// Measures are matched against the park's regional and sector tags too.
	for i := range screened.Measures {
		tags := &screened.Measures[i].Tags
		tags.AdminCodes = append([]string{}, geo.AdminCodes...)
		tags.IndustryCodes = append([]string{}, geo.IndustryCodes...)
	}

	artifact := &blackboard.MeasuresArtifact{
		Measures:       screened.Measures,
		Dropped:        screened.Dropped,
		RequiredInputs: screened.RequiredInputs,
	}
	candidates := artifact.Candidates()

	result := newResult(blackboard.StageMeasures, "measure_screener", inputVersion(state.Scenario()))
	result.DataGaps = append(result.DataGaps, screened.DataGaps...)

	var capex, reduction, topScore float64
	for _, m := range candidates {
		capex += m.CAPEX
		reduction += m.AnnualReductionTCO2
		if m.Score > topScore {
			topScore = m.Score
		}
	}
	result.Metrics["candidate_count"] = float64(len(candidates))
	result.Metrics["excluded_count"] = float64(len(artifact.Measures) - len(candidates))
	result.Metrics["dropped_count"] = float64(len(artifact.Dropped))
	result.Metrics["top_score"] = topScore
	result.Metrics["candidate_capex"] = capex
	result.Metrics["candidate_reduction_tco2"] = reduction
	if len(candidates) > 0 {
		result.Labels["top_measure"] = candidates[0].ID
	}

	// Confidence follows how many sizing inputs the candidates were screened with.
	result.Confidence = minConfidence
	if len(candidates) > 0 {
		var readiness float64
		for _, m := range candidates {
			readiness += m.SubScores.Readiness
		}
		result.Confidence = boundConfidence(0.45 + 0.45*readiness/float64(len(candidates)))
	}
	weights := s.screener.Weights()
	result.Assumptions = append(result.Assumptions,
		assumption("inclusion_threshold", fmt.Sprintf("%g", s.screener.Threshold()), "",
			"Measures must score strictly above the threshold", "config", blackboard.SeverityMedium),
		assumption("score_weights",
			fmt.Sprintf("tendency=%.2f readiness=%.2f prior=%.2f", weights.Tendency, weights.Readiness, weights.Prior), "",
			"Applicability score is a weighted mean of the sub-scores", "config", blackboard.SeverityLow))
	result.Evidence = append(result.Evidence, evidence("EVID-MEASURE-CATALOG",
		"Built-in measure catalog screened against the baseline tendency", "measure_catalog:"+ComponentVersion, ""))

	var reviews []blackboard.ReviewItem
	if len(artifact.RequiredInputs) > 0 {
		reviews = append(reviews, reviewItem(blackboard.StageMeasures,
			"measure_data_gap",
			"Candidate measures are missing critical sizing inputs",
			"Upload roof area, TOU tariff, motor inventory and process heat data.",
			blackboard.SeverityHigh,
			"facility"))
	}

	result.Artifacts.Measures = artifact
	return Output{Result: result, ReviewItems: reviews}, nil
}
