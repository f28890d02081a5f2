package pipeline

import (
	"fmt"
	"math"

	"github.com/dyluth/parkplan/internal/finance"
	"github.com/dyluth/parkplan/pkg/blackboard"
)

// financeStage rolls candidate measures and their subsidies into a financial summary.
type financeStage struct {
	integrator *finance.Integrator
}

func (financeStage) Name() blackboard.Stage { return blackboard.StageFinance }

func (financeStage) Upstream() []blackboard.Stage {
	return []blackboard.Stage{blackboard.StageMeasures, blackboard.StagePolicy}
}

func (s financeStage) Compute(state *blackboard.State) (Output, error) {
	measures, err := measuresArtifact(state, blackboard.StageFinance)
	if err != nil {
		return Output{}, err
	}
	policyResult, err := policyArtifact(state, blackboard.StageFinance)
	if err != nil {
		return Output{}, err
	}

	candidates := measures.Candidates()
	subsidies := policyResult.SubsidyAmounts()
	for _, m := range candidates {
		if _, ok := subsidies[m.ID]; !ok {
			return Output{}, stageErrorf(blackboard.StageFinance, ReasonInconsistentUpstream,
				"measure %s was screened but has no policy subsidy entry", m.ID)
		}
	}

	summary, err := s.integrator.Integrate(candidates, subsidies, state.Scenario())
	if err != nil {
		return Output{}, stageErrorf(blackboard.StageFinance, ReasonComputationFailed, "integrate: %w", err)
	}

	p := summary.Portfolio
	result := newResult(blackboard.StageFinance, "finance_integrator", inputVersion(state.Scenario()))
	result.Metrics["portfolio_capex"] = p.CAPEX
	result.Metrics["portfolio_subsidy"] = p.Subsidy
	result.Metrics["portfolio_post_subsidy_capex"] = p.PostSubsidyCAPEX
	result.Metrics["portfolio_annual_net_benefit"] = p.AnnualNetBenefit
	result.Metrics["portfolio_npv"] = p.NPV
	if p.PaybackYears != nil {
		result.Metrics["portfolio_payback_years"] = *p.PaybackYears
	}
	result.Metrics["discount_rate"] = summary.DiscountRate
	result.Metrics["horizon_years"] = float64(summary.HorizonYears)
	result.Metrics["measure_count"] = float64(len(summary.Measures))

	if len(candidates) == 0 {
		result.DataGaps = append(result.DataGaps, blackboard.DataGap{
			Category:    "measures",
			Description: "Finance requires at least one candidate measure",
			Severity:    blackboard.SeverityHigh,
		})
	}
	if p.AnnualNetBenefit <= 0 {
		result.DataGaps = append(result.DataGaps, blackboard.DataGap{
			Category:    "annual_net_benefit",
			Description: "Cannot compute NPV or payback without positive annual savings",
			Severity:    blackboard.SeverityHigh,
		})
	}

	// Finance is no more certain than the weaker of its inputs.
	upstream := maxConfidence
	for _, stage := range s.Upstream() {
		if r, ok := state.Result(stage); ok {
			upstream = math.Min(upstream, r.Confidence)
		}
	}
	result.Confidence = boundConfidence(upstream - 0.05*float64(highGapCount(result.DataGaps)))

	sc := state.Scenario()
	result.Assumptions = append(result.Assumptions,
		assumption("discount_rate", fmt.Sprintf("%g", summary.DiscountRate), "",
			"Scenario discount rate or configured default", "scenario", blackboard.SeverityHigh),
		assumption("horizon_years", fmt.Sprintf("%d", summary.HorizonYears), "years",
			"Evaluation horizon for NPV", "scenario", blackboard.SeverityMedium),
		assumption("electricity_price", fmt.Sprintf("%g", sc.ElectricityPrice), "CNY/kWh",
			"Flat tariff over the horizon", "scenario", blackboard.SeverityMedium),
		assumption("carbon_price", fmt.Sprintf("%g", sc.CarbonPrice), "CNY/tCO2",
			"Flat carbon price over the horizon", "scenario", blackboard.SeverityLow))
	result.Evidence = append(result.Evidence,
		evidence("EVID-MEASURES", "Candidate measures with CAPEX and savings", "measures_result", ""),
		evidence("EVID-POLICY", "Per-measure subsidy amounts", "policy_result:"+policyResult.CorpusVersion, ""))

	var reviews []blackboard.ReviewItem
	if len(result.DataGaps) > 0 {
		reviews = append(reviews, reviewItem(blackboard.StageFinance,
			"finance_missing_inputs",
			"Finance metrics missing essential inputs.",
			"Ensure each measure carries CAPEX and savings estimates.",
			blackboard.SeverityHigh,
			"measures"))
	}

	result.Artifacts.Finance = &blackboard.FinanceArtifact{Summary: summary}
	return Output{Result: result, ReviewItems: reviews}, nil
}
