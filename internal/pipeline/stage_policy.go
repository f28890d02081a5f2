package pipeline

import (
	"fmt"

	"github.com/dyluth/parkplan/internal/policy"
	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Below this confidence, or with any high severity gap, the tags are sent back for review.
const policyReviewConfidence = 0.6

// policyStage matches candidate measures against the corpus and aggregates subsidies.
type policyStage struct {
	corpus     *policy.Corpus
	aggregator *policy.Aggregator
}

func (policyStage) Name() blackboard.Stage { return blackboard.StagePolicy }

func (policyStage) Upstream() []blackboard.Stage {
	return []blackboard.Stage{blackboard.StageGeo, blackboard.StageMeasures}
}

func (s policyStage) Compute(state *blackboard.State) (Output, error) {
	geo, err := geoArtifact(state, blackboard.StagePolicy)
	if err != nil {
		return Output{}, err
	}
	measures, err := measuresArtifact(state, blackboard.StagePolicy)
	if err != nil {
		return Output{}, err
	}
	candidates := measures.Candidates()

	artifact := &blackboard.PolicyArtifact{
		CorpusVersion: s.corpus.Version(),
		CorpusSource:  s.corpus.Source(),
		Matches:       make([]blackboard.MatchResult, 0, len(candidates)),
		Subsidies:     make([]blackboard.SubsidyBreakdown, 0, len(candidates)),
	}

	result := newResult(blackboard.StagePolicy, "policy_matcher", s.corpus.Version())
	matchedClauses := make(map[string]bool)
	var total float64
	var withSubsidy int
	for _, m := range candidates {
		match := policy.Match(m.ID, m.Tags, s.corpus)
		subsidy := s.aggregator.Aggregate(m, match)

		artifact.Matches = append(artifact.Matches, match)
		artifact.Subsidies = append(artifact.Subsidies, subsidy)

		for _, cm := range match.Matches {
			matchedClauses[cm.ClauseID] = true
		}
		result.Metrics["matched_by_measure."+m.ID] = float64(len(match.Matches))
		result.Metrics["subsidy."+m.ID] = subsidy.Amount
		total += subsidy.Amount
		if subsidy.Amount > 0 {
			withSubsidy++
		}
	}

	result.Metrics["clause_count"] = float64(s.corpus.Len())
	result.Metrics["matched_clause_count"] = float64(len(matchedClauses))
	result.Metrics["measures_with_subsidy"] = float64(withSubsidy)
	result.Metrics["total_subsidy"] = total
	result.Metrics["max_subsidy_fraction"] = s.aggregator.MaxFraction()
	result.Labels["corpus_version"] = s.corpus.Version()
	result.Labels["corpus_source"] = s.corpus.Source()

	if len(geo.AdminCodes) == 0 {
		result.DataGaps = append(result.DataGaps, blackboard.DataGap{
			Category:    "admin_codes",
			Description: "Policy scope matching may be inaccurate without region identifiers",
			Severity:    blackboard.SeverityHigh,
		})
	}
	if len(geo.IndustryCodes) == 0 {
		result.DataGaps = append(result.DataGaps, blackboard.DataGap{
			Category:    "industry_codes",
			Description: "Industry specific clauses cannot be filtered; results may be over-inclusive",
			Severity:    blackboard.SeverityMedium,
		})
	}
	if len(candidates) == 0 {
		result.DataGaps = append(result.DataGaps, blackboard.DataGap{
			Category:    "measure_ids",
			Description: "Policy matching requires candidate measures from the screener",
			Severity:    blackboard.SeverityHigh,
		})
	}

	confidence := 0.55
	if len(matchedClauses) > 0 {
		confidence += 0.20
	}
	if len(geo.AdminCodes) > 0 {
		confidence += 0.10
	}
	if len(geo.IndustryCodes) > 0 {
		confidence += 0.05
	}
	highGaps := highGapCount(result.DataGaps)
	confidence = boundConfidence(confidence - 0.05*float64(highGaps))
	result.Confidence = confidence
	result.Metrics["policy_confidence"] = confidence

	result.Assumptions = append(result.Assumptions,
		assumption("policy_match_rule",
			"intersection over measure, industry and admin tags; weights 3/2/1", "",
			"A clause naming measures funds only those measures", "policy_corpus:"+s.corpus.Version(),
			blackboard.SeverityMedium),
		assumption("max_subsidy_fraction", fmt.Sprintf("%g", s.aggregator.MaxFraction()), "",
			"Combined subsidy is clamped to this share of CAPEX", "config", blackboard.SeverityHigh))
	result.Evidence = append(result.Evidence, evidence("EVID-POLICY-CORPUS",
		fmt.Sprintf("Policy corpus %s with %d clauses", s.corpus.Version(), s.corpus.Len()),
		"policy_corpus:"+s.corpus.Version(), s.corpus.Source()))

	var reviews []blackboard.ReviewItem
	if confidence < policyReviewConfidence || highGaps > 0 {
		severity := blackboard.SeverityHigh
		if len(matchedClauses) > 0 {
			severity = blackboard.SeverityMedium
		}
		reviews = append(reviews, reviewItem(blackboard.StagePolicy,
			"policy_kg_review",
			"Policy matching has low confidence or missing critical inputs.",
			"Confirm industry and administrative codes, then rerun policy matching.",
			severity,
			"industry_codes", "admin_codes"))
	}

	result.Artifacts.Policy = artifact
	return Output{Result: result, ReviewItems: reviews}, nil
}
