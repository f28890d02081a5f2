package policy

import (
	"fmt"
	"math"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Aggregator converts matched clauses into a per-measure subsidy.
type Aggregator struct {
	corpus      *Corpus
	maxFraction float64
}

// NewAggregator creates an aggregator whose cumulative subsidy never exceeds
// maxFraction of a measure's CAPEX. maxFraction must be within (0, 1].
func NewAggregator(corpus *Corpus, maxFraction float64) (*Aggregator, error) {
	if corpus == nil {
		return nil, fmt.Errorf("corpus is required")
	}
	if maxFraction <= 0 || maxFraction > 1 || math.IsNaN(maxFraction) {
		return nil, fmt.Errorf("max subsidy fraction must be within (0, 1], got %v", maxFraction)
	}
	return &Aggregator{corpus: corpus, maxFraction: maxFraction}, nil
}

// MaxFraction returns the cumulative cap as a fraction of CAPEX.
func (a *Aggregator) MaxFraction() float64 { return a.maxFraction }

// Aggregate applies each matched clause's incentive to the measure's CAPEX in match
// order. Each clause contributes min(rate × CAPEX, cap); contributions are summed and
// the sum is then clamped to maxFraction × CAPEX. Every matched clause is reported,
// with its contribution before and after the clamp.
//
// A clause that names measures funds only those measures. When it matched on a shared
// region or sector tag but does not name this measure, it is reported out of scope
// with a zero contribution. Clauses with no measure tags fund any measure they match.
func (a *Aggregator) Aggregate(measure blackboard.Measure, match blackboard.MatchResult) blackboard.SubsidyBreakdown {
	capex := math.Max(0, measure.CAPEX)
	limit := a.maxFraction * capex

	breakdown := blackboard.SubsidyBreakdown{
		MeasureID:     measure.ID,
		CAPEX:         capex,
		MaxFraction:   a.maxFraction,
		Limit:         limit,
		Contributions: make([]blackboard.ClauseContribution, 0, len(match.Matches)),
	}

	for _, m := range match.Matches {
		contribution := blackboard.ClauseContribution{ClauseID: m.ClauseID}
		if clause, ok := a.corpus.Clause(m.ClauseID); ok {
			contribution.Rate = clause.Incentive.Rate
			contribution.Cap = clause.Incentive.Cap
			if !fundsMeasure(clause, measure.ID) {
				contribution.OutOfScope = true
				breakdown.Contributions = append(breakdown.Contributions, contribution)
				continue
			}
			contribution.PreClamp = clause.Incentive.Rate * capex
			if clause.Incentive.Cap != nil && contribution.PreClamp > *clause.Incentive.Cap {
				contribution.PreClamp = *clause.Incentive.Cap
			}
		}
		breakdown.RawTotal += contribution.PreClamp
		breakdown.Contributions = append(breakdown.Contributions, contribution)
	}

	// Post-sum clamp. Headroom is handed out in match order so post-clamp
	// contributions always add up to the amount.
	breakdown.Amount = math.Min(breakdown.RawTotal, limit)
	breakdown.Clamped = breakdown.RawTotal > limit

	headroom := breakdown.Amount
	for i := range breakdown.Contributions {
		post := math.Min(breakdown.Contributions[i].PreClamp, headroom)
		breakdown.Contributions[i].PostClamp = post
		headroom -= post
	}

	return breakdown
}

// fundsMeasure reports whether a clause's measure dimension admits the measure.
func fundsMeasure(clause Clause, measureID string) bool {
	if len(clause.Tags.MeasureIDs) == 0 {
		return true
	}
	for _, id := range clause.Tags.MeasureIDs {
		if id == measureID {
			return true
		}
	}
	return false
}
