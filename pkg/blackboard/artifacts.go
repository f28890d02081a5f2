package blackboard

import "strings"

// Per-stage artifact payloads. Each stage publishes exactly one of these inside its
// StageResult.Artifacts.

// GeoArtifact is the normalized view of the selected park.
type GeoArtifact struct {
	AreaKm2          float64   `json:"area_km2"`
	AreaEstimated    bool      `json:"area_estimated"`
	AdminCodes       []string  `json:"admin_codes"`
	IndustryCodes    []string  `json:"industry_codes"`
	EntityCountEst   int       `json:"entity_count_est"`
	DataCompleteness float64   `json:"data_completeness"`
	AvailableLayers  []string  `json:"available_layers"`
	Selection        Selection `json:"normalized_selection"`
}

// EnergyTendency summarizes the shape of a park's energy demand, the input the measure
// screener scores against. Shares are normalized to [0,1].
type EnergyTendency struct {
	ElectricityShare   float64 `json:"electricity_share"`
	ThermalShare       float64 `json:"thermal_share"`
	PeakShare          float64 `json:"peak_share"`
	Scope1TCO2         float64 `json:"scope1_tco2"`
	Scope2TCO2         float64 `json:"scope2_tco2"`
	GridEmissionFactor float64 `json:"grid_emission_factor"`
	ElectricityPrice   float64 `json:"electricity_price"`
	CarbonPrice        float64 `json:"carbon_price"`
}

// BaselineArtifact holds the scope 1/2 baseline.
type BaselineArtifact struct {
	BaselineYear       int            `json:"baseline_year"`
	ElectricityMWh     float64        `json:"electricity_mwh"`
	ThermalMWh         float64        `json:"thermal_mwh"`
	Scope1TCO2         float64        `json:"scope1_tco2"`
	Scope2TCO2         float64        `json:"scope2_tco2"`
	TotalTCO2          float64        `json:"total_tco2"`
	GridEmissionFactor float64        `json:"grid_emission_factor"`
	Metered            bool           `json:"metered"`
	Tendency           EnergyTendency `json:"energy_tendency"`
	IndustryCodes      []string       `json:"industry_codes"`
	UnmatchedIndustry  []string       `json:"unmatched_industry_codes"`
}

// TagSet is the matching key shared by measures and policy clauses.
type TagSet struct {
	AdminCodes    []string `json:"admin_codes" yaml:"admin_codes"`
	IndustryCodes []string `json:"industry_codes" yaml:"industry_codes"`
	MeasureIDs    []string `json:"measure_ids" yaml:"measure_ids"`
}

// IsEmpty reports whether the tag set has no tag in any dimension.
func (t TagSet) IsEmpty() bool {
	return len(t.AdminCodes) == 0 && len(t.IndustryCodes) == 0 && len(t.MeasureIDs) == 0
}

// Len returns the total number of tags across all dimensions.
func (t TagSet) Len() int {
	return len(t.AdminCodes) + len(t.IndustryCodes) + len(t.MeasureIDs)
}

// NormalizeTags trims each tag and drops blanks and duplicates, keeping first
// occurrence order. Corpus tags and selection codes both go through it so they
// compare equal.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// SubScores explains how a measure's applicability score was assembled.
type SubScores struct {
	Tendency  float64 `json:"tendency"`
	Readiness float64 `json:"readiness"`
	Prior     float64 `json:"prior"`
}

// Measure is a candidate intervention produced by the measure screener.
type Measure struct {
	ID                  string    `json:"id"`
	Label               string    `json:"label"`
	Dimension           string    `json:"dimension"`
	Tags                TagSet    `json:"tags"`
	CAPEX               float64   `json:"capex"`                 // CNY
	AnnualReductionTCO2 float64   `json:"annual_reduction_tco2"` // tCO2/year
	AnnualBenefit       float64   `json:"annual_benefit"`        // CNY/year
	Score               float64   `json:"applicability_score"`   // [0,1]
	SubScores           SubScores `json:"sub_scores"`
	MissingInputs       []string  `json:"missing_inputs"`
	Excluded            bool      `json:"excluded"` // considered but not applicable
}

// MeasuresArtifact lists the screened measures, best first.
type MeasuresArtifact struct {
	Measures       []Measure `json:"measures"`
	Dropped        []string  `json:"dropped"`         // IDs scored at or below the inclusion threshold
	RequiredInputs []string  `json:"required_inputs"` // inputs that would improve screening
}

// Candidates returns the measures that were not excluded, preserving order.
func (m *MeasuresArtifact) Candidates() []Measure {
	out := make([]Measure, 0, len(m.Measures))
	for _, measure := range m.Measures {
		if !measure.Excluded {
			out = append(out, measure)
		}
	}
	return out
}

// ClauseMatch is one policy clause matched against a measure.
type ClauseMatch struct {
	ClauseID     string `json:"clause_id"`
	Score        int    `json:"score"`
	Specificity  int    `json:"specificity"` // total tags on the clause, fewer is more specific
	Intersection TagSet `json:"intersection"`
}

// MatchResult lists matched clauses for one measure, best first.
type MatchResult struct {
	MeasureID string        `json:"measure_id"`
	Matches   []ClauseMatch `json:"matches"`
}

// ClauseContribution is the audit record of one clause's share of a subsidy.
// OutOfScope marks a clause that matched but is reserved for other measures.
type ClauseContribution struct {
	ClauseID   string   `json:"clause_id"`
	Rate       float64  `json:"rate"`
	Cap        *float64 `json:"cap,omitempty"`
	PreClamp   float64  `json:"pre_clamp"`
	PostClamp  float64  `json:"post_clamp"`
	OutOfScope bool     `json:"out_of_scope,omitempty"`
}

// SubsidyBreakdown is the aggregated incentive for one measure.
type SubsidyBreakdown struct {
	MeasureID     string               `json:"measure_id"`
	CAPEX         float64              `json:"capex"`
	MaxFraction   float64              `json:"max_fraction"`
	Limit         float64              `json:"limit"`
	RawTotal      float64              `json:"raw_total"`
	Amount        float64              `json:"amount"`
	Clamped       bool                 `json:"clamped"`
	Contributions []ClauseContribution `json:"contributions"`
}

// PolicyArtifact holds matches and subsidies in measure order.
type PolicyArtifact struct {
	CorpusVersion string             `json:"corpus_version"`
	CorpusSource  string             `json:"corpus_source"`
	Matches       []MatchResult      `json:"matches"`
	Subsidies     []SubsidyBreakdown `json:"subsidies"`
}

// SubsidyAmounts maps measure ID to aggregated subsidy amount.
func (p *PolicyArtifact) SubsidyAmounts() map[string]float64 {
	out := make(map[string]float64, len(p.Subsidies))
	for _, s := range p.Subsidies {
		out[s.MeasureID] = s.Amount
	}
	return out
}

// CashFlow is one year of a cash-flow table. Year 0 carries the investment.
type CashFlow struct {
	Year                 int     `json:"year"`
	Net                  float64 `json:"net"`
	Discounted           float64 `json:"discounted"`
	CumulativeDiscounted float64 `json:"cumulative_discounted"`
}

// MeasureFinance is the financial view of a single measure.
type MeasureFinance struct {
	MeasureID        string     `json:"measure_id"`
	CAPEX            float64    `json:"capex"`
	Subsidy          float64    `json:"subsidy"`
	PostSubsidyCAPEX float64    `json:"post_subsidy_capex"`
	AnnualNetBenefit float64    `json:"annual_net_benefit"`
	PaybackYears     *float64   `json:"payback_years"` // nil means no payback
	NPV              float64    `json:"npv"`
	CashFlows        []CashFlow `json:"cash_flows"`
}

// PortfolioFinance is the straight sum across measures.
type PortfolioFinance struct {
	CAPEX            float64    `json:"capex"`
	Subsidy          float64    `json:"subsidy"`
	PostSubsidyCAPEX float64    `json:"post_subsidy_capex"`
	AnnualNetBenefit float64    `json:"annual_net_benefit"`
	PaybackYears     *float64   `json:"payback_years"`
	NPV              float64    `json:"npv"`
	CashFlows        []CashFlow `json:"cash_flows"`
}

// FinancialSummary is the output of the financial integrator.
type FinancialSummary struct {
	DiscountRate float64          `json:"discount_rate"`
	HorizonYears int              `json:"horizon_years"`
	Measures     []MeasureFinance `json:"measures"`
	Portfolio    PortfolioFinance `json:"portfolio"`
}

// FinanceArtifact wraps the financial summary.
type FinanceArtifact struct {
	Summary FinancialSummary `json:"summary"`
}
