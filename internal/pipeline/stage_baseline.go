package pipeline

import (
	"fmt"
	"math"
	"regexp"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Baseline estimation constants.
const (
	electricityMWhPerEntity = 4.8
	electricityMWhPerKm2    = 1.2
	thermalMWhPerEntity     = 3.1
	defaultPeakShare        = 0.5
	defaultBaselineYear     = 2023
	minRosterEntities       = 8
	maxBaselineConfidence   = 0.85
)

// GB/T 4754 style: section letter followed by two to four digits.
var industryCodePattern = regexp.MustCompile(`^[A-Z][0-9]{2,4}$`)

// baselineStage produces the scope 1/2 baseline and the energy tendency.
type baselineStage struct{}

func (baselineStage) Name() blackboard.Stage       { return blackboard.StageBaseline }
func (baselineStage) Upstream() []blackboard.Stage { return []blackboard.Stage{blackboard.StageGeo} }

func (baselineStage) Compute(state *blackboard.State) (Output, error) {
	geo, err := geoArtifact(state, blackboard.StageBaseline)
	if err != nil {
		return Output{}, err
	}
	sc := state.Scenario()
	facility := state.Selection().Facility

	entities := float64(geo.EntityCountEst)
	if entities <= 0 {
		return Output{}, stageErrorf(blackboard.StageBaseline, ReasonInconsistentUpstream, "geo entity estimate is %d", geo.EntityCountEst)
	}

	electricity := entities*electricityMWhPerEntity + geo.AreaKm2*electricityMWhPerKm2
	thermal := entities * thermalMWhPerEntity
	metered := false
	if facility.MeteredElectricityMWh != nil {
		electricity, metered = *facility.MeteredElectricityMWh, true
	}
	if facility.MeteredThermalMWh != nil {
		thermal, metered = *facility.MeteredThermalMWh, true
	}

	grid := sc.GridFactor()
	scope1 := thermal * blackboard.ThermalEmissionFactor
	scope2 := electricity * grid

	var electricityShare, thermalShare float64
	if total := electricity + thermal; total > 0 {
		electricityShare = electricity / total
		thermalShare = thermal / total
	}

	peak := defaultPeakShare
	if facility.PeakLoadRatio != nil {
		peak = *facility.PeakLoadRatio
	}

	year := sc.BaselineYear
	if year == 0 {
		year = defaultBaselineYear
	}

	var unmatched []string
	for _, code := range geo.IndustryCodes {
		if !industryCodePattern.MatchString(code) {
			unmatched = append(unmatched, code)
		}
	}
	if unmatched == nil {
		unmatched = []string{}
	}

	result := newResult(blackboard.StageBaseline, "baseline_accountant", inputVersion(sc))
	result.Metrics["baseline_year"] = float64(year)
	result.Metrics["electricity_mwh"] = electricity
	result.Metrics["thermal_mwh"] = thermal
	result.Metrics["scope1_tco2"] = scope1
	result.Metrics["scope2_tco2"] = scope2
	result.Metrics["total_tco2"] = scope1 + scope2
	result.Metrics["grid_emission_factor"] = grid
	result.Metrics["energy_intensity_mwh_per_entity"] = (electricity + thermal) / entities
	result.Metrics["data_completeness"] = geo.DataCompleteness
	result.Metrics["metered"] = boolMetric(metered)
	result.Metrics["electricity_share"] = electricityShare
	result.Metrics["thermal_share"] = thermalShare
	result.Metrics["peak_share"] = peak

	result.Confidence = math.Min(maxBaselineConfidence, 0.5+geo.DataCompleteness/2)
	result.Assumptions = append(result.Assumptions,
		assumption("grid_emission_factor", fmt.Sprintf("%g", grid), "tCO2/MWh",
			"Regional default from emission factor registry", "scenario", blackboard.SeverityHigh),
		assumption("thermal_scope1_factor", fmt.Sprintf("%g", blackboard.ThermalEmissionFactor), "tCO2/MWh",
			"Average natural gas boiler emission factor", "factor_repo", blackboard.SeverityMedium))
	if facility.MeteredElectricityMWh == nil {
		result.Assumptions = append(result.Assumptions, assumption("baseline_electricity_proxy",
			fmt.Sprintf("entities * %g + area_km2 * %g", electricityMWhPerEntity, electricityMWhPerKm2), "MWh",
			"No metered electricity demand", "internal:intensity_v1", blackboard.SeverityHigh))
	}
	if facility.MeteredThermalMWh == nil {
		result.Assumptions = append(result.Assumptions, assumption("baseline_thermal_proxy",
			fmt.Sprintf("entities * %g", thermalMWhPerEntity), "MWh",
			"No metered thermal demand", "internal:intensity_v1", blackboard.SeverityHigh))
	}
	if facility.PeakLoadRatio == nil {
		result.Assumptions = append(result.Assumptions, assumption("peak_share",
			fmt.Sprintf("%.2f", defaultPeakShare), "",
			"No load data", "", blackboard.SeverityLow))
	}
	result.Evidence = append(result.Evidence, evidence("EVID-GEO-ENTITIES",
		"Geo normalized entity count used for baseline", "geo_result", ""))
	if metered {
		result.Evidence = append(result.Evidence, evidence("EVID-METERED",
			"Metered facility energy demand", "facility_profile", ""))
	}

	if !metered && geo.DataCompleteness < 0.6 {
		result.DataGaps = append(result.DataGaps, blackboard.DataGap{
			Category:    "metering_data",
			Description: "Baseline relies on regional intensity proxies",
			Severity:    blackboard.SeverityHigh,
		})
	}
	if geo.EntityCountEst < minRosterEntities {
		result.DataGaps = append(result.DataGaps, blackboard.DataGap{
			Category:    "enterprise_roster",
			Description: "Need firm-level activity data before applying measures",
			Severity:    blackboard.SeverityMedium,
		})
	}
	if facility.PeakLoadRatio == nil {
		result.DataGaps = append(result.DataGaps, blackboard.DataGap{
			Category:    "peak_load_ratio",
			Description: fmt.Sprintf("No load data; peak share assumed %.2f", defaultPeakShare),
			Severity:    blackboard.SeverityLow,
		})
	}
	if len(geo.IndustryCodes) == 0 {
		result.DataGaps = append(result.DataGaps, blackboard.DataGap{
			Category:    "industry_codes",
			Description: "No industry classification; sector-specific factors and clauses cannot be applied",
			Severity:    blackboard.SeverityMedium,
		})
	}
	if electricity+thermal == 0 {
		result.DataGaps = append(result.DataGaps, blackboard.DataGap{
			Category:    "energy_demand",
			Description: "Metered energy demand is zero",
			Severity:    blackboard.SeverityHigh,
		})
	}

	var reviews []blackboard.ReviewItem
	if len(unmatched) > 0 {
		reviews = append(reviews, reviewItem(blackboard.StageBaseline,
			"baseline_unmatched_industry",
			fmt.Sprintf("Industry codes not recognized as GB/T 4754 classes: %v", unmatched),
			"Correct the industry classification codes.",
			blackboard.SeverityMedium,
			"industry_codes"))
	}

	result.Artifacts.Baseline = &blackboard.BaselineArtifact{
		BaselineYear:       year,
		ElectricityMWh:     electricity,
		ThermalMWh:         thermal,
		Scope1TCO2:         scope1,
		Scope2TCO2:         scope2,
		TotalTCO2:          scope1 + scope2,
		GridEmissionFactor: grid,
		Metered:            metered,
		Tendency: blackboard.EnergyTendency{
			ElectricityShare:   electricityShare,
			ThermalShare:       thermalShare,
			PeakShare:          peak,
			Scope1TCO2:         scope1,
			Scope2TCO2:         scope2,
			GridEmissionFactor: grid,
			ElectricityPrice:   sc.ElectricityPrice,
			CarbonPrice:        sc.CarbonPrice,
		},
		IndustryCodes:     geo.IndustryCodes,
		UnmatchedIndustry: unmatched,
	}

	return Output{Result: result, ReviewItems: reviews}, nil
}

// geoArtifact fetches the committed geo artifact for a downstream stage.
func geoArtifact(state *blackboard.State, reader blackboard.Stage) (*blackboard.GeoArtifact, error) {
	r, ok := state.Result(blackboard.StageGeo)
	if !ok || r.Artifacts.Geo == nil {
		return nil, stageErrorf(reader, ReasonMissingUpstream, "geo artifact not published")
	}
	return r.Artifacts.Geo, nil
}

func baselineArtifact(state *blackboard.State, reader blackboard.Stage) (*blackboard.BaselineArtifact, error) {
	r, ok := state.Result(blackboard.StageBaseline)
	if !ok || r.Artifacts.Baseline == nil {
		return nil, stageErrorf(reader, ReasonMissingUpstream, "baseline artifact not published")
	}
	return r.Artifacts.Baseline, nil
}

func measuresArtifact(state *blackboard.State, reader blackboard.Stage) (*blackboard.MeasuresArtifact, error) {
	r, ok := state.Result(blackboard.StageMeasures)
	if !ok || r.Artifacts.Measures == nil {
		return nil, stageErrorf(reader, ReasonMissingUpstream, "measures artifact not published")
	}
	return r.Artifacts.Measures, nil
}

func policyArtifact(state *blackboard.State, reader blackboard.Stage) (*blackboard.PolicyArtifact, error) {
	r, ok := state.Result(blackboard.StagePolicy)
	if !ok || r.Artifacts.Policy == nil {
		return nil, stageErrorf(reader, ReasonMissingUpstream, "policy artifact not published")
	}
	return r.Artifacts.Policy, nil
}
