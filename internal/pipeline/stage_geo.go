package pipeline

import (
	"fmt"
	"math"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Geo estimation constants.
const (
	defaultAreaKm2      = 12.5
	entityDensityPerKm2 = 11.2 // historical industrial park average
	minEntityCount      = 5
)

// geoStage normalizes the selection and scores how complete its metadata is.
type geoStage struct{}

func (geoStage) Name() blackboard.Stage       { return blackboard.StageGeo }
func (geoStage) Upstream() []blackboard.Stage { return nil }

func (geoStage) Compute(state *blackboard.State) (Output, error) {
	sel := state.Selection()

	area, estimated := defaultAreaKm2, true
	if sel.AreaKm2 != nil {
		area, estimated = *sel.AreaKm2, false
	}
	if math.IsNaN(area) || math.IsInf(area, 0) || area <= 0 {
		return Output{}, stageErrorf(blackboard.StageGeo, ReasonInvalidInput, "area_km2 is not a usable value: %v", area)
	}

	adminCodes := blackboard.NormalizeTags(sel.AdminCodes)
	industryCodes := blackboard.NormalizeTags(sel.IndustryCodes)
	layers := blackboard.NormalizeTags(sel.AvailableLayers)

	entities := int(math.Max(minEntityCount, math.Round(area*entityDensityPerKm2)))

	completeness := 0.35 + 0.1*float64(len(layers))
	if !estimated {
		completeness += 0.2
	}
	if len(adminCodes) > 0 {
		completeness += 0.15
	}
	completeness = math.Min(1, completeness)

	result := newResult(blackboard.StageGeo, "geo_resolver", inputVersion(state.Scenario()))
	result.Metrics["area_km2"] = area
	result.Metrics["entity_count_est"] = float64(entities)
	result.Metrics["data_completeness"] = completeness
	result.Metrics["layer_count"] = float64(len(layers))
	result.Metrics["admin_code_count"] = float64(len(adminCodes))
	result.Metrics["area_estimated"] = boolMetric(estimated)
	result.Labels["region_id"] = sel.RegionID
	result.Confidence = completeness
	result.Assumptions = append(result.Assumptions, assumption("entity_density_per_km2",
		fmt.Sprintf("%.1f", entityDensityPerKm2), "entities/km2",
		"Estimated from historical industrial park averages", "internal:geo_density_v1",
		blackboard.SeverityMedium))
	if estimated {
		result.Assumptions = append(result.Assumptions, assumption("default_area_km2",
			fmt.Sprintf("%.1f", defaultAreaKm2), "km2",
			"Park area not provided", "", blackboard.SeverityHigh))
	}
	if len(adminCodes) > 0 {
		result.Evidence = append(result.Evidence, evidence("EVID-GEO-ADMIN",
			"Administrative codes derived from selection metadata", "selection:"+sel.RegionID, ""))
	}
	if sel.ParkName != "" {
		result.Labels["park_name"] = sel.ParkName
	}

	if estimated {
		result.DataGaps = append(result.DataGaps, blackboard.DataGap{
			Category:    "selection_area",
			Description: fmt.Sprintf("Park area not provided; using %.1f km² default, entity estimate is a proxy", defaultAreaKm2),
			Severity:    blackboard.SeverityHigh,
		})
	}
	if completeness < 0.7 {
		result.DataGaps = append(result.DataGaps, blackboard.DataGap{
			Category:    "high_resolution_layers",
			Description: "Need firm-level geocoding before baseline calibration",
			Severity:    blackboard.SeverityMedium,
		})
	}

	var reviews []blackboard.ReviewItem
	if len(adminCodes) == 0 {
		reviews = append(reviews, reviewItem(blackboard.StageGeo,
			"geo_missing_admin_code",
			"Selection has no administrative code; regional policy matching is disabled.",
			"Provide the park's administrative division code.",
			blackboard.SeverityHigh,
			"admin_codes"))
	}

	result.Artifacts.Geo = &blackboard.GeoArtifact{
		AreaKm2:          area,
		AreaEstimated:    estimated,
		AdminCodes:       adminCodes,
		IndustryCodes:    industryCodes,
		EntityCountEst:   entities,
		DataCompleteness: completeness,
		AvailableLayers:  layers,
		Selection:        sel,
	}

	return Output{Result: result, ReviewItems: reviews}, nil
}
