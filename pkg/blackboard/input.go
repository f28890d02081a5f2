package blackboard

import "fmt"

// Emission factors in tCO2/MWh.
const (
	DefaultGridEmissionFactor = 0.58 // regional grid average used when the scenario has none
	ThermalEmissionFactor     = 0.21 // natural-gas fired process heat
)

// Selection describes the park being planned. It is supplied, already parsed, by the
// ingestion layer and is never modified by the pipeline.
type Selection struct {
	RegionID        string          `json:"region_id" yaml:"region_id"`
	ParkName        string          `json:"park_name,omitempty" yaml:"park_name"`
	AdminCodes      []string        `json:"admin_codes" yaml:"admin_codes"`
	AreaKm2         *float64        `json:"area_km2,omitempty" yaml:"area_km2"`
	IndustryCodes   []string        `json:"industry_codes" yaml:"industry_codes"`
	AvailableLayers []string        `json:"available_layers" yaml:"available_layers"`
	Facility        FacilityProfile `json:"facility" yaml:"facility"`
}

// FacilityProfile carries the facility inventory and availability flags. Nil pointers
// and false flags mean the input was not provided.
type FacilityProfile struct {
	RoofAreaM2            *float64 `json:"roof_area_m2,omitempty" yaml:"roof_area_m2"`
	SolarProfile          bool     `json:"solar_profile" yaml:"solar_profile"`
	MotorInventoryKW      *float64 `json:"motor_inventory_kw,omitempty" yaml:"motor_inventory_kw"`
	OperatingHours        *float64 `json:"operating_hours,omitempty" yaml:"operating_hours"`
	WasteHeatProfile      bool     `json:"waste_heat_profile" yaml:"waste_heat_profile"`
	SteamGrade            string   `json:"steam_grade,omitempty" yaml:"steam_grade"`
	TOUTariff             bool     `json:"tou_tariff" yaml:"tou_tariff"`
	LoadCurve             bool     `json:"load_curve" yaml:"load_curve"`
	PeakLoadRatio         *float64 `json:"peak_load_ratio,omitempty" yaml:"peak_load_ratio"`
	MeteredElectricityMWh *float64 `json:"metered_electricity_mwh,omitempty" yaml:"metered_electricity_mwh"`
	MeteredThermalMWh     *float64 `json:"metered_thermal_mwh,omitempty" yaml:"metered_thermal_mwh"`
}

// Scenario holds the economic assumptions of a run.
type Scenario struct {
	ScenarioID         string   `json:"scenario_id" yaml:"scenario_id"`
	BaselineYear       int      `json:"baseline_year" yaml:"baseline_year"`
	ElectricityPrice   float64  `json:"electricity_price" yaml:"electricity_price"` // CNY/kWh
	CarbonPrice        float64  `json:"carbon_price" yaml:"carbon_price"`           // CNY/tCO2
	DiscountRate       *float64 `json:"discount_rate,omitempty" yaml:"discount_rate"`
	HorizonYears       *int     `json:"horizon_years,omitempty" yaml:"horizon_years"`
	GridEmissionFactor *float64 `json:"grid_emission_factor,omitempty" yaml:"grid_emission_factor"` // tCO2/MWh
	ParamVersion       string   `json:"param_version,omitempty" yaml:"param_version"`
}

// GridFactor returns the scenario grid emission factor, or the default.
func (s *Scenario) GridFactor() float64 {
	if s.GridEmissionFactor == nil {
		return DefaultGridEmissionFactor
	}
	return *s.GridEmissionFactor
}

// Validate checks the structural preconditions the pipeline relies on.
func (s *Scenario) Validate() error {
	if s.ScenarioID == "" {
		return fmt.Errorf("scenario_id cannot be empty")
	}
	if s.ElectricityPrice < 0 {
		return fmt.Errorf("electricity_price must be >= 0, got %v", s.ElectricityPrice)
	}
	if s.CarbonPrice < 0 {
		return fmt.Errorf("carbon_price must be >= 0, got %v", s.CarbonPrice)
	}
	if s.DiscountRate != nil && *s.DiscountRate <= -1 {
		return fmt.Errorf("discount_rate must be > -1, got %v", *s.DiscountRate)
	}
	if s.HorizonYears != nil && *s.HorizonYears < 1 {
		return fmt.Errorf("horizon_years must be >= 1, got %d", *s.HorizonYears)
	}
	if s.GridEmissionFactor != nil && *s.GridEmissionFactor <= 0 {
		return fmt.Errorf("grid_emission_factor must be > 0, got %v", *s.GridEmissionFactor)
	}
	return nil
}

// Validate checks the selection for values that cannot be meaningfully planned.
// Missing optional inputs are not errors; stages record them as data gaps.
func (s *Selection) Validate() error {
	if s.AreaKm2 != nil && *s.AreaKm2 <= 0 {
		return fmt.Errorf("area_km2 must be > 0, got %v", *s.AreaKm2)
	}
	f := s.Facility
	for name, v := range map[string]*float64{
		"roof_area_m2":            f.RoofAreaM2,
		"motor_inventory_kw":      f.MotorInventoryKW,
		"operating_hours":         f.OperatingHours,
		"metered_electricity_mwh": f.MeteredElectricityMWh,
		"metered_thermal_mwh":     f.MeteredThermalMWh,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("facility.%s must be >= 0, got %v", name, *v)
		}
	}
	if f.PeakLoadRatio != nil && (*f.PeakLoadRatio < 0 || *f.PeakLoadRatio > 1) {
		return fmt.Errorf("facility.peak_load_ratio must be within [0,1], got %v", *f.PeakLoadRatio)
	}
	return nil
}

// Float returns a pointer to v. Handy for optional numeric inputs.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
