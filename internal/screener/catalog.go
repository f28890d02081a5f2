package screener

import (
	"math"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Dimension is the energy dimension a measure acts on.
type Dimension string

const (
	DimensionElectricity Dimension = "electricity"
	DimensionThermal     Dimension = "thermal"
	DimensionPeak        Dimension = "peak"
)

// Scope is the emission scope a measure reduces.
type Scope string

const (
	Scope1 Scope = "scope1"
	Scope2 Scope = "scope2"
)

// Input is a facility-profile input a measure needs for sizing.
type Input string

const (
	InputRoofArea         Input = "roof_area_m2"
	InputSolarProfile     Input = "solar_profile"
	InputMotorInventory   Input = "motor_inventory"
	InputOperatingHours   Input = "operating_hours"
	InputWasteHeatProfile Input = "waste_heat_profile"
	InputSteamGrade       Input = "steam_grade"
	InputTOUTariff        Input = "tou_tariff"
	InputLoadCurve        Input = "load_curve"
)

// Present reports whether the facility profile provides the input.
func (in Input) Present(p blackboard.FacilityProfile) bool {
	switch in {
	case InputRoofArea:
		return p.RoofAreaM2 != nil && *p.RoofAreaM2 > 0
	case InputSolarProfile:
		return p.SolarProfile
	case InputMotorInventory:
		return p.MotorInventoryKW != nil && *p.MotorInventoryKW > 0
	case InputOperatingHours:
		return p.OperatingHours != nil && *p.OperatingHours > 0
	case InputWasteHeatProfile:
		return p.WasteHeatProfile
	case InputSteamGrade:
		return p.SteamGrade != ""
	case InputTOUTariff:
		return p.TOUTariff
	case InputLoadCurve:
		return p.LoadCurve
	default:
		return false
	}
}

// Sizing constants.
const (
	pvYieldMWhPerM2   = 0.17 // annual rooftop PV yield per m² of usable roof
	motorSavingsShare = 0.08 // IE2 -> IE4 efficiency gain on metered motor load
)

// Template is one entry of the measure catalog.
type Template struct {
	ID             string
	Label          string
	Dimension      Dimension
	Scope          Scope
	Prior          float64 // typical cost-effectiveness, [0,1]
	ReductionRatio float64 // share of the scope's emissions the measure abates
	CapexPerTCO2   float64 // CNY per tCO2 of annual abatement
	EnergyValue    float64 // share of the electricity price realized per MWh saved
	RequiredInputs []Input

	// Size refines the proportional reduction estimate from facility data.
	// Nil keeps the proportional estimate.
	Size func(base float64, t blackboard.EnergyTendency, p blackboard.FacilityProfile) float64
}

// DefaultCatalog returns the built-in measure templates.
func DefaultCatalog() []Template {
	return []Template{
		{
			ID:             "PV_ROOF",
			Label:          "Rooftop solar PV",
			Dimension:      DimensionElectricity,
			Scope:          Scope2,
			Prior:          0.72,
			ReductionRatio: 0.18,
			CapexPerTCO2:   5600,
			EnergyValue:    1.0,
			RequiredInputs: []Input{InputRoofArea, InputSolarProfile},
			Size: func(base float64, t blackboard.EnergyTendency, p blackboard.FacilityProfile) float64 {
				if !InputRoofArea.Present(p) {
					return base
				}
				// Generation is bounded by the usable roof.
				return math.Min(base, *p.RoofAreaM2*pvYieldMWhPerM2*t.GridEmissionFactor)
			},
		},
		{
			ID:             "EE_MOTOR",
			Label:          "High-efficiency motor and VFD retrofit",
			Dimension:      DimensionElectricity,
			Scope:          Scope2,
			Prior:          0.61,
			ReductionRatio: 0.09,
			CapexPerTCO2:   3000,
			EnergyValue:    1.0,
			RequiredInputs: []Input{InputMotorInventory, InputOperatingHours},
			Size: func(base float64, t blackboard.EnergyTendency, p blackboard.FacilityProfile) float64 {
				if !InputMotorInventory.Present(p) || !InputOperatingHours.Present(p) {
					return base
				}
				savedMWh := *p.MotorInventoryKW * *p.OperatingHours * motorSavingsShare / 1000
				return savedMWh * t.GridEmissionFactor
			},
		},
		{
			ID:             "WASTE_HEAT",
			Label:          "Waste heat recovery with heat pumps",
			Dimension:      DimensionThermal,
			Scope:          Scope1,
			Prior:          0.65,
			ReductionRatio: 0.12,
			CapexPerTCO2:   4500,
			EnergyValue:    0.35,
			RequiredInputs: []Input{InputWasteHeatProfile, InputSteamGrade},
		},
		{
			ID:             "BESS_TOU",
			Label:          "Battery storage for peak shaving",
			Dimension:      DimensionPeak,
			Scope:          Scope2,
			Prior:          0.58,
			ReductionRatio: 0.07,
			CapexPerTCO2:   9000,
			EnergyValue:    0.6,
			RequiredInputs: []Input{InputTOUTariff, InputLoadCurve},
		},
	}
}

// fit returns the normalized energy-tendency fit for a dimension.
func (d Dimension) fit(t blackboard.EnergyTendency) float64 {
	switch d {
	case DimensionElectricity:
		return t.ElectricityShare
	case DimensionThermal:
		return t.ThermalShare
	case DimensionPeak:
		return t.PeakShare
	default:
		return 0
	}
}

// emissions returns the baseline emissions of a scope.
func (s Scope) emissions(t blackboard.EnergyTendency) float64 {
	if s == Scope1 {
		return t.Scope1TCO2
	}
	return t.Scope2TCO2
}

// energySavedMWh converts abated emissions back to the energy not consumed.
func (s Scope) energySavedMWh(reductionT float64, t blackboard.EnergyTendency) float64 {
	factor := blackboard.ThermalEmissionFactor
	if s == Scope2 {
		factor = t.GridEmissionFactor
	}
	if factor <= 0 {
		return 0
	}
	return reductionT / factor
}
