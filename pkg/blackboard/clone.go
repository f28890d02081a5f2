package blackboard

import (
	"maps"
	"slices"
)

// Deep copies. A State hands out copies of everything it holds, and takes a copy of
// everything it is given, so neither a producer nor a reader can reach a published
// value through a shared map, slice or pointer.

func cloneResult(r StageResult) StageResult {
	r.Metrics = maps.Clone(r.Metrics)
	if r.Metrics == nil {
		r.Metrics = map[string]float64{}
	}
	r.Labels = maps.Clone(r.Labels)
	if r.Labels == nil {
		r.Labels = map[string]string{}
	}
	r.DataGaps = nonNil(slices.Clone(r.DataGaps))
	r.Assumptions = nonNil(slices.Clone(r.Assumptions))
	r.Evidence = nonNil(slices.Clone(r.Evidence))
	r.Artifacts = r.Artifacts.clone()
	return r
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (a Artifacts) clone() Artifacts {
	var out Artifacts
	if a.Geo != nil {
		g := *a.Geo
		g.AdminCodes = slices.Clone(g.AdminCodes)
		g.IndustryCodes = slices.Clone(g.IndustryCodes)
		g.AvailableLayers = slices.Clone(g.AvailableLayers)
		g.Selection = g.Selection.clone()
		out.Geo = &g
	}
	if a.Baseline != nil {
		b := *a.Baseline
		b.IndustryCodes = slices.Clone(b.IndustryCodes)
		b.UnmatchedIndustry = slices.Clone(b.UnmatchedIndustry)
		out.Baseline = &b
	}
	if a.Measures != nil {
		m := *a.Measures
		m.Measures = slices.Clone(m.Measures)
		for i := range m.Measures {
			m.Measures[i].Tags = m.Measures[i].Tags.clone()
			m.Measures[i].MissingInputs = slices.Clone(m.Measures[i].MissingInputs)
		}
		m.Dropped = slices.Clone(m.Dropped)
		m.RequiredInputs = slices.Clone(m.RequiredInputs)
		out.Measures = &m
	}
	if a.Policy != nil {
		p := *a.Policy
		p.Matches = slices.Clone(p.Matches)
		for i := range p.Matches {
			matches := slices.Clone(p.Matches[i].Matches)
			for j := range matches {
				matches[j].Intersection = matches[j].Intersection.clone()
			}
			p.Matches[i].Matches = matches
		}
		p.Subsidies = slices.Clone(p.Subsidies)
		for i := range p.Subsidies {
			contributions := slices.Clone(p.Subsidies[i].Contributions)
			for j := range contributions {
				contributions[j].Cap = cloneFloat(contributions[j].Cap)
			}
			p.Subsidies[i].Contributions = contributions
		}
		out.Policy = &p
	}
	if a.Finance != nil {
		f := *a.Finance
		f.Summary.Measures = slices.Clone(f.Summary.Measures)
		for i := range f.Summary.Measures {
			f.Summary.Measures[i].PaybackYears = cloneFloat(f.Summary.Measures[i].PaybackYears)
			f.Summary.Measures[i].CashFlows = slices.Clone(f.Summary.Measures[i].CashFlows)
		}
		f.Summary.Portfolio.PaybackYears = cloneFloat(f.Summary.Portfolio.PaybackYears)
		f.Summary.Portfolio.CashFlows = slices.Clone(f.Summary.Portfolio.CashFlows)
		out.Finance = &f
	}
	return out
}

func (t TagSet) clone() TagSet {
	return TagSet{
		AdminCodes:    slices.Clone(t.AdminCodes),
		IndustryCodes: slices.Clone(t.IndustryCodes),
		MeasureIDs:    slices.Clone(t.MeasureIDs),
	}
}

func (s Selection) clone() Selection {
	s.AdminCodes = slices.Clone(s.AdminCodes)
	s.IndustryCodes = slices.Clone(s.IndustryCodes)
	s.AvailableLayers = slices.Clone(s.AvailableLayers)
	s.AreaKm2 = cloneFloat(s.AreaKm2)

	f := &s.Facility
	f.RoofAreaM2 = cloneFloat(f.RoofAreaM2)
	f.MotorInventoryKW = cloneFloat(f.MotorInventoryKW)
	f.OperatingHours = cloneFloat(f.OperatingHours)
	f.PeakLoadRatio = cloneFloat(f.PeakLoadRatio)
	f.MeteredElectricityMWh = cloneFloat(f.MeteredElectricityMWh)
	f.MeteredThermalMWh = cloneFloat(f.MeteredThermalMWh)
	return s
}

func (s Scenario) clone() Scenario {
	s.DiscountRate = cloneFloat(s.DiscountRate)
	s.GridEmissionFactor = cloneFloat(s.GridEmissionFactor)
	if s.HorizonYears != nil {
		s.HorizonYears = Int(*s.HorizonYears)
	}
	return s
}

func (ri ReviewItem) clone() ReviewItem {
	ri.EditableFields = slices.Clone(ri.EditableFields)
	return ri
}

func cloneReviewItems(items []ReviewItem) []ReviewItem {
	out := make([]ReviewItem, len(items))
	for i, item := range items {
		out[i] = item.clone()
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}
