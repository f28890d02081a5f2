// Package finance rolls measures and their subsidies into pre/post-subsidy financial
// metrics and a discounted cash-flow table.
package finance

import (
	"fmt"
	"math"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Integrator computes financial summaries. Horizon and discount rate are the
// fallbacks used when a scenario leaves them unset.
type Integrator struct {
	horizonYears int
	discountRate float64
}

// NewIntegrator validates the defaults and creates an Integrator.
func NewIntegrator(horizonYears int, discountRate float64) (*Integrator, error) {
	if horizonYears < 1 {
		return nil, fmt.Errorf("horizon must be >= 1 year, got %d", horizonYears)
	}
	if discountRate <= -1 || math.IsNaN(discountRate) {
		return nil, fmt.Errorf("discount rate must be > -1, got %v", discountRate)
	}
	return &Integrator{horizonYears: horizonYears, discountRate: discountRate}, nil
}

// Terms resolves the horizon and discount rate for a scenario.
func (in *Integrator) Terms(scenario blackboard.Scenario) (horizonYears int, discountRate float64) {
	horizonYears, discountRate = in.horizonYears, in.discountRate
	if scenario.HorizonYears != nil {
		horizonYears = *scenario.HorizonYears
	}
	if scenario.DiscountRate != nil {
		discountRate = *scenario.DiscountRate
	}
	return horizonYears, discountRate
}

// Integrate computes per-measure and portfolio figures. Subsidies are looked up by
// measure ID; a measure without an entry receives none. Portfolio figures are straight
// sums with no cross-measure interaction.
func (in *Integrator) Integrate(measures []blackboard.Measure, subsidies map[string]float64, scenario blackboard.Scenario) (blackboard.FinancialSummary, error) {
	horizon, rate := in.Terms(scenario)
	if horizon < 1 {
		return blackboard.FinancialSummary{}, fmt.Errorf("horizon must be >= 1 year, got %d", horizon)
	}
	if rate <= -1 || math.IsNaN(rate) {
		return blackboard.FinancialSummary{}, fmt.Errorf("discount rate must be > -1, got %v", rate)
	}

	summary := blackboard.FinancialSummary{
		DiscountRate: rate,
		HorizonYears: horizon,
		Measures:     make([]blackboard.MeasureFinance, 0, len(measures)),
	}

	seen := make(map[string]bool, len(measures))
	var portfolio blackboard.PortfolioFinance
	for _, m := range measures {
		if seen[m.ID] {
			return blackboard.FinancialSummary{}, fmt.Errorf("measure %s appears more than once", m.ID)
		}
		seen[m.ID] = true

		if math.IsNaN(m.CAPEX) || math.IsNaN(m.AnnualBenefit) || m.CAPEX < 0 {
			return blackboard.FinancialSummary{}, fmt.Errorf("measure %s has invalid CAPEX %v or benefit %v", m.ID, m.CAPEX, m.AnnualBenefit)
		}
		subsidy := math.Max(0, subsidies[m.ID])

		mf := blackboard.MeasureFinance{
			MeasureID:        m.ID,
			CAPEX:            m.CAPEX,
			Subsidy:          subsidy,
			PostSubsidyCAPEX: math.Max(0, m.CAPEX-subsidy),
			AnnualNetBenefit: m.AnnualBenefit,
		}
		mf.PaybackYears = Payback(mf.PostSubsidyCAPEX, mf.AnnualNetBenefit)
		mf.CashFlows = CashFlows(mf.PostSubsidyCAPEX, mf.AnnualNetBenefit, rate, horizon)
		mf.NPV = NPV(mf.CashFlows)
		summary.Measures = append(summary.Measures, mf)

		portfolio.CAPEX += mf.CAPEX
		portfolio.Subsidy += mf.Subsidy
		portfolio.PostSubsidyCAPEX += mf.PostSubsidyCAPEX
		portfolio.AnnualNetBenefit += mf.AnnualNetBenefit
		portfolio.NPV += mf.NPV
	}

	portfolio.PaybackYears = Payback(portfolio.PostSubsidyCAPEX, portfolio.AnnualNetBenefit)
	portfolio.CashFlows = sumCashFlows(summary.Measures, horizon)
	summary.Portfolio = portfolio

	return summary, nil
}

// Payback returns CAPEX ÷ annual benefit in years, or nil when there is no payback.
func Payback(capex, annualBenefit float64) *float64 {
	if annualBenefit <= 0 {
		return nil
	}
	years := capex / annualBenefit
	return &years
}

// CashFlows builds the year-indexed table: year 0 is the investment, years 1..horizon
// the flat annual benefit, discounted at rate.
func CashFlows(capex, annualBenefit, rate float64, horizon int) []blackboard.CashFlow {
	flows := make([]blackboard.CashFlow, 0, horizon+1)
	var cumulative float64
	for year := 0; year <= horizon; year++ {
		net := annualBenefit
		if year == 0 {
			net = -capex
		}
		discounted := net / math.Pow(1+rate, float64(year))
		cumulative += discounted
		flows = append(flows, blackboard.CashFlow{
			Year:                 year,
			Net:                  net,
			Discounted:           discounted,
			CumulativeDiscounted: cumulative,
		})
	}
	return flows
}

// NPV sums the discounted cash flows.
func NPV(flows []blackboard.CashFlow) float64 {
	var npv float64
	for _, f := range flows {
		npv += f.Discounted
	}
	return npv
}

func sumCashFlows(measures []blackboard.MeasureFinance, horizon int) []blackboard.CashFlow {
	flows := make([]blackboard.CashFlow, horizon+1)
	for year := range flows {
		flows[year].Year = year
	}
	for _, m := range measures {
		for year, f := range m.CashFlows {
			flows[year].Net += f.Net
			flows[year].Discounted += f.Discounted
		}
	}
	var cumulative float64
	for year := range flows {
		cumulative += flows[year].Discounted
		flows[year].CumulativeDiscounted = cumulative
	}
	return flows
}
