package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadRequests(t *testing.T) {
	t.Run("single run", func(t *testing.T) {
		path := writeFile(t, "park.yml", `
run_id: sip-2024
selection:
  region_id: suzhou-sip
  admin_codes: ["320500"]
  area_km2: 15.3
  industry_codes: [C34]
  facility:
    roof_area_m2: 20000
    solar_profile: true
scenario:
  scenario_id: base
  baseline_year: 2023
  electricity_price: 0.72
  carbon_price: 80
  discount_rate: 0.06
`)
		requests, err := LoadRequests(path)
		require.NoError(t, err)
		require.Len(t, requests, 1)

		req := requests[0]
		assert.Equal(t, "sip-2024", req.RunID)
		assert.Equal(t, []string{"320500"}, req.Selection.AdminCodes)
		require.NotNil(t, req.Selection.AreaKm2)
		assert.Equal(t, 15.3, *req.Selection.AreaKm2)
		require.NotNil(t, req.Selection.Facility.RoofAreaM2)
		assert.True(t, req.Selection.Facility.SolarProfile)
		assert.Nil(t, req.Selection.Facility.MotorInventoryKW)
		require.NotNil(t, req.Scenario.DiscountRate)
		assert.Equal(t, 0.06, *req.Scenario.DiscountRate)
		assert.NoError(t, req.Validate())
	})

	t.Run("list of runs", func(t *testing.T) {
		path := writeFile(t, "batch.yml", `
runs:
  - selection: {region_id: a}
    scenario: {scenario_id: s1, electricity_price: 0.7}
  - selection: {region_id: b}
    scenario: {scenario_id: s2, electricity_price: 0.6}
`)
		requests, err := LoadRequests(path)
		require.NoError(t, err)
		require.Len(t, requests, 2)
		assert.Equal(t, "b", requests[1].Selection.RegionID)
		assert.Equal(t, "s2", requests[1].Scenario.ScenarioID)
	})

	t.Run("empty document", func(t *testing.T) {
		_, err := LoadRequests(writeFile(t, "empty.yml", "foo: bar\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contains no run")
	})

	t.Run("malformed YAML", func(t *testing.T) {
		_, err := LoadRequests(writeFile(t, "bad.yml", "selection: [unclosed\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRequests(filepath.Join(t.TempDir(), "nope.yml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestRequestValidate(t *testing.T) {
	req := suzhouRequest("r")
	require.NoError(t, req.Validate())

	req.Scenario.ScenarioID = ""
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario")

	req = suzhouRequest("r")
	req.Selection.Facility.PeakLoadRatio = blackboard.Float(1.5)
	err = req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid selection")
}
