package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/parkplan/internal/config"
	"github.com/dyluth/parkplan/pkg/blackboard"
)

func geoResult(completeness float64, gaps ...blackboard.DataGap) blackboard.StageResult {
	r := newResult(blackboard.StageGeo, "test", "v")
	r.Metrics["data_completeness"] = completeness
	r.Labels["region_id"] = "suzhou-sip"
	r.DataGaps = append(r.DataGaps, gaps...)
	return r
}

func TestCompileReviewRules(t *testing.T) {
	tests := []struct {
		name    string
		rule    config.ReviewRule
		wantErr string
	}{
		{"syntax error", config.ReviewRule{ID: "r", Stage: "geo", When: "metrics.x <"}, "error compiling CEL expression"},
		{"undeclared variable", config.ReviewRule{ID: "r", Stage: "geo", When: "area > 1.0"}, "error compiling CEL expression"},
		{"non-bool output", config.ReviewRule{ID: "r", Stage: "geo", When: "metrics.area_km2"}, "must evaluate to bool"},
		{"unknown stage", config.ReviewRule{ID: "r", Stage: "narrative", When: "true"}, "unknown stage"},
		{"bad severity", config.ReviewRule{ID: "r", Stage: "geo", When: "true", Severity: "urgent"}, "r"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileReviewRules([]config.ReviewRule{tt.rule})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("defaults compile", func(t *testing.T) {
		rules, err := CompileReviewRules(config.DefaultReviewRules())
		require.NoError(t, err)
		assert.Equal(t, len(config.DefaultReviewRules()), rules.Len())
	})

	t.Run("no rules", func(t *testing.T) {
		rules, err := CompileReviewRules(nil)
		require.NoError(t, err)
		assert.Zero(t, rules.Len())
		items, errs := rules.Evaluate(geoResult(0.1))
		assert.Empty(t, items)
		assert.Empty(t, errs)
	})
}

func TestReviewRules_Evaluate(t *testing.T) {
	rules, err := CompileReviewRules([]config.ReviewRule{
		{ID: "low", Stage: "geo", When: "metrics.data_completeness < 0.6", Issue: "low completeness", Severity: "high", EditableFields: []string{"area_km2"}},
		{ID: "gaps", Stage: "geo", When: "high_gap_count > 0 && gap_count >= 2", Issue: "many gaps"},
		{ID: "label", Stage: "geo", When: "labels.region_id.startsWith('suzhou')", Issue: "suzhou"},
		{ID: "missing", Stage: "geo", When: "metrics.no_such_metric > 1.0", Issue: "never"},
		{ID: "other_stage", Stage: "finance", When: "true", Issue: "never on geo"},
	})
	require.NoError(t, err)

	items, errs := rules.Evaluate(geoResult(0.4,
		blackboard.DataGap{Category: "a", Severity: blackboard.SeverityHigh},
		blackboard.DataGap{Category: "b", Severity: blackboard.SeverityLow},
	))

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.CheckpointID)
		assert.Equal(t, blackboard.StageGeo, item.Stage)
	}
	assert.Equal(t, []string{"low", "gaps", "label"}, ids)
	assert.Equal(t, blackboard.SeverityHigh, items[0].Severity)
	assert.Equal(t, []string{"area_km2"}, items[0].EditableFields)
	assert.Equal(t, blackboard.SeverityMedium, items[1].Severity, "severity defaults to medium")
	assert.Equal(t, []string{}, items[1].EditableFields)

	require.Len(t, errs, 1, "a missing metric is an evaluation error, not a checkpoint")
	assert.Contains(t, errs[0].Error(), "missing")

	items, _ = rules.Evaluate(geoResult(0.9))
	assert.Equal(t, 1, len(items))
	assert.Equal(t, "label", items[0].CheckpointID)
}

func TestDefaultRules_PaybackWarning(t *testing.T) {
	rules, err := CompileReviewRules(config.DefaultReviewRules())
	require.NoError(t, err)

	r := newResult(blackboard.StageFinance, "test", "v")
	r.Metrics["horizon_years"] = 10

	items, errs := rules.Evaluate(r)
	assert.Empty(t, items, "no payback metric means no warning")
	assert.Empty(t, errs)

	r.Metrics["portfolio_payback_years"] = 12.5
	items, _ = rules.Evaluate(r)
	require.Len(t, items, 1)
	assert.Equal(t, "finance_payback_warning", items[0].CheckpointID)

	r.Metrics["portfolio_payback_years"] = 4
	items, _ = rules.Evaluate(r)
	assert.Empty(t, items)
}

func TestReviewRules_Confidence(t *testing.T) {
	rules, err := CompileReviewRules([]config.ReviewRule{
		{ID: "low_confidence", Stage: "geo", When: "confidence < 0.5", Issue: "low confidence"},
	})
	require.NoError(t, err)

	r := geoResult(0.35)
	r.Confidence = 0.35
	items, errs := rules.Evaluate(r)
	assert.Empty(t, errs)
	require.Len(t, items, 1)
	assert.Equal(t, "low_confidence", items[0].CheckpointID)

	r.Confidence = 0.8
	items, _ = rules.Evaluate(r)
	assert.Empty(t, items)
}
