package pipeline

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"

	"github.com/dyluth/parkplan/internal/config"
	"github.com/dyluth/parkplan/pkg/blackboard"
)

// ReviewRules raise review checkpoints from CEL conditions over a stage result.
//
// Variables available to an expression:
//
//	metrics         map(string, double)
//	labels          map(string, string)
//	gap_count       int
//	high_gap_count  int
//	confidence      double
type ReviewRules struct {
	byStage map[blackboard.Stage][]compiledRule
}

type compiledRule struct {
	rule    config.ReviewRule
	program cel.Program
}

func reviewEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("metrics", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("labels", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("gap_count", cel.IntType),
		cel.Variable("high_gap_count", cel.IntType),
		cel.Variable("confidence", cel.DoubleType),
	)
}

// CompileReviewRules compiles every rule up front so a bad expression fails at
// startup rather than mid-run.
func CompileReviewRules(rules []config.ReviewRule) (*ReviewRules, error) {
	env, err := reviewEnv()
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %w", err)
	}

	compiled := &ReviewRules{byStage: make(map[blackboard.Stage][]compiledRule)}
	for _, rule := range rules {
		stage := blackboard.Stage(rule.Stage)
		if err := stage.Validate(); err != nil {
			return nil, fmt.Errorf("review rule '%s': %w", rule.ID, err)
		}
		if rule.Severity == "" {
			rule.Severity = string(blackboard.SeverityMedium)
		}
		if err := blackboard.Severity(rule.Severity).Validate(); err != nil {
			return nil, fmt.Errorf("review rule '%s': %w", rule.ID, err)
		}

		ast, issues := env.Compile(rule.When)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("review rule '%s': error compiling CEL expression: %w", rule.ID, issues.Err())
		}
		if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("review rule '%s': expression must evaluate to bool, got %s", rule.ID, out)
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("review rule '%s': error creating program: %w", rule.ID, err)
		}

		compiled.byStage[stage] = append(compiled.byStage[stage], compiledRule{rule: rule, program: program})
	}
	return compiled, nil
}

// Len returns the number of compiled rules.
func (r *ReviewRules) Len() int {
	n := 0
	for _, rules := range r.byStage {
		n += len(rules)
	}
	return n
}

// Evaluate runs the rules registered for the result's stage, in declaration order.
// A rule whose evaluation fails (for example a metric the stage did not publish) does
// not fire; the failures are returned for logging.
func (r *ReviewRules) Evaluate(result blackboard.StageResult) ([]blackboard.ReviewItem, []error) {
	rules := r.byStage[result.Stage]
	if len(rules) == 0 {
		return nil, nil
	}

	activation := map[string]any{
		"metrics":        result.Metrics,
		"labels":         result.Labels,
		"gap_count":      int64(len(result.DataGaps)),
		"high_gap_count": int64(highGapCount(result.DataGaps)),
		"confidence":     result.Confidence,
	}

	var items []blackboard.ReviewItem
	var errs []error
	for _, cr := range rules {
		out, _, err := cr.program.Eval(activation)
		if err != nil {
			errs = append(errs, fmt.Errorf("review rule '%s': %w", cr.rule.ID, err))
			continue
		}
		fired, err := out.ConvertToNative(reflect.TypeOf(true))
		if err != nil {
			errs = append(errs, fmt.Errorf("review rule '%s': %w", cr.rule.ID, err))
			continue
		}
		if b, ok := fired.(bool); !ok || !b {
			continue
		}

		fields := cr.rule.EditableFields
		if fields == nil {
			fields = []string{}
		}
		items = append(items, blackboard.ReviewItem{
			CheckpointID:    cr.rule.ID,
			Stage:           result.Stage,
			Issue:           cr.rule.Issue,
			EditableFields:  append([]string{}, fields...),
			SuggestedAction: cr.rule.SuggestedAction,
			Severity:        blackboard.Severity(cr.rule.Severity),
		})
	}
	return items, errs
}
