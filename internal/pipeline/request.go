package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Request starts one run. An empty RunID is replaced by a fresh UUID.
type Request struct {
	RunID     string               `yaml:"run_id,omitempty"`
	Selection blackboard.Selection `yaml:"selection"`
	Scenario  blackboard.Scenario  `yaml:"scenario"`

	// Observers receive this run's updates in addition to the engine's own.
	Observers []Observer `yaml:"-"`
}

// Validate checks the structural preconditions of the input.
func (r *Request) Validate() error {
	if err := r.Selection.Validate(); err != nil {
		return fmt.Errorf("invalid selection: %w", err)
	}
	if err := r.Scenario.Validate(); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	return nil
}

// LoadRequests reads run inputs from a YAML file. The file holds either a single
// request or a list of them under `runs:`.
func LoadRequests(path string) ([]Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var batch struct {
		Runs []Request `yaml:"runs"`
	}
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(batch.Runs) > 0 {
		return batch.Runs, nil
	}

	var single Request
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if single.Scenario.ScenarioID == "" && single.Selection.RegionID == "" {
		return nil, fmt.Errorf("input %s contains no run", path)
	}
	return []Request{single}, nil
}
