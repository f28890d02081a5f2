package filter

import (
	"path/filepath"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Criteria defines filtering criteria for run events.
// All filters are ANDed together - an event must match ALL criteria to pass.
type Criteria struct {
	StageGlob  string // Glob pattern for the stage name, empty = no filter
	Status     string // Exact match on the event status, empty = no filter
	FailedOnly bool   // Only events of failed runs
}

// Matches returns true if the event matches all filter criteria.
// Run-level events (no stage) pass a stage glob only when it matches "run".
func (c *Criteria) Matches(e *blackboard.RunEvent) bool {
	if c.StageGlob != "" {
		stage := string(e.Stage)
		if stage == "" {
			stage = "run"
		}
		matched, err := filepath.Match(c.StageGlob, stage)
		if err != nil || !matched {
			return false
		}
	}

	if c.Status != "" && e.Status != c.Status {
		return false
	}

	if c.FailedOnly && e.RunStatus != blackboard.RunStatusFailed {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.StageGlob != "" || c.Status != "" || c.FailedOnly
}

// Validate reports a malformed stage glob.
func (c *Criteria) Validate() error {
	if c.StageGlob == "" {
		return nil
	}
	_, err := filepath.Match(c.StageGlob, "")
	return err
}
