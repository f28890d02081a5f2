package pipeline

import (
	"errors"
	"fmt"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Failure reasons carried in ErrorPayload.Reason.
const (
	ReasonInvalidInput         = "invalid_input"
	ReasonMissingUpstream      = "missing_upstream"
	ReasonInconsistentUpstream = "inconsistent_upstream"
	ReasonInvalidResult        = "invalid_result"
	ReasonComputationFailed    = "computation_failed"
	ReasonPanic                = "panic"
	ReasonWriterBusy           = "writer_busy"
	ReasonCancelled            = "cancelled"
)

// StageComputationError aborts a run. The failing stage publishes nothing. Stage is
// empty when the run failed before any stage started.
type StageComputationError struct {
	Stage  blackboard.Stage
	Reason string
	Err    error
}

func (e *StageComputationError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("run failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("stage %s failed (%s): %v", e.Stage, e.Reason, e.Err)
}

func (e *StageComputationError) Unwrap() error { return e.Err }

// Payload converts the error to the structured form exposed to callers.
func (e *StageComputationError) Payload() *blackboard.ErrorPayload {
	return &blackboard.ErrorPayload{Stage: e.Stage, Reason: e.Reason, Message: e.Err.Error()}
}

// IsStageComputationError checks if an error is a StageComputationError.
func IsStageComputationError(err error) bool {
	var sce *StageComputationError
	return errors.As(err, &sce)
}

func stageErrorf(stage blackboard.Stage, reason, format string, args ...any) *StageComputationError {
	return &StageComputationError{Stage: stage, Reason: reason, Err: fmt.Errorf(format, args...)}
}

// asStageError wraps any error returned by a stage so the run always fails with a
// StageComputationError.
func asStageError(stage blackboard.Stage, err error) *StageComputationError {
	var sce *StageComputationError
	if errors.As(err, &sce) {
		return sce
	}
	return &StageComputationError{Stage: stage, Reason: ReasonComputationFailed, Err: err}
}
