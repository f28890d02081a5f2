package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dyluth/parkplan/internal/registry"
	"github.com/dyluth/parkplan/pkg/blackboard"
)

// RunBatch executes independent runs concurrently, at most limit at a time (limit <= 0
// means unbounded). Each run is recorded in reg. Outcomes are returned in request order.
//
// A run ID repeated within the batch fails with reason writer_busy for every occurrence
// after the first. Runs not yet started when ctx is cancelled fail with reason
// cancelled; runs already started complete normally.
func RunBatch(ctx context.Context, engine *Engine, reg *registry.Registry, requests []Request, limit int) []Outcome {
	outcomes := make([]Outcome, len(requests))
	if limit <= 0 {
		limit = -1
	}

	seen := make(map[string]bool, len(requests))
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range requests {
		i := i
		req := requests[i]
		if req.RunID == "" {
			req.RunID = uuid.New().String()
		}
		if seen[req.RunID] {
			outcomes[i] = rejected(req, ReasonWriterBusy, fmt.Errorf("run %s appears earlier in the batch", req.RunID))
			continue
		}
		seen[req.RunID] = true

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = rejected(req, ReasonCancelled, err)
				return nil
			}
			outcomes[i] = engine.RunRecorded(ctx, reg, req)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// rejected is the outcome of a run that never started.
func rejected(req Request, reason string, err error) Outcome {
	return Outcome{
		RunID:  req.RunID,
		Status: blackboard.RunStatusFailed,
		State:  blackboard.NewState(req.RunID, req.Selection, req.Scenario),
		Error:  &blackboard.ErrorPayload{Reason: reason, Message: err.Error()},
	}
}
