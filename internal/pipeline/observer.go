package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/parkplan/internal/logging"
	"github.com/dyluth/parkplan/internal/registry"
	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Update is handed to observers on every run and stage transition.
type Update struct {
	RunID     string
	Stage     blackboard.Stage // empty for run-level transitions
	Status    string           // "started", "completed" or "failed"
	RunStatus blackboard.RunStatus
	Detail    string
	State     *blackboard.State
	Error     *blackboard.ErrorPayload
}

// Observer is notified synchronously as a run progresses. Observers must not block
// for long and cannot fail a run.
type Observer interface {
	Observe(ctx context.Context, u Update)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, u Update)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, u Update) { f(ctx, u) }

// RunEventPublisher is implemented by *blackboard.Client.
type RunEventPublisher interface {
	PublishRunEvent(ctx context.Context, e *blackboard.RunEvent) error
}

// PublishEvents forwards every update as a RunEvent. Publish failures are logged and
// otherwise ignored.
func PublishEvents(publisher RunEventPublisher, logger *zap.Logger) Observer {
	logger = logging.OrNop(logger)
	return ObserverFunc(func(ctx context.Context, u Update) {
		event := &blackboard.RunEvent{
			RunID:       u.RunID,
			Stage:       u.Stage,
			Status:      u.Status,
			RunStatus:   u.RunStatus,
			Detail:      u.Detail,
			TimestampMs: time.Now().UnixMilli(),
		}
		if err := publisher.PublishRunEvent(ctx, event); err != nil {
			logger.Warn("run_event_publish_failed",
				zap.String("run_id", u.RunID),
				zap.String("stage", string(u.Stage)),
				zap.Error(err))
		}
	})
}

// RecordTo publishes every update as the run's registry snapshot.
func RecordTo(w *registry.Writer) Observer {
	return ObserverFunc(func(ctx context.Context, u Update) {
		_ = w.Publish(u.RunStatus, u.State, u.Error)
	})
}
