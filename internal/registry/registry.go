// Package registry keeps the in-process record of planning runs. Each run has at most
// one writer at a time; readers see the last published snapshot without locking the
// writer.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dyluth/parkplan/pkg/blackboard"
)

// Snapshot is an immutable view of a run. The State it carries is itself
// copy-on-write, so a snapshot stays valid after the writer moves on.
type Snapshot struct {
	RunID       string                   `json:"run_id"`
	Status      blackboard.RunStatus     `json:"status"`
	State       *blackboard.State        `json:"state,omitempty"`
	Error       *blackboard.ErrorPayload `json:"error,omitempty"`
	CreatedAtMs int64                    `json:"created_at_ms"`
	UpdatedAtMs int64                    `json:"updated_at_ms"`
}

// NotFoundError is returned when a run ID is not registered.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("run %s not found", e.RunID)
}

// WriterBusyError is returned when a run already has an active writer.
type WriterBusyError struct {
	RunID string
}

func (e *WriterBusyError) Error() string {
	return fmt.Sprintf("run %s already has an active writer", e.RunID)
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsWriterBusy checks if an error is a WriterBusyError.
func IsWriterBusy(err error) bool {
	var wb *WriterBusyError
	return errors.As(err, &wb)
}

type entry struct {
	writer    sync.Mutex
	snapshot  atomic.Pointer[Snapshot]
	createdAt int64
}

// Registry maps run IDs to their latest snapshot. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{runs: make(map[string]*entry)}
}

// Acquire registers the run if needed and returns its exclusive writer.
// Returns WriterBusyError if another writer holds the run.
func (r *Registry) Acquire(runID string) (*Writer, error) {
	if runID == "" {
		return nil, fmt.Errorf("run ID cannot be empty")
	}

	r.mu.Lock()
	e, ok := r.runs[runID]
	if !ok {
		now := time.Now().UnixMilli()
		e = &entry{createdAt: now}
		e.snapshot.Store(&Snapshot{
			RunID:       runID,
			Status:      blackboard.RunStatusPending,
			CreatedAtMs: now,
			UpdatedAtMs: now,
		})
		r.runs[runID] = e
	}
	r.mu.Unlock()

	if !e.writer.TryLock() {
		return nil, &WriterBusyError{RunID: runID}
	}
	return &Writer{runID: runID, entry: e}, nil
}

// Get returns the latest snapshot of a run.
func (r *Registry) Get(runID string) (Snapshot, error) {
	r.mu.RLock()
	e, ok := r.runs[runID]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, &NotFoundError{RunID: runID}
	}
	return *e.snapshot.Load(), nil
}

// List returns the latest snapshot of every run, oldest first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.runs))
	for _, e := range r.runs {
		out = append(out, *e.snapshot.Load())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtMs != out[j].CreatedAtMs {
			return out[i].CreatedAtMs < out[j].CreatedAtMs
		}
		return out[i].RunID < out[j].RunID
	})
	return out
}

// Len returns the number of registered runs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}

// Writer is the exclusive write handle of one run. It must be released.
type Writer struct {
	runID    string
	entry    *entry
	released atomic.Bool
}

// RunID returns the run this writer owns.
func (w *Writer) RunID() string { return w.runID }

// Publish replaces the run's snapshot. Readers see either the old or the new
// snapshot, never a mix.
func (w *Writer) Publish(status blackboard.RunStatus, state *blackboard.State, payload *blackboard.ErrorPayload) error {
	if w.released.Load() {
		return fmt.Errorf("writer for run %s already released", w.runID)
	}
	if err := status.Validate(); err != nil {
		return err
	}
	w.entry.snapshot.Store(&Snapshot{
		RunID:       w.runID,
		Status:      status,
		State:       state,
		Error:       payload,
		CreatedAtMs: w.entry.createdAt,
		UpdatedAtMs: time.Now().UnixMilli(),
	})
	return nil
}

// Release gives up the writer. Safe to call multiple times.
func (w *Writer) Release() {
	if w.released.CompareAndSwap(false, true) {
		w.entry.writer.Unlock()
	}
}
