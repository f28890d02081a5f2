// Package watch streams run events to a terminal or a JSONL consumer.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/parkplan/internal/filter"
	"github.com/dyluth/parkplan/pkg/blackboard"
)

// OutputFormat selects how events are rendered.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSON    OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// Options controls Stream.
type Options struct {
	Format OutputFormat
	// UntilTerminal stops after the first event carrying a terminal run status.
	UntilTerminal bool
	// Filter drops non-matching events from the output. Terminal events still end
	// the stream when UntilTerminal is set.
	Filter *filter.Criteria
	// OnError receives malformed-message errors; nil ignores them.
	OnError func(error)
}

// Stream writes events from the subscription until ctx is done, the subscription
// closes, or (with UntilTerminal) a run finishes. It returns the number of events
// written.
func Stream(ctx context.Context, sub *blackboard.Subscription, w io.Writer, opts Options) (int, error) {
	count := 0
	errs := sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return count, nil

		case event, ok := <-sub.Events():
			if !ok {
				return count, nil
			}
			if opts.Filter == nil || opts.Filter.Matches(event) {
				if err := WriteEvent(w, event, opts.Format); err != nil {
					return count, err
				}
				count++
			}
			if opts.UntilTerminal && event.RunStatus.IsTerminal() {
				return count, nil
			}

		case err, ok := <-errs:
			if !ok {
				// Closed together with the events channel; stop selecting on it.
				errs = nil
				continue
			}
			if opts.OnError != nil {
				opts.OnError(err)
			}
		}
	}
}

// WriteEvent renders a single event.
func WriteEvent(w io.Writer, e *blackboard.RunEvent, format OutputFormat) error {
	if format == OutputFormatJSON {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal run event: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	_, err := fmt.Fprintf(w, "[%s] %s %s\n", formatTime(e.TimestampMs), shortID(e.RunID), describe(e))
	return err
}

func describe(e *blackboard.RunEvent) string {
	var msg string
	switch {
	case e.Stage == "" && e.RunStatus == blackboard.RunStatusRunning:
		msg = "▶ run started"
	case e.Stage == "" && e.RunStatus == blackboard.RunStatusCompleted:
		msg = "✓ run completed"
	case e.RunStatus == blackboard.RunStatusFailed:
		stage := string(e.Stage)
		if stage == "" {
			stage = "input"
		}
		msg = fmt.Sprintf("✗ %s failed", stage)
	default:
		msg = fmt.Sprintf("• %s %s", e.Stage, e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(ms int64) string {
	if ms == 0 {
		return "--:--:--"
	}
	return time.UnixMilli(ms).Format("15:04:05")
}
