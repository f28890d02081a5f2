package timespec

import (
	"fmt"
	"time"
)

// Deadline parses a time specification into an absolute deadline.
// Supports two formats:
//   - Go duration format: "10m", "1h30m", "45s"
//   - RFC3339 timestamps: "2025-10-29T13:00:00Z"
//
// Durations are relative to now (added to the current time), so "10m" means
// "ten minutes from now".
func Deadline(spec string, now time.Time) (time.Time, error) {
	if spec == "" {
		return time.Time{}, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		if !t.After(now) {
			return time.Time{}, fmt.Errorf("deadline %s is in the past", spec)
		}
		return t, nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return time.Time{}, fmt.Errorf("duration must be positive: %s", spec)
		}
		return now.Add(d), nil
	}

	return time.Time{}, fmt.Errorf("invalid time specification: %s (use duration like '10m' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}
