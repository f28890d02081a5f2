package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadline(t *testing.T) {
	now := time.Date(2025, 10, 29, 12, 0, 0, 0, time.UTC)

	t.Run("duration is added to now", func(t *testing.T) {
		got, err := Deadline("1h30m", now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(90*time.Minute), got)
	})

	t.Run("RFC3339 timestamp", func(t *testing.T) {
		got, err := Deadline("2025-10-29T13:00:00Z", now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour), got.UTC())
	})

	errorCases := map[string]string{
		"":                     "empty time specification",
		"yesterday":            "invalid time specification",
		"-5m":                  "must be positive",
		"2025-10-29T11:00:00Z": "in the past",
	}
	for spec, want := range errorCases {
		t.Run("rejects "+spec, func(t *testing.T) {
			_, err := Deadline(spec, now)
			require.Error(t, err)
			assert.Contains(t, err.Error(), want)
		})
	}
}
