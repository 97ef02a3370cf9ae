package cron_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/goto/pipewatch/internal/lib/cron"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	assert.NoError(t, err)
	return parsed
}

func TestScheduleSpec(t *testing.T) {
	t.Run("ParseCronSchedule", func(t *testing.T) {
		t.Run("accepts five field expressions and descriptors", func(t *testing.T) {
			for _, expr := range []string{"*/15 * * * *", "0 2 1,15 * *", "@hourly", "@daily"} {
				spec, err := cron.ParseCronSchedule(expr)
				assert.NoError(t, err, expr)
				assert.Equal(t, expr, spec.String())
			}
		})
		t.Run("rejects expressions with seconds", func(t *testing.T) {
			spec, err := cron.ParseCronSchedule("0 0 2 * * *")
			assert.Error(t, err)
			assert.Nil(t, spec)
		})
		t.Run("rejects out of range fields", func(t *testing.T) {
			_, err := cron.ParseCronSchedule("0 25 * * *")
			assert.Error(t, err)
		})
	})
	t.Run("Next", func(t *testing.T) {
		t.Run("returns the slot strictly after the given time", func(t *testing.T) {
			spec, err := cron.ParseCronSchedule("0 * * * *")
			assert.NoError(t, err)

			onSlot := mustTime(t, "2024-05-01T10:00:00Z")
			assert.True(t, mustTime(t, "2024-05-01T11:00:00Z").Equal(spec.Next(onSlot)))
		})
		t.Run("skips to the next listed day", func(t *testing.T) {
			spec, err := cron.ParseCronSchedule("30 6 1,15 * *")
			assert.NoError(t, err)

			next := spec.Next(mustTime(t, "2024-05-01T07:00:00Z"))
			assert.True(t, mustTime(t, "2024-05-15T06:30:00Z").Equal(next), "got %s", next)
		})
	})
	t.Run("ParseCronScheduleInLocation", func(t *testing.T) {
		t.Run("should evaluate the expression in the given timezone", func(t *testing.T) {
			scheduleSpec, err := cron.ParseCronScheduleInLocation("0 2 * * *", "Asia/Jakarta")
			assert.NoError(t, err)

			next := scheduleSpec.Next(mustTime(t, "2024-05-01T00:00:00Z"))
			assert.True(t, mustTime(t, "2024-05-01T19:00:00Z").Equal(next), "got %s", next)
			assert.Equal(t, "0 2 * * *", scheduleSpec.String())
		})
		t.Run("keeps an explicit CRON_TZ prefix", func(t *testing.T) {
			scheduleSpec, err := cron.ParseCronScheduleInLocation("CRON_TZ=UTC 0 2 * * *", "Asia/Jakarta")
			assert.NoError(t, err)

			next := scheduleSpec.Next(mustTime(t, "2024-05-01T00:00:00Z"))
			assert.True(t, mustTime(t, "2024-05-01T02:00:00Z").Equal(next), "got %s", next)
		})
		t.Run("uses the location of the given time when timezone is empty", func(t *testing.T) {
			scheduleSpec, err := cron.ParseCronScheduleInLocation("0 2 * * *", "")
			assert.NoError(t, err)

			next := scheduleSpec.Next(mustTime(t, "2024-05-01T03:00:00Z"))
			assert.True(t, mustTime(t, "2024-05-02T02:00:00Z").Equal(next), "got %s", next)
		})
		t.Run("should return error for unknown timezone", func(t *testing.T) {
			scheduleSpec, err := cron.ParseCronScheduleInLocation("0 2 * * *", "Mars/Olympus")
			assert.Error(t, err)
			assert.Nil(t, scheduleSpec)
		})
		t.Run("should return error for invalid expression", func(t *testing.T) {
			scheduleSpec, err := cron.ParseCronScheduleInLocation("61 * * * *", "UTC")
			assert.Error(t, err)
			assert.Nil(t, scheduleSpec)
		})
	})
}
