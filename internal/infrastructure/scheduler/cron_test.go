package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDailySpec(t *testing.T) {
	t.Parallel()

	h, m, err := parseDailySpec("0 6 * * *")
	require.NoError(t, err)
	assert.Equal(t, 6, h)
	assert.Equal(t, 0, m)

	h, m, err = parseDailySpec("30 23 * * *")
	require.NoError(t, err)
	assert.Equal(t, 23, h)
	assert.Equal(t, 30, m)

	_, _, err = parseDailySpec("0 6 * * 1")
	assert.Error(t, err, "weekly schedules are not supported")

	_, _, err = parseDailySpec("*/5 * * * *")
	assert.Error(t, err)

	_, _, err = parseDailySpec("not a cron line")
	assert.Error(t, err)
}

func TestNextRun(t *testing.T) {
	t.Parallel()

	c := NewCronScheduler("0 6 * * *", time.UTC)

	before := time.Date(2026, time.August, 30, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.August, 30, 6, 0, 0, 0, time.UTC), c.nextRun(before))

	after := time.Date(2026, time.August, 30, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.August, 31, 6, 0, 0, 0, time.UTC), c.nextRun(after))

	exactly := time.Date(2026, time.August, 30, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.August, 31, 6, 0, 0, 0, time.UTC), c.nextRun(exactly))
}

func TestUnsupportedSpecFallsBack(t *testing.T) {
	t.Parallel()

	c := NewCronScheduler("every fortnight", time.UTC)
	assert.Equal(t, 6, c.hour)
	assert.Equal(t, 0, c.minute)
}
