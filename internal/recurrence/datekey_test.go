package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestDateKeyUsesLocalCalendarDate(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")

	instant := time.Date(2024, time.March, 9, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-10", DateKey(instant, berlin))
	assert.Equal(t, "2024-03-09", DateKey(instant, time.UTC))

	ny := mustLocation(t, "America/New_York")
	assert.Equal(t, "2024-03-09", DateKey(instant, ny))
}

func TestValidateDateKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2024-1-05", false},
		{"2024-01-05T00:00", false},
		{"", false},
		{"20240105", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateDateKey(tt.key)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidDateKey))
		})
	}
}

func TestParseDateKeyReturnsLocalMidnight(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")

	midnight, err := ParseDateKey("2024-07-01", berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 30, 22, 0, 0, 0, time.UTC), midnight.UTC())

	_, err = ParseDateKey("2024-13-01", berlin)
	assert.ErrorIs(t, err, ErrInvalidDateKey)
}

func TestLoadLocationUnknown(t *testing.T) {
	_, err := LoadLocation("Mars/Olympus_Mons")
	assert.ErrorIs(t, err, ErrUnknownTimezone)

	_, err = LoadLocation("")
	assert.ErrorIs(t, err, ErrUnknownTimezone)
}

func TestShiftWallClockRoundTrip(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")

	winter := time.Date(2024, time.January, 9, 19, 0, 0, 0, berlin)
	fake := ShiftWallClock(winter, berlin)
	assert.Equal(t, time.Date(2024, time.January, 9, 19, 0, 0, 0, time.UTC), fake)
	assert.True(t, UnshiftWallClock(fake, berlin).Equal(winter))

	// Same wall clock, half a year later, resolves with the summer offset.
	summer := UnshiftWallClock(fake.AddDate(0, 6, 0), berlin)
	assert.Equal(t, 17, summer.UTC().Hour())
	assert.Equal(t, 19, summer.In(berlin).Hour())
}

func TestNextDayAcrossTransition(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")

	next := NextDay(time.Date(2024, time.March, 30, 12, 0, 0, 0, berlin), berlin)
	assert.Equal(t, time.Date(2024, time.March, 31, 0, 0, 0, 0, berlin), next)
	assert.Equal(t, time.Date(2024, time.March, 30, 23, 0, 0, 0, time.UTC), next.UTC())

	// The day of the spring transition is 23 hours long.
	after := NextDay(next, berlin)
	assert.Equal(t, 23*time.Hour, after.Sub(next))
	assert.Equal(t, next, StartOfDay(next.Add(5*time.Hour), berlin))
}
