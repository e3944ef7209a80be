package window

import (
	"testing"
	"time"

	"github.com/chefshef/courtsched/internal/internaltypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	require.NoError(t, err)
	return loc
}

func TestOpensAt(t *testing.T) {
	loc := mustLoc(t)

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"same month", "2026-06-20 19:00", "2026-06-13 19:00"},
		{"crosses month boundary", "2026-02-06 19:00", "2026-01-30 19:00"},
		{"crosses into february", "2026-03-03 09:00", "2026-02-24 09:00"},
		{"crosses year boundary", "2026-01-03 08:00", "2025-12-27 08:00"},
		{"spring DST transition keeps wall clock", "2026-03-12 19:00", "2026-03-05 19:00"},
		{"fall DST transition keeps wall clock", "2026-11-05 19:00", "2026-10-29 19:00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target, err := time.ParseInLocation("2006-01-02 15:04", tc.target, loc)
			require.NoError(t, err)
			want, err := time.ParseInLocation("2006-01-02 15:04", tc.want, loc)
			require.NoError(t, err)

			got := OpensAt(target, 7)
			assert.True(t, got.Equal(want), "got %s, want %s", got, want)
		})
	}
}

func TestIsOpenMonotonic(t *testing.T) {
	loc := mustLoc(t)
	opensAt := time.Date(2026, 2, 6, 19, 0, 0, 0, loc)

	assert.False(t, IsOpen(opensAt.Add(-time.Second), opensAt))
	assert.True(t, IsOpen(opensAt, opensAt), "boundary resolves to open")

	// once open, stays open for all later instants
	for _, d := range []time.Duration{time.Second, time.Hour, 24 * time.Hour} {
		assert.True(t, IsOpen(opensAt.Add(d), opensAt))
	}
}

func TestIsOpenComparesInstantsNotDates(t *testing.T) {
	loc := mustLoc(t)
	// just before midnight vs. just after: different calendar dates, but the
	// window opened a minute ago
	opensAt := time.Date(2026, 2, 5, 23, 59, 0, 0, loc)
	now := time.Date(2026, 2, 6, 0, 0, 30, 0, loc)
	assert.True(t, IsOpen(now, opensAt))
}

func TestParseTarget(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, loc)

	t.Run("valid", func(t *testing.T) {
		got, err := ParseTarget("2026-02-06", "19:00", loc, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 2, 6, 19, 0, 0, 0, loc), got)
	})

	bad := []struct {
		name        string
		date, clock string
	}{
		{"garbage date", "02/06/2026", "19:00"},
		{"garbage time", "2026-02-06", "7pm"},
		{"impossible date", "2026-02-31", "19:00"},
		{"empty", "", ""},
		{"in the past", "2026-01-01", "19:00"},
		{"exactly now", "2026-01-15", "12:00"},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTarget(tc.date, tc.clock, loc, now)
			require.ErrorIs(t, err, internaltypes.ErrInvalidInput)
		})
	}
}
