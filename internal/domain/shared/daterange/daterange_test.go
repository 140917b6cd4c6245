package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"getmyguide/internal/domain/shared/errs"
)

func day(value string) time.Time {
	t, err := time.Parse(DayLayout, value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDaysIsInclusiveAndAscending(t *testing.T) {
	dr, err := Parse("2025-02-27", "2025-03-02")
	require.NoError(t, err)

	days := dr.Days()
	require.Len(t, days, 4)
	assert.Equal(t, day("2025-02-27"), days[0])
	assert.Equal(t, day("2025-02-28"), days[1])
	assert.Equal(t, day("2025-03-01"), days[2])
	assert.Equal(t, day("2025-03-02"), days[3])
	assert.Equal(t, 4, dr.Len())
}

func TestSingleDayRange(t *testing.T) {
	dr, err := Parse("2025-06-10", "2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day("2025-06-10")}, dr.Days())
}

func TestNewNormalisesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	start := time.Date(2025, 6, 10, 23, 30, 0, 0, time.UTC)
	end := time.Date(2025, 6, 12, 4, 0, 0, 0, loc)

	dr, err := New(start, end)
	require.NoError(t, err)
	assert.Equal(t, day("2025-06-10"), dr.Start)
	assert.Equal(t, day("2025-06-11"), dr.End)
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
		want       error
	}{
		{name: "end before start", start: "2025-06-10", end: "2025-06-09", want: ErrInvalidRange},
		{name: "missing", start: "", end: "2025-06-09", want: ErrMissingDate},
		{name: "bad format", start: "10/06/2025", end: "2025-06-09", want: ErrInvalidDay},
		{name: "too long", start: "2025-01-01", end: "2026-06-01", want: ErrSpanTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.start, tc.end)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		})
	}
}

func TestOverlaps(t *testing.T) {
	base, _ := Parse("2025-06-10", "2025-06-12")
	cases := []struct {
		name       string
		start, end string
		want       bool
	}{
		{name: "shared last day", start: "2025-06-12", end: "2025-06-14", want: true},
		{name: "inside", start: "2025-06-11", end: "2025-06-11", want: true},
		{name: "adjacent after", start: "2025-06-13", end: "2025-06-15", want: false},
		{name: "adjacent before", start: "2025-06-08", end: "2025-06-09", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			other, err := Parse(tc.start, tc.end)
			require.NoError(t, err)
			assert.Equal(t, tc.want, base.Overlaps(other))
			assert.Equal(t, tc.want, other.Overlaps(base))
		})
	}
}

func TestContainsDay(t *testing.T) {
	dr, _ := Parse("2025-06-10", "2025-06-12")
	assert.True(t, dr.ContainsDay(time.Date(2025, 6, 12, 18, 0, 0, 0, time.UTC)))
	assert.False(t, dr.ContainsDay(day("2025-06-13")))
}
