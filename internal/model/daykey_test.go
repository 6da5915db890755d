package model

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayKeyArithmeticAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2024-03-10 is 23 hours long in New York.
	before := DayKeyOf(time.Date(2024, 3, 9, 22, 0, 0, 0, loc))
	after := DayKeyOf(time.Date(2024, 3, 11, 1, 0, 0, 0, loc))

	n, err := DaysBetween(before, after)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, DayKey("2024-03-10"), before.AddDays(1))
	assert.Equal(t, DayKey("2024-02-29"), DayKey("2024-03-01").AddDays(-1))
}

func TestDayKeyOfUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	instant := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, DayKey("2024-05-01"), DayKeyOf(instant))
	assert.Equal(t, DayKey("2024-05-02"), DayKeyOf(instant.In(loc)))
}

func TestDayKeyValidation(t *testing.T) {
	assert.True(t, DayKey("2024-12-31").Valid())
	assert.False(t, DayKey("2024-13-01").Valid())
	assert.False(t, DayKey("").Valid())

	_, err := DaysBetween("bogus", "2024-01-01")
	assert.Error(t, err)
	assert.Equal(t, DayKey("bogus"), DayKey("bogus").AddDays(3))
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("X", -5*3600)

	d, err := ParseDate("2024-06-01", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, loc), d)

	d, err = ParseDate("2024-06-01T10:30:00Z", loc)
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)))

	_, err = ParseDate("", loc)
	assert.Error(t, err)
	_, err = ParseDate("next tuesday", loc)
	assert.Error(t, err)
}

func TestParseCategoryAndPriority(t *testing.T) {
	c, err := ParseCategory("seminar")
	require.NoError(t, err)
	assert.Equal(t, CategorySeminar, c)

	_, err = ParseCategory("Retreat")
	assert.Error(t, err)

	p, err := ParsePriority(" high ")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, p)
	assert.Less(t, PriorityHigh.Rank(), PriorityLow.Rank())
	assert.Equal(t, 4, Priority("urgent").Rank())
}
