// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBusinessDay(t *testing.T) {
	// 2026-01-12 is a Monday.
	monday := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	assert.True(t, IsBusinessDay(monday))
	assert.True(t, IsBusinessDay(monday.AddDate(0, 0, 4)), "friday")
	assert.False(t, IsBusinessDay(monday.AddDate(0, 0, 5)), "saturday")
	assert.False(t, IsBusinessDay(monday.AddDate(0, 0, 6)), "sunday")
}

func TestNextBusinessDay(t *testing.T) {
	friday := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Weekday(time.Friday), friday.Weekday())

	next := NextBusinessDay(friday)
	assert.Equal(t, time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), next, "friday advances to monday")

	next = NextBusinessDay(next)
	assert.Equal(t, time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), next)
}

func TestAddBusinessDays(t *testing.T) {
	thursday := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Weekday(time.Thursday), thursday.Weekday())

	assert.Equal(t, thursday, AddBusinessDays(thursday, 0))
	assert.Equal(t, time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC), AddBusinessDays(thursday, 1))
	// Two business days from Thursday crosses the weekend.
	assert.Equal(t, time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), AddBusinessDays(thursday, 2))
	assert.Equal(t, thursday, AddBusinessDays(thursday, -1))
}

func TestStartOfDayAndAt(t *testing.T) {
	dublin, err := time.LoadLocation("Europe/Dublin")
	require.NoError(t, err)

	instant := time.Date(2026, 6, 15, 13, 45, 30, 0, time.UTC)
	day := StartOfDay(instant, dublin)
	assert.Equal(t, 0, day.Hour())
	assert.Equal(t, dublin, day.Location())

	slot := At(day, 11, 0)
	assert.Equal(t, 11, slot.Hour())
	assert.Equal(t, 0, slot.Minute())
	assert.Equal(t, dublin, slot.Location())
}
