// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tuesday
var start = time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)

func TestWeeklyNext(t *testing.T) {
	tests := []struct {
		name string
		w    Weekly
		from time.Time
		want time.Time
	}{
		{"later this week", Weekly{Day: time.Friday, Hour: 9}, start, time.Date(2025, 6, 6, 9, 0, 0, 0, time.UTC)},
		{"earlier today rolls a week", Weekly{Day: time.Tuesday, Hour: 9}, start, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)},
		{"exactly now rolls a week", Weekly{Day: time.Tuesday, Hour: 10}, start, time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)},
		{"later today", Weekly{Day: time.Tuesday, Hour: 18, Minute: 30}, start, time.Date(2025, 6, 3, 18, 30, 0, 0, time.UTC)},
		{"across month end", Weekly{Day: time.Monday, Hour: 8}, time.Date(2025, 6, 30, 9, 0, 0, 0, time.UTC), time.Date(2025, 7, 7, 8, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.w.Next(tt.from)
			assert.True(t, got.Equal(tt.want), "Next(%s) = %s, want %s", tt.from, got, tt.want)
		})
	}
}

func TestWeeklyNextUsesLocation(t *testing.T) {
	pdt := time.FixedZone("PDT", -7*60*60)
	w := Weekly{Day: time.Tuesday, Hour: 9, Loc: pdt}

	// 10:00 UTC is 03:00 PDT, so 09:00 PDT today is still ahead
	got := w.Next(start)
	assert.True(t, got.Equal(time.Date(2025, 6, 3, 16, 0, 0, 0, time.UTC)), "got %s", got)
}

func TestParseWeekly(t *testing.T) {
	w, err := ParseWeekly("Tue", "09:05", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Tuesday, w.Day)
	assert.Equal(t, 9, w.Hour)
	assert.Equal(t, 5, w.Minute)
	assert.Equal(t, "tuesday 09:05", w.String())

	w, err = ParseWeekly(" friday ", "17:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Friday, w.Day)

	for _, tc := range []struct{ day, hhmm string }{
		{"funday", "09:00"},
		{"mon", "24:00"},
		{"mon", "09:60"},
		{"mon", "9am"},
		{"mon", ""},
	} {
		_, err := ParseWeekly(tc.day, tc.hhmm, time.UTC)
		assert.Error(t, err, "ParseWeekly(%q, %q)", tc.day, tc.hhmm)
	}
}

func TestFakeAfterFuncImmediate(t *testing.T) {
	c := NewFake(start)
	fired := false
	c.AfterFunc(0, func() { fired = true })

	assert.True(t, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	c := NewFake(start)
	var order []string
	var seen []time.Time

	c.AfterFunc(2*time.Hour, func() { order = append(order, "late"); seen = append(seen, c.Now()) })
	c.AfterFunc(time.Hour, func() { order = append(order, "early"); seen = append(seen, c.Now()) })
	stopped := c.AfterFunc(90*time.Minute, func() { order = append(order, "stopped") })
	require.Equal(t, 3, c.Pending())

	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	c.Advance(30 * time.Minute)
	assert.Empty(t, order)

	c.Advance(2 * time.Hour)
	assert.Equal(t, []string{"early", "late"}, order)
	assert.Equal(t, []time.Time{start.Add(time.Hour), start.Add(2 * time.Hour)}, seen)
	assert.Equal(t, start.Add(150*time.Minute), c.Now())
	assert.Equal(t, 0, c.Pending())
}

func TestFakeAdvanceRunsRearmedTimers(t *testing.T) {
	c := NewFake(start)
	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(time.Hour, tick)
	}
	c.AfterFunc(time.Hour, tick)

	c.Advance(3*time.Hour + time.Minute)
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, c.Pending())
}
