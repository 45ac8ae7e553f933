// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekly is a recurring weekday and wall time in a location.
type Weekly struct {
	Day    time.Weekday
	Hour   int
	Minute int
	Loc    *time.Location
}

// Next returns the first occurrence strictly after t.
func (w Weekly) Next(t time.Time) time.Time {
	loc := w.Loc
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)

	days := (int(w.Day) - int(local.Weekday()) + 7) % 7
	candidate := time.Date(local.Year(), local.Month(), local.Day()+days, w.Hour, w.Minute, 0, 0, loc)
	if !candidate.After(local) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+days+7, w.Hour, w.Minute, 0, 0, loc)
	}
	return candidate
}

func (w Weekly) String() string {
	return fmt.Sprintf("%s %02d:%02d", strings.ToLower(w.Day.String()), w.Hour, w.Minute)
}

// ParseWeekly parses a day name and an HH:MM time, e.g. "tuesday", "09:00".
func ParseWeekly(day, hhmm string, loc *time.Location) (Weekly, error) {
	wd, err := ParseWeekday(day)
	if err != nil {
		return Weekly{}, err
	}
	hour, minute, err := ParseHHMM(hhmm)
	if err != nil {
		return Weekly{}, err
	}
	return Weekly{Day: wd, Hour: hour, Minute: minute, Loc: loc}, nil
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

// ParseHHMM parses a 24h "HH:MM" time of day.
func ParseHHMM(s string) (int, int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
