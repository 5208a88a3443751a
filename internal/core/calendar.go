package core

import (
	"fmt"
	"time"
)

// DefaultTimezone is the reporting timezone the balance dates are expressed in.
const DefaultTimezone = "America/New_York"

// Clock provides time for domain services.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Useful for replays and tests.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// LoadLocation resolves a reporting timezone name, defaulting to DefaultTimezone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid reporting timezone %q: %w", name, err)
	}
	return loc, nil
}

// BusinessDate returns local midnight of t's calendar day in loc.
func BusinessDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// SummaryWindow returns the half-open range [start, end) covering yesterday and
// today in loc, relative to asOf. A summary record stamped anywhere inside the range
// is rewritten rather than duplicated.
func SummaryWindow(asOf time.Time, loc *time.Location) (start, end time.Time) {
	today := BusinessDate(asOf, loc)
	return today.AddDate(0, 0, -1), today.AddDate(0, 0, 1)
}
