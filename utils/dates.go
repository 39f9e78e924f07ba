// utils/dates.go
package utils

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Clock returns the current time; services take one so tests can pin it.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// ParseDate reads YYYY-MM-DD as a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be a date in YYYY-MM-DD format")
	}
	return t.UTC(), nil
}

// ParseClock validates an HH:MM wall clock time and returns it normalised.
func ParseClock(s string) (string, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return "", fmt.Errorf("must be a time in HH:MM format")
	}
	return t.Format(ClockLayout), nil
}
