// Package timeutil provides calendar helpers for the monthly reward cycle.
// All period math is done in UTC so that the same wall-clock instant
// resolves to the same reward period on every instance.
package timeutil

import (
	"fmt"
	"time"
)

// Format constants used across the service.
const (
	// DateFormat is the standard date format (ISO 8601).
	DateFormat = "2006-01-02"

	// DateTimeFormat is the standard date-time format.
	DateTimeFormat = "2006-01-02 15:04:05"

	// PeriodFormat is the compact year-month key used in cache keys
	// and log fields, e.g. "2025-07".
	PeriodFormat = "2006-01"
)

// Period identifies one reward month.
type Period struct {
	Month int // 1..12
	Year  int
}

// NewPeriod creates a Period, validating the month range.
func NewPeriod(month, year int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("invalid month: %d", month)
	}
	if year < 2000 || year > 2200 {
		return Period{}, fmt.Errorf("invalid year: %d", year)
	}
	return Period{Month: month, Year: year}, nil
}

// PeriodOf returns the period containing t (in UTC).
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Month: int(t.Month()), Year: t.Year()}
}

// PreviousPeriod returns the reward period for "last month" relative to t.
// January rolls back to December of the previous year.
func PreviousPeriod(t time.Time) Period {
	p := PeriodOf(t)
	return p.Previous()
}

// Previous returns the period one month before p.
func (p Period) Previous() Period {
	if p.Month == 1 {
		return Period{Month: 12, Year: p.Year - 1}
	}
	return Period{Month: p.Month - 1, Year: p.Year}
}

// Next returns the period one month after p.
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Month: 1, Year: p.Year + 1}
	}
	return Period{Month: p.Month + 1, Year: p.Year}
}

// Start returns the first instant of the period (UTC).
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last instant of the period (UTC).
func (p Period) End() time.Time {
	return p.Next().Start().Add(-time.Nanosecond)
}

// Contains reports whether t falls within the period.
func (p Period) Contains(t time.Time) bool {
	return PeriodOf(t) == p
}

// Key returns the compact "YYYY-MM" key for the period.
func (p Period) Key() string {
	return p.Start().Format(PeriodFormat)
}

// String implements fmt.Stringer.
func (p Period) String() string {
	return fmt.Sprintf("%s %d", p.Start().Month().String(), p.Year)
}

// IsValid reports whether the period holds a real calendar month.
func (p Period) IsValid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year >= 2000 && p.Year <= 2200
}

// StartOfMonth returns the beginning of the month for the given time (UTC).
func StartOfMonth(t time.Time) time.Time {
	return PeriodOf(t).Start()
}

// EndOfMonth returns the end of the month for the given time (UTC).
func EndOfMonth(t time.Time) time.Time {
	return PeriodOf(t).End()
}

// DaysInMonth returns the number of days in the period's month.
func DaysInMonth(p Period) int {
	return p.End().Day()
}

// FormatDuration formats a duration in a human-readable way for log output.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
