package finance

import (
	"fmt"
	"time"

	"github.com/erp/dues/internal/domain/shared"
)

// Month is a calendar month used to bucket obligations by OccurredOn
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth creates a Month for the given year and month
func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

// MonthOf returns the calendar month containing t (in t's location)
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "YYYY-MM"
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, shared.NewDomainError("INVALID_MONTH", fmt.Sprintf("Month must be formatted as YYYY-MM, got %q", s))
	}
	return MonthOf(t), nil
}

// Start returns the first day of the month at UTC midnight
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first day of the following month; the range is [Start, End)
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

// Contains reports whether the calendar date d falls inside the month
func (m Month) Contains(d time.Time) bool {
	return d.Year() == m.Year && d.Month() == m.Month
}

// IsZero reports whether the month is unset
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// String formats the month as YYYY-MM
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// CalendarDate truncates t to its calendar date at UTC midnight.
// The wall-clock date in t's own location is kept.
func CalendarDate(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
