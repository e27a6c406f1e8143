package domain

import (
	"fmt"
	"time"
)

// Period identifies one year+month, serialized as "YYYY-MM".
type Period struct {
	Year  int
	Month int
}

// ParsePeriod parses a "YYYY-MM" string. The second return value is false for
// anything that does not parse to a valid year+month; callers that apply
// period filters leniently drop the filter in that case instead of failing.
func ParsePeriod(s string) (Period, bool) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, false
	}
	return Period{Year: t.Year(), Month: int(t.Month())}, true
}

// PeriodOf returns the period of the given year and month.
func PeriodOf(year, month int) Period {
	return Period{Year: year, Month: month}
}

// String formats the period as zero-padded "YYYY-MM".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Date returns the first day of the period, used for calendar-range filters.
func (p Period) Date() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether a record's year+month falls on this exact period.
func (p Period) Contains(year, month int) bool {
	return p.Year == year && p.Month == month
}
