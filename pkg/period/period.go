// Package period handles monthly billing period keys (YYYY-MM) and the
// calendar dates derived from them.
package period

import (
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/condoledger/pkg/errs"
)

// Layout is the canonical string form of a period.
const Layout = "2006-01"

// DateLayout is the canonical string form of a calendar date.
const DateLayout = "2006-01-02"

var (
	ErrInvalidPeriod = errs.New(errs.KindValidation, "invalid_period")
	ErrInvalidDate   = errs.New(errs.KindValidation, "invalid_date")
)

// Period is one calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// Parse reads a YYYY-MM key.
func Parse(value string) (Period, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(value))
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// Of returns the period containing t (in UTC).
func Of(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Start is the first day of the period at UTC midnight.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first day of the following period (exclusive bound).
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Day returns the given day of the period, clamped to the month's last day.
func (p Period) Day(day int) time.Time {
	if day < 1 {
		day = 1
	}
	last := p.End().AddDate(0, 0, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

// Date truncates t to its calendar day at UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a YYYY-MM-DD calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t.UTC(), nil
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}
