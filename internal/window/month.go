package window

import (
	"fmt"
	"strings"
	"time"
)

// MonthLayout is the YYYY-MM form used on the command line, in artifact names and in the ledger.
const MonthLayout = "2006-01"

// ParseError reports a malformed month string.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid month %q (want YYYY-MM): %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Month is a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(raw string) (Month, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(raw))
	if err != nil {
		return Month{}, &ParseError{Input: raw, Err: err}
	}
	return MonthOf(t), nil
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// AddMonths shifts m by n months, normalising across year boundaries.
func (m Month) AddMonths(n int) Month {
	return MonthOf(m.First().AddDate(0, n, 0))
}

// First returns midnight UTC on the first day of the month.
func (m Month) First() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Last returns midnight UTC on the last day of the month.
func (m Month) Last() time.Time {
	return m.First().AddDate(0, 1, -1)
}

// Before reports whether m is earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// After reports whether m is later than o.
func (m Month) After(o Month) bool {
	return o.Before(m)
}

// IsZero reports whether m is unset.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m Month) String() string {
	return m.First().Format(MonthLayout)
}

func minMonth(a, b Month) Month {
	if b.Before(a) {
		return b
	}
	return a
}
