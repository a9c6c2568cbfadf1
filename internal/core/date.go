package core

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar day kept in its stored YYYY-MM-DD text form so that
// snapshots round-trip byte for byte, even for values we cannot parse.
type Date string

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format(DateLayout))
}

// Time parses the date. Timestamps are accepted and truncated to the day.
func (d Date) Time() (time.Time, bool) {
	s := strings.TrimSpace(string(d))
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (d Date) Validate() error {
	if _, ok := d.Time(); !ok {
		return ErrInvalidDate
	}
	return nil
}

// MonthKey returns the "YYYY-MM" bucket key of the date.
func (d Date) MonthKey() (string, bool) {
	t, ok := d.Time()
	if !ok {
		return "", false
	}
	return t.Format("2006-01"), true
}

func (d Date) String() string {
	return string(d)
}
