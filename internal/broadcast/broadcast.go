// Package broadcast defines the calendar date that identifies a daily archive
// and the file names derived from it.
package broadcast

import (
	"fmt"
	"iter"
	"strings"
	"time"
)

const (
	isoLayout       = "2006-01-02"
	finalNameLayout = "2006 01 02"
)

// Date is a calendar date with no time-of-day component. The zero value is
// not a valid broadcast date.
type Date struct {
	t time.Time
}

// NewDate returns the date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date in the timestamp's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO yyyy-mm-dd date.
func ParseDate(value string) (Date, error) {
	parsed, err := time.Parse(isoLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: expected yyyy-mm-dd", value)
	}
	return DateOf(parsed), nil
}

// Yesterday returns the calendar day before now in now's location.
func Yesterday(now time.Time) Date {
	return DateOf(now).AddDays(-1)
}

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time { return d.t }

// AddDays returns the date n days later (n may be negative).
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

// Format renders the date with a Go time layout.
func (d Date) Format(layout string) string { return d.t.Format(layout) }

// String renders the ISO form.
func (d Date) String() string { return d.t.Format(isoLayout) }

// TempFileName is the download name used when post-processing follows.
func (d Date) TempFileName() string {
	return "dl-" + d.String() + ".mp4"
}

// FinalFileName is the delivered file name.
func (d Date) FinalFileName() string {
	return "Full Broadcast " + d.t.Format(finalNameLayout) + ".mp4"
}

// Range is an inclusive span of dates.
type Range struct {
	Start Date
	End   Date
}

// NewRange validates and builds an inclusive range. A zero end defaults to start.
func NewRange(start, end Date) (Range, error) {
	if start.IsZero() {
		return Range{}, fmt.Errorf("date range: start date is required")
	}
	if end.IsZero() {
		end = start
	}
	if end.Before(start) {
		return Range{}, fmt.Errorf("date range: end %s is before start %s", end, start)
	}
	return Range{Start: start, End: end}, nil
}

// Days returns the number of dates in the range.
func (r Range) Days() int {
	if r.Start.IsZero() || r.End.Before(r.Start) {
		return 0
	}
	return int(r.End.t.Sub(r.Start.t).Hours()/24) + 1
}

// All yields every date from Start to End inclusive in ascending order.
func (r Range) All() iter.Seq[Date] {
	return func(yield func(Date) bool) {
		if r.Start.IsZero() {
			return
		}
		for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
			if !yield(d) {
				return
			}
		}
	}
}

// MediaLocation is a resolved direct media URL. It is valid for a single
// acquisition attempt and is never cached across runs.
type MediaLocation struct {
	URL  string
	Date Date
}
