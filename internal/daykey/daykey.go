// Package daykey normalizes the various textual day forms callers supply
// into one canonical YYYY-MM-DD representation, and provides set/range
// helpers over those days. Keeping a single representation is what makes
// override and exception lookups line up with recurrence candidates.
package daykey

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Layout is the canonical day format.
const Layout = "2006-01-02"

// Day is a calendar day in canonical YYYY-MM-DD form.
type Day string

// acceptedLayouts are the input forms Parse understands, tried in order.
var acceptedLayouts = []string{
	Layout,
	"2006/01/02",
	"20060102",
	"2006-01-02T15:04:05Z07:00",
}

// Parse normalizes a textual day input into a Day.
func Parse(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("daykey: empty day input")
	}
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), nil
		}
	}
	return "", fmt.Errorf("daykey: unsupported day input %q", s)
}

// ParseAll normalizes a list of textual day inputs.
func ParseAll(inputs []string) ([]Day, error) {
	days := make([]Day, 0, len(inputs))
	for _, in := range inputs {
		d, err := Parse(in)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, nil
}

// FromTime truncates an instant to its calendar day in the instant's own
// location.
func FromTime(t time.Time) Day {
	return Day(t.Format(Layout))
}

// FromTimeIn truncates an instant to its calendar day as observed in loc.
func FromTimeIn(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return Day(t.In(loc).Format(Layout))
}

// Time returns midnight of the day in the given location.
func (d Day) Time(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(Layout, string(d), loc)
}

// Next returns the following day.
func (d Day) Next() Day {
	t, err := d.Time(time.UTC)
	if err != nil {
		return d
	}
	return FromTime(t.AddDate(0, 0, 1))
}

// Prev returns the preceding day.
func (d Day) Prev() Day {
	t, err := d.Time(time.UTC)
	if err != nil {
		return d
	}
	return FromTime(t.AddDate(0, 0, -1))
}

func (d Day) String() string { return string(d) }

// Bounds returns the earliest and latest day of a non-empty set.
func Bounds(days []Day) (Day, Day) {
	min, max := days[0], days[0]
	for _, d := range days[1:] {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}

// Set is a membership set of days.
type Set map[Day]struct{}

// NewSet builds a Set from a day list.
func NewSet(days []Day) Set {
	s := make(Set, len(days))
	for _, d := range days {
		s[d] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(d Day) bool {
	_, ok := s[d]
	return ok
}

// Sorted returns the set's days in ascending order.
func (s Set) Sorted() []Day {
	out := make([]Day, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sequence returns count consecutive days starting at from.
func Sequence(from Day, count int) []Day {
	days := make([]Day, 0, count)
	d := from
	for i := 0; i < count; i++ {
		days = append(days, d)
		d = d.Next()
	}
	return days
}
