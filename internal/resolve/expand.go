package resolve

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"icsday/internal/daykey"
	"icsday/internal/model"
)

// maxCandidatesPerEvent caps rule expansion so a runaway rule cannot produce
// an unbounded candidate list.
const maxCandidatesPerEvent = 5000

// expandCandidates evaluates an event's recurrence rule over a window padded
// one day before the earliest and one day after the latest target day, and
// returns concrete occurrence start instants in the event's authoring
// timezone.
//
// Rule evaluation runs on timezone-naive instants: the event's local wall
// clock is copied into UTC so the rule engine cannot re-apply local offsets.
// Each candidate is then re-anchored by taking the base event's local
// time-of-day on the candidate's calendar date in the authoring zone. That
// keeps occurrences at the same wall-clock time across DST transitions and
// absorbs the date-boundary shifts naive offset arithmetic is prone to; the
// one-day padding catches candidates that land on an adjacent UTC day.
func expandCandidates(ev *model.Event, minDay, maxDay daykey.Day) ([]time.Time, bool, error) {
	loc := ev.Start.Location()
	base := ev.Start

	rule, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		return nil, false, fmt.Errorf("parse %q: %w", ev.RRule, err)
	}
	rule.DTStart(stripZone(base))

	windowStart, err := paddedBound(minDay.Prev(), 0, 0, 0)
	if err != nil {
		return nil, false, err
	}
	windowEnd, err := paddedBound(maxDay.Next(), 23, 59, 59)
	if err != nil {
		return nil, false, err
	}

	candidates := rule.Between(windowStart, windowEnd, true)
	truncated := false
	if len(candidates) > maxCandidatesPerEvent {
		candidates = candidates[:maxCandidatesPerEvent]
		truncated = true
	}

	starts := make([]time.Time, 0, len(candidates))
	for _, c := range candidates {
		starts = append(starts, anchorCandidate(c, base, loc, ev.AllDay))
	}
	return starts, truncated, nil
}

// stripZone copies an instant's wall-clock reading into naive UTC.
func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// paddedBound builds a naive-UTC window bound at the given wall time of day.
func paddedBound(d daykey.Day, hour, min, sec int) (time.Time, error) {
	t, err := d.Time(time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad window day %q: %w", d, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), hour, min, sec, 0, time.UTC), nil
}

// anchorCandidate turns a naive rule candidate into a concrete start instant:
// the candidate contributes its calendar date, the base event contributes its
// local time-of-day, and the authoring zone supplies the offset in effect on
// that date.
func anchorCandidate(candidate, base time.Time, loc *time.Location, allDay bool) time.Time {
	if allDay {
		return time.Date(candidate.Year(), candidate.Month(), candidate.Day(), 0, 0, 0, 0, loc)
	}
	return time.Date(candidate.Year(), candidate.Month(), candidate.Day(),
		base.Hour(), base.Minute(), base.Second(), 0, loc)
}
