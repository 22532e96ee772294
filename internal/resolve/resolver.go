// Package resolve turns adapted Event records into the concrete,
// timezone-corrected Occurrences that fall on a caller-supplied set of
// target days, applying recurrence rules, per-instance overrides, exception
// dates and status filters.
package resolve

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"icsday/internal/daykey"
	"icsday/internal/model"
)

// Options is the resolver's configuration surface.
type Options struct {
	// IncludeOngoing emits continuation rows for multi-day events on the
	// days they span into.
	IncludeOngoing bool

	// IncludeTransparent includes events marked TRANSPARENT (free/available).
	IncludeTransparent bool

	// OwnerEmail, when set, suppresses events this participant declined.
	// Matching is case-insensitive and ignores a mailto: prefix.
	OwnerEmail string

	// DefaultLocation is the observer timezone used where an event supplies
	// none. Callers pass it explicitly; the resolver never reads ambient
	// process or OS state. Nil means UTC.
	DefaultLocation *time.Location
}

// Result is the resolver's output: best-effort occurrences plus the warnings
// accumulated for anything that was skipped or degraded.
type Result struct {
	Occurrences []model.Occurrence
	Warnings    []model.Warning
}

// Resolve produces the occurrences of events that fall on targetDays.
//
// Output is not sorted; callers order by start instant if presentation order
// matters. For identical inputs the output is identical: events are processed
// in slice order, overrides in key order, rule candidates in rule order.
func Resolve(events []model.Event, targetDays []daykey.Day, opts Options) Result {
	var res Result
	if len(targetDays) == 0 || len(events) == 0 {
		return res
	}

	days := daykey.NewSet(targetDays)
	minDay, maxDay := daykey.Bounds(targetDays)

	for i := range events {
		ev := &events[i]
		occs, warns := resolveEvent(ev, days, minDay, maxDay, opts)
		res.Occurrences = append(res.Occurrences, occs...)
		res.Warnings = append(res.Warnings, warns...)
	}

	res.Occurrences = dedupe(res.Occurrences)
	return res
}

func resolveEvent(ev *model.Event, days daykey.Set, minDay, maxDay daykey.Day, opts Options) ([]model.Occurrence, []model.Warning) {
	var (
		out      []model.Occurrence
		warnings []model.Warning
	)

	// Cancellation and visibility filters apply to the whole series.
	if ev.Status == model.StatusCancelled {
		return nil, nil
	}
	if !opts.IncludeTransparent && ev.Transparency == model.TransparencyTransparent {
		return nil, nil
	}
	if declinedBy(ev, opts.OwnerEmail) {
		return nil, nil
	}

	excluded, exclWarns := exclusionSet(ev)
	warnings = append(warnings, exclWarns...)

	// Override occurrences. The emitted day is governed by the override's
	// own start, not by the lookup key it is stored under; the key only
	// suppresses the original instance.
	for _, key := range sortedOverrideKeys(ev.Overrides) {
		ov := ev.Overrides[key]
		if ov.Status == model.StatusCancelled {
			// One instance of an otherwise-live series is suppressed.
			continue
		}
		day := daykey.FromTime(ov.Start)
		if !days.Has(day) {
			continue
		}
		out = append(out, overrideOccurrence(ev, ov, day))
	}

	// Recurrence expansion over a one-day-padded window.
	if ev.Recurring() {
		starts, truncated, err := expandCandidates(ev, minDay, maxDay)
		if err != nil {
			warnings = append(warnings, model.Warning{
				Calendar: ev.Calendar,
				UID:      ev.UID,
				Message:  fmt.Sprintf("%v: %v", ErrRecurrenceEvaluation, err),
			})
		}
		if truncated {
			warnings = append(warnings, model.Warning{
				Calendar: ev.Calendar,
				UID:      ev.UID,
				Message:  "recurrence expansion truncated at candidate cap",
			})
		}
		dur := ev.Duration()
		for _, start := range starts {
			day := daykey.FromTime(start)
			if excluded.Has(day) {
				continue
			}
			if start.Equal(ev.Start) {
				// The base path below already emits the first occurrence.
				continue
			}
			if !days.Has(day) {
				continue
			}
			end := start.Add(dur)
			if ev.AllDay {
				end = start.AddDate(0, 0, 1)
			}
			out = append(out, model.Occurrence{
				Calendar:    ev.Calendar,
				UID:         ev.UID,
				Day:         string(day),
				Summary:     ev.Summary,
				Description: ev.Description,
				Location:    ev.Location,
				AllDay:      ev.AllDay,
				Start:       start,
				End:         end,
				Status:      ev.Status,
				Provenance:  model.ProvenanceRecurring,
			})
		}
	}

	// Base occurrence: the event's own first start, unless an override or
	// exception already accounts for that day.
	baseDay := daykey.FromTime(ev.Start)
	baseCovered := false
	if _, ok := ev.Overrides[string(baseDay)]; ok {
		baseCovered = true
	}
	if ev.Recurring() && excluded.Has(baseDay) {
		baseCovered = true
	}
	if !baseCovered && days.Has(baseDay) {
		out = append(out, model.Occurrence{
			Calendar:    ev.Calendar,
			UID:         ev.UID,
			Day:         string(baseDay),
			Summary:     ev.Summary,
			Description: ev.Description,
			Location:    ev.Location,
			AllDay:      ev.AllDay,
			Start:       ev.Start,
			End:         ev.End,
			Status:      ev.Status,
			Provenance:  model.ProvenanceSingle,
		})
	}

	// Ongoing continuations for multi-day events.
	if opts.IncludeOngoing {
		out = append(out, ongoingContinuations(ev, days)...)
	}

	return out, warnings
}

// exclusionSet collects the days on which a recurring instance must not be
// emitted: explicit exception dates at day granularity in their stated
// timezone, plus the lookup keys of all overrides. A malformed exception date
// becomes a warning and is treated as a no-op.
func exclusionSet(ev *model.Event) (daykey.Set, []model.Warning) {
	set := make(daykey.Set, len(ev.ExceptionDates)+len(ev.Overrides))
	var warnings []model.Warning

	for _, ex := range ev.ExceptionDates {
		if ex.IsZero() {
			warnings = append(warnings, model.Warning{
				Calendar: ev.Calendar,
				UID:      ev.UID,
				Message:  ErrExclusionMatch.Error(),
			})
			continue
		}
		set[daykey.FromTime(ex)] = struct{}{}
	}
	for key := range ev.Overrides {
		set[daykey.Day(key)] = struct{}{}
	}
	return set, warnings
}

func overrideOccurrence(ev *model.Event, ov model.Override, day daykey.Day) model.Occurrence {
	occ := model.Occurrence{
		Calendar:    ev.Calendar,
		UID:         ev.UID,
		Day:         string(day),
		Summary:     ov.Summary,
		Description: ov.Description,
		Location:    ov.Location,
		AllDay:      ev.AllDay,
		Start:       ov.Start,
		End:         ov.End,
		Status:      ov.Status,
		Provenance:  model.ProvenanceOverride,
	}
	// An override may carry only the fields that changed.
	if occ.Summary == "" {
		occ.Summary = ev.Summary
	}
	if occ.Description == "" {
		occ.Description = ev.Description
	}
	if occ.Location == "" {
		occ.Location = ev.Location
	}
	if occ.End.IsZero() {
		occ.End = occ.Start.Add(ev.Duration())
	}
	return occ
}

// ongoingContinuations emits one row per target day a multi-day event spans
// into: days strictly after the start day, and the end day only when the
// event runs past local midnight into it.
func ongoingContinuations(ev *model.Event, days daykey.Set) []model.Occurrence {
	startDay := daykey.FromTime(ev.Start)
	endDay := daykey.FromTime(ev.End)
	if endDay <= startDay {
		return nil
	}

	loc := ev.Start.Location()
	var out []model.Occurrence
	for _, d := range days.Sorted() {
		if d <= startDay || d > endDay {
			continue
		}
		if d == endDay {
			midnight, err := d.Time(loc)
			if err != nil || !ev.End.After(midnight) {
				continue
			}
		}
		out = append(out, model.Occurrence{
			Calendar:    ev.Calendar,
			UID:         ev.UID,
			Day:         string(d),
			Summary:     ev.Summary,
			Description: ev.Description,
			Location:    ev.Location,
			AllDay:      ev.AllDay,
			Start:       ev.Start,
			End:         ev.End,
			Status:      ev.Status,
			Provenance:  model.ProvenanceOngoing,
		})
	}
	return out
}

// declinedBy reports whether the owner appears as an attendee who declined.
func declinedBy(ev *model.Event, owner string) bool {
	owner = normalizeEmail(owner)
	if owner == "" {
		return false
	}
	for _, a := range ev.Attendees {
		if normalizeEmail(a.Email) == owner && a.Status == model.PartStatDeclined {
			return true
		}
	}
	return false
}

func normalizeEmail(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	return strings.TrimPrefix(s, "mailto:")
}

func sortedOverrideKeys(overrides map[string]model.Override) []string {
	if len(overrides) == 0 {
		return nil
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// dedupe removes occurrences whose (calendar, uid, day, start, end) tuple
// repeats, keeping the first emission. This guards against an override and a
// rule expansion both producing the same instance under edge-case inputs.
func dedupe(occs []model.Occurrence) []model.Occurrence {
	if len(occs) < 2 {
		return occs
	}
	type key struct {
		calendar string
		uid      string
		day      string
		start    int64
		end      int64
	}
	seen := make(map[key]struct{}, len(occs))
	out := occs[:0]
	for _, o := range occs {
		k := key{o.Calendar, o.UID, o.Day, o.Start.UnixNano(), o.End.UnixNano()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, o)
	}
	return out
}
