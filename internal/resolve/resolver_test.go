package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icsday/internal/daykey"
	"icsday/internal/model"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func days(t *testing.T, inputs ...string) []daykey.Day {
	t.Helper()
	ds, err := daykey.ParseAll(inputs)
	require.NoError(t, err)
	return ds
}

// standupEvent is the weekly Wednesday 09:00 America/New_York series with an
// exception on 2025-01-15 and a moved instance on 2025-01-22.
func standupEvent(t *testing.T) model.Event {
	ny := mustLoc(t, "America/New_York")
	return model.Event{
		Calendar: "work",
		UID:      "standup",
		Summary:  "Standup",
		Start:    time.Date(2025, 1, 1, 9, 0, 0, 0, ny),
		End:      time.Date(2025, 1, 1, 9, 30, 0, 0, ny),
		TZID:     "America/New_York",
		RRule:    "FREQ=WEEKLY;BYDAY=WE",
		ExceptionDates: []time.Time{
			time.Date(2025, 1, 15, 9, 0, 0, 0, ny),
		},
		Overrides: map[string]model.Override{
			"2025-01-22": {
				RecurrenceID: time.Date(2025, 1, 22, 9, 0, 0, 0, ny),
				Summary:      "Standup (moved)",
				Start:        time.Date(2025, 1, 22, 10, 0, 0, 0, ny),
				End:          time.Date(2025, 1, 22, 10, 30, 0, 0, ny),
			},
		},
	}
}

func TestResolve_WeeklyRecurrence(t *testing.T) {
	events := []model.Event{standupEvent(t)}

	res := Resolve(events, days(t, "2025-01-08"), Options{})
	require.Len(t, res.Occurrences, 1)
	occ := res.Occurrences[0]
	assert.Equal(t, "Standup", occ.Summary)
	assert.Equal(t, model.ProvenanceRecurring, occ.Provenance)
	assert.Equal(t, 9, occ.Start.Hour())
	assert.Equal(t, "America/New_York", occ.Start.Location().String())
	assert.Equal(t, 30*time.Minute, occ.End.Sub(occ.Start))
	assert.Empty(t, res.Warnings)
}

func TestResolve_ExceptionDateSuppressesInstance(t *testing.T) {
	events := []model.Event{standupEvent(t)}

	res := Resolve(events, days(t, "2025-01-15"), Options{})
	assert.Empty(t, res.Occurrences)
	assert.Empty(t, res.Warnings)
}

func TestResolve_OverridePrecedence(t *testing.T) {
	events := []model.Event{standupEvent(t)}

	res := Resolve(events, days(t, "2025-01-22"), Options{})
	require.Len(t, res.Occurrences, 1)
	occ := res.Occurrences[0]
	assert.Equal(t, "Standup (moved)", occ.Summary)
	assert.Equal(t, model.ProvenanceOverride, occ.Provenance)
	assert.Equal(t, 10, occ.Start.Hour())
}

func TestResolve_BaseOccurrenceOfRecurringSeries(t *testing.T) {
	events := []model.Event{standupEvent(t)}

	// The first instance of the series is emitted once, through the base
	// path, not duplicated by the rule expansion.
	res := Resolve(events, days(t, "2025-01-01"), Options{})
	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, model.ProvenanceSingle, res.Occurrences[0].Provenance)
	assert.Equal(t, 9, res.Occurrences[0].Start.Hour())
}

func TestResolve_BiWeeklyWithExceptions(t *testing.T) {
	// Bi-weekly Tuesday 13:00 America/New_York with two excluded instances,
	// from the upstream bug report this engine exists to fix.
	ny := mustLoc(t, "America/New_York")
	ev := model.Event{
		Calendar: "work",
		UID:      "meeting-2",
		Summary:  "Meeting 2",
		Start:    time.Date(2025, 4, 15, 13, 0, 0, 0, ny),
		End:      time.Date(2025, 4, 15, 13, 45, 0, 0, ny),
		RRule:    "FREQ=WEEKLY;UNTIL=20251014T170000Z;INTERVAL=2;BYDAY=TU",
		ExceptionDates: []time.Time{
			time.Date(2025, 4, 29, 13, 0, 0, 0, ny),
			time.Date(2025, 5, 13, 13, 0, 0, 0, ny),
		},
	}

	for _, tc := range []struct {
		day  string
		want int
	}{
		{"2025-04-29", 0},
		{"2025-05-13", 0},
		{"2025-05-27", 1},
	} {
		res := Resolve([]model.Event{ev}, days(t, tc.day), Options{})
		assert.Len(t, res.Occurrences, tc.want, "day %s", tc.day)
	}
}

func TestResolve_DSTStability(t *testing.T) {
	// Weekly at 09:00 local in a zone that enters DST on 2025-03-09. The
	// wall-clock hour must hold on both sides of the transition.
	ny := mustLoc(t, "America/New_York")
	ev := model.Event{
		Calendar: "personal",
		UID:      "dst-weekly",
		Summary:  "Weekly call",
		Start:    time.Date(2025, 3, 5, 9, 0, 0, 0, ny),
		End:      time.Date(2025, 3, 5, 10, 0, 0, 0, ny),
		RRule:    "FREQ=WEEKLY;BYDAY=WE",
	}

	for _, day := range []string{"2025-03-05", "2025-03-12", "2025-03-19"} {
		res := Resolve([]model.Event{ev}, days(t, day), Options{})
		require.Len(t, res.Occurrences, 1, "day %s", day)
		occ := res.Occurrences[0]
		assert.Equal(t, 9, occ.Start.In(ny).Hour(), "day %s", day)
		assert.Equal(t, time.Hour, occ.End.Sub(occ.Start), "day %s", day)
	}
}

func TestResolve_RangeBoundary(t *testing.T) {
	ev := model.Event{
		Calendar: "cal",
		UID:      "daily",
		Summary:  "Daily",
		Start:    time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 1, 6, 8, 30, 0, 0, time.UTC),
		RRule:    "FREQ=DAILY",
	}

	// Non-contiguous target days: only members of the set are emitted, even
	// though the padded expansion window spans the gap.
	res := Resolve([]model.Event{ev}, days(t, "2025-01-08", "2025-01-10"), Options{})
	require.Len(t, res.Occurrences, 2)
	got := map[string]bool{}
	for _, occ := range res.Occurrences {
		got[occ.Day] = true
	}
	assert.True(t, got["2025-01-08"])
	assert.True(t, got["2025-01-10"])
}

func TestResolve_CancelledEventSkipped(t *testing.T) {
	ev := standupEvent(t)
	ev.Status = model.StatusCancelled

	res := Resolve([]model.Event{ev}, days(t, "2025-01-08", "2025-01-22"), Options{})
	assert.Empty(t, res.Occurrences)
}

func TestResolve_CancelledOverrideSuppressesOneInstance(t *testing.T) {
	ev := standupEvent(t)
	ov := ev.Overrides["2025-01-22"]
	ov.Status = model.StatusCancelled
	ev.Overrides["2025-01-22"] = ov

	res := Resolve([]model.Event{ev}, days(t, "2025-01-22"), Options{})
	assert.Empty(t, res.Occurrences)

	// The rest of the series is unaffected.
	res = Resolve([]model.Event{ev}, days(t, "2025-01-29"), Options{})
	assert.Len(t, res.Occurrences, 1)
}

func TestResolve_TransparentEvents(t *testing.T) {
	ev := model.Event{
		Calendar:     "cal",
		UID:          "ooo",
		Summary:      "Focus block",
		Start:        time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		End:          time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC),
		Transparency: model.TransparencyTransparent,
	}
	target := days(t, "2025-03-01")

	res := Resolve([]model.Event{ev}, target, Options{})
	assert.Empty(t, res.Occurrences)

	res = Resolve([]model.Event{ev}, target, Options{IncludeTransparent: true})
	assert.Len(t, res.Occurrences, 1)
}

func TestResolve_DeclinedByOwner(t *testing.T) {
	ev := standupEvent(t)
	ev.Attendees = []model.Attendee{
		{Email: "MAILTO:Owner@Example.com", Status: model.PartStatDeclined},
		{Email: "other@example.com", Status: model.PartStatAccepted},
	}
	target := days(t, "2025-01-08")

	res := Resolve([]model.Event{ev}, target, Options{OwnerEmail: "owner@example.com"})
	assert.Empty(t, res.Occurrences, "declined series must not appear, rule or not")

	// A different owner, or no owner at all, leaves the event visible.
	res = Resolve([]model.Event{ev}, target, Options{OwnerEmail: "someone@else.org"})
	assert.Len(t, res.Occurrences, 1)
	res = Resolve([]model.Event{ev}, target, Options{})
	assert.Len(t, res.Occurrences, 1)
}

func TestResolve_OngoingContinuations(t *testing.T) {
	ev := model.Event{
		Calendar: "cal",
		UID:      "offsite",
		Summary:  "Offsite",
		Start:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 3, 3, 13, 0, 0, 0, time.UTC),
	}

	// Middle day: hidden without the option, one continuation row with it.
	res := Resolve([]model.Event{ev}, days(t, "2025-03-02"), Options{})
	assert.Empty(t, res.Occurrences)

	res = Resolve([]model.Event{ev}, days(t, "2025-03-02"), Options{IncludeOngoing: true})
	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, model.ProvenanceOngoing, res.Occurrences[0].Provenance)
	assert.Equal(t, "2025-03-02", res.Occurrences[0].Day)

	// End day counts because the event runs past its midnight.
	res = Resolve([]model.Event{ev}, days(t, "2025-03-03"), Options{IncludeOngoing: true})
	assert.Len(t, res.Occurrences, 1)

	// An event ending exactly at midnight does not spill into that day.
	ev.End = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	res = Resolve([]model.Event{ev}, days(t, "2025-03-03"), Options{IncludeOngoing: true})
	assert.Empty(t, res.Occurrences)
}

func TestResolve_Idempotent(t *testing.T) {
	events := []model.Event{standupEvent(t)}
	target := days(t, "2025-01-01", "2025-01-08", "2025-01-15", "2025-01-22")
	opts := Options{IncludeOngoing: true}

	first := Resolve(events, target, opts)
	second := Resolve(events, target, opts)
	assert.Equal(t, first, second)
}

func TestResolve_DeduplicatesIdenticalInstances(t *testing.T) {
	ev := model.Event{
		Calendar: "cal",
		UID:      "dup",
		Summary:  "Duplicated",
		Start:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC),
	}

	// The same component appearing twice in a feed must not double-emit.
	res := Resolve([]model.Event{ev, ev}, days(t, "2025-03-01"), Options{})
	assert.Len(t, res.Occurrences, 1)
}

func TestResolve_BadRuleDegradesToWarning(t *testing.T) {
	ev := model.Event{
		Calendar: "cal",
		UID:      "broken",
		Summary:  "Broken rule",
		Start:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC),
		RRule:    "FREQ=SOMETIMES",
	}
	healthy := model.Event{
		Calendar: "cal",
		UID:      "fine",
		Summary:  "Fine",
		Start:    time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC),
	}

	res := Resolve([]model.Event{ev, healthy}, days(t, "2025-03-01"), Options{})

	// Expansion is skipped with a warning; the base occurrence of the broken
	// event and the other event both still resolve.
	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, "broken", res.Warnings[0].UID)
	assert.Len(t, res.Occurrences, 2)
}

func TestResolve_MalformedExceptionDateIgnored(t *testing.T) {
	ev := standupEvent(t)
	ev.ExceptionDates = append(ev.ExceptionDates, time.Time{})

	res := Resolve([]model.Event{ev}, days(t, "2025-01-08"), Options{})
	require.Len(t, res.Occurrences, 1, "bad exception date must not suppress anything")
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0].Message, "exception date")
}

func TestResolve_EmptyInputs(t *testing.T) {
	assert.Empty(t, Resolve(nil, days(t, "2025-01-01"), Options{}).Occurrences)
	assert.Empty(t, Resolve([]model.Event{standupEvent(t)}, nil, Options{}).Occurrences)
}

func TestResolve_AllDayRecurring(t *testing.T) {
	ev := model.Event{
		Calendar: "cal",
		UID:      "holiday",
		Summary:  "Daily standdown",
		Start:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		AllDay:   true,
		RRule:    "FREQ=DAILY;COUNT=5",
	}

	res := Resolve([]model.Event{ev}, days(t, "2025-03-03"), Options{})
	require.Len(t, res.Occurrences, 1)
	occ := res.Occurrences[0]
	assert.True(t, occ.AllDay)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), occ.Start)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), occ.End)
}

func TestResolve_OverrideDayGovernedByItsOwnStart(t *testing.T) {
	// An instance stored under 2025-01-22 but moved to the 23rd shows up on
	// the 23rd, and the 22nd stays empty.
	ny := mustLoc(t, "America/New_York")
	ev := standupEvent(t)
	ev.Overrides["2025-01-22"] = model.Override{
		RecurrenceID: time.Date(2025, 1, 22, 9, 0, 0, 0, ny),
		Summary:      "Standup (moved to Thursday)",
		Start:        time.Date(2025, 1, 23, 9, 0, 0, 0, ny),
		End:          time.Date(2025, 1, 23, 9, 30, 0, 0, ny),
	}

	res := Resolve([]model.Event{ev}, days(t, "2025-01-22"), Options{})
	assert.Empty(t, res.Occurrences)

	res = Resolve([]model.Event{ev}, days(t, "2025-01-23"), Options{})
	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, "Standup (moved to Thursday)", res.Occurrences[0].Summary)
	assert.Equal(t, model.ProvenanceOverride, res.Occurrences[0].Provenance)
}
