package model

import "time"

// Status is the VEVENT STATUS property.
type Status string

const (
	StatusNone      Status = ""
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusTentative Status = "TENTATIVE"
)

// Transparency is the VEVENT TRANSP property. Transparent events do not
// block time and are hidden unless the caller opts in.
type Transparency string

const (
	TransparencyNone        Transparency = ""
	TransparencyOpaque      Transparency = "OPAQUE"
	TransparencyTransparent Transparency = "TRANSPARENT"
)

// ParticipationStatus is an attendee's PARTSTAT.
type ParticipationStatus string

const (
	PartStatNone        ParticipationStatus = ""
	PartStatAccepted    ParticipationStatus = "ACCEPTED"
	PartStatDeclined    ParticipationStatus = "DECLINED"
	PartStatTentative   ParticipationStatus = "TENTATIVE"
	PartStatNeedsAction ParticipationStatus = "NEEDS-ACTION"
)

// Organizer identifies who owns an event.
type Organizer struct {
	Email string
	Name  string
}

// Attendee is one participant record on an event.
type Attendee struct {
	Email  string
	Name   string
	Role   string
	Status ParticipationStatus
}

// Override replaces a single instance of a recurring series. It is stored on
// the base Event keyed by the original occurrence's day (YYYY-MM-DD) in the
// series' own timezone.
type Override struct {
	// RecurrenceID is the original occurrence instant this override replaces.
	RecurrenceID time.Time

	Summary     string
	Description string
	Location    string

	Start time.Time
	End   time.Time

	Status Status
}

// Event is a calendar component as authored, before recurrence expansion.
// For a recurring event Start/End describe the first occurrence; RRule,
// Overrides and ExceptionDates describe the rest of the series.
type Event struct {
	// Calendar is the identifier of the source calendar this event came from.
	Calendar string

	UID string
	Seq int

	Summary     string
	Description string
	Location    string

	// Start / End carry the authoring timezone in their Location.
	Start  time.Time
	End    time.Time
	AllDay bool

	// TZID is the resolved IANA identifier of the authoring timezone, empty
	// for UTC/floating events.
	TZID string

	Status       Status
	Transparency Transparency

	// RRule is the raw RRULE value; the resolver interprets it.
	RRule string

	// ExceptionDates are instants at which a recurring instance is suppressed.
	ExceptionDates []time.Time

	// Overrides maps original-occurrence day keys (YYYY-MM-DD, authoring
	// timezone) to per-instance replacements.
	Overrides map[string]Override

	Organizer Organizer
	Attendees []Attendee
}

// Recurring reports whether the event carries a repetition rule.
func (e *Event) Recurring() bool {
	return e.RRule != ""
}

// Duration is the span of one occurrence of the event.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Provenance tags which resolution path produced an Occurrence.
type Provenance string

const (
	ProvenanceSingle    Provenance = "single"
	ProvenanceRecurring Provenance = "recurring"
	ProvenanceOverride  Provenance = "recurring-override"
	ProvenanceOngoing   Provenance = "ongoing-continuation"
)

// Occurrence is a single concrete instance of an event after recurrence,
// timezone, override and status resolution. Occurrences are constructed fresh
// per query and never mutated.
type Occurrence struct {
	Calendar string
	UID      string

	// Day is the target day (YYYY-MM-DD) this occurrence was emitted for.
	Day string

	Summary     string
	Description string
	Location    string

	AllDay bool

	Start time.Time
	End   time.Time

	Status     Status
	Provenance Provenance
}

// Warning is a per-calendar, per-event diagnostic produced when resolution
// degraded (bad rule, unknown timezone, malformed exception date) without
// aborting the batch.
type Warning struct {
	Calendar string `json:"calendar"`
	UID      string `json:"uid,omitempty"`
	Message  string `json:"message"`
}
