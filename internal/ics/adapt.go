package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"icsday/internal/daykey"
	appLog "icsday/internal/log"
	"icsday/internal/model"
)

// ErrParse marks a structurally invalid ICS document. The document is fatal
// to itself only; other sources in the same batch still adapt.
var ErrParse = errors.New("ics: invalid document")

// AdaptOptions configures the adapter.
type AdaptOptions struct {
	// DefaultLocation is the timezone applied to floating (zone-less,
	// non-UTC) date-times. Callers supply it explicitly; the adapter never
	// consults process-local state. Nil means UTC.
	DefaultLocation *time.Location
}

func (o AdaptOptions) defaultLocation() *time.Location {
	if o.DefaultLocation == nil {
		return time.UTC
	}
	return o.DefaultLocation
}

// Adapt normalizes a raw ICS document into Event records. Only VEVENT
// components are kept; calendar metadata, VTIMEZONE and free/busy blocks are
// discarded once their information has been consumed. Recurrence rules and
// override/exception structures pass through raw for the resolver to
// interpret.
//
// Components with RECURRENCE-ID are attached to their base series as
// overrides, keyed by the original occurrence's day in the series' own
// timezone. An override with no base series in the document is kept as a
// standalone single event.
func Adapt(src Source, body []byte, opts AdaptOptions) ([]model.Event, []model.Warning, error) {
	if len(body) == 0 {
		return nil, nil, fmt.Errorf("%w: empty body", ErrParse)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var (
		events    []model.Event
		overrides []parsedOverride
		warnings  []model.Warning
	)

	for _, ve := range cal.Events() {
		ev, ov, warns, perr := adaptVEvent(src, ve, opts)
		warnings = append(warnings, warns...)
		if perr != nil {
			// Skip this component, keep the rest of the document.
			appLog.Warn("ics: skipping unusable VEVENT", "calendar", src.ID, "err", perr)
			warnings = append(warnings, model.Warning{
				Calendar: src.ID,
				Message:  perr.Error(),
			})
			continue
		}
		if ov != nil {
			overrides = append(overrides, *ov)
			continue
		}
		events = append(events, ev)
	}

	attachOverrides(events, overrides, &warnings, src.ID)

	// Orphan overrides become plain single events.
	for _, ov := range overrides {
		if ov.attached {
			continue
		}
		events = append(events, ov.event)
	}

	return events, warnings, nil
}

// parsedOverride is a VEVENT carrying RECURRENCE-ID, waiting to be attached
// to its base series.
type parsedOverride struct {
	event    model.Event
	rid      time.Time
	attached bool
}

func attachOverrides(events []model.Event, overrides []parsedOverride, warnings *[]model.Warning, calendar string) {
	for i := range overrides {
		ov := &overrides[i]
		for j := range events {
			base := &events[j]
			if base.UID != ov.event.UID {
				continue
			}
			// Key by the original occurrence's day in the series' own
			// timezone, so resolver lookups line up.
			key := string(daykey.FromTimeIn(ov.rid, base.Start.Location()))
			if base.Overrides == nil {
				base.Overrides = make(map[string]model.Override)
			}
			if _, dup := base.Overrides[key]; dup {
				*warnings = append(*warnings, model.Warning{
					Calendar: calendar,
					UID:      base.UID,
					Message:  fmt.Sprintf("duplicate override for %s; keeping the first", key),
				})
				ov.attached = true
				break
			}
			base.Overrides[key] = model.Override{
				RecurrenceID: ov.rid,
				Summary:      ov.event.Summary,
				Description:  ov.event.Description,
				Location:     ov.event.Location,
				Start:        ov.event.Start,
				End:          ov.event.End,
				Status:       ov.event.Status,
			}
			ov.attached = true
			break
		}
	}
}

func adaptVEvent(src Source, ve *ical.VEvent, opts AdaptOptions) (model.Event, *parsedOverride, []model.Warning, error) {
	var (
		out      model.Event
		warnings []model.Warning
	)
	out.Calendar = src.ID

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, nil, warnings, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Status = model.Status(strings.ToUpper(strings.TrimSpace(p.Value)))
	}
	if p := ve.GetProperty("TRANSP"); p != nil {
		out.Transparency = model.Transparency(strings.ToUpper(strings.TrimSpace(p.Value)))
	}

	// DTSTART / DTEND with TZID and all-day handling.
	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, nil, warnings, errors.New("missing DTSTART")
	}
	start, allDay, tzid, warn := parseDateTimeProp(startProp, opts.defaultLocation())
	if warn != nil {
		warnings = append(warnings, model.Warning{Calendar: src.ID, UID: out.UID, Message: warn.Error()})
	}
	out.Start = start
	out.AllDay = allDay
	out.TZID = tzid

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, _, _, endWarn := parseDateTimeProp(endProp, opts.defaultLocation())
		if endWarn != nil {
			warnings = append(warnings, model.Warning{Calendar: src.ID, UID: out.UID, Message: endWarn.Error()})
		}
		out.End = end
	} else if allDay {
		out.End = start.AddDate(0, 0, 1)
	} else {
		out.End = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}

	// EXDATE may repeat and each value may be a comma list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		exLoc := propLocation(p, time.UTC)
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, err := parseICSTime(part, exLoc)
			if err != nil {
				warnings = append(warnings, model.Warning{
					Calendar: src.ID,
					UID:      out.UID,
					Message:  fmt.Sprintf("unparseable EXDATE %q ignored", part),
				})
				continue
			}
			out.ExceptionDates = append(out.ExceptionDates, t)
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		out.Organizer = model.Organizer{
			Email: stripMailto(p.Value),
			Name:  firstParam(p, "CN"),
		}
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		out.Attendees = append(out.Attendees, model.Attendee{
			Email:  stripMailto(p.Value),
			Name:   firstParam(p, "CN"),
			Role:   firstParam(p, "ROLE"),
			Status: model.ParticipationStatus(strings.ToUpper(firstParam(p, "PARTSTAT"))),
		})
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		ridLoc := propLocation(p, out.Start.Location())
		rid, err := parseICSTime(p.Value, ridLoc)
		if err != nil {
			return out, nil, warnings, fmt.Errorf("unparseable RECURRENCE-ID %q", p.Value)
		}
		return out, &parsedOverride{event: out, rid: rid}, warnings, nil
	}

	return out, nil, warnings, nil
}

// parseDateTimeProp interprets a DTSTART/DTEND property: UTC instants,
// TZID-qualified local times (Windows names mapped to IANA), floating times
// in the supplied default location, and VALUE=DATE all-day values. An
// unresolvable TZID degrades to UTC and is reported via the returned warning.
func parseDateTimeProp(p *ical.IANAProperty, floating *time.Location) (t time.Time, allDay bool, tzid string, warn error) {
	val := strings.TrimSpace(p.Value)

	if hasParamValue(p, "VALUE", "DATE") || !strings.Contains(val, "T") {
		loc := floating
		if name := firstParam(p, "TZID"); name != "" {
			if resolved, err := ResolveLocation(name); err == nil {
				loc = resolved
			}
		}
		d, err := time.ParseInLocation("20060102", val, loc)
		if err != nil {
			return time.Time{}, true, "", fmt.Errorf("unparseable date %q", val)
		}
		return d, true, "", nil
	}

	if name := firstParam(p, "TZID"); name != "" {
		loc, err := ResolveLocation(name)
		if err != nil {
			loc = time.UTC
			warn = fmt.Errorf("timezone %q not resolvable, treating %q as UTC", name, val)
		}
		parsed, perr := time.ParseInLocation("20060102T150405", val, loc)
		if perr != nil {
			return time.Time{}, false, "", fmt.Errorf("unparseable date-time %q", val)
		}
		return parsed, false, loc.String(), warn
	}

	parsed, err := parseICSTime(val, floating)
	if err != nil {
		return time.Time{}, false, "", fmt.Errorf("unparseable date-time %q", val)
	}
	return parsed, false, "", nil
}

// parseICSTime parses a bare ICS date/date-time string. Zone-less values are
// interpreted in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}

// propLocation resolves a property's TZID parameter, falling back when the
// parameter is absent or unknown.
func propLocation(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	name := firstParam(p, "TZID")
	if name == "" {
		return fallback
	}
	loc, err := ResolveLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}

func firstParam(p *ical.IANAProperty, key string) string {
	if p == nil || p.ICalParameters == nil {
		return ""
	}
	if vs, ok := p.ICalParameters[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func hasParamValue(p *ical.IANAProperty, key, want string) bool {
	return strings.EqualFold(firstParam(p, key), want)
}

func stripMailto(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		return v[7:]
	}
	return v
}
