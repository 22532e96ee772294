package resolve

import "errors"

// Error kinds accumulated as warnings at the single-event boundary. None of
// them abort a batch: a malformed event degrades to a warning and the rest of
// the calendar still resolves.
var (
	// ErrRecurrenceEvaluation marks a malformed or unsupported recurrence
	// rule. The event's expansion is skipped; its base and override
	// occurrences still resolve.
	ErrRecurrenceEvaluation = errors.New("recurrence evaluation failed")

	// ErrTimezoneResolution marks an unknown or malformed timezone
	// identifier. The instant is treated as UTC.
	ErrTimezoneResolution = errors.New("timezone resolution failed")

	// ErrExclusionMatch marks a malformed exception date. The exclusion is
	// ignored; the occurrence is not suppressed.
	ErrExclusionMatch = errors.New("exception date not usable")
)
