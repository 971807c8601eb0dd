// Package period computes the half-open time windows that cadence
// summarizes: the fixed daytime and nighttime cycles and the rolling
// "today so far" window. All math is done on timezone-aware instants in
// one reference location; windows are [Start, End) and adjacent windows
// of the same kind share a bound.
package period

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies a summarization window type.
type Kind string

const (
	// Daytime covers 06:00-22:00 of one civil day.
	Daytime Kind = "daytime"

	// Nighttime covers 22:00 of one day to 06:00 of the next.
	Nighttime Kind = "nighttime"
)

// dayStartHour is when a civil day begins for summarization purposes.
const dayStartHour = 6

// nightLength is the fixed length of a nighttime window. Nighttime is
// derived by subtracting this from 06:00 rather than re-deriving
// "previous day 22:00", so the window stays exactly 8 hours long across
// DST transitions.
const nightLength = 8 * time.Hour

// Sentinel errors.
var (
	ErrUnknownKind    = errors.New("period: unknown kind")
	ErrBeforeDayStart = errors.New("period: reference instant precedes start of day")
)

// Period is a named half-open window [Start, End).
type Period struct {
	Kind  Kind
	Start time.Time
	End   time.Time
	Label string
}

// Compute maps a period kind and a reference instant to its window.
// The reference instant's location is the reference timezone.
func Compute(kind Kind, ref time.Time) (Period, error) {
	switch kind {
	case Daytime:
		start := at(ref, dayStartHour)
		end := at(ref, 22)
		return Period{
			Kind:  Daytime,
			Start: start,
			End:   end,
			Label: fmt.Sprintf("%s (6 AM - 10 PM)", start.Format("Monday, January 2")),
		}, nil

	case Nighttime:
		end := at(ref, dayStartHour)
		start := end.Add(-nightLength)
		return Period{
			Kind:  Nighttime,
			Start: start,
			End:   end,
			Label: fmt.Sprintf("%s night into %s morning (10 PM - 6 AM)",
				start.Format("Monday"), end.Format("Monday")),
		}, nil

	default:
		return Period{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Rolling computes the open "today so far" window [06:00, ref).
// Before 06:00 there is no valid window for the current day; callers
// must treat ErrBeforeDayStart as a no-op, not a failure.
func Rolling(ref time.Time) (Period, error) {
	if ref.Hour() < dayStartHour {
		return Period{}, ErrBeforeDayStart
	}

	start := at(ref, dayStartHour)
	return Period{
		Start: start,
		End:   ref,
		Label: fmt.Sprintf("%s so far", ref.Format("Monday, January 2")),
	}, nil
}

// Previous returns the windows that chronologically precede the one
// being summarized at ref, most recent first. These are the lookup keys
// for continuity context.
//
//   - Daytime: [previous nighttime, previous daytime]
//   - Nighttime: [previous daytime]
func Previous(kind Kind, ref time.Time) ([]Period, error) {
	yesterday := ref.AddDate(0, 0, -1)

	switch kind {
	case Daytime:
		night, err := Compute(Nighttime, ref)
		if err != nil {
			return nil, err
		}
		day, err := Compute(Daytime, yesterday)
		if err != nil {
			return nil, err
		}
		night.Label = "Last night (" + night.Label + ")"
		day.Label = "Yesterday (" + day.Label + ")"
		return []Period{night, day}, nil

	case Nighttime:
		day, err := Compute(Daytime, yesterday)
		if err != nil {
			return nil, err
		}
		day.Label = "Yesterday (" + day.Label + ")"
		return []Period{day}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// at returns t's civil day with the wall clock set to hour:00:00.
func at(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, t.Location())
}
