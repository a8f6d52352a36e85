package scheduler

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DateLayout is the calendar date format used by reservations.
	DateLayout = "2006-01-02"
	// ClockLayout is the wall clock format used for slot boundaries.
	ClockLayout = "15:04"
)

var (
	// ErrInvalidTimeFormat is returned when a date or clock string is malformed.
	ErrInvalidTimeFormat = errors.New("scheduler: invalid time format")
	// ErrNonPositiveDuration is returned when a slot ends at or before its start.
	ErrNonPositiveDuration = errors.New("scheduler: end must be after start")
)

// ValidateDate reports whether value is a real calendar date in YYYY-MM-DD form.
func ValidateDate(value string) error {
	if len(value) != len(DateLayout) {
		return fmt.Errorf("%w: date %q", ErrInvalidTimeFormat, value)
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		return fmt.Errorf("%w: date %q", ErrInvalidTimeFormat, value)
	}
	return nil
}

// ParseClock converts a zero padded 24h HH:mm string into minutes since midnight.
func ParseClock(value string) (int, error) {
	if len(value) != len(ClockLayout) {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidTimeFormat, value)
	}
	t, err := time.Parse(ClockLayout, value)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidTimeFormat, value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ParseSlot combines a date and a clock time into an instant in loc.
func ParseSlot(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if err := ValidateDate(date); err != nil {
		return time.Time{}, err
	}
	if _, err := ParseClock(clock); err != nil {
		return time.Time{}, err
	}
	instant, err := time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %s", ErrInvalidTimeFormat, date, clock)
	}
	return instant, nil
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect. The
// arguments are HH:mm strings on the same day, so lexicographic order matches
// chronological order. Slots that only touch at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd string) bool {
	return aStart < bEnd && aEnd > bStart
}

// DurationMinutes returns end minus start in whole minutes.
func DurationMinutes(start, end string) (int, error) {
	startMin, err := ParseClock(start)
	if err != nil {
		return 0, err
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return 0, err
	}
	if endMin <= startMin {
		return 0, fmt.Errorf("%w: %s-%s", ErrNonPositiveDuration, start, end)
	}
	return endMin - startMin, nil
}
