// Package recurrence turns stored event series into concrete occurrences.
//
// Recurrence rules are evaluated on wall-clock values: instants are shifted
// into a synthetic UTC frame whose calendar and clock fields equal the local
// fields of the series timezone, the rule is evaluated there, and every result
// is shifted back by reinterpreting its fields in that timezone. The offset is
// resolved per calendar date, which keeps "every Tuesday 19:00" at 19:00 local
// time on both sides of a DST transition.
package recurrence

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// DateKeyLayout is the canonical occurrence date key format.
const DateKeyLayout = "2006-01-02"

var (
	// ErrInvalidDateKey is returned for keys that are not YYYY-MM-DD.
	ErrInvalidDateKey = errors.New("invalid occurrence date key")
	// ErrUnknownTimezone is returned for timezone identifiers the tz database does not know.
	ErrUnknownTimezone = errors.New("unknown timezone")
)

var dateKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// LoadLocation resolves an IANA timezone identifier.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrUnknownTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnknownTimezone, name, err)
	}
	return loc, nil
}

// DateKey returns the calendar date of t as observed in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateKeyLayout)
}

// ValidateDateKey checks the YYYY-MM-DD shape and that the date exists.
func ValidateDateKey(key string) error {
	if !dateKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidDateKey, key)
	}
	if _, err := time.Parse(DateKeyLayout, key); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDateKey, key)
	}
	return nil
}

// ParseDateKey returns local midnight of the keyed date in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if err := ValidateDateKey(key); err != nil {
		return time.Time{}, err
	}
	d, _ := time.Parse(DateKeyLayout, key)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc), nil
}

// ShiftWallClock maps t to a synthetic UTC instant whose fields equal the
// wall-clock fields of t in loc.
func ShiftWallClock(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
}

// UnshiftWallClock reinterprets the fields of a synthetic instant as local to
// loc, resolving the offset in force on that calendar date.
func UnshiftWallClock(fake time.Time, loc *time.Location) time.Time {
	f := fake.UTC()
	return time.Date(f.Year(), f.Month(), f.Day(), f.Hour(), f.Minute(), f.Second(), f.Nanosecond(), loc)
}

// StartOfDay returns local midnight of the day containing t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// NextDay returns local midnight of the calendar day after t in loc.
func NextDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day()+1, 0, 0, 0, 0, loc)
}
