package recurrence

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	// DefaultMaxOccurrences caps a single expansion.
	DefaultMaxOccurrences = 5000

	// DefaultMaxSteps caps how many rule instants a single expansion may step
	// through, including the ones skipped before the window.
	DefaultMaxSteps = 200000

	// lowerBoundEpsilon widens the query lower bound so an occurrence exactly
	// at the window start survives the rule engine's boundary handling.
	lowerBoundEpsilon = time.Second
)

var (
	// ErrInvalidRule is returned when a recurrence rule cannot be parsed.
	ErrInvalidRule = errors.New("invalid recurrence rule")
	// ErrUnboundedWindow is returned when an expansion has no finite upper bound.
	ErrUnboundedWindow = errors.New("expansion window has no upper bound")
)

// Expander evaluates recurrence rules in a wall-clock frame.
type Expander struct {
	// MaxOccurrences caps the instants returned per call; zero means DefaultMaxOccurrences.
	MaxOccurrences int
	// MaxSteps caps the instants evaluated per call; zero means DefaultMaxSteps.
	MaxSteps int
}

// Expand uses an Expander with default limits.
func Expand(rule string, anchor, windowStart, windowEnd time.Time, loc *time.Location) ([]time.Time, error) {
	return Expander{}.Expand(rule, anchor, windowStart, windowEnd, loc)
}

// Expand returns the instants in [windowStart, windowEnd] at which the series
// anchored at anchor recurs, strictly ascending.
func (e Expander) Expand(rule string, anchor, windowStart, windowEnd time.Time, loc *time.Location) ([]time.Time, error) {
	instants, _, err := e.expand(rule, anchor, windowStart, windowEnd, loc)
	return instants, err
}

// expand additionally reports whether the result hit the occurrence cap.
func (e Expander) expand(rule string, anchor, windowStart, windowEnd time.Time, loc *time.Location) ([]time.Time, bool, error) {
	if windowEnd.IsZero() {
		return nil, false, ErrUnboundedWindow
	}
	if loc == nil {
		loc = time.UTC
	}
	opt, err := parseRule(rule, loc)
	if err != nil {
		return nil, false, err
	}
	if windowEnd.Before(windowStart) {
		return nil, false, nil
	}

	opt.Dtstart = ShiftWallClock(anchor, loc)
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	limit := e.MaxOccurrences
	if limit <= 0 {
		limit = DefaultMaxOccurrences
	}
	maxSteps := e.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	lower := ShiftWallClock(windowStart, loc).Add(-lowerBoundEpsilon)
	upper := ShiftWallClock(windowEnd, loc)
	trueLower := windowStart.Truncate(time.Second)

	out := make([]time.Time, 0)
	truncated := false
	next := r.Iterator()
	for steps := 0; ; steps++ {
		if steps >= maxSteps {
			truncated = true
			break
		}
		fake, ok := next()
		if !ok || fake.After(upper) {
			break
		}
		if fake.Before(lower) {
			continue
		}
		instant := UnshiftWallClock(fake, loc)
		if instant.Before(trueLower) || instant.After(windowEnd) {
			continue
		}
		if len(out) >= limit {
			truncated = true
			break
		}
		out = append(out, instant)
	}

	return normalize(out), truncated, nil
}

// normalize sorts and de-duplicates instants; wall-clock times inside a DST
// gap can resolve onto a neighbouring instant.
func normalize(instants []time.Time) []time.Time {
	sort.Slice(instants, func(i, j int) bool { return instants[i].Before(instants[j]) })
	out := instants[:0]
	for i, t := range instants {
		if i > 0 && t.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Neighbors returns the last occurrence strictly before at and the first
// occurrence at or after it. Either is nil when the series has none.
func (e Expander) Neighbors(rule string, anchor, at time.Time, loc *time.Location) (prev, next *time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}
	opt, err := parseRule(rule, loc)
	if err != nil {
		return nil, nil, err
	}
	opt.Dtstart = ShiftWallClock(anchor, loc)
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	pivot := ShiftWallClock(at, loc)
	if fake := r.Before(pivot, false); !fake.IsZero() {
		t := UnshiftWallClock(fake, loc)
		prev = &t
	}
	if fake := r.After(pivot, true); !fake.IsZero() {
		t := UnshiftWallClock(fake, loc)
		next = &t
	}
	return prev, next, nil
}

// Count returns how many occurrences fall in [from, to].
func (e Expander) Count(rule string, anchor, from, to time.Time, loc *time.Location) (int, error) {
	instants, err := Expander{MaxOccurrences: math.MaxInt32}.Expand(rule, anchor, from, to, loc)
	if err != nil {
		return 0, err
	}
	return len(instants), nil
}

// ValidateRule reports whether rule is an acceptable recurrence rule.
func ValidateRule(rule string) error {
	opt, err := parseRule(rule, time.UTC)
	if err != nil {
		return err
	}
	opt.Dtstart = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	if _, err := rrule.NewRRule(*opt); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

// parseRule parses the rule with every time field expressed in the
// synthetic wall-clock frame of loc.
func parseRule(rule string, loc *time.Location) (*rrule.ROption, error) {
	raw := strings.TrimSpace(rule)
	if len(raw) >= 6 && strings.EqualFold(raw[:6], "RRULE:") {
		raw = raw[6:]
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: empty rule", ErrInvalidRule)
	}
	if !strings.Contains(strings.ToUpper(raw), "FREQ=") {
		return nil, fmt.Errorf("%w: missing FREQ in %q", ErrInvalidRule, rule)
	}

	opt, err := rrule.StrToROptionInLocation(raw, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if opt.Freq == rrule.MINUTELY || opt.Freq == rrule.SECONDLY {
		return nil, fmt.Errorf("%w: frequency %s is finer than hourly", ErrInvalidRule, opt.Freq)
	}

	if until, ok := untilValue(raw); ok && !opt.Until.IsZero() {
		switch {
		case strings.HasSuffix(strings.ToUpper(until), "Z"):
			// Absolute UNTIL, move it into the wall-clock frame.
			opt.Until = ShiftWallClock(opt.Until, loc)
		case !strings.Contains(strings.ToUpper(until), "T"):
			// Date-only UNTIL includes the whole day.
			opt.Until = opt.Until.Add(24*time.Hour - time.Second)
		}
	}
	return opt, nil
}

// untilValue returns UNTIL as written. ROption keeps only the parsed instant,
// which loses whether the value was UTC, floating or date-only.
func untilValue(raw string) (string, bool) {
	for _, part := range strings.Split(raw, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && strings.EqualFold(strings.TrimSpace(kv[0]), "UNTIL") {
			return strings.TrimSpace(kv[1]), true
		}
	}
	return "", false
}
