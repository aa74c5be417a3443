package recurrence

import (
	"sort"
	"time"

	"github.com/noah-isme/event-calendar-api/internal/models"
)

// Window is an inclusive query range over occurrence start instants.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Options control a materialization.
type Options struct {
	// Location is the application timezone used for date keys.
	Location *time.Location
	// ViewerAuthenticated reveals draft and internal series.
	ViewerAuthenticated bool
	// IncludeExcluded returns excluded dates flagged IsExcluded (raw/admin views).
	IncludeExcluded bool
	Expander        Expander
}

// Result is the output of Materialize.
type Result struct {
	Occurrences []models.Occurrence
	// Truncated is set when the expansion hit the occurrence cap.
	Truncated bool
}

// Materialize produces the visible occurrences of one series inside the window.
// A rule that fails to parse yields ErrInvalidRule and no occurrences.
func Materialize(series *models.EventSeries, overrides []models.OccurrenceOverride, w Window, opts Options) (Result, error) {
	if w.End.IsZero() {
		return Result{}, ErrUnboundedWindow
	}
	appLoc := opts.Location
	if appLoc == nil {
		appLoc = time.UTC
	}
	if (series.Draft || series.IsInternal()) && !opts.ViewerAuthenticated {
		return Result{}, nil
	}

	m := materializer{
		series:    series,
		overrides: indexOverrides(overrides),
		window:    w,
		opts:      opts,
		appLoc:    appLoc,
		duration:  seriesDuration(series),
	}

	var (
		res Result
		err error
	)
	if series.IsRecurring() {
		res, err = m.recurring()
	} else {
		res = Result{Occurrences: m.single()}
	}
	if err != nil {
		return Result{}, err
	}
	sortWithinSeries(res.Occurrences)
	return res, nil
}

type materializer struct {
	series    *models.EventSeries
	overrides map[string]*models.OccurrenceOverride
	window    Window
	opts      Options
	appLoc    *time.Location
	duration  time.Duration
}

func (m materializer) single() []models.Occurrence {
	key := DateKey(m.series.DTStart, m.appLoc)
	occ, ok := m.resolve(m.series.DTStart, key, false)
	if !ok {
		return nil
	}
	return []models.Occurrence{occ}
}

func (m materializer) recurring() (Result, error) {
	ruleLoc, err := m.ruleLocation()
	if err != nil {
		return Result{}, err
	}
	rule := *m.series.RRule
	upper := m.upperBound()
	exdates := ParseExDates(m.series.ExDates)

	var (
		out       []models.Occurrence
		truncated bool
		seen      = make(map[string]struct{})
	)

	if !upper.Before(m.window.Start) {
		slots, capped, err := m.opts.Expander.expand(rule, m.series.DTStart, m.window.Start, upper, ruleLoc)
		if err != nil {
			return Result{}, err
		}
		truncated = capped
		for _, slot := range slots {
			key := DateKey(slot, m.appLoc)
			seen[key] = struct{}{}
			if occ, ok := m.resolveRecurring(slot, key, exdates); ok {
				out = append(out, occ)
			}
		}
	}

	// Overrides whose slot lies outside the expanded range but whose moved
	// start lands inside the window.
	for _, key := range sortedOverrideKeys(m.overrides) {
		if _, ok := seen[key]; ok {
			continue
		}
		ov := m.overrides[key]
		if ov.DTStart == nil || !m.window.Contains(*ov.DTStart) {
			continue
		}
		slot, ok, err := m.slotOn(key, rule, ruleLoc)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			continue
		}
		if occ, ok := m.resolveRecurring(slot, key, exdates); ok {
			out = append(out, occ)
		}
	}

	return Result{Occurrences: out, Truncated: truncated}, nil
}

func (m materializer) resolveRecurring(slot time.Time, key string, exdates ExDateSet) (models.Occurrence, bool) {
	excluded := exdates.Contains(key)
	if excluded && !m.opts.IncludeExcluded {
		return models.Occurrence{}, false
	}
	occ, ok := m.resolve(slot, key, true)
	occ.IsExcluded = excluded
	return occ, ok
}

// SlotOn returns the rule-computed start of the occurrence of series whose date
// key is key. ok is false when the series has no occurrence on that date.
func SlotOn(series *models.EventSeries, key string, opts Options) (slot time.Time, ok bool, err error) {
	if err := ValidateDateKey(key); err != nil {
		return time.Time{}, false, err
	}
	appLoc := opts.Location
	if appLoc == nil {
		appLoc = time.UTC
	}
	if !series.IsRecurring() {
		if DateKey(series.DTStart, appLoc) != key {
			return time.Time{}, false, nil
		}
		return series.DTStart, true, nil
	}
	m := materializer{series: series, opts: opts, appLoc: appLoc}
	ruleLoc, err := m.ruleLocation()
	if err != nil {
		return time.Time{}, false, err
	}
	return m.slotOn(key, *series.RRule, ruleLoc)
}

// slotOn returns the rule occurrence whose date key is key, if the series has one.
func (m materializer) slotOn(key, rule string, ruleLoc *time.Location) (time.Time, bool, error) {
	day, err := ParseDateKey(key, m.appLoc)
	if err != nil {
		return time.Time{}, false, nil
	}
	end := NextDay(day, m.appLoc).Add(-time.Nanosecond)
	if recEnd := m.recurrenceEnd(); recEnd != nil && recEnd.Before(end) {
		end = *recEnd
	}
	slots, _, err := m.opts.Expander.expand(rule, m.series.DTStart, day, end, ruleLoc)
	if err != nil {
		return time.Time{}, false, err
	}
	for _, slot := range slots {
		if DateKey(slot, m.appLoc) == key {
			return slot, true, nil
		}
	}
	return time.Time{}, false, nil
}

// resolve applies override → series → default precedence for one slot and
// filters on the resolved start.
func (m materializer) resolve(slot time.Time, key string, recurring bool) (models.Occurrence, bool) {
	s := m.series
	ov := m.overrides[key]

	occ := models.Occurrence{
		ID:             models.OccurrenceID(s.ID, key),
		EventID:        s.ID,
		OccurrenceDate: key,
		SpaceID:        s.SpaceID,
		EventTypeID:    s.EventTypeID,
		Summary:        s.Summary,
		Description:    s.Description,
		URL:            s.URL,
		Location:       firstString(s.Location, s.SpaceLocation),
		Start:          slot,
		AllDay:         s.AllDay,
		Status:         s.Status,
		Sequence:       s.Sequence,
		IsRecurring:    recurring,
		Draft:          s.Draft,
		Internal:       s.IsInternal(),
	}

	if ov != nil {
		occ.IsOverridden = true
		if ov.Summary != nil {
			occ.Summary = *ov.Summary
		}
		if ov.Description != nil {
			occ.Description = ov.Description
		}
		if ov.URL != nil {
			occ.URL = ov.URL
		}
		if ov.Location != nil {
			occ.Location = ov.Location
		}
		if ov.DTStart != nil {
			occ.Start = *ov.DTStart
		}
		if ov.Status != nil {
			occ.Status = *ov.Status
		}
		occ.Notes = ov.Notes
	}

	occ.End = occ.Start.Add(m.duration)
	if ov != nil && ov.DTEnd != nil {
		occ.End = *ov.DTEnd
	}
	if occ.End.Before(occ.Start) {
		occ.End = occ.Start
	}

	if !m.window.Contains(occ.Start) {
		return models.Occurrence{}, false
	}
	return occ, true
}

func (m materializer) ruleLocation() (*time.Location, error) {
	if m.series.Timezone == nil || *m.series.Timezone == "" {
		return m.appLoc, nil
	}
	return LoadLocation(*m.series.Timezone)
}

// recurrenceEnd is the exclusive end of the series, nil when open-ended.
func (m materializer) recurrenceEnd() *time.Time {
	if m.series.RecurrenceEndDate == nil {
		return nil
	}
	end := m.series.RecurrenceEndDate.Add(-time.Nanosecond)
	return &end
}

func (m materializer) upperBound() time.Time {
	upper := m.window.End
	if end := m.recurrenceEnd(); end != nil && end.Before(upper) {
		upper = *end
	}
	return upper
}

// seriesDuration is the length of one occurrence: the stored end, else the
// event type default, else a whole day for all-day series.
func seriesDuration(s *models.EventSeries) time.Duration {
	if s.DTEnd != nil && !s.DTEnd.Before(s.DTStart) {
		return s.DTEnd.Sub(s.DTStart)
	}
	if s.TypeDefaultDurationMinutes > 0 {
		return time.Duration(s.TypeDefaultDurationMinutes) * time.Minute
	}
	if s.AllDay {
		return 24 * time.Hour
	}
	return 0
}

func indexOverrides(overrides []models.OccurrenceOverride) map[string]*models.OccurrenceOverride {
	index := make(map[string]*models.OccurrenceOverride, len(overrides))
	for i := range overrides {
		index[overrides[i].OccurrenceDate] = &overrides[i]
	}
	return index
}

func sortedOverrideKeys(index map[string]*models.OccurrenceOverride) []string {
	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortWithinSeries(occs []models.Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		if !occs[i].Start.Equal(occs[j].Start) {
			return occs[i].Start.Before(occs[j].Start)
		}
		return occs[i].OccurrenceDate < occs[j].OccurrenceDate
	})
}

// SortOccurrences orders occurrences gathered from several series by start.
// Ties keep the series iteration order and, within a series, the date key order.
func SortOccurrences(occs []models.Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		return occs[i].Start.Before(occs[j].Start)
	})
}

func firstString(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
