package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/noah-isme/event-calendar-api/internal/models"
)

// SplitOptions configure PlanSplit.
type SplitOptions struct {
	// Location is the application timezone used for date keys.
	Location *time.Location
	Expander Expander
	// NewID generates the id of the future series; defaults to uuid.NewString.
	NewID func() string
}

// SplitPlan describes the writes a "this and following" edit needs. Original
// and Created are copies; nothing is persisted by PlanSplit.
type SplitPlan struct {
	Outcome      models.SplitOutcome
	SplitDateKey string
	Original     *models.EventSeries
	Created      *models.EventSeries
	// Migrated holds the overrides re-keyed to Created, field values unchanged.
	Migrated []models.OccurrenceOverride
}

// PlanSplit divides series at splitInstant. History before the split stays on
// the original series; the split occurrence and everything after it moves to a
// new series carrying the patch.
func PlanSplit(series *models.EventSeries, overrides []models.OccurrenceOverride, splitInstant time.Time, patch models.SeriesPatch, opts SplitOptions) (*SplitPlan, error) {
	appLoc := opts.Location
	if appLoc == nil {
		appLoc = time.UTC
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if patch.RRule != nil {
		if err := ValidateRule(*patch.RRule); err != nil {
			return nil, err
		}
	}
	original := *series

	if !series.IsRecurring() {
		if series.DTStart.Before(splitInstant) {
			return &SplitPlan{Outcome: models.SplitOutcomeNoFuture, Original: &original}, nil
		}
		if err := applyWhole(&original, patch, appLoc); err != nil {
			return nil, err
		}
		return &SplitPlan{Outcome: models.SplitOutcomeUpdatedWhole, Original: &original}, nil
	}

	ruleLoc := appLoc
	if series.Timezone != nil && *series.Timezone != "" {
		loc, err := LoadLocation(*series.Timezone)
		if err != nil {
			return nil, err
		}
		ruleLoc = loc
	}
	rule := *series.RRule

	_, first, err := opts.Expander.Neighbors(rule, series.DTStart, series.DTStart, ruleLoc)
	if err != nil {
		return nil, err
	}
	lastPast, _, err := opts.Expander.Neighbors(rule, series.DTStart, splitInstant, ruleLoc)
	if err != nil {
		return nil, err
	}
	exdates := ParseExDates(series.ExDates)
	firstFuture, err := firstVisible(opts.Expander, rule, series.DTStart, splitInstant, exdates, appLoc, ruleLoc)
	if err != nil {
		return nil, err
	}

	if first == nil || !withinEnd(*first, series.RecurrenceEndDate) ||
		firstFuture == nil || !withinEnd(*firstFuture, series.RecurrenceEndDate) {
		return &SplitPlan{Outcome: models.SplitOutcomeNoFuture, Original: &original}, nil
	}

	if !first.Before(splitInstant) || lastPast == nil {
		if err := applyWhole(&original, patch, ruleLoc); err != nil {
			return nil, err
		}
		return &SplitPlan{Outcome: models.SplitOutcomeUpdatedWhole, Original: &original}, nil
	}

	splitKey := DateKey(*firstFuture, appLoc)

	// The original ends the day after its last past occurrence, or right
	// before the first future one for sub-daily rules.
	end := NextDay(*lastPast, appLoc)
	if firstFuture.Before(end) {
		end = *firstFuture
	}
	original.RecurrenceEndDate = &end

	past, future := exdates.Partition(splitKey)
	original.ExDates = past.Value()

	created, err := newFutureSeries(series, *firstFuture, patch, ruleLoc, opts.NewID())
	if err != nil {
		return nil, err
	}
	created.ExDates = future.Value()
	if patch.RRule == nil {
		counted, err := remainingCountRule(opts.Expander, rule, series.DTStart, *firstFuture, ruleLoc)
		if err != nil {
			return nil, err
		}
		created.RRule = &counted
	}

	migrated := make([]models.OccurrenceOverride, 0)
	for _, ov := range overrides {
		if ov.OccurrenceDate >= splitKey {
			moved := ov
			moved.EventID = created.ID
			migrated = append(migrated, moved)
		}
	}

	return &SplitPlan{
		Outcome:      models.SplitOutcomeSplit,
		SplitDateKey: splitKey,
		Original:     &original,
		Created:      created,
		Migrated:     migrated,
	}, nil
}

func newFutureSeries(series *models.EventSeries, anchor time.Time, patch models.SeriesPatch, ruleLoc *time.Location, id string) (*models.EventSeries, error) {
	created := &models.EventSeries{
		ID:                id,
		SpaceID:           series.SpaceID,
		EventTypeID:       series.EventTypeID,
		Summary:           series.Summary,
		Description:       series.Description,
		URL:               series.URL,
		Location:          series.Location,
		AllDay:            series.AllDay,
		Timezone:          series.Timezone,
		RRule:             series.RRule,
		RecurrenceEndDate: series.RecurrenceEndDate,
		Status:            series.Status,
		Draft:             series.Draft,
		Internal:          series.Internal,

		TypeDefaultDurationMinutes: series.TypeDefaultDurationMinutes,
		TypeInternal:               series.TypeInternal,
		SpaceLocation:              series.SpaceLocation,
	}
	patch.ApplyDisplay(created)
	if patch.RRule != nil {
		rule := *patch.RRule
		created.RRule = &rule
	}

	start := anchor
	if patch.StartTime != nil {
		shifted, err := withTimeOfDay(anchor, *patch.StartTime, ruleLoc)
		if err != nil {
			return nil, err
		}
		start = shifted
	}
	created.DTStart = start

	if series.DTEnd != nil {
		end := start.Add(series.DTEnd.Sub(series.DTStart))
		created.DTEnd = &end
	}
	if patch.Duration != nil {
		end := start.Add(*patch.Duration)
		created.DTEnd = &end
	}
	return created, nil
}

// applyWhole updates the series in place when there is no past to preserve.
func applyWhole(series *models.EventSeries, patch models.SeriesPatch, ruleLoc *time.Location) error {
	patch.ApplyDisplay(series)
	if patch.RRule != nil {
		rule := *patch.RRule
		series.RRule = &rule
	}
	if patch.StartTime != nil {
		start, err := withTimeOfDay(series.DTStart, *patch.StartTime, ruleLoc)
		if err != nil {
			return err
		}
		if series.DTEnd != nil {
			end := start.Add(series.DTEnd.Sub(series.DTStart))
			series.DTEnd = &end
		}
		series.DTStart = start
	}
	if patch.Duration != nil {
		end := series.DTStart.Add(*patch.Duration)
		series.DTEnd = &end
	}
	return nil
}

// withTimeOfDay keeps the local calendar date of t and replaces its clock
// with hhmm (HH:MM).
func withTimeOfDay(t time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	clock, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start time %q: %w", hhmm, err)
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

func withinEnd(t time.Time, recurrenceEnd *time.Time) bool {
	return recurrenceEnd == nil || t.Before(*recurrenceEnd)
}

// firstVisible returns the first occurrence at or after from whose date key is
// not excluded, or nil when the series has none left.
func firstVisible(e Expander, rule string, anchor, from time.Time, excluded ExDateSet, appLoc, ruleLoc *time.Location) (*time.Time, error) {
	for {
		_, next, err := e.Neighbors(rule, anchor, from, ruleLoc)
		if err != nil || next == nil {
			return next, err
		}
		if !excluded.Contains(DateKey(*next, appLoc)) {
			return next, nil
		}
		from = NextDay(*next, appLoc)
	}
}

// remainingCountRule rewrites COUNT so the future series only produces the
// occurrences the original had not used before firstFuture. Rules without
// COUNT are returned as is.
func remainingCountRule(e Expander, rule string, anchor, firstFuture time.Time, loc *time.Location) (string, error) {
	raw := strings.TrimSpace(rule)
	prefix := ""
	if len(raw) >= 6 && strings.EqualFold(raw[:6], "RRULE:") {
		prefix, raw = raw[:6], raw[6:]
	}
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if opt.Count == 0 {
		return rule, nil
	}
	used, err := e.Count(rule, anchor, anchor, firstFuture.Add(-time.Second), loc)
	if err != nil {
		return "", err
	}
	opt.Count -= used
	if opt.Count < 1 {
		opt.Count = 1
	}
	return prefix + opt.RRuleString(), nil
}
