package models

import "time"

// SplitOutcome names the result of a "this and following" edit.
type SplitOutcome string

const (
	SplitOutcomeNoFuture     SplitOutcome = "no_future_occurrences"
	SplitOutcomeUpdatedWhole SplitOutcome = "updated_existing_only"
	SplitOutcomeSplit        SplitOutcome = "split"
)

// SeriesPatch holds the field values applied to the future part of a series
// (or the whole series when there is no past to preserve).
type SeriesPatch struct {
	Summary     *string      `json:"summary"`
	Description *string      `json:"description"`
	URL         *string      `json:"url"`
	Location    *string      `json:"location"`
	Status      *EventStatus `json:"status"`
	RRule       *string      `json:"rrule"`
	// StartTime replaces the time of day of the new anchor, formatted HH:MM.
	StartTime *string `json:"start_time"`
	// Duration replaces the occurrence length; nil keeps the original.
	Duration *time.Duration `json:"-"`
}

// ApplyDisplay copies the display fields of the patch onto the series.
func (p SeriesPatch) ApplyDisplay(s *EventSeries) {
	if p.Summary != nil {
		s.Summary = *p.Summary
	}
	if p.Description != nil {
		s.Description = p.Description
	}
	if p.URL != nil {
		s.URL = p.URL
	}
	if p.Location != nil {
		s.Location = p.Location
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
}

// SplitResult reports what a split did.
type SplitResult struct {
	Outcome           SplitOutcome `json:"outcome"`
	Original          *EventSeries `json:"original,omitempty"`
	Created           *EventSeries `json:"created,omitempty"`
	SplitDateKey      string       `json:"split_date_key,omitempty"`
	MigratedOverrides int          `json:"migrated_overrides"`
}

// DeletedKind tells whether deleteOccurrence removed a whole event or one date.
type DeletedKind string

const (
	DeletedKindEvent      DeletedKind = "event"
	DeletedKindOccurrence DeletedKind = "occurrence"
)
