package models

import "time"

// OccurrenceOverride is a sparse per-date exception keyed by
// (EventID, OccurrenceDate). Nil fields inherit from the parent series.
type OccurrenceOverride struct {
	ID             string       `db:"id" json:"id"`
	EventID        string       `db:"event_id" json:"event_id"`
	OccurrenceDate string       `db:"occurrence_date" json:"occurrence_date"`
	Summary        *string      `db:"summary" json:"summary,omitempty"`
	Description    *string      `db:"description" json:"description,omitempty"`
	URL            *string      `db:"url" json:"url,omitempty"`
	Location       *string      `db:"location" json:"location,omitempty"`
	DTStart        *time.Time   `db:"dtstart" json:"dtstart,omitempty"`
	DTEnd          *time.Time   `db:"dtend" json:"dtend,omitempty"`
	Status         *EventStatus `db:"status" json:"status,omitempty"`
	Notes          *string      `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// OverridePatch lists the override fields a caller wants to set. Nil leaves
// the stored value untouched.
type OverridePatch struct {
	Summary     *string      `json:"summary"`
	Description *string      `json:"description"`
	URL         *string      `json:"url"`
	Location    *string      `json:"location"`
	DTStart     *time.Time   `json:"dtstart"`
	DTEnd       *time.Time   `json:"dtend"`
	Status      *EventStatus `json:"status"`
	Notes       *string      `json:"notes"`
}

// Apply copies the supplied fields onto the override.
func (p OverridePatch) Apply(o *OccurrenceOverride) {
	if p.Summary != nil {
		o.Summary = p.Summary
	}
	if p.Description != nil {
		o.Description = p.Description
	}
	if p.URL != nil {
		o.URL = p.URL
	}
	if p.Location != nil {
		o.Location = p.Location
	}
	if p.DTStart != nil {
		o.DTStart = p.DTStart
	}
	if p.DTEnd != nil {
		o.DTEnd = p.DTEnd
	}
	if p.Status != nil {
		o.Status = p.Status
	}
	if p.Notes != nil {
		o.Notes = p.Notes
	}
}

// Occurrence is a materialized, display-ready instance. It is derived per
// query and never persisted.
type Occurrence struct {
	ID             string      `json:"id"`
	EventID        string      `json:"event_id"`
	OccurrenceDate string      `json:"occurrence_date"`
	SpaceID        string      `json:"space_id"`
	EventTypeID    string      `json:"event_type_id"`
	Summary        string      `json:"summary"`
	Description    *string     `json:"description,omitempty"`
	URL            *string     `json:"url,omitempty"`
	Location       *string     `json:"location,omitempty"`
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	AllDay         bool        `json:"all_day"`
	Status         EventStatus `json:"status"`
	Notes          *string     `json:"notes,omitempty"`
	Sequence       int         `json:"sequence"`
	IsOverridden   bool        `json:"is_overridden"`
	IsRecurring    bool        `json:"is_recurring"`
	IsExcluded     bool        `json:"is_excluded,omitempty"`
	Draft          bool        `json:"draft"`
	Internal       bool        `json:"internal"`
}

// OccurrenceID builds the stable identifier {eventId}:{occurrenceDate}.
func OccurrenceID(eventID, dateKey string) string {
	return eventID + ":" + dateKey
}
