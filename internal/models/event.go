package models

import "time"

// EventStatus mirrors the iCalendar VEVENT STATUS values.
type EventStatus string

const (
	EventStatusTentative EventStatus = "tentative"
	EventStatusConfirmed EventStatus = "confirmed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Valid reports whether the status is one of the supported values.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusTentative, EventStatusConfirmed, EventStatusCancelled:
		return true
	default:
		return false
	}
}

// EventSeries is one stored event definition, either a single occurrence or a
// recurring series. A nil RRule means exactly one occurrence at DTStart.
type EventSeries struct {
	ID          string  `db:"id" json:"id"`
	SpaceID     string  `db:"space_id" json:"space_id"`
	EventTypeID string  `db:"event_type_id" json:"event_type_id"`
	Summary     string  `db:"summary" json:"summary"`
	Description *string `db:"description" json:"description,omitempty"`
	URL         *string `db:"url" json:"url,omitempty"`
	// Location nil means the space default applies.
	Location *string    `db:"location" json:"location,omitempty"`
	DTStart  time.Time  `db:"dtstart" json:"dtstart"`
	DTEnd    *time.Time `db:"dtend" json:"dtend,omitempty"`
	AllDay   bool       `db:"all_day" json:"all_day"`
	// Timezone pins the wall clock of the rule; nil falls back to the application zone.
	Timezone          *string     `db:"timezone" json:"timezone,omitempty"`
	RRule             *string     `db:"rrule" json:"rrule,omitempty"`
	RecurrenceEndDate *time.Time  `db:"recurrence_end_date" json:"recurrence_end_date,omitempty"`
	ExDates           *string     `db:"exdates" json:"exdates,omitempty"`
	Status            EventStatus `db:"status" json:"status"`
	Draft             bool        `db:"draft" json:"draft"`
	// Internal nil means the event type default applies.
	Internal  *bool     `db:"internal" json:"internal,omitempty"`
	Sequence  int       `db:"sequence" json:"sequence"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Joined defaults, read-only.
	TypeDefaultDurationMinutes int     `db:"type_default_duration_minutes" json:"-"`
	TypeInternal               bool    `db:"type_internal" json:"-"`
	SpaceLocation              *string `db:"space_location" json:"-"`
}

// IsRecurring reports whether the series carries a recurrence rule.
func (e *EventSeries) IsRecurring() bool {
	return e.RRule != nil && *e.RRule != ""
}

// IsInternal resolves the internal flag against the event type default.
func (e *EventSeries) IsInternal() bool {
	if e.Internal != nil {
		return *e.Internal
	}
	return e.TypeInternal
}

// SeriesFilter narrows the series considered by an occurrence query.
type SeriesFilter struct {
	IDs          []string
	SpaceIDs     []string
	EventTypeIDs []string
	WindowStart  time.Time
	WindowEnd    time.Time
	// IncludeDrafts lets authenticated viewers see draft series.
	IncludeDrafts bool
}
