package dto

import (
	"time"

	"github.com/noah-isme/event-calendar-api/internal/models"
)

// CreateSeriesRequest is the payload for creating an event series.
type CreateSeriesRequest struct {
	SpaceID     string     `json:"space_id" validate:"required"`
	EventTypeID string     `json:"event_type_id" validate:"required"`
	Summary     string     `json:"summary" validate:"required,max=255"`
	Description *string    `json:"description"`
	URL         *string    `json:"url" validate:"omitempty,url"`
	Location    *string    `json:"location" validate:"omitempty,max=255"`
	DTStart     time.Time  `json:"dtstart" validate:"required"`
	DTEnd       *time.Time `json:"dtend"`
	AllDay      bool       `json:"all_day"`
	Timezone    *string    `json:"timezone"`
	RRule       *string    `json:"rrule"`
	// RecurrenceEndDate bounds the rule, exclusive.
	RecurrenceEndDate *time.Time         `json:"recurrence_end_date"`
	ExDates           []string           `json:"exdates" validate:"omitempty,dive,datekey"`
	Status            models.EventStatus `json:"status" validate:"omitempty,oneof=tentative confirmed cancelled"`
	Draft             bool               `json:"draft"`
	Internal          *bool              `json:"internal"`
}

// UpdateSeriesRequest patches a whole series in place. Omitted fields are kept.
type UpdateSeriesRequest struct {
	Summary           *string             `json:"summary" validate:"omitempty,min=1,max=255"`
	Description       *string             `json:"description"`
	URL               *string             `json:"url" validate:"omitempty,url"`
	Location          *string             `json:"location" validate:"omitempty,max=255"`
	DTStart           *time.Time          `json:"dtstart"`
	DTEnd             *time.Time          `json:"dtend"`
	AllDay            *bool               `json:"all_day"`
	Timezone          *string             `json:"timezone"`
	RRule             *string             `json:"rrule"`
	RecurrenceEndDate *time.Time          `json:"recurrence_end_date"`
	Status            *models.EventStatus `json:"status" validate:"omitempty,oneof=tentative confirmed cancelled"`
	Draft             *bool               `json:"draft"`
	Internal          *bool               `json:"internal"`
}

// SplitRequest is the body of a "this and following" edit.
type SplitRequest struct {
	SplitAt     time.Time           `json:"split_at" validate:"required"`
	Summary     *string             `json:"summary" validate:"omitempty,min=1,max=255"`
	Description *string             `json:"description"`
	URL         *string             `json:"url" validate:"omitempty,url"`
	Location    *string             `json:"location" validate:"omitempty,max=255"`
	Status      *models.EventStatus `json:"status" validate:"omitempty,oneof=tentative confirmed cancelled"`
	RRule       *string             `json:"rrule"`
	// StartTime moves the time of day of the future series, HH:MM.
	StartTime       *string `json:"start_time" validate:"omitempty,datetime=15:04"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,min=0,max=10080"`
}

// Patch converts the request into the model patch.
func (r SplitRequest) Patch() models.SeriesPatch {
	patch := models.SeriesPatch{
		Summary:     r.Summary,
		Description: r.Description,
		URL:         r.URL,
		Location:    r.Location,
		Status:      r.Status,
		RRule:       r.RRule,
		StartTime:   r.StartTime,
	}
	if r.DurationMinutes != nil {
		d := time.Duration(*r.DurationMinutes) * time.Minute
		patch.Duration = &d
	}
	return patch
}
