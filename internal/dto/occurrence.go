package dto

import (
	"time"

	"github.com/noah-isme/event-calendar-api/internal/models"
)

// OccurrenceQuery describes a listOccurrences request.
type OccurrenceQuery struct {
	SpaceIDs     []string  `form:"space_id"`
	EventTypeIDs []string  `form:"event_type_id"`
	EventIDs     []string  `form:"event_id"`
	Start        time.Time `form:"start" time_format:"2006-01-02T15:04:05Z07:00"`
	End          time.Time `form:"end" time_format:"2006-01-02T15:04:05Z07:00"`
	// IncludeExcluded returns excluded dates flagged is_excluded; editors only.
	IncludeExcluded bool `form:"include_excluded"`
}

// OccurrenceList is the payload of a listOccurrences response.
type OccurrenceList struct {
	Items []models.Occurrence `json:"items"`
	// Truncated is set when at least one series hit the expansion cap.
	Truncated bool `json:"truncated"`
	// CacheHit is true when every series was served from the occurrence cache.
	CacheHit bool `json:"-"`
}

// OverrideRequest is the body of an override upsert. Omitted fields keep
// their stored value.
type OverrideRequest struct {
	Summary     *string             `json:"summary" validate:"omitempty,min=1,max=255"`
	Description *string             `json:"description"`
	URL         *string             `json:"url" validate:"omitempty,url"`
	Location    *string             `json:"location" validate:"omitempty,max=255"`
	DTStart     *time.Time          `json:"dtstart"`
	DTEnd       *time.Time          `json:"dtend"`
	Status      *models.EventStatus `json:"status" validate:"omitempty,oneof=tentative confirmed cancelled"`
	Notes       *string             `json:"notes" validate:"omitempty,max=1000"`
}

// Patch converts the request into the model patch.
func (r OverrideRequest) Patch() models.OverridePatch {
	return models.OverridePatch{
		Summary:     r.Summary,
		Description: r.Description,
		URL:         r.URL,
		Location:    r.Location,
		DTStart:     r.DTStart,
		DTEnd:       r.DTEnd,
		Status:      r.Status,
		Notes:       r.Notes,
	}
}

// DeleteOccurrenceResponse reports what deleteOccurrence removed.
type DeleteOccurrenceResponse struct {
	DeletedKind models.DeletedKind `json:"deleted_kind"`
}

// ExportQuery selects the occurrences rendered by an agenda export.
type ExportQuery struct {
	OccurrenceQuery
	Format string `form:"format"`
}
