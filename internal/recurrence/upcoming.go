package recurrence

import (
	"time"

	"github.com/noah-isme/event-calendar-api/internal/models"
)

// NextUpcoming returns the first occurrence that has not ended at now, skipping
// cancelled ones. occs must be sorted by start. It returns nil when none is left.
func NextUpcoming(occs []models.Occurrence, now time.Time) *models.Occurrence {
	for i := range occs {
		occ := occs[i]
		if occ.End.Before(now) {
			continue
		}
		if occ.Status == models.EventStatusCancelled || occ.IsExcluded {
			continue
		}
		return &occ
	}
	return nil
}
