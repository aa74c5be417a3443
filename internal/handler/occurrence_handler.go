package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/event-calendar-api/internal/dto"
	"github.com/noah-isme/event-calendar-api/internal/middleware"
	"github.com/noah-isme/event-calendar-api/internal/models"
	appErrors "github.com/noah-isme/event-calendar-api/pkg/errors"
	"github.com/noah-isme/event-calendar-api/pkg/response"
)

type occurrenceService interface {
	ListOccurrences(ctx context.Context, q dto.OccurrenceQuery, viewer *models.JWTClaims) (*dto.OccurrenceList, error)
	NextOccurrence(ctx context.Context, eventID string, viewer *models.JWTClaims) (*models.Occurrence, error)
}

// OccurrenceHandler serves materialized occurrences.
type OccurrenceHandler struct {
	service occurrenceService
}

// NewOccurrenceHandler constructs the handler.
func NewOccurrenceHandler(service occurrenceService) *OccurrenceHandler {
	return &OccurrenceHandler{service: service}
}

// List godoc
// @Summary List occurrences in a window
// @Description Expands every matching series into the occurrences starting inside [start, end]. Anonymous callers see published events only.
// @Tags Occurrences
// @Produce json
// @Param space_id query []string false "Space IDs"
// @Param event_type_id query []string false "Event type IDs"
// @Param event_id query []string false "Event IDs"
// @Param start query string true "Window start (RFC3339)"
// @Param end query string true "Window end (RFC3339)"
// @Param include_excluded query bool false "Return excluded dates flagged is_excluded (editors)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /occurrences [get]
func (h *OccurrenceHandler) List(c *gin.Context) {
	var q dto.OccurrenceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start and end must be RFC3339 timestamps"))
		return
	}

	list, err := h.service.ListOccurrences(c.Request.Context(), q, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, list.CacheHit)
	response.JSON(c, http.StatusOK, list, responseMeta(c, map[string]interface{}{
		"count":     len(list.Items),
		"truncated": list.Truncated,
	}))
}

// Next godoc
// @Summary Next upcoming occurrence of an event
// @Tags Occurrences
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/next [get]
func (h *OccurrenceHandler) Next(c *gin.Context) {
	occ, err := h.service.NextOccurrence(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occ)
}
