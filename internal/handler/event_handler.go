package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/event-calendar-api/internal/dto"
	"github.com/noah-isme/event-calendar-api/internal/models"
	appErrors "github.com/noah-isme/event-calendar-api/pkg/errors"
	"github.com/noah-isme/event-calendar-api/pkg/response"
)

type seriesService interface {
	Get(ctx context.Context, id string, viewer *models.JWTClaims) (*models.EventSeries, error)
	Create(ctx context.Context, req dto.CreateSeriesRequest, actor *models.JWTClaims) (*models.EventSeries, error)
	Update(ctx context.Context, id string, req dto.UpdateSeriesRequest, actor *models.JWTClaims) (*models.EventSeries, error)
	SplitSeriesFrom(ctx context.Context, id string, req dto.SplitRequest, actor *models.JWTClaims) (*models.SplitResult, error)
}

type overrideService interface {
	UpsertOverride(ctx context.Context, eventID, occurrenceDate string, req dto.OverrideRequest, actor *models.JWTClaims) (*models.OccurrenceOverride, error)
	DeleteOccurrence(ctx context.Context, eventID, occurrenceDate string, actor *models.JWTClaims) (models.DeletedKind, error)
	RemoveOverride(ctx context.Context, eventID, occurrenceDate string, actor *models.JWTClaims) error
}

// EventHandler manages event series and their per-occurrence exceptions.
type EventHandler struct {
	series    seriesService
	overrides overrideService
}

// NewEventHandler constructs the handler.
func NewEventHandler(series seriesService, overrides overrideService) *EventHandler {
	return &EventHandler{series: series, overrides: overrides}
}

// Get godoc
// @Summary Get event series
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	series, err := h.series.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series)
}

// Create godoc
// @Summary Create event series
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateSeriesRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event payload"))
		return
	}
	series, err := h.series.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, series)
}

// Update godoc
// @Summary Update the whole event series
// @Description Changes every occurrence, past and future. Bumps the sequence.
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Param payload body dto.UpdateSeriesRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /events/{id} [patch]
func (h *EventHandler) Update(c *gin.Context) {
	var req dto.UpdateSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event payload"))
		return
	}
	series, err := h.series.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series)
}

// Split godoc
// @Summary Edit this and following occurrences
// @Description Ends the series before split_at and moves the rest, with its exclusions and overrides, to a new series carrying the changes.
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Param payload body dto.SplitRequest true "Split payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /events/{id}/split [post]
func (h *EventHandler) Split(c *gin.Context) {
	var req dto.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid split payload"))
		return
	}
	result, err := h.series.SplitSeriesFrom(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// UpsertOverride godoc
// @Summary Create or patch an occurrence override
// @Tags Overrides
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Param date path string true "Occurrence date (YYYY-MM-DD)"
// @Param payload body dto.OverrideRequest true "Override fields"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/{id}/occurrences/{date}/override [put]
func (h *EventHandler) UpsertOverride(c *gin.Context) {
	var req dto.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid override payload"))
		return
	}
	override, err := h.overrides.UpsertOverride(c.Request.Context(), c.Param("id"), c.Param("date"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, override)
}

// RemoveOverride godoc
// @Summary Remove an occurrence override
// @Description The occurrence stays and reverts to the series values.
// @Tags Overrides
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Param date path string true "Occurrence date (YYYY-MM-DD)"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/occurrences/{date}/override [delete]
func (h *EventHandler) RemoveOverride(c *gin.Context) {
	if err := h.overrides.RemoveOverride(c.Request.Context(), c.Param("id"), c.Param("date"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteOccurrence godoc
// @Summary Delete one occurrence
// @Description Excludes the date from a recurring series, or deletes a single event.
// @Tags Overrides
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Param date path string true "Occurrence date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/occurrences/{date} [delete]
func (h *EventHandler) DeleteOccurrence(c *gin.Context) {
	kind, err := h.overrides.DeleteOccurrence(c.Request.Context(), c.Param("id"), c.Param("date"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DeleteOccurrenceResponse{DeletedKind: kind})
}
