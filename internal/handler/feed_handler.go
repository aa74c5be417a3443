package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/event-calendar-api/internal/dto"
	"github.com/noah-isme/event-calendar-api/internal/models"
	"github.com/noah-isme/event-calendar-api/internal/service"
	appErrors "github.com/noah-isme/event-calendar-api/pkg/errors"
	"github.com/noah-isme/event-calendar-api/pkg/response"
)

type feedService interface {
	SpaceFeed(ctx context.Context, spaceID string) (string, error)
}

type exportService interface {
	Agenda(ctx context.Context, q dto.ExportQuery, viewer *models.JWTClaims) (*service.ExportFile, error)
}

// FeedHandler publishes calendars outside the JSON API.
type FeedHandler struct {
	feeds   feedService
	exports exportService
}

// NewFeedHandler constructs the handler.
func NewFeedHandler(feeds feedService, exports exportService) *FeedHandler {
	return &FeedHandler{feeds: feeds, exports: exports}
}

// SpaceFeed godoc
// @Summary iCalendar subscription feed of a space
// @Tags Feeds
// @Produce text/calendar
// @Param space_id path string true "Space ID, optionally suffixed .ics"
// @Success 200 {string} string "text/calendar"
// @Router /feeds/{space_id} [get]
func (h *FeedHandler) SpaceFeed(c *gin.Context) {
	spaceID := strings.TrimSuffix(c.Param("space_id"), ".ics")
	if spaceID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "space_id is required"))
		return
	}
	body, err := h.feeds.SpaceFeed(c.Request.Context(), spaceID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+spaceID+`.ics"`)
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// ExportAgenda godoc
// @Summary Export occurrences as an agenda document
// @Tags Feeds
// @Produce text/csv
// @Produce application/pdf
// @Param start query string true "Window start (RFC3339)"
// @Param end query string true "Window end (RFC3339)"
// @Param space_id query []string false "Space IDs"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /exports/occurrences [get]
func (h *FeedHandler) ExportAgenda(c *gin.Context) {
	var q dto.ExportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start and end must be RFC3339 timestamps"))
		return
	}
	file, err := h.exports.Agenda(c.Request.Context(), q, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Body)
}
