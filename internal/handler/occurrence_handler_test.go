package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-calendar-api/internal/dto"
	"github.com/noah-isme/event-calendar-api/internal/middleware"
	"github.com/noah-isme/event-calendar-api/internal/models"
	appErrors "github.com/noah-isme/event-calendar-api/pkg/errors"
)

type occurrenceServiceMock struct {
	query  dto.OccurrenceQuery
	viewer *models.JWTClaims
	list   *dto.OccurrenceList
	next   *models.Occurrence
	err    error
}

func (m *occurrenceServiceMock) ListOccurrences(ctx context.Context, q dto.OccurrenceQuery, viewer *models.JWTClaims) (*dto.OccurrenceList, error) {
	m.query, m.viewer = q, viewer
	if m.err != nil {
		return nil, m.err
	}
	return m.list, nil
}

func (m *occurrenceServiceMock) NextOccurrence(ctx context.Context, eventID string, viewer *models.JWTClaims) (*models.Occurrence, error) {
	m.viewer = viewer
	if m.err != nil {
		return nil, m.err
	}
	return m.next, nil
}

func TestOccurrenceHandlerListParsesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &occurrenceServiceMock{list: &dto.OccurrenceList{
		Items:    []models.Occurrence{{ID: "evt-1:2024-06-04", OccurrenceDate: "2024-06-04"}},
		CacheHit: true,
	}}
	handler := NewOccurrenceHandler(mockSvc)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet,
		"/occurrences?space_id=space-1&space_id=space-2&start=2024-06-01T00:00:00%2B02:00&end=2024-07-01T00:00:00Z&include_excluded=true", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleEditor})

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"space-1", "space-2"}, mockSvc.query.SpaceIDs)
	assert.True(t, mockSvc.query.Start.Equal(time.Date(2024, 5, 31, 22, 0, 0, 0, time.UTC)))
	assert.True(t, mockSvc.query.End.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, mockSvc.query.IncludeExcluded)
	require.NotNil(t, mockSvc.viewer)
	assert.Equal(t, "HIT", w.Header().Get(middleware.CacheHeader))

	var body struct {
		Data dto.OccurrenceList       `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Items, 1)
	assert.Equal(t, float64(1), body.Meta["count"])
	assert.Equal(t, false, body.Meta["truncated"])
}

func TestOccurrenceHandlerListAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &occurrenceServiceMock{list: &dto.OccurrenceList{}}
	handler := NewOccurrenceHandler(mockSvc)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/occurrences?start=2024-06-01T00:00:00Z&end=2024-07-01T00:00:00Z", nil)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, mockSvc.viewer)
	assert.Equal(t, "MISS", w.Header().Get(middleware.CacheHeader))
}

func TestOccurrenceHandlerListErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/occurrences?start=yesterday", nil)
	NewOccurrenceHandler(&occurrenceServiceMock{}).List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/occurrences?start=2024-06-01T00:00:00Z", nil)
	NewOccurrenceHandler(&occurrenceServiceMock{err: appErrors.Clone(appErrors.ErrUnbounded, "end is required")}).List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "UNBOUNDED_WINDOW")
}

func TestOccurrenceHandlerNext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &occurrenceServiceMock{next: &models.Occurrence{ID: "evt-1:2024-06-18"}}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/events/evt-1/next", nil)
	c.Params = gin.Params{{Key: "id", Value: "evt-1"}}

	NewOccurrenceHandler(mockSvc).Next(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "evt-1:2024-06-18")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/events/evt-1/next", nil)
	NewOccurrenceHandler(&occurrenceServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "no upcoming occurrence")}).Next(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
