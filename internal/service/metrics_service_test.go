package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-calendar-api/internal/models"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.ObserveMaterialize(12, false, time.Millisecond)
	m.ObserveMaterialize(3, true, time.Millisecond)
	m.RecordInvalidRule()
	m.RecordSplit(models.SplitOutcomeSplit)
	m.RecordSplit(models.SplitOutcomeSplit)
	m.RecordMutation(models.AuditActionOverrideUpsert)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)

	assert.Equal(t, float64(15), testutil.ToFloat64(m.occurrences))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.truncations))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.invalidRules))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.splits.WithLabelValues(string(models.SplitOutcomeSplit))))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.mutations.WithLabelValues(models.AuditActionOverrideUpsert)))
	assert.InDelta(t, 2.0/3.0, testutil.ToFloat64(m.cacheHitRatio), 0.0001)
}

func TestMetricsServiceHandler(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/occurrences", http.StatusOK, 5*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `http_requests_total{method="GET",path="/api/v1/occurrences",status="200"} 1`))

	var nilMetrics *MetricsService
	nilMetrics.RecordInvalidRule()
	w = httptest.NewRecorder()
	nilMetrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
