package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordTransition("approve(dc)", OutcomeApplied)
	m.RecordTransition("approve(dc)", OutcomeApplied)
	m.RecordTransition("approve(dc)", OutcomePreconditionFailed)
	m.RecordNotification("enqueue", nil)
	m.RecordNotification("deliver", errors.New("smtp down"))
	m.RecordRequest("/api/issues", http.MethodGet, http.StatusOK, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve(dc)", OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve(dc)", OutcomePreconditionFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("deliver", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestTotal.WithLabelValues(http.MethodGet, "/api/issues", "200")))
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetrics()
	m.RecordTransition("reject(root)", OutcomeApplied)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `issue_transitions_total{action="reject(root)",outcome="applied"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordTransition("approve(dc)", OutcomeApplied)
	m.RecordError("/x", http.MethodGet, "NOT_FOUND")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
