package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()
	m.TurnStarted()
	m.TurnFinished("panel", "ok", 2*time.Second)
	m.RecordGeneration("gemini", "stream", nil, time.Second)
	m.RecordGeneration("gemini", "stream", errors.New("boom"), time.Second)
	m.RecordCall("create_task", true)
	m.RecordRouting("keyword", "cfo")

	assert.InDelta(t, 1, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("panel", "ok")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.TurnsInFlight), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GenerationTotal.WithLabelValues("gemini", "stream", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CallsTotal.WithLabelValues("create_task", "ok")), 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "boardroom_routing_decisions_total"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.TurnStarted()
	m.TurnFinished("direct", "ok", time.Second)
	m.RecordCall("x", false)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
