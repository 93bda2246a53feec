package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	m1 := New("n1")
	m2 := New("n2")

	m1.Buffered.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m1.Buffered))
	assert.Equal(t, 0.0, testutil.ToFloat64(m2.Buffered))
}

func TestHandler_ExposesEngineMetrics(t *testing.T) {
	m := New("n1")
	m.PendingMessages.Set(3)
	m.Applied.WithLabelValues("cascade").Add(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `causalkv_engine_pending_messages{node="n1"} 3`), body)
	assert.True(t, strings.Contains(body, `causalkv_engine_applied_total{node="n1",path="cascade"} 2`), body)
}
