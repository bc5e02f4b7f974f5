package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengjr9/gemini-relay/internal/relay"
)

func TestManager_ObserveAsk(t *testing.T) {
	m := NewManager()

	m.ObserveAsk(relay.OutcomeSucceeded, 20*time.Millisecond)
	m.ObserveAsk(relay.OutcomeSucceeded, 30*time.Millisecond)
	m.ObserveAsk(relay.OutcomeUpstreamFailed, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.asks.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.asks.WithLabelValues("upstream_failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.asks.WithLabelValues("extraction_failed")))
}

func TestManager_ObserveHTTP(t *testing.T) {
	m := NewManager(WithNamespace("test"), WithSubsystem("relay"))

	m.ObserveHTTP(http.MethodPost, "/ask", http.StatusOK, time.Millisecond)
	m.ObserveHTTP(http.MethodPost, "/ask", http.StatusServiceUnavailable, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/ask", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/ask", "503")))
}

func TestManager_Handler(t *testing.T) {
	m := NewManager(WithHistogramBuckets([]float64{0.1, 1}))
	m.ObserveAsk(relay.OutcomeExtractionFailed, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	assert.True(t, strings.Contains(text, `gemini_relay_asks_total{outcome="extraction_failed"} 1`), text)
	assert.Contains(t, text, `gemini_relay_ask_duration_seconds_bucket{outcome="extraction_failed",le="0.1"} 1`)
}

func TestNewManager_SeparateRegistries(t *testing.T) {
	// Two managers must not collide on registration.
	a := NewManager(WithRuntimeCollectors(true))
	b := NewManager(WithRuntimeCollectors(true))
	assert.NotSame(t, a.Registry(), b.Registry())
}
