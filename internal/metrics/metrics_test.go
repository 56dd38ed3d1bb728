package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"promptbuilder/internal/tester"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveOutcome("refine", "fallback")
	m.ObserveOutcome("refine", "fallback")
	m.ObserveSave(nil)
	m.ObserveSave(errors.New("x"))
	m.ObserveLLMCall("gemini-2.5-flash", "refine", time.Second, nil)
	m.ObserveHTTP("/ws/compose", 101, time.Millisecond)
	m.SetSessions(3)

	tester.Eq(t, testutil.ToFloat64(m.outcomes.WithLabelValues("refine", "fallback")), 2.0)
	tester.Eq(t, testutil.ToFloat64(m.saves.WithLabelValues("error")), 1.0)
	tester.Eq(t, testutil.ToFloat64(m.llmCalls.WithLabelValues("gemini-2.5-flash", "refine", "ok")), 1.0)
	tester.Eq(t, testutil.ToFloat64(m.sessions), 3.0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveOutcome("analyze", "primary")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	tester.True(t, strings.Contains(string(body), `promptbuilder_ai_outcomes_total{op="analyze",outcome="primary"} 1`), string(body))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOutcome("refine", "primary")
	m.ObserveSave(nil)
	m.ObserveLLMCall("m", "p", 0, nil)
	m.ObserveHTTP("/", 200, 0)
	m.SetSessions(1)
	tester.True(t, m.Registry() == nil)
}
