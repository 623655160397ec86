package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lewisedginton/triage_assistant/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestHTTPMiddleware(t *testing.T) {
	m := NewMetrics(true, false, logger.NewNopLogger())

	handler := m.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/error" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/error", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("500")))
	assert.Contains(t, scrape(t, m), "triage_http_request_duration_seconds_count 4")
}

func TestHTTPMiddlewareDisabled(t *testing.T) {
	m := NewMetrics(false, false, logger.NewNopLogger())
	called := false
	handler := m.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
	assert.NotContains(t, scrape(t, m), "http_responses_total")
}

func TestGrpcInterceptor(t *testing.T) {
	m := NewMetrics(false, true, logger.NewNopLogger())
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := m.GrpcRequestsInterceptor(context.Background(), "req", info,
		func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = m.GrpcRequestsInterceptor(context.Background(), "req", info,
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, status.Error(codes.PermissionDenied, "no")
		})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GrpcRequests.WithLabelValues(codes.OK.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GrpcRequests.WithLabelValues(codes.PermissionDenied.String())))
}

func TestTriageMetrics(t *testing.T) {
	m := NewMetrics(false, false, logger.NewNopLogger())

	m.Triage.ObserveTurn("emergency", true, false, 0, false)
	m.Triage.ObserveTurn("symptom_query", false, true, 0.12, true)
	m.Triage.ObserveTurn("symptom_query", false, false, 0.58, true)
	m.Triage.ObserveClassifierFallback("timeout")
	m.Triage.SetActiveSessions(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Triage.Intents.WithLabelValues("symptom_query")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Triage.Emergencies))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Triage.InsufficientInformation))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Triage.ClassifierFallbacks.WithLabelValues("timeout")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Triage.ActiveSessions))
	assert.Contains(t, scrape(t, m), "triage_match_top_score_count 2")

	var nilMetrics *TriageMetrics
	assert.NotPanics(t, func() {
		nilMetrics.ObserveTurn("greeting", false, false, 0, false)
		nilMetrics.ObserveClassifierFallback("error")
		nilMetrics.SetActiveSessions(1)
	})
}

func TestAddCustomMetric(t *testing.T) {
	m := NewMetrics(false, false, logger.NewNopLogger())
	g := prometheus.NewGauge(prometheus.GaugeOpts{Subsystem: "test", Name: "foo", Help: "foo help"})
	m.AddCustomMetric(g)
	g.Set(1.234)
	assert.Contains(t, scrape(t, m), "test_foo 1.234")
}

func TestListen(t *testing.T) {
	m := NewMetrics(true, false, logger.NewNopLogger())
	port := rand.New(rand.NewSource(time.Now().UnixNano())).Intn(16384) + 49152

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Listen(ctx, port) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/metrics", port))
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.True(t, strings.Contains(body, "triage_active_sessions"))

	cancel()
	select {
	case err := <-done:
		assert.False(t, err != nil && !errors.Is(err, http.ErrServerClosed))
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestResponseWriter(t *testing.T) {
	recorder := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: recorder, statusCode: http.StatusOK}
	rw.WriteHeader(http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, rw.statusCode)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Same(t, recorder, rw.Unwrap())
}
