package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firezone/firezone-sub013/internal/metrics"
)

// ---------- Metrics ----------

func TestMetrics_CollapsesRouteToPattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/v1/flows/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/flows/abc123", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	got := testutil.ToFloat64(metrics.APIRequests.WithLabelValues(http.MethodGet, "/v1/flows/{id}", "204"))
	assert.Equal(t, float64(1), got)
}

// ---------- RequestLogger ----------

func TestRequestLogger_EmitsOneLinePerRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/flows/authorize", nil))

	line := buf.String()
	assert.Equal(t, 1, strings.Count(line, "\n"))
	assert.Contains(t, line, `"path":"/v1/flows/authorize"`)
	assert.Contains(t, line, `"status":418`)
	assert.Contains(t, line, "request_id")
}
