package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/outletsync/internal/core"
)

func TestBatchCompleted(t *testing.T) {
	m := New("test", false)

	entries := []core.ErrorEntry{
		{Row: 1, Kind: core.KindVendorNotFound, Code: core.KindVendorNotFound.Code()},
		{Row: 3, Kind: core.KindCompanySaveFailed, Code: core.KindCompanySaveFailed.Code()},
		{Row: 3, Kind: core.KindMissingCompanyID, Code: core.KindMissingCompanyID.Code()},
	}
	m.BatchCompleted(core.StrategyBatched, 10, entries, 1500*time.Millisecond)
	m.BatchCompleted(core.StrategyImmediate, 2, nil, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues("batched")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.rows.WithLabelValues("batched", OutcomeSucceeded)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues("batched", OutcomeFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues("immediate", OutcomeSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rowErrors.WithLabelValues("VendorNotFound", "ROW002")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.batchDuration))
}

func TestBatchRejected(t *testing.T) {
	m := New("test", false)
	m.BatchRejected("busy")
	m.BatchRejected("busy")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejected.WithLabelValues("busy")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New("test", false)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/stores/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/api/stores/1", "/api/stores/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/stores/{id}", "418")))
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New("outletsync", true)
	m.BatchRejected("timeout")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `outletsync_batches_rejected_total{reason="timeout"} 1`), body)
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
