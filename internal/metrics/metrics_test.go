package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weddingsync/internal/core"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveHTTP(http.MethodGet, "/api/summary", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTP(http.MethodGet, "/api/summary", http.StatusOK, 30*time.Millisecond)
	m.ObserveAI("scan_receipt", nil, time.Second)
	m.ObserveAI("scan_receipt", errors.New("boom"), time.Second)
	m.RateLimited()
	m.BackupWritten(nil)
	require.NoError(t, m.ProfileChanged(context.Background(), core.ChangeEvent{Reason: "expense.saved"}))
	m.SetTotals(core.Money{Cents: 100050}, core.Money{Cents: 20000})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/summary", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.aiCalls.WithLabelValues("scan_receipt", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backups.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("expense.saved")))
	assert.Equal(t, 1000.5, testutil.ToFloat64(m.workspaceBudget))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "weddingsync_rate_limited_total 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.RateLimited()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.rateLimited))
}
