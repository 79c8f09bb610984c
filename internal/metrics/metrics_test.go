package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	m := New()
	m.RecordOperation(OpCreateVersion, nil, 10*time.Millisecond)
	m.RecordOperation(OpCreateVersion, errors.New("boom"), time.Millisecond)
	m.RecordOperation(OpCreateVersion, nil, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(OpCreateVersion, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(OpCreateVersion, "error")))
}

func TestRecordComparisonCountsOnlyBreaking(t *testing.T) {
	m := New()
	m.RecordComparison(false)
	m.RecordComparison(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakingTotal))
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordCacheLookup(true)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheLookups.WithLabelValues("hit")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordOperation(OpCompare, nil, time.Second)
	m.RecordComparison(true)
	m.RecordHTTPRequest("GET", 200, time.Second)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("GET", 200, time.Millisecond)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "mdversion_http_requests_total"))
}
