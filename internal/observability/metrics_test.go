package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-ledger/internal/domain"
	"token-ledger/internal/ledger"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics("test", reg), reg
}

func TestMetrics_Observer(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.OperationCommitted(ledger.OpTransfer, &domain.Event{Seq: 7})
	m.OperationCommitted(ledger.OpTransfer, &domain.Event{Seq: 8})
	m.OperationRejected(ledger.OpTransferFrom, ledger.ErrInsufficientAllowance)
	m.OperationRejected(ledger.OpApprove, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OperationsCommitted.WithLabelValues("transfer")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.LastCommittedSeq))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsRejected.WithLabelValues("transfer_from", ledger.KindInsufficientAllowance)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsRejected.WithLabelValues("approve", ledger.KindUnknown)))
}

func TestMetrics_RecordExport(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordExport("postgres", 5, nil)
	m.RecordExport("postgres", 3, nil)
	m.RecordExport("postgres", 2, errors.New("connection reset"))
	m.SetExporterLag("postgres", 4)

	assert.Equal(t, 8.0, testutil.ToFloat64(m.EventsExported.WithLabelValues("postgres")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportErrors.WithLabelValues("postgres")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ExporterLag.WithLabelValues("postgres")))
	assert.Greater(t, testutil.ToFloat64(m.LastSuccessfulExport), 0.0)
}

func TestHandlerFor(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.RecordHTTPRequest("/token", http.MethodGet, http.StatusOK, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "test_http_request_duration_seconds"))
}
