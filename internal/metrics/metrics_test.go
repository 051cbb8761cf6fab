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

func TestRecordBackendOp(t *testing.T) {
	ok := backendOpsTotal.WithLabelValues("test", "read_dir", "success")
	failed := backendOpsTotal.WithLabelValues("test", "read_dir", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordBackendOp("test", "read_dir", time.Millisecond, nil)
	RecordBackendOp("test", "read_dir", time.Millisecond, errors.New("boom"))
	RecordBackendOp("test", "read_dir", time.Millisecond, nil)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestRecordBytesWritten(t *testing.T) {
	c := bytesWritten.WithLabelValues("test")
	before := testutil.ToFloat64(c)
	RecordBytesWritten("test", 13)
	assert.Equal(t, before+13, testutil.ToFloat64(c))
}

func TestHandler(t *testing.T) {
	RecordProjectOp("test", "save", time.Millisecond, nil)
	RecordHTTPRequest(http.MethodGet, "/api/tree", http.StatusOK)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body, `ezworkspace_project_operations_total{op="save",status="success",store="test"}`))
	assert.True(t, strings.Contains(body, `ezworkspace_http_requests_total{method="GET",route="/api/tree",status="200"}`))
}
