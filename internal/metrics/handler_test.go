package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestHandler_ServesMetrics はスクレイプでメトリクスが返ることを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordTokenIssued()

	handler := Handler(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "moreblogs_tokens_issued_total 1") {
		t.Errorf("response should contain moreblogs_tokens_issued_total, got:\n%s", body)
	}
}

// TestHandler_DoesNotExposeUnregisteredCollectors は別レジストリのメトリクスが混ざらないことを検証する。
func TestHandler_DoesNotExposeUnregisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	other := prometheus.NewRegistry()
	NewCollector(other).RecordTokenIssued()

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if strings.Contains(w.Body.String(), "moreblogs_tokens_issued_total") {
		t.Error("metrics from another registry should not be exposed")
	}
}
