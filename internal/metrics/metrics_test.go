package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名・ラベルのメトリクスを探す。labelsがnilの場合は最初の1件を返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m
			}
		}
	}
	return nil
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	for k, want := range labels {
		found := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == want {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DuplicateRegistrationPanics は同じレジストリへの二重登録でpanicすることを検証する。
func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = NewCollector(reg)
}

// TestRecordHTTPRequest_CountsByStatus はステータスコード別にカウントされることを検証する。
func TestRecordHTTPRequest_CountsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(200, 10*time.Millisecond)
	c.RecordHTTPRequest(200, 20*time.Millisecond)
	c.RecordHTTPRequest(403, 5*time.Millisecond)

	m := findMetric(t, reg, "moreblogs_http_requests_total", map[string]string{"status_code": "200"})
	if m == nil {
		t.Fatal("moreblogs_http_requests_total{status_code=200} not found")
	}
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("http_requests_total{200} = %v, want 2", got)
	}

	m = findMetric(t, reg, "moreblogs_http_requests_total", map[string]string{"status_code": "403"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("http_requests_total{403} should be 1")
	}

	h := findMetric(t, reg, "moreblogs_http_request_duration_seconds", nil)
	if h == nil {
		t.Fatal("moreblogs_http_request_duration_seconds not found")
	}
	if got := h.GetHistogram().GetSampleCount(); got != 3 {
		t.Errorf("duration sample count = %d, want 3", got)
	}
}

// TestRecordTokenIssued_IncrementsCounter はトークン発行数が増加することを検証する。
func TestRecordTokenIssued_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTokenIssued()
	c.RecordTokenIssued()

	m := findMetric(t, reg, "moreblogs_tokens_issued_total", nil)
	if m == nil {
		t.Fatal("moreblogs_tokens_issued_total not found")
	}
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("tokens_issued_total = %v, want 2", got)
	}
}

// TestRecordAuthFailure_CountsByReason は理由別に認証失敗が記録されることを検証する。
func TestRecordAuthFailure_CountsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthFailure(AuthFailureMissing)
	c.RecordAuthFailure(AuthFailureInvalid)
	c.RecordAuthFailure(AuthFailureForbidden)
	c.RecordAuthFailure(AuthFailureForbidden)

	for reason, want := range map[string]float64{
		AuthFailureMissing:   1,
		AuthFailureInvalid:   1,
		AuthFailureForbidden: 2,
	} {
		m := findMetric(t, reg, "moreblogs_auth_failures_total", map[string]string{"reason": reason})
		if m == nil {
			t.Fatalf("auth_failures_total{reason=%s} not found", reason)
		}
		if got := m.GetCounter().GetValue(); got != want {
			t.Errorf("auth_failures_total{%s} = %v, want %v", reason, got, want)
		}
	}
}

// TestRecordCategorySync_CountsByResult は同期結果ごとに記録されることを検証する。
func TestRecordCategorySync_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCategorySync(true)
	c.RecordCategorySync(true)
	c.RecordCategorySync(false)

	success := findMetric(t, reg, "moreblogs_category_sync_total", map[string]string{"result": "success"})
	failure := findMetric(t, reg, "moreblogs_category_sync_total", map[string]string{"result": "failure"})
	if success == nil || failure == nil {
		t.Fatal("moreblogs_category_sync_total not found")
	}
	if got := success.GetCounter().GetValue(); got != 2 {
		t.Errorf("category_sync_total{success} = %v, want 2", got)
	}
	if got := failure.GetCounter().GetValue(); got != 1 {
		t.Errorf("category_sync_total{failure} = %v, want 1", got)
	}
}
