package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type mockHTTPRequestRecorder struct {
	statuses []int
}

func (m *mockHTTPRequestRecorder) RecordHTTPRequest(statusCode int, _ time.Duration) {
	m.statuses = append(m.statuses, statusCode)
}

func TestMetricsMiddleware_RecordsStatus(t *testing.T) {
	rec := &mockHTTPRequestRecorder{}
	handler := NewMetricsMiddleware(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/addBlog", nil))

	if len(rec.statuses) != 1 || rec.statuses[0] != http.StatusCreated {
		t.Errorf("recorded = %v, want [201]", rec.statuses)
	}
}

func TestRecoveryMiddleware_PanicReturns500(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/blogs", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "boom") {
		t.Error("panic value must not be exposed to the client")
	}
}

func TestRecoveryMiddleware_RepanicsAbortHandler(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered = %v, want http.ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	NewSecurityHeadersMiddleware(false)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options should be nosniff")
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("X-Frame-Options should be DENY")
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should not be sent in development")
	}

	w = httptest.NewRecorder()
	NewSecurityHeadersMiddleware(true)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS should be sent in production")
	}
}

// ロギング・メトリクス・CORSを重ねても1つのstatusRecorderで記録されることを検証
func TestMiddlewareChain_LoggingMetricsCORS(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockHTTPRequestRecorder{}

	handler := NewRecoveryMiddleware()(
		NewLoggingMiddleware(slog.New(slog.NewJSONHandler(&buf, nil)))(
			NewMetricsMiddleware(rec)(
				NewCORSMiddleware(testOrigins)(
					NewOriginCheckMiddleware(testOrigins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
						w.WriteHeader(http.StatusCreated)
					}))))))

	req := httptest.NewRequest(http.MethodPost, "/addComment", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if len(rec.statuses) != 1 || rec.statuses[0] != http.StatusForbidden {
		t.Errorf("metrics recorded = %v, want [403]", rec.statuses)
	}
	if !strings.Contains(buf.String(), `"status":403`) {
		t.Errorf("log should contain status 403: %s", buf.String())
	}
}
