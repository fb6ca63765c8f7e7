package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantStatus int
	}{
		{name: "依存先なし", checker: nil, wantStatus: http.StatusOK},
		{name: "疎通成功", checker: &mockHealthChecker{}, wantStatus: http.StatusOK},
		{name: "疎通失敗", checker: &mockHealthChecker{err: errors.New("connection refused")}, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(tt.checker).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestNewRouter_OperationalEndpoints(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	if w := c.do(http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}

	w := c.do(http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || w.Body.String() != "metrics" {
		t.Errorf("GET /metrics = %d %q", w.Code, w.Body.String())
	}

	w = c.do(http.MethodGet, "/api/csrf-token", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/csrf-token status = %d", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["token"] == "" || c.cookies["csrf_token"] == nil || c.cookies["csrf_token"].Value != body["token"] {
		t.Errorf("token = %q, cookie = %v", body["token"], c.cookies["csrf_token"])
	}
}

func TestNewRouter_AppliesSecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t)

	w := env.client(t).do(http.MethodGet, "/health", nil)
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/stadiums", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code < 200 || w.Code >= 300 {
		t.Errorf("preflight status = %d, want 2xx", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
	}
}

func TestNewRouter_RecordsStatuses(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	c.do(http.MethodGet, "/health", nil)
	c.do(http.MethodGet, "/api/stadiums", nil)

	got := env.statuses.recorded()
	if len(got) != 2 || got[0] != http.StatusOK || got[1] != http.StatusUnauthorized {
		t.Errorf("recorded statuses = %v, want [200 401]", got)
	}
}

func TestNewRouter_UnknownRoute_Returns404(t *testing.T) {
	env := newTestEnv(t)

	if w := env.client(t).do(http.MethodGet, "/api/unknown", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
