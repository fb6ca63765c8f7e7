package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hitoshi/fanfootprint/internal/arena"
	"github.com/hitoshi/fanfootprint/internal/backend/memory"
	"github.com/hitoshi/fanfootprint/internal/middleware"
	"github.com/hitoshi/fanfootprint/internal/security"
	"github.com/hitoshi/fanfootprint/internal/session"
)

// --- テストヘルパー ---

// testEnv はインメモリバックエンドで構成したルーターと依存関係をまとめる。
type testEnv struct {
	backend  *memory.Backend
	tokens   *memory.TokenStore
	manager  *session.Manager
	router   http.Handler
	statuses *mockStatusRecorder
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	catalog, err := arena.Default()
	if err != nil {
		t.Fatalf("arena.Default() error = %v", err)
	}

	b := memory.NewBackend()
	tokens := memory.NewTokenStore()
	m := session.NewManager(b.Factory(tokens), discardLogger())
	statuses := &mockStatusRecorder{}

	router := NewRouter(&RouterDeps{
		Sessions:          m,
		Cookie:            middleware.SessionCookieConfig{MaxAge: 3600},
		Arenas:            catalog,
		Labeler:           security.NewLabelSanitizer(),
		MetricsHandler:    http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("metrics")) }),
		StatusRecorder:    statuses,
		Logger:            discardLogger(),
		CORSAllowedOrigin: "http://localhost:3000",
	})

	return &testEnv{backend: b, tokens: tokens, manager: m, router: router, statuses: statuses}
}

// testClient はブラウザのようにCookieを保持してルーターへリクエストを送る。
// 状態変更メソッドではCSRFトークンCookieの値をヘッダーにも付与する。
type testClient struct {
	t       *testing.T
	router  http.Handler
	cookies map[string]*http.Cookie
	noCSRF  bool
}

func (e *testEnv) client(t *testing.T) *testClient {
	return &testClient{t: t, router: e.router, cookies: make(map[string]*http.Cookie)}
}

func (c *testClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			c.t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range c.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	if csrf, ok := c.cookies["csrf_token"]; ok && !c.noCSRF {
		req.Header.Set("X-CSRF-Token", csrf.Value)
	}

	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return w
}

// register は会員登録とCSRFトークンの取得を行う。
func (c *testClient) register(username, email, password string) {
	c.t.Helper()
	w := c.do(http.MethodPost, "/auth/register", map[string]string{
		"username": username, "email": email, "password": password,
	})
	if w.Code != http.StatusCreated {
		c.t.Fatalf("register status = %d, body = %s", w.Code, w.Body.String())
	}
	if w := c.do(http.MethodGet, "/api/csrf-token", nil); w.Code != http.StatusOK {
		c.t.Fatalf("csrf-token status = %d", w.Code)
	}
}

// decodeBody はレスポンスボディをdstにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v (body=%q)", err, w.Body.String())
	}
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	decodeBody(t, w, &result)
	return result
}

// mockStatusRecorder はmiddleware.StatusRecorderのモック実装。
type mockStatusRecorder struct {
	mu       sync.Mutex
	statuses []int
}

func (m *mockStatusRecorder) RecordHTTPStatus(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, statusCode)
}

func (m *mockStatusRecorder) recorded() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.statuses...)
}
