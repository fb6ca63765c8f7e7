// Package supabase はホスティング型バックエンド（BACKEND=supabase）のHTTPクライアントを提供する。
// GoTrue互換の認証APIとPostgREST互換の行APIを呼び出す。
package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// RequestObserver はバックエンド呼び出しの結果を受け取る。
// statusは通信エラーの場合0となる。
type RequestObserver interface {
	RecordBackendRequest(op string, status int, duration time.Duration)
}

// Error はバックエンドが返したエラーレスポンスを表す。
// Messageはレスポンスのメッセージをそのまま保持する。
type Error struct {
	Status  int
	Code    string
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return e.Message
}

// Client はバックエンドAPIのクライアント。全ブラウザセッションで共有する。
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	logger     *slog.Logger
	observer   RequestObserver
}

// Option はClientのオプション。
type Option func(*Client)

// WithObserver は呼び出し結果の記録先を設定する。
func WithObserver(o RequestObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient はClientを生成する。baseURLはプロジェクトのURL（末尾の/は不要）。
func NewClient(httpClient *http.Client, baseURL, anonKey string, logger *slog.Logger, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request はバックエンドへの1回の呼び出しを表す。
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	accessToken string // 空の場合はanonKeyで認可する
	prefer      string
	body        any
}

// do はリクエストを送信し、2xxの場合はoutにJSONをデコードする。
// outがnilの場合はボディを読み捨てる。リトライは行わない。
func (c *Client) do(ctx context.Context, r request, out any) error {
	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	bearer := r.accessToken
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(r.op, 0, start)
		c.logger.Error("backend request failed",
			slog.String("op", r.op),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()
	c.observe(r.op, resp.StatusCode, start)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseError(resp.StatusCode, data)
		c.logger.Warn("backend returned error status",
			slog.String("op", r.op),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", apiErr.Message),
		)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.RecordBackendRequest(op, status, time.Since(start))
	}
}

// errorBody は認証APIと行APIのエラーレスポンスの和集合。
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Code             any    `json:"code"`
}

// parseError はエラーレスポンスからメッセージを取り出す。
// 解析できない場合はHTTPステータスのテキストを使う。
func parseError(status int, data []byte) *Error {
	e := &Error{Status: status}
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		for _, m := range []string{body.ErrorDescription, body.Msg, body.Message, body.Error} {
			if m != "" {
				e.Message = m
				break
			}
		}
		e.Code = body.ErrorCode
		if e.Code == "" {
			if s, ok := body.Code.(string); ok {
				e.Code = s
			}
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("backend returned status %d: %s", status, http.StatusText(status))
	}
	return e
}
