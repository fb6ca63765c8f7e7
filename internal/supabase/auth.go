package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/fanfootprint/internal/backend"
	"github.com/hitoshi/fanfootprint/internal/model"
)

// 認証APIの操作名。メトリクスのラベルに使われる。
const (
	opSignIn  = "auth_sign_in"
	opSignUp  = "auth_sign_up"
	opRefresh = "auth_refresh"
	opSignOut = "auth_sign_out"
)

// tokenResponse はトークン発行APIのレスポンス。
// メール確認が必要なサインアップではセッションを含まず、ユーザーのみがトップレベルに返る。
type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	User         *userResponse `json:"user"`

	ID    string `json:"id"`
	Email string `json:"email"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Auth は1つのブラウザセッションに紐づくbackend.AuthProviderの実装。
type Auth struct {
	client    *Client
	key       string
	tokens    backend.TokenStore
	listeners backend.Listeners
	now       func() time.Time

	// refreshMu はリフレッシュトークンのローテーションが並行して走らないようにする。
	refreshMu sync.Mutex
}

// NewAuth はAuthを生成する。
func NewAuth(client *Client, key string, tokens backend.TokenStore) *Auth {
	return &Auth{client: client, key: key, tokens: tokens, now: time.Now}
}

// Factory はブラウザセッションごとの認証プロバイダーとデータストアを返すFactoryを生成する。
// データストアは同じキーのセッションのアクセストークンで行APIを呼び出す。
func (c *Client) Factory(tokens backend.TokenStore) backend.Factory {
	return func(key string) (backend.AuthProvider, backend.DataStore) {
		auth := NewAuth(c, key, tokens)
		return auth, NewData(c, auth)
	}
}

// GetSession は保存済みのセッションを返す。
// アクセストークンが期限切れの場合はリフレッシュし、拒否された場合は保存済みセッションを削除してnilを返す。
// 行APIの呼び出しごとにも使われる。
func (a *Auth) GetSession(ctx context.Context) (*model.AuthSession, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	session, err := a.tokens.Load(ctx, a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, nil
	}
	if !session.Expired(a.now()) {
		return session, nil
	}

	refreshed, err := a.token(ctx, opRefresh, "refresh_token", map[string]string{"refresh_token": session.RefreshToken})
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		if err := a.tokens.Delete(ctx, a.key); err != nil {
			return nil, fmt.Errorf("failed to delete session: %w", err)
		}
		a.client.logger.Info("stored session rejected by backend", slog.String("message", apiErr.Message))
		a.listeners.Emit(backend.EventSignedOut, nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := a.tokens.Save(ctx, a.key, refreshed); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	a.listeners.Emit(backend.EventTokenRefreshed, refreshed)
	return refreshed, nil
}

// SignInWithPassword はメールアドレスとパスワードでセッションを取得する。
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*model.AuthSession, error) {
	session, err := a.token(ctx, opSignIn, "password", credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return a.store(ctx, session)
}

// SignUp はアカウントを作成する。
// メール確認が必要な構成ではトークンを含まないセッション（ユーザーのみ）を返し、保存しない。
func (a *Auth) SignUp(ctx context.Context, email, password string) (*model.AuthSession, error) {
	var resp tokenResponse
	err := a.client.do(ctx, request{
		op:     opSignUp,
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   credentials{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return nil, err
	}

	session := resp.session(a.now())
	if session.AccessToken == "" {
		return session, nil
	}
	return a.store(ctx, session)
}

// SignOut はリモートのセッションを無効化し、保存済みセッションを削除する。
func (a *Auth) SignOut(ctx context.Context) error {
	session, err := a.tokens.Load(ctx, a.key)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session != nil && session.AccessToken != "" {
		err := a.client.do(ctx, request{
			op:          opSignOut,
			method:      http.MethodPost,
			path:        "/auth/v1/logout",
			accessToken: session.AccessToken,
		}, nil)
		// 失効済みのトークンはサインアウト済みとみなす
		var apiErr *Error
		if err != nil && !(errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)) {
			return err
		}
	}
	if err := a.tokens.Delete(ctx, a.key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	a.listeners.Emit(backend.EventSignedOut, nil)
	return nil
}

// OnAuthStateChange は認証状態の変化を購読する。
func (a *Auth) OnAuthStateChange(listener backend.AuthStateListener) backend.Subscription {
	return a.listeners.Add(listener)
}

// Flush は配信待ちの認証イベントがすべて処理されるまで待つ。
func (a *Auth) Flush() {
	a.listeners.Flush()
}

func (a *Auth) token(ctx context.Context, op, grantType string, body any) (*model.AuthSession, error) {
	var resp tokenResponse
	err := a.client.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grantType}},
		body:   body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.session(a.now()), nil
}

func (a *Auth) store(ctx context.Context, session *model.AuthSession) (*model.AuthSession, error) {
	if err := a.tokens.Save(ctx, a.key, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	a.listeners.Emit(backend.EventSignedIn, session)
	return session, nil
}

// session はレスポンスをAuthSessionに変換する。
// 有効期限はアクセストークンのexpクレームを優先し、なければexpires_at、expires_inの順に使う。
func (r *tokenResponse) session(now time.Time) *model.AuthSession {
	s := &model.AuthSession{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
	}
	if r.User != nil {
		s.User = model.AuthUser{ID: r.User.ID, Email: r.User.Email}
	} else {
		s.User = model.AuthUser{ID: r.ID, Email: r.Email}
	}

	if r.AccessToken == "" {
		return s
	}
	switch exp := tokenExpiry(r.AccessToken); {
	case !exp.IsZero():
		s.ExpiresAt = exp
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return s
}

// tokenExpiry はアクセストークンのexpクレームを返す。
// 署名の検証はバックエンドが行うため、ここでは検証せずに読み取る。
func tokenExpiry(accessToken string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// compile-time interface check
var _ backend.AuthProvider = (*Auth)(nil)
