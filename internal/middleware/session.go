// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/fanfootprint/internal/model"
	"github.com/hitoshi/fanfootprint/internal/session"
)

// SessionCookieName はブラウザセッションキーを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// storeContextKey はリクエストコンテキストにセッションストアを格納するためのキー。
	storeContextKey = contextKey("session_store")
	// sessionKeyContextKey はリクエストコンテキストにブラウザセッションキーを格納するためのキー。
	sessionKeyContextKey = contextKey("session_key")
)

// StoreResolver はブラウザセッションキーからセッションストアを解決するインターフェース。
// session.Managerの部分集合として定義する。
type StoreResolver interface {
	Get(ctx context.Context, key string) *session.Store
}

// SessionCookieConfig はセッションCookieの設定。
type SessionCookieConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       int // 秒
}

// NewSessionMiddleware はHTTP Only Cookieからブラウザセッションキーを読み取り、
// 対応するセッションストアをリクエストコンテキストに注入するミドルウェアを返す。
// ストアが存在しない場合もリクエストは拒否しない。
func NewSessionMiddleware(resolver StoreResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKeyContextKey, cookie.Value)
			if store := resolver.Get(ctx, cookie.Value); store != nil {
				ctx = context.WithValue(ctx, storeContextKey, store)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth はログイン済みのストアがないリクエストに401を返すミドルウェア。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := StoreFromContext(r.Context())
		if store == nil {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		user := store.User()
		if user == nil {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}

		setRequestUserID(r.Context(), user.ID)
		ctx := context.WithValue(r.Context(), userIDContextKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StoreFromContext はリクエストコンテキストからセッションストアを取得する。
// ストアがない場合はnilを返す。
func StoreFromContext(ctx context.Context) *session.Store {
	store, _ := ctx.Value(storeContextKey).(*session.Store)
	return store
}

// ContextWithStore はコンテキストにセッションストアを注入する。
func ContextWithStore(ctx context.Context, store *session.Store) context.Context {
	return context.WithValue(ctx, storeContextKey, store)
}

// SessionKeyFromContext はリクエストのCookieから読み取ったブラウザセッションキーを返す。
func SessionKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(sessionKeyContextKey).(string)
	return key
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// RequireAuthを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// SetSessionCookie はブラウザセッションキーをHTTP Only Cookieに設定する。
func SetSessionCookie(w http.ResponseWriter, key string, config SessionCookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    key,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   config.MaxAge,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, config SessionCookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
