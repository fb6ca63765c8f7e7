// Package backend は外部の認証プロバイダーとデータストアへの狭いインターフェースを定義する。
// セッションストアはこのインターフェースのみに依存し、
// ホスティング型バックエンド、セルフホスト型Postgres、インメモリ実装を差し替えられる。
package backend

import (
	"context"

	"github.com/hitoshi/fanfootprint/internal/model"
)

// AuthEvent は認証状態の変化イベントの種別。
type AuthEvent string

const (
	// EventSignedIn はサインイン完了。
	EventSignedIn AuthEvent = "SIGNED_IN"
	// EventSignedOut はサインアウト（トークン失効を含む）。
	EventSignedOut AuthEvent = "SIGNED_OUT"
	// EventTokenRefreshed はアクセストークンの更新。
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	// EventUserUpdated はユーザー情報の更新。
	EventUserUpdated AuthEvent = "USER_UPDATED"
)

// AuthStateListener は認証状態の変化を受け取るコールバック。
// sessionはサインアウト時にnilとなる。
type AuthStateListener func(event AuthEvent, session *model.AuthSession)

// Subscription はOnAuthStateChangeの購読ハンドル。
type Subscription interface {
	Unsubscribe()
}

// AuthProvider は認証プロバイダーのインターフェース。
type AuthProvider interface {
	// GetSession は有効なセッションを返す。セッションがない場合はnilを返す。
	GetSession(ctx context.Context) (*model.AuthSession, error)
	// SignInWithPassword はメールアドレスとパスワードで認証する。
	SignInWithPassword(ctx context.Context, email, password string) (*model.AuthSession, error)
	// SignUp はアカウントを作成する。
	SignUp(ctx context.Context, email, password string) (*model.AuthSession, error)
	// SignOut はリモートのセッションを無効化する。
	SignOut(ctx context.Context) error
	// OnAuthStateChange は認証状態の変化を購読する。
	// リスナーは呼び出し元とは別のgoroutineから呼ばれる。
	OnAuthStateChange(listener AuthStateListener) Subscription
}

// DataStore はusersテーブルとstadiumsテーブルへの行アクセスのインターフェース。
// 更新・削除は必ずIDとユーザーIDの両方でスコープする。
type DataStore interface {
	// FindProfile は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindProfile(ctx context.Context, userID string) (*model.Profile, error)
	// InsertProfile はプロフィール行を作成する。
	InsertProfile(ctx context.Context, profile model.Profile) error
	// ListStadiums はユーザーの全スタジアムを作成順に返す。
	ListStadiums(ctx context.Context, userID string) ([]model.Stadium, error)
	// InsertStadium はスタジアムを作成し、採番済みの行を返す。
	InsertStadium(ctx context.Context, userID string, draft model.StadiumDraft) (*model.Stadium, error)
	// UpdateStadium はIDとユーザーIDが一致する行を更新し、更新件数を返す。
	UpdateStadium(ctx context.Context, userID, stadiumID string, update model.StadiumUpdate) (int64, error)
	// DeleteStadium はIDとユーザーIDが一致する行を削除し、削除件数を返す。
	DeleteStadium(ctx context.Context, userID, stadiumID string) (int64, error)
}

// TokenStore はブラウザセッションごとの認証セッションを永続化するインターフェース。
// プロセス再起動後もセッションを復元するために使用する。
type TokenStore interface {
	// Load は指定キーのセッションを返す。見つからない場合はnilを返す。
	Load(ctx context.Context, key string) (*model.AuthSession, error)
	// Save は指定キーのセッションを保存する。
	Save(ctx context.Context, key string, session *model.AuthSession) error
	// Delete は指定キーのセッションを削除する。
	Delete(ctx context.Context, key string) error
}

// Factory はブラウザセッションのキーから、そのセッション専用の
// 認証プロバイダーとデータストアを組み立てる。
type Factory func(key string) (AuthProvider, DataStore)

// DefaultVisited は作成時のvisitedの既定値を解決する。
func DefaultVisited(draft model.StadiumDraft) bool {
	if draft.Visited == nil {
		return true
	}
	return *draft.Visited
}
