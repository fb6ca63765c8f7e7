// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/fanfootprint/internal/model"
)

// ProfileRepository はプロフィール行（usersテーブル）の永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// Create はプロフィール行を作成する。
	Create(ctx context.Context, profile model.Profile) error
}

// StadiumRepository はスタジアム行の永続化インターフェース。
// 更新・削除はIDと所有者の両方が一致する行のみを対象とする。
type StadiumRepository interface {
	// ListByUserID は指定ユーザーのスタジアムを作成順に返す。
	ListByUserID(ctx context.Context, userID string) ([]model.Stadium, error)

	// Create はスタジアム行を作成し、採番済みの行を返す。
	Create(ctx context.Context, userID string, draft model.StadiumDraft) (*model.Stadium, error)

	// Update は指定フィールドのみを更新し、更新件数を返す。
	Update(ctx context.Context, userID, id string, update model.StadiumUpdate) (int64, error)

	// Delete は行を削除し、削除件数を返す。
	Delete(ctx context.Context, userID, id string) (int64, error)
}

// AccountRepository はセルフホスト構成の認証アカウントの永続化インターフェース。
type AccountRepository interface {
	// FindByEmail はメールアドレス（大文字小文字を区別しない）でアカウントを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// Create はアカウントを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, account *model.Account) error
}

// RefreshTokenRepository はリフレッシュトークンの永続化インターフェース。
type RefreshTokenRepository interface {
	// Create はリフレッシュトークンを保存する。
	Create(ctx context.Context, token *model.RefreshToken) error

	// FindByHash はハッシュでトークンを検索する。見つからない場合はnilを返す。
	FindByHash(ctx context.Context, hash string) (*model.RefreshToken, error)

	// Revoke は指定トークンを失効させる。
	Revoke(ctx context.Context, hash string) error

	// DeleteExpired はbefore以前に期限切れとなったトークンを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// BrowserSessionRepository はブラウザセッションキーごとの認証セッションの永続化インターフェース。
// backend.TokenStoreを満たす。
type BrowserSessionRepository interface {
	Load(ctx context.Context, key string) (*model.AuthSession, error)
	Save(ctx context.Context, key string, session *model.AuthSession) error
	Delete(ctx context.Context, key string) error

	// DeleteStale はbefore以前から更新されていないセッションを削除し、削除件数を返す。
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}
