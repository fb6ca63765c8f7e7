package model

import "time"

// Account はセルフホスト構成の認証アカウント（auth_accountsテーブル）を表す。
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// RefreshToken は発行済みリフレッシュトークン（auth_refresh_tokensテーブル）を表す。
// トークン本体は保存せず、SHA-256ハッシュのみを保持する。
type RefreshToken struct {
	TokenHash string
	AccountID string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Active は失効しておらず期限内かどうかを返す。
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
