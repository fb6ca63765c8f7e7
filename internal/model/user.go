// Package model はドメインモデルを定義する。
package model

import "time"

// Identity は認証プロバイダーが発行したユーザーIDとプロフィール情報を表す。
type Identity struct {
	ID       string
	Username string
	Email    string
}

// Profile はusersテーブルのプロフィール行を表す。
// IDは認証プロバイダーのユーザーIDと同一。
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// User はセッションキャッシュに保持される現在のユーザーと、
// そのユーザーが記録したスタジアム一覧を表す。
type User struct {
	Identity
	Stadiums []Stadium
}

// Clone はスタジアム一覧を含むディープコピーを返す。
// キャッシュの内部状態を呼び出し元に共有しないために使用する。
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := &User{Identity: u.Identity}
	if u.Stadiums != nil {
		c.Stadiums = make([]Stadium, len(u.Stadiums))
		for i, s := range u.Stadiums {
			c.Stadiums[i] = s.clone()
		}
	}
	return c
}

// AuthUser は認証プロバイダーが返すユーザー情報。
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthSession は認証プロバイダーが発行したセッション（トークン一式）を表す。
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         AuthUser  `json:"user"`
}

// Expired はアクセストークンが期限切れかどうかを判定する。
// ExpiresAtがゼロ値の場合は期限なしとして扱う。
func (s *AuthSession) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}
