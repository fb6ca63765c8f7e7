package memory

import (
	"context"
	"sync"

	"github.com/hitoshi/fanfootprint/internal/backend"
	"github.com/hitoshi/fanfootprint/internal/model"
)

// TokenStore はブラウザセッションごとの認証セッションをメモリ上に保持する。
// プロセス再起動をまたいだ復元はできない。
type TokenStore struct {
	mu       sync.RWMutex
	sessions map[string]model.AuthSession
}

// NewTokenStore は空のTokenStoreを生成する。
func NewTokenStore() *TokenStore {
	return &TokenStore{sessions: make(map[string]model.AuthSession)}
}

// Load は指定キーのセッションを返す。見つからない場合はnilを返す。
func (s *TokenStore) Load(_ context.Context, key string) (*model.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// Save は指定キーのセッションを上書き保存する。
func (s *TokenStore) Save(_ context.Context, key string, session *model.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = *session
	return nil
}

// Delete は指定キーのセッションを削除する。
func (s *TokenStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// Len は保持しているセッション数を返す。
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// compile-time interface check
var _ backend.TokenStore = (*TokenStore)(nil)
