package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/fanfootprint/internal/backend"
)

// Manager はブラウザセッションのキーとStoreの対応を管理する。
// 未知のキーで参照された場合は、永続化済みのトークンからStoreを復元する。
type Manager struct {
	factory backend.Factory
	logger  *slog.Logger
	opts    []Option

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	store   *Store
	restore sync.Once
}

// NewManager はManagerを生成する。optsは生成する全Storeに適用される。
func NewManager(factory backend.Factory, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		factory: factory,
		logger:  logger,
		opts:    append([]Option{WithLogger(logger)}, opts...),
		entries: make(map[string]*entry),
	}
}

// Create は新しいキーを発行し、そのキー専用のStoreを復元済みの状態で返す。
func (m *Manager) Create(ctx context.Context) (string, *Store, error) {
	key, err := generateKey()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	e := m.entryFor(key)
	m.restoreEntry(ctx, e)
	return key, e.store, nil
}

// Get は指定キーのStoreを返す。
// 初めて参照されたキーの場合はStoreを生成して復元し、ユーザーが復元できなければ破棄してnilを返す。
func (m *Manager) Get(ctx context.Context, key string) *Store {
	if key == "" {
		return nil
	}

	m.mu.Lock()
	e, exists := m.entries[key]
	m.mu.Unlock()

	if exists {
		m.restoreEntry(ctx, e)
		return e.store
	}

	e = m.entryFor(key)
	m.restoreEntry(ctx, e)
	if e.store.User() == nil {
		m.Discard(key)
		return nil
	}
	return e.store
}

// Discard は指定キーのStoreを破棄し、認証状態の購読を解除する。
func (m *Manager) Discard(key string) {
	m.mu.Lock()
	e, exists := m.entries[key]
	delete(m.entries, key)
	m.mu.Unlock()

	if exists {
		e.store.Close()
	}
}

// EvictIdle は最終参照からttl以上経過したStoreを破棄し、破棄した件数を返す。
// 永続化済みトークンは削除しないため、次回の参照時に復元される。
func (m *Manager) EvictIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	var evicted []*entry
	for key, e := range m.entries {
		if e.store.LastAccess().Before(cutoff) {
			evicted = append(evicted, e)
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()

	for _, e := range evicted {
		e.store.Close()
	}
	return len(evicted)
}

// Len は管理中のStore数を返す。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// entryFor は指定キーのエントリを取得し、なければ生成して登録する。
func (m *Manager) entryFor(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, exists := m.entries[key]; exists {
		return e
	}
	auth, data := m.factory(key)
	e := &entry{store: NewStore(auth, data, m.opts...)}
	m.entries[key] = e
	return e
}

// restoreEntry はエントリごとに1回だけRestoreを実行する。
func (m *Manager) restoreEntry(ctx context.Context, e *entry) {
	e.restore.Do(func() {
		if err := e.store.Restore(ctx); err != nil {
			m.logger.Warn("session restore failed",
				slog.String("error", err.Error()),
			)
		}
	})
}

// generateKey は暗号的に安全なブラウザセッションキーを生成する。
func generateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
