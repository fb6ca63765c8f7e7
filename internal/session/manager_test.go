package session

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/fanfootprint/internal/backend/memory"
)

func TestManager_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	b := memory.NewBackend()
	m := NewManager(b.Factory(memory.NewTokenStore()), discardLogger())

	key, store, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(key) != 64 {
		t.Errorf("len(key) = %d, want 64", len(key))
	}
	if !store.Ready() {
		t.Error("expected created store to be ready")
	}

	if err := store.Register(ctx, "alice", "a@x.com", "pw123456"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if got := m.Get(ctx, key); got != store {
		t.Error("expected Get to return the same store for the key")
	}
}

func TestManager_Get_UnknownKeyWithoutSession_ReturnsNil(t *testing.T) {
	b := memory.NewBackend()
	m := NewManager(b.Factory(memory.NewTokenStore()), discardLogger())

	if got := m.Get(context.Background(), "unknown"); got != nil {
		t.Error("expected nil for a key without a persisted session")
	}
	if got := m.Get(context.Background(), ""); got != nil {
		t.Error("expected nil for an empty key")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestManager_Get_RestoresFromPersistedTokens(t *testing.T) {
	ctx := context.Background()
	b := memory.NewBackend()
	tokens := memory.NewTokenStore()

	first := NewManager(b.Factory(tokens), discardLogger())
	key, store, err := first.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Register(ctx, "alice", "a@x.com", "pw123456"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// プロセス再起動を想定し、同じトークンストアで別のManagerを作る
	second := NewManager(b.Factory(tokens), discardLogger())
	restored := second.Get(ctx, key)
	if restored == nil {
		t.Fatal("expected store to be restored from persisted tokens")
	}
	if u := restored.User(); u == nil || u.Username != "alice" {
		t.Errorf("User() = %+v, want alice", u)
	}
}

func TestManager_EvictIdle(t *testing.T) {
	ctx := context.Background()
	b := memory.NewBackend()
	m := NewManager(b.Factory(memory.NewTokenStore()), discardLogger())

	if _, _, err := m.Create(ctx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, _, err := m.Create(ctx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if n := m.EvictIdle(time.Hour); n != 0 {
		t.Errorf("EvictIdle(1h) = %d, want 0", n)
	}

	time.Sleep(5 * time.Millisecond)
	if n := m.EvictIdle(time.Millisecond); n != 2 {
		t.Errorf("EvictIdle(1ms) = %d, want 2", n)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestManager_Discard(t *testing.T) {
	ctx := context.Background()
	b := memory.NewBackend()
	m := NewManager(b.Factory(memory.NewTokenStore()), discardLogger())

	key, _, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	m.Discard(key)
	m.Discard(key)

	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}
