package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/fanfootprint/internal/model"
	"github.com/hitoshi/fanfootprint/internal/repository"
)

// --- テスト用フェイクリポジトリ ---

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*model.Account)}
}

func (r *fakeAccountRepo) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, email) {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) FindByID(_ context.Context, id string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, nil
}

func (r *fakeAccountRepo) Create(_ context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	c := *account
	r.accounts[account.ID] = &c
	return nil
}

type fakeRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]*model.RefreshToken
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: make(map[string]*model.RefreshToken)}
}

func (r *fakeRefreshRepo) Create(_ context.Context, token *model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *token
	r.tokens[token.TokenHash] = &c
	return nil
}

func (r *fakeRefreshRepo) FindByHash(_ context.Context, hash string) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[hash]; ok {
		c := *t
		return &c, nil
	}
	return nil, nil
}

func (r *fakeRefreshRepo) Revoke(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[hash]; ok && t.RevokedAt == nil {
		now := time.Now()
		t.RevokedAt = &now
	}
	return nil
}

func (r *fakeRefreshRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for h, t := range r.tokens {
		if t.ExpiresAt.Before(before) {
			delete(r.tokens, h)
			n++
		}
	}
	return n, nil
}
