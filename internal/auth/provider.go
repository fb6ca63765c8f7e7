package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/fanfootprint/internal/backend"
	"github.com/hitoshi/fanfootprint/internal/model"
)

// Provider は1つのブラウザセッションに紐づくbackend.AuthProviderの実装。
// 発行したセッションはTokenStoreにキー単位で保存する。
type Provider struct {
	service   *Service
	key       string
	tokens    backend.TokenStore
	logger    *slog.Logger
	listeners backend.Listeners
}

// NewProvider はProviderを生成する。
func NewProvider(service *Service, key string, tokens backend.TokenStore) *Provider {
	return &Provider{service: service, key: key, tokens: tokens, logger: service.logger}
}

// Factory はブラウザセッションごとのProviderと共有データストアを返すFactoryを生成する。
func (s *Service) Factory(tokens backend.TokenStore, data backend.DataStore) backend.Factory {
	return func(key string) (backend.AuthProvider, backend.DataStore) {
		return NewProvider(s, key, tokens), data
	}
}

// GetSession は保存済みのセッションを返す。
// アクセストークンが無効な場合はリフレッシュを試み、失敗した場合は保存済みセッションを削除してnilを返す。
func (p *Provider) GetSession(ctx context.Context) (*model.AuthSession, error) {
	session, err := p.tokens.Load(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if _, err := p.service.Verify(session.AccessToken); err == nil {
		return session, nil
	}

	refreshed, err := p.service.Refresh(ctx, session.RefreshToken)
	if errors.Is(err, ErrInvalidRefresh) {
		if err := p.tokens.Delete(ctx, p.key); err != nil {
			return nil, fmt.Errorf("failed to delete session: %w", err)
		}
		p.listeners.Emit(backend.EventSignedOut, nil)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	if err := p.tokens.Save(ctx, p.key, refreshed); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	p.logger.Debug("session refreshed", slog.String("user_id", refreshed.User.ID))
	p.listeners.Emit(backend.EventTokenRefreshed, refreshed)
	return refreshed, nil
}

// SignInWithPassword は資格情報を検証し、セッションを保存する。
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*model.AuthSession, error) {
	session, err := p.service.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return p.store(ctx, session)
}

// SignUp はアカウントを作成し、そのままサインインする。
func (p *Provider) SignUp(ctx context.Context, email, password string) (*model.AuthSession, error) {
	session, err := p.service.Register(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return p.store(ctx, session)
}

// SignOut はリフレッシュトークンを失効させ、保存済みセッションを削除する。
func (p *Provider) SignOut(ctx context.Context) error {
	session, err := p.tokens.Load(ctx, p.key)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session != nil {
		if err := p.service.Revoke(ctx, session.RefreshToken); err != nil {
			return err
		}
	}
	if err := p.tokens.Delete(ctx, p.key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	p.listeners.Emit(backend.EventSignedOut, nil)
	return nil
}

// OnAuthStateChange は認証状態の変化を購読する。
func (p *Provider) OnAuthStateChange(listener backend.AuthStateListener) backend.Subscription {
	return p.listeners.Add(listener)
}

// Flush は配信待ちの認証イベントがすべて処理されるまで待つ。
func (p *Provider) Flush() {
	p.listeners.Flush()
}

func (p *Provider) store(ctx context.Context, session *model.AuthSession) (*model.AuthSession, error) {
	if err := p.tokens.Save(ctx, p.key, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	p.listeners.Emit(backend.EventSignedIn, session)
	return session, nil
}

// compile-time interface check
var _ backend.AuthProvider = (*Provider)(nil)
