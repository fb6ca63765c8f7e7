// Package memory はプロセス内で完結する認証プロバイダーとデータストアを提供する。
// ローカル開発（BACKEND=memory）とテストのフェイクとして使用する。
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/fanfootprint/internal/backend"
	"github.com/hitoshi/fanfootprint/internal/model"
)

// 障害注入・フック用の操作名。
const (
	OpGetSession    = "get_session"
	OpSignIn        = "sign_in"
	OpSignUp        = "sign_up"
	OpSignOut       = "sign_out"
	OpFindProfile   = "find_profile"
	OpInsertProfile = "insert_profile"
	OpListStadiums  = "list_stadiums"
	OpInsertStadium = "insert_stadium"
	OpUpdateStadium = "update_stadium"
	OpDeleteStadium = "delete_stadium"
)

const minPasswordLength = 6

type account struct {
	id       string
	email    string
	password string
}

// Backend はアカウント、発行済みトークン、usersおよびstadiumsの行を保持する。
// 複数のブラウザセッションから共有される。
type Backend struct {
	mu       sync.Mutex
	accounts map[string]*account // key: 小文字のメールアドレス
	tokens   map[string]string   // key: アクセストークン, value: ユーザーID
	profiles map[string]model.Profile
	stadiums []model.Stadium
	failures map[string]error
	hook     func(op string)
	tokenTTL time.Duration

	// Now は現在時刻を返す。テストで差し替え可能。
	Now func() time.Time
}

// NewBackend は空のBackendを生成する。
func NewBackend() *Backend {
	return &Backend{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		profiles: make(map[string]model.Profile),
		failures: make(map[string]error),
		tokenTTL: time.Hour,
		Now:      time.Now,
	}
}

// FailOn は指定した操作が次回以降errを返すように設定する。errがnilの場合は解除する。
func (b *Backend) FailOn(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// SetHook は各操作の実行直前に呼ばれるフックを設定する。
// テストでリモート呼び出しの完了タイミングを制御するために使用する。
func (b *Backend) SetHook(hook func(op string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hook = hook
}

// RevokeUserTokens は指定ユーザーの発行済みトークンをすべて失効させる。
func (b *Backend) RevokeUserTokens(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for token, id := range b.tokens {
		if id == userID {
			delete(b.tokens, token)
		}
	}
}

// Factory はブラウザセッションごとの認証プロバイダーと共有データストアを返すFactoryを生成する。
func (b *Backend) Factory(tokens backend.TokenStore) backend.Factory {
	return func(key string) (backend.AuthProvider, backend.DataStore) {
		return b.Auth(key, tokens), b.Data()
	}
}

// Auth は指定キーのブラウザセッション用の認証プロバイダーを返す。
func (b *Backend) Auth(key string, tokens backend.TokenStore) *Auth {
	if tokens == nil {
		tokens = NewTokenStore()
	}
	return &Auth{backend: b, key: key, tokens: tokens}
}

// Data はデータストアを返す。
func (b *Backend) Data() *Data {
	return &Data{backend: b}
}

// before はフックを呼び出し、注入された障害があれば返す。
func (b *Backend) before(op string) error {
	b.mu.Lock()
	hook := b.hook
	b.mu.Unlock()

	if hook != nil {
		hook(op)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures[op]
}

func (b *Backend) issueSession(acc *account) *model.AuthSession {
	access := uuid.New().String()
	b.tokens[access] = acc.id
	return &model.AuthSession{
		AccessToken:  access,
		RefreshToken: uuid.New().String(),
		ExpiresAt:    b.Now().Add(b.tokenTTL),
		User:         model.AuthUser{ID: acc.id, Email: acc.email},
	}
}

// Auth は1つのブラウザセッションに紐づく認証プロバイダー。
type Auth struct {
	backend   *Backend
	key       string
	tokens    backend.TokenStore
	listeners backend.Listeners
}

// GetSession は保存済みのセッションが有効であれば返す。
// 失効済みのトークンは削除し、nilを返す。
func (a *Auth) GetSession(ctx context.Context) (*model.AuthSession, error) {
	if err := a.backend.before(OpGetSession); err != nil {
		return nil, err
	}

	session, err := a.tokens.Load(ctx, a.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	a.backend.mu.Lock()
	_, valid := a.backend.tokens[session.AccessToken]
	a.backend.mu.Unlock()

	if !valid || session.Expired(a.backend.Now()) {
		if err := a.tokens.Delete(ctx, a.key); err != nil {
			return nil, fmt.Errorf("failed to delete session: %w", err)
		}
		a.listeners.Emit(backend.EventSignedOut, nil)
		return nil, nil
	}
	return session, nil
}

// SignInWithPassword はメールアドレスとパスワードを検証し、セッションを発行する。
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*model.AuthSession, error) {
	if err := a.backend.before(OpSignIn); err != nil {
		return nil, err
	}

	a.backend.mu.Lock()
	acc, ok := a.backend.accounts[strings.ToLower(email)]
	if !ok || acc.password != password {
		a.backend.mu.Unlock()
		return nil, errors.New("Invalid login credentials")
	}
	session := a.backend.issueSession(acc)
	a.backend.mu.Unlock()

	if err := a.tokens.Save(ctx, a.key, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	a.listeners.Emit(backend.EventSignedIn, session)
	return session, nil
}

// SignUp はアカウントを作成し、そのままサインインする。
func (a *Auth) SignUp(ctx context.Context, email, password string) (*model.AuthSession, error) {
	if err := a.backend.before(OpSignUp); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("Password should be at least %d characters", minPasswordLength)
	}

	a.backend.mu.Lock()
	normalized := strings.ToLower(email)
	if _, exists := a.backend.accounts[normalized]; exists {
		a.backend.mu.Unlock()
		return nil, errors.New("User already registered")
	}
	acc := &account{id: uuid.New().String(), email: email, password: password}
	a.backend.accounts[normalized] = acc
	session := a.backend.issueSession(acc)
	a.backend.mu.Unlock()

	if err := a.tokens.Save(ctx, a.key, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	a.listeners.Emit(backend.EventSignedIn, session)
	return session, nil
}

// SignOut は現在のトークンを失効させ、保存済みセッションを削除する。
func (a *Auth) SignOut(ctx context.Context) error {
	if err := a.backend.before(OpSignOut); err != nil {
		return err
	}

	session, err := a.tokens.Load(ctx, a.key)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session != nil {
		a.backend.mu.Lock()
		delete(a.backend.tokens, session.AccessToken)
		a.backend.mu.Unlock()
	}
	if err := a.tokens.Delete(ctx, a.key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	a.listeners.Emit(backend.EventSignedOut, nil)
	return nil
}

// OnAuthStateChange は認証状態の変化を購読する。
func (a *Auth) OnAuthStateChange(listener backend.AuthStateListener) backend.Subscription {
	return a.listeners.Add(listener)
}

// Emit は外部要因（別タブでのサインイン等）による認証イベントを発生させる。
func (a *Auth) Emit(event backend.AuthEvent, session *model.AuthSession) {
	a.listeners.Emit(event, session)
}

// Flush は配信待ちの認証イベントがすべて処理されるまで待つ。
func (a *Auth) Flush() {
	a.listeners.Flush()
}

// Data はusersテーブルとstadiumsテーブルを模したデータストア。
type Data struct {
	backend *Backend
}

// FindProfile は指定IDのプロフィールを返す。見つからない場合はnilを返す。
func (d *Data) FindProfile(_ context.Context, userID string) (*model.Profile, error) {
	if err := d.backend.before(OpFindProfile); err != nil {
		return nil, err
	}
	d.backend.mu.Lock()
	defer d.backend.mu.Unlock()

	p, ok := d.backend.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// InsertProfile はプロフィール行を作成する。IDが重複する場合はエラーを返す。
func (d *Data) InsertProfile(_ context.Context, profile model.Profile) error {
	if err := d.backend.before(OpInsertProfile); err != nil {
		return err
	}
	d.backend.mu.Lock()
	defer d.backend.mu.Unlock()

	if _, exists := d.backend.profiles[profile.ID]; exists {
		return errors.New(`duplicate key value violates unique constraint "users_pkey"`)
	}
	d.backend.profiles[profile.ID] = profile
	return nil
}

// ListStadiums は指定ユーザーのスタジアムを作成順に返す。
func (d *Data) ListStadiums(_ context.Context, userID string) ([]model.Stadium, error) {
	if err := d.backend.before(OpListStadiums); err != nil {
		return nil, err
	}
	d.backend.mu.Lock()
	defer d.backend.mu.Unlock()

	stadiums := []model.Stadium{}
	for _, s := range d.backend.stadiums {
		if s.UserID == userID {
			stadiums = append(stadiums, s)
		}
	}
	return stadiums, nil
}

// InsertStadium はスタジアム行を作成し、IDと作成日時を採番して返す。
func (d *Data) InsertStadium(_ context.Context, userID string, draft model.StadiumDraft) (*model.Stadium, error) {
	if err := d.backend.before(OpInsertStadium); err != nil {
		return nil, err
	}
	d.backend.mu.Lock()
	defer d.backend.mu.Unlock()

	s := model.Stadium{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      draft.Name,
		City:      draft.City,
		Sport:     draft.Sport,
		Lat:       draft.Lat,
		Lng:       draft.Lng,
		Visited:   backend.DefaultVisited(draft),
		CreatedAt: d.backend.Now(),
	}
	d.backend.stadiums = append(d.backend.stadiums, s)
	return &s, nil
}

// UpdateStadium はIDと所有者が一致する行に部分更新を適用し、更新件数を返す。
func (d *Data) UpdateStadium(_ context.Context, userID, stadiumID string, update model.StadiumUpdate) (int64, error) {
	if err := d.backend.before(OpUpdateStadium); err != nil {
		return 0, err
	}
	d.backend.mu.Lock()
	defer d.backend.mu.Unlock()

	var affected int64
	for i := range d.backend.stadiums {
		s := &d.backend.stadiums[i]
		if s.ID == stadiumID && s.UserID == userID {
			update.ApplyTo(s)
			affected++
		}
	}
	return affected, nil
}

// DeleteStadium はIDと所有者が一致する行を削除し、削除件数を返す。
func (d *Data) DeleteStadium(_ context.Context, userID, stadiumID string) (int64, error) {
	if err := d.backend.before(OpDeleteStadium); err != nil {
		return 0, err
	}
	d.backend.mu.Lock()
	defer d.backend.mu.Unlock()

	var affected int64
	kept := d.backend.stadiums[:0]
	for _, s := range d.backend.stadiums {
		if s.ID == stadiumID && s.UserID == userID {
			affected++
			continue
		}
		kept = append(kept, s)
	}
	d.backend.stadiums = kept
	return affected, nil
}

// compile-time interface check
var (
	_ backend.AuthProvider = (*Auth)(nil)
	_ backend.DataStore    = (*Data)(nil)
)
