// Package session はログイン中のユーザーとそのスタジアム一覧を保持する
// セッションキャッシュ（Session/Profile Store）を提供する。
// キャッシュはリモート書き込みの成功直後に同期され、認証状態の変化を購読して再構築される。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/fanfootprint/internal/backend"
	"github.com/hitoshi/fanfootprint/internal/model"
)

// 操作名（ログ・メトリクス用）
const (
	OpRestore       = "restore"
	OpLogin         = "login"
	OpRegister      = "register"
	OpLogout        = "logout"
	OpAddStadium    = "add_stadium"
	OpUpdateStadium = "update_stadium"
	OpDeleteStadium = "delete_stadium"
	OpPopulate      = "populate"
)

// Recorder はストア操作の結果を記録するインターフェース。
// metrics.Collectorが実装する。
type Recorder interface {
	RecordStoreOperation(op string, err error, duration time.Duration)
}

// Store はブラウザセッション1つ分のセッションキャッシュ。
// 認証プロバイダーとデータストアは注入され、グローバル状態は持たない。
type Store struct {
	auth     backend.AuthProvider
	data     backend.DataStore
	logger   *slog.Logger
	recorder Recorder

	mu         sync.Mutex
	user       *model.User
	ready      bool
	readyCh    chan struct{}
	generation uint64 // 最後に開始した構築（またはクリア）の番号
	applied    uint64 // 最後にキャッシュへ反映した構築（またはクリア）の番号
	mutations  uint64
	sub        backend.Subscription
	lastAccess time.Time
}

// Option はStoreのオプション設定。
type Option func(*Store)

// WithLogger はログ出力先を設定する。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithRecorder は操作結果の記録先を設定する。
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

// NewStore はStoreを生成する。Restoreを呼ぶまでready状態にはならない。
func NewStore(auth backend.AuthProvider, data backend.DataStore, opts ...Option) *Store {
	s := &Store{
		auth:       auth,
		data:       data,
		logger:     slog.Default(),
		readyCh:    make(chan struct{}),
		lastAccess: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore は起動時に1回呼び出す。
// 認証状態の変化を購読したうえで既存セッションを確認し、あればキャッシュを構築する。
// 結果にかかわらずready状態にする。
func (s *Store) Restore(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.record(OpRestore, err, start) }()
	defer s.markReady()

	s.mu.Lock()
	if s.sub == nil {
		s.sub = s.auth.OnAuthStateChange(s.handleAuthEvent)
	}
	s.mu.Unlock()

	session, err := s.auth.GetSession(ctx)
	if err != nil {
		s.logger.Error("failed to check existing session", slog.String("error", err.Error()))
		return model.NewStoreError(model.KindAuth, err, "Session check failed")
	}
	if session == nil || session.User.ID == "" {
		return nil
	}

	if err := s.populate(ctx, session.User); err != nil {
		s.logger.Error("failed to restore user", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Login は資格情報を認証プロバイダーで検証し、成功時にキャッシュを構築する。
func (s *Store) Login(ctx context.Context, email, password string) (err error) {
	start := time.Now()
	defer func() { s.record(OpLogin, err, start) }()

	session, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return model.NewStoreError(model.KindAuth, err, "Login failed")
	}
	if session == nil || session.User.ID == "" {
		return &model.StoreError{Kind: model.KindAuth, Message: "No user returned from login"}
	}

	if err := s.populate(ctx, model.AuthUser{ID: session.User.ID, Email: email}); err != nil {
		return err
	}

	s.logger.Info("user logged in", slog.String("user_id", session.User.ID))
	return nil
}

// Register はアカウントを作成し、プロフィール行を挿入してからキャッシュを構築する。
// プロフィール挿入に失敗しても作成済みのアカウントはロールバックしない。
func (s *Store) Register(ctx context.Context, username, email, password string) (err error) {
	start := time.Now()
	defer func() { s.record(OpRegister, err, start) }()

	session, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return model.NewStoreError(model.KindAuth, err, "Registration failed")
	}
	if session == nil || session.User.ID == "" {
		return &model.StoreError{Kind: model.KindAuth, Message: "No user returned from signup"}
	}

	profile := model.Profile{ID: session.User.ID, Username: username, Email: email}
	if err := s.data.InsertProfile(ctx, profile); err != nil {
		s.logger.Error("profile insert failed after signup",
			slog.String("user_id", session.User.ID),
			slog.String("error", err.Error()),
		)
		return model.NewStoreError(model.KindProfile, err, "Registration failed")
	}

	if err := s.populate(ctx, model.AuthUser{ID: session.User.ID, Email: email}); err != nil {
		return err
	}

	s.logger.Info("user registered", slog.String("user_id", session.User.ID))
	return nil
}

// Logout はリモートのセッションを無効化し、キャッシュをクリアする。
// サインアウトに失敗した場合はキャッシュを変更しない。
func (s *Store) Logout(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.record(OpLogout, err, start) }()

	if err := s.auth.SignOut(ctx); err != nil {
		return model.NewStoreError(model.KindAuth, err, "Logout failed")
	}

	s.clear()
	s.logger.Info("user logged out")
	return nil
}

// AddStadium はログイン中のユーザーのスタジアムを作成し、採番済みの行をキャッシュに追加する。
// 失敗時はキャッシュを変更しない。
func (s *Store) AddStadium(ctx context.Context, draft model.StadiumDraft) (stadium *model.Stadium, err error) {
	start := time.Now()
	defer func() { s.record(OpAddStadium, err, start) }()

	userID, err := s.currentUser()
	if err != nil {
		return nil, err
	}

	if draft.Visited == nil {
		visited := backend.DefaultVisited(draft)
		draft.Visited = &visited
	}

	created, err := s.data.InsertStadium(ctx, userID, draft)
	if err != nil {
		return nil, model.NewStoreError(model.KindWrite, err, "Failed to add stadium")
	}
	if created == nil {
		return nil, &model.StoreError{Kind: model.KindWrite, Message: "Failed to add stadium"}
	}

	s.mu.Lock()
	if s.sameUser(userID) && !s.hasStadium(created.ID) {
		s.user.Stadiums = append(s.user.Stadiums, *created)
		s.mutations++
	}
	s.mu.Unlock()

	result := *created
	return &result, nil
}

// UpdateStadium はIDと所有者でスコープした更新を送り、成功時に指定フィールドのみをキャッシュへマージする。
// 対象行が0件の場合はKindNotFoundのエラーを返す。
func (s *Store) UpdateStadium(ctx context.Context, id string, update model.StadiumUpdate) (err error) {
	start := time.Now()
	defer func() { s.record(OpUpdateStadium, err, start) }()

	userID, err := s.currentUser()
	if err != nil {
		return err
	}
	if update.IsEmpty() {
		return &model.StoreError{Kind: model.KindWrite, Message: "No fields to update"}
	}

	affected, err := s.data.UpdateStadium(ctx, userID, id, update)
	if err != nil {
		return model.NewStoreError(model.KindWrite, err, "Failed to update stadium")
	}
	if affected == 0 {
		return &model.StoreError{Kind: model.KindNotFound, Message: fmt.Sprintf("Stadium not found: %s", id)}
	}

	s.mu.Lock()
	if s.sameUser(userID) {
		s.mutations++
		for i := range s.user.Stadiums {
			if s.user.Stadiums[i].ID == id {
				update.ApplyTo(&s.user.Stadiums[i])
			}
		}
	}
	s.mu.Unlock()
	return nil
}

// DeleteStadium はIDと所有者でスコープした削除を送り、成功時にキャッシュから該当IDのみを取り除く。
// 対象行が0件の場合はKindNotFoundのエラーを返す。
func (s *Store) DeleteStadium(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.record(OpDeleteStadium, err, start) }()

	userID, err := s.currentUser()
	if err != nil {
		return err
	}

	affected, err := s.data.DeleteStadium(ctx, userID, id)
	if err != nil {
		return model.NewStoreError(model.KindWrite, err, "Failed to delete stadium")
	}
	if affected == 0 {
		return &model.StoreError{Kind: model.KindNotFound, Message: fmt.Sprintf("Stadium not found: %s", id)}
	}

	s.mu.Lock()
	if s.sameUser(userID) {
		kept := make([]model.Stadium, 0, len(s.user.Stadiums))
		for _, st := range s.user.Stadiums {
			if st.ID != id {
				kept = append(kept, st)
			}
		}
		s.user.Stadiums = kept
		s.mutations++
	}
	s.mu.Unlock()
	return nil
}

// User は現在のユーザーのスナップショットを返す。ログインしていない場合はnilを返す。
func (s *Store) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
	return s.user.Clone()
}

// Ready は初回のセッション確認が完了したかを返す。
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// WaitReady は初回のセッション確認が完了するまで待つ。
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastAccess は最後にキャッシュが参照された時刻を返す。
func (s *Store) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// Close は認証状態の購読を解除する。
func (s *Store) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// handleAuthEvent は認証プロバイダーからのイベントでキャッシュを再構築またはクリアする。
func (s *Store) handleAuthEvent(event backend.AuthEvent, session *model.AuthSession) {
	if session == nil || session.User.ID == "" {
		s.clear()
		s.logger.Info("auth state cleared", slog.String("event", string(event)))
		return
	}

	if err := s.populate(context.Background(), session.User); err != nil {
		s.logger.Error("failed to reload user on auth event",
			slog.String("event", string(event)),
			slog.String("error", err.Error()),
		)
	}
}

// populate はプロフィールとスタジアム一覧を取得し、キャッシュを置き換える。
// 後から開始した構築やクリアが既に反映されている場合、結果は破棄する。
// 後発の構築が進行中なだけであれば反映し、後発側の完了時に上書きされる。
func (s *Store) populate(ctx context.Context, authUser model.AuthUser) (err error) {
	start := time.Now()
	defer func() { s.record(OpPopulate, err, start) }()

	s.mu.Lock()
	s.generation++
	gen := s.generation
	muts := s.mutations
	s.mu.Unlock()

	profile, err := s.data.FindProfile(ctx, authUser.ID)
	if err != nil {
		return model.NewStoreError(model.KindProfile, err, "Failed to load profile")
	}
	if profile == nil {
		return &model.StoreError{Kind: model.KindProfile, Message: "Profile not found"}
	}

	stadiums, err := s.data.ListStadiums(ctx, authUser.ID)
	if err != nil {
		return model.NewStoreError(model.KindProfile, err, "Failed to load stadiums")
	}
	if stadiums == nil {
		stadiums = []model.Stadium{}
	}

	username := profile.Username
	if username == "" {
		username = authUser.Email
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen < s.applied {
		s.logger.Debug("discarding stale population", slog.String("user_id", authUser.ID))
		return nil
	}
	// 取得中に同じユーザーのキャッシュへ書き込みが反映された場合、取得結果はその書き込みを含まない可能性がある
	if muts != s.mutations && s.sameUser(authUser.ID) {
		s.logger.Debug("discarding population overtaken by a write", slog.String("user_id", authUser.ID))
		return nil
	}
	s.user = &model.User{
		Identity: model.Identity{ID: authUser.ID, Username: username, Email: authUser.Email},
		Stadiums: stadiums,
	}
	s.applied = gen
	return nil
}

// clear はキャッシュをクリアし、進行中の構築を無効にする。
func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.applied = s.generation
	s.user = nil
}

// currentUser はログイン中のユーザーIDを返す。
func (s *Store) currentUser() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return "", &model.StoreError{Kind: model.KindNotAuthenticated, Message: "User not authenticated"}
	}
	s.lastAccess = time.Now()
	return s.user.ID, nil
}

// sameUser は書き込み開始時と同じユーザーのキャッシュが残っているかを判定する。
// 書き込み中にログアウトや別ユーザーでのサインインがあった場合はfalseとなる。
// mu を保持した状態で呼び出すこと。
func (s *Store) sameUser(userID string) bool {
	return s.user != nil && s.user.ID == userID
}

// hasStadium は同じIDのスタジアムがキャッシュにあるかを判定する。
// 書き込み中の再構築で既に取り込まれている場合に二重追加しないために使う。
// mu を保持した状態で呼び出すこと。
func (s *Store) hasStadium(id string) bool {
	for _, st := range s.user.Stadiums {
		if st.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) markReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		s.ready = true
		close(s.readyCh)
	}
}

func (s *Store) record(op string, err error, start time.Time) {
	if s.recorder != nil {
		s.recorder.RecordStoreOperation(op, err, time.Since(start))
	}
}
