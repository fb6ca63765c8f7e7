package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/fanfootprint/internal/middleware"
	"github.com/hitoshi/fanfootprint/internal/model"
	"github.com/hitoshi/fanfootprint/internal/session"
)

// SessionManager は認証ハンドラーが必要とするセッション登録簿のインターフェース。
// session.Managerが実装する。
type SessionManager interface {
	Create(ctx context.Context) (string, *session.Store, error)
	Discard(key string)
}

// AuthHandler はログイン・会員登録・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	sessions SessionManager
	cookie   middleware.SessionCookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(sessions SessionManager, cookie middleware.SessionCookieConfig) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		cookie:   cookie,
	}
}

// registerRequest は会員登録リクエストのボディ。
type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// userResponse はログイン中のユーザー情報のAPIレスポンス。
type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// meResponse は認証状態のAPIレスポンス。
// readyはセッション確認が完了したかを表し、falseの間はUIがローディング表示をする。
type meResponse struct {
	Authenticated bool          `json:"authenticated"`
	Ready         bool          `json:"ready"`
	User          *userResponse `json:"user"`
}

// Register は会員登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	h.authenticate(w, r, http.StatusCreated, func(ctx context.Context, store *session.Store) error {
		return store.Register(ctx, req.Username, req.Email, req.Password)
	})
}

// Login はメールアドレスとパスワードによるログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	h.authenticate(w, r, http.StatusOK, func(ctx context.Context, store *session.Store) error {
		return store.Login(ctx, req.Email, req.Password)
	})
}

// authenticate はブラウザのストアを取得（なければ作成）してfnを実行する。
// 新規に作成したストアは成功時にCookieを発行し、失敗時は破棄する。
func (h *AuthHandler) authenticate(w http.ResponseWriter, r *http.Request, successStatus int, fn func(context.Context, *session.Store) error) {
	ctx := r.Context()
	store := middleware.StoreFromContext(ctx)
	key := middleware.SessionKeyFromContext(ctx)
	created := false

	if store == nil {
		var err error
		key, store, err = h.sessions.Create(ctx)
		if err != nil {
			slog.Error("failed to create session store", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
			return
		}
		created = true
	}

	if err := fn(ctx, store); err != nil {
		if created {
			h.sessions.Discard(key)
		}
		handleStoreError(w, err)
		return
	}

	if created {
		middleware.SetSessionCookie(w, key, h.cookie)
	}
	writeJSON(w, successStatus, toMeResponse(store))
}

// Logout はセッションを破棄する。
// リモートのサインアウトに失敗した場合はストアとCookieを残し、ログイン状態を維持する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if store := middleware.StoreFromContext(ctx); store != nil {
		if err := store.Logout(ctx); err != nil {
			slog.Warn("failed to sign out", slog.String("error", err.Error()))
			handleStoreError(w, err)
			return
		}
		h.sessions.Discard(middleware.SessionKeyFromContext(ctx))
	}

	middleware.ClearSessionCookie(w, h.cookie)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在の認証状態とログインユーザー情報を返す。
// 未ログインでもエラーにはせず、authenticated=falseを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toMeResponse(middleware.StoreFromContext(r.Context())))
}

func toMeResponse(store *session.Store) meResponse {
	if store == nil {
		return meResponse{Ready: true}
	}
	resp := meResponse{Ready: store.Ready()}
	if u := store.User(); u != nil {
		resp.Authenticated = true
		resp.User = toUserResponse(u.Identity)
	}
	return resp
}

func toUserResponse(id model.Identity) *userResponse {
	return &userResponse{
		ID:       id.ID,
		Username: id.Username,
		Email:    id.Email,
	}
}
