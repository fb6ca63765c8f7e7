// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, stadium, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeAuthFailed        = "AUTH_FAILED"
	ErrCodeProfileFailed     = "PROFILE_FAILED"
	ErrCodeWriteFailed       = "WRITE_FAILED"
	ErrCodeStadiumNotFound   = "STADIUM_NOT_FOUND"
	ErrCodeIncompleteStadium = "INCOMPLETE_STADIUM"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeArenaNotFound     = "ARENA_NOT_FOUND"
	ErrCodeInvalidView       = "INVALID_VIEW"
	ErrCodeCSRFFailed        = "CSRF_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewIncompleteStadiumError はスタジアムの必須項目不足エラーを生成する。
func NewIncompleteStadiumError() *APIError {
	return &APIError{
		Code:     ErrCodeIncompleteStadium,
		Message:  "Please fill in all fields",
		Category: "validation",
		Action:   "スタジアム名、都市、スポーツをすべて入力してください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewArenaNotFoundError は参照データにチームが存在しない場合のエラーを生成する。
func NewArenaNotFoundError(team string) *APIError {
	return &APIError{
		Code:     ErrCodeArenaNotFound,
		Message:  fmt.Sprintf("指定されたチームが見つかりません: %s", team),
		Category: "validation",
		Action:   "検索結果からチームを選択してください。",
	}
}

// NewInvalidViewError は無効な表示モードのエラーを生成する。
func NewInvalidViewError(view string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidView,
		Message:  fmt.Sprintf("無効な表示モードです: %s", view),
		Category: "validation",
		Action:   "表示モードには list または map を指定してください。",
	}
}

// ErrorKind はセッションストアが返すエラーの種別。
type ErrorKind string

const (
	// KindAuth は認証プロバイダーによる資格情報・セッションの失敗。
	KindAuth ErrorKind = "auth"
	// KindProfile はプロフィール行の作成・読み込みの失敗。
	KindProfile ErrorKind = "profile"
	// KindWrite はスタジアムの追加・更新・削除の失敗。
	KindWrite ErrorKind = "write"
	// KindNotAuthenticated はログインしていない状態での更新操作。
	KindNotAuthenticated ErrorKind = "not_authenticated"
	// KindNotFound は所有者スコープで対象行が0件だった更新・削除。
	// KindWriteの一種として扱う。
	KindNotFound ErrorKind = "not_found"
)

// StoreError はセッションストアの操作失敗を表す。
// Messageはリモート側のメッセージをそのまま保持し、UIにそのまま表示できる。
type StoreError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *StoreError) Error() string {
	return e.Message
}

// Unwrap は元のエラーを返す。
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is は同じ種別のセンチネルエラーと一致するかを判定する。
// KindNotFoundはErrWriteとも一致する。
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok || t.Message != "" {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindWrite && e.Kind == KindNotFound
}

// errors.Is で種別判定するためのセンチネルエラー。
var (
	ErrAuth             = &StoreError{Kind: KindAuth}
	ErrProfile          = &StoreError{Kind: KindProfile}
	ErrWrite            = &StoreError{Kind: KindWrite}
	ErrNotAuthenticated = &StoreError{Kind: KindNotAuthenticated}
	ErrNotFound         = &StoreError{Kind: KindNotFound}
)

// NewStoreError は元のエラーのメッセージを優先し、空の場合はfallbackを使うStoreErrorを生成する。
func NewStoreError(kind ErrorKind, err error, fallback string) *StoreError {
	msg := fallback
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &StoreError{Kind: kind, Message: msg, Err: err}
}
