package middleware

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/hitoshi/fanfootprint/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// codeStatus は定義済みエラーコードとHTTPステータスの対応。
var codeStatus = map[string]int{
	model.ErrCodeUnauthorized:      http.StatusUnauthorized,
	model.ErrCodeAuthFailed:        http.StatusUnauthorized,
	model.ErrCodeCSRFFailed:        http.StatusForbidden,
	model.ErrCodeIncompleteStadium: http.StatusBadRequest,
	model.ErrCodeInvalidRequest:    http.StatusBadRequest,
	model.ErrCodeInvalidView:       http.StatusBadRequest,
	model.ErrCodeStadiumNotFound:   http.StatusNotFound,
	model.ErrCodeArenaNotFound:     http.StatusNotFound,
	model.ErrCodeProfileFailed:     http.StatusBadGateway,
	model.ErrCodeWriteFailed:       http.StatusBadGateway,
}

// StatusForCode はエラーコードに対応するHTTPステータスを返す。
// 未知のコードは500とする。
func StatusForCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
	if err != nil {
		slog.Error("failed to encode error response",
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}
}

// WriteAPIError はエラーコードから導いたステータスでエラーレスポンスを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForCode(apiErr.Code), apiErr)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
