// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/hitoshi/fanfootprint/internal/middleware"
	"github.com/hitoshi/fanfootprint/internal/model"
)

// maxBodySize はリクエストボディの上限（1MB）。
const maxBodySize = 1 << 20

// validate はリクエストボディの検証に使う共有インスタンス。
// validator.Validateは並行利用に安全で、構造体の解析結果をキャッシュする。
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeAndValidate はリクエストボディをdstにデコードし、validateタグで検証する。
// 失敗時はINVALID_REQUESTのレスポンスを書き込み、falseを返す。
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError(describeValidationError(err)))
		return false
	}
	return true
}

// describeValidationError は検証エラーを「フィールド (タグ)」の一覧に変換する。
func describeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return strings.Join(fields, ", ")
}

// handleStoreError はセッションストアから返されたエラーを適切なHTTPステータスコードに変換する。
func handleStoreError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	var storeErr *model.StoreError
	if errors.As(err, &storeErr) {
		status, apiErr := mapStoreError(storeErr)
		middleware.WriteErrorResponse(w, status, apiErr)
		return
	}

	// 上記以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapStoreError はStoreErrorの種別からHTTPステータスとAPIErrorを組み立てる。
// メッセージはリモート側の文言をそのまま使う。
func mapStoreError(err *model.StoreError) (int, *model.APIError) {
	switch err.Kind {
	case model.KindAuth:
		return http.StatusUnauthorized, &model.APIError{
			Code:     model.ErrCodeAuthFailed,
			Message:  err.Message,
			Category: "auth",
			Action:   "メールアドレスとパスワードを確認してください。",
		}
	case model.KindNotAuthenticated:
		return http.StatusUnauthorized, model.NewUnauthorizedError()
	case model.KindProfile:
		return http.StatusBadGateway, &model.APIError{
			Code:     model.ErrCodeProfileFailed,
			Message:  err.Message,
			Category: "system",
			Action:   "しばらく待ってから再度ログインしてください。",
		}
	case model.KindNotFound:
		return http.StatusNotFound, &model.APIError{
			Code:     model.ErrCodeStadiumNotFound,
			Message:  err.Message,
			Category: "stadium",
			Action:   "一覧を再読み込みしてください。",
		}
	default:
		return http.StatusBadGateway, &model.APIError{
			Code:     model.ErrCodeWriteFailed,
			Message:  err.Message,
			Category: "stadium",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}
}
