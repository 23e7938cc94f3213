package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/mastosync/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法、再試行ボタンを出してよいかを含む。
type ErrorResponseBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	Retryable bool   `json:"retryable"`
}

// statusByCode はエラーコードとHTTPステータスの対応。
var statusByCode = map[string]int{
	model.ErrCodeNetwork:                 http.StatusBadGateway,
	model.ErrCodeHTTP:                    http.StatusBadGateway,
	model.ErrCodeMalformedResponse:       http.StatusBadGateway,
	model.ErrCodeMutationFailed:          http.StatusBadGateway,
	model.ErrCodeFeedPreviewFailed:       http.StatusBadGateway,
	model.ErrCodeRateLimited:             http.StatusTooManyRequests,
	model.ErrCodeUnauthorized:            http.StatusUnauthorized,
	model.ErrCodeAccountNotFound:         http.StatusNotFound,
	model.ErrCodeStatusNotFound:          http.StatusNotFound,
	model.ErrCodePlaceholderNotFound:     http.StatusNotFound,
	model.ErrCodeEditHistoryInsufficient: http.StatusUnprocessableEntity,
	model.ErrCodeInvalidLoadType:         http.StatusBadRequest,
	model.ErrCodeInvalidRequest:          http.StatusBadRequest,
	model.ErrCodeSSRFBlocked:             http.StatusBadRequest,
	model.ErrCodeCacheFailure:            http.StatusInternalServerError,
}

// HTTPStatusFor はエラーコードに対応するHTTPステータスを返す。未知のコードは500。
func HTTPStatusFor(apiErr *model.APIError) int {
	if status, ok := statusByCode[apiErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Category:  apiErr.Category,
		Action:    apiErr.Action,
		Retryable: apiErr.Retryable,
	})
}

// WriteError はエラーを統一フォーマットで書き込む。
// *model.APIError 以外のエラーは内部エラーとして扱い、詳細は返さない。
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, HTTPStatusFor(apiErr), apiErr)
		return
	}
	WriteInternalServerError(w)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
