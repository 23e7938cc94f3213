package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/mastosync/internal/middleware"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/session"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeBody はリクエストボディをJSONとして読み込む。
// 解析に失敗した場合は INVALID_REQUEST を書き込み false を返す。
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return false
	}
	return true
}

// maxRequestBodySize はリクエストボディの上限。
const maxRequestBodySize = 64 << 10

// handleServiceError はサービス層から返されたエラーを統一フォーマットで書き込む。
// APIError 以外のエラーは内部エラーとしてログに記録する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("internal server error", slog.String("error", err.Error()))
	}
	middleware.WriteError(w, err)
}

// sessionFrom はアカウントミドルウェアが格納したセッションを取り出す。
// 見つからない場合は404を書き込み false を返す。
func sessionFrom(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, model.NewAccountNotFoundError(""))
		return nil, false
	}
	return sess, true
}

// loadParams はクエリパラメータ load と key を読み取る。
func loadParams(w http.ResponseWriter, r *http.Request) (paging.LoadType, string, bool) {
	q := r.URL.Query()
	loadType, err := paging.ParseLoadType(q.Get("load"))
	if err != nil {
		middleware.WriteError(w, err)
		return 0, "", false
	}
	return loadType, q.Get("key"), true
}
