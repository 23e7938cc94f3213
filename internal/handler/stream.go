package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/mastosync/internal/middleware"
	"github.com/hitoshi/mastosync/internal/model"
)

// streamEvent は購読ストリームの1行。
type streamEvent struct {
	State string                        `json:"state,omitempty"`
	Page  any                           `json:"page,omitempty"`
	Error *middleware.ErrorResponseBody `json:"error,omitempty"`
}

// errorBody はエラーをストリーム用のエラーボディに変換する。
func errorBody(err error) *middleware.ErrorResponseBody {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		apiErr = model.NewCacheFailureError(err)
	}
	return &middleware.ErrorResponseBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Category:  apiErr.Category,
		Action:    apiErr.Action,
		Retryable: apiErr.Retryable,
	}
}

// streamJSONLines は更新をNDJSONで1件ずつ書き出す。
// クライアントが切断するか、チャネルが閉じられるまで戻らない。
func streamJSONLines[U any](w http.ResponseWriter, r *http.Request, updates <-chan U, event func(U) streamEvent) {
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := enc.Encode(event(u)); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
