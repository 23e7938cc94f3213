package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mastosync/internal/editdiff"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/mutation"
	"github.com/hitoshi/mastosync/internal/repository"
)

// StatusActionsInterface は投稿操作に必要なサービスインターフェース。
type StatusActionsInterface interface {
	// Set は投稿のフラグを楽観的に切り替える。
	Set(ctx context.Context, accountID string, api mutation.StatusAPI, statusID string, action mutation.StatusAction, value bool) (*model.Status, error)
	// SetViewState はローカルの表示状態を更新する。ネットワークには送らない。
	SetViewState(ctx context.Context, accountID, statusID string, field repository.ViewStateField, value bool) error
	Delete(ctx context.Context, accountID string, api mutation.StatusAPI, statusID string) error
}

// EditHistoryInterface は編集履歴の取得に必要なサービスインターフェース。
type EditHistoryInterface interface {
	Fetch(ctx context.Context, api editdiff.API, statusID string) (*editdiff.Result, error)
	Load(ctx context.Context, api editdiff.API, statusID string) <-chan editdiff.State
}

// StatusHandler は投稿操作のHTTPハンドラー。
type StatusHandler struct {
	actions StatusActionsInterface
	edits   EditHistoryInterface
}

// NewStatusHandler はStatusHandlerを生成する。
func NewStatusHandler(actions StatusActionsInterface, edits EditHistoryInterface) *StatusHandler {
	return &StatusHandler{actions: actions, edits: edits}
}

// flagRequest はフラグ切り替えリクエストのボディ。
type flagRequest struct {
	Value *bool `json:"value"`
}

// viewStateRequest は表示状態の更新リクエストのボディ。
type viewStateRequest struct {
	Field string `json:"field"`
	Value *bool  `json:"value"`
}

// decodeFlag は {"value": bool} を読み取る。value がない場合は400を書き込む。
func decodeFlag(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req flagRequest
	if !decodeBody(w, r, &req) {
		return false, false
	}
	if req.Value == nil {
		handleServiceError(w, model.NewInvalidRequestError("value を指定してください"))
		return false, false
	}
	return *req.Value, true
}

// SetStatusFlag は投稿のお気に入り・ブースト・ブックマーク・ミュート・ピン留めを切り替える。
// PUT /api/accounts/{accountID}/statuses/{id}/{action}
func (h *StatusHandler) SetStatusFlag(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	action, err := mutation.ParseStatusAction(chi.URLParam(r, "action"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	value, ok := decodeFlag(w, r)
	if !ok {
		return
	}

	status, err := h.actions.Set(r.Context(), sess.Account.ID, sess.Client, chi.URLParam(r, "id"), action, value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// SetViewState は投稿の展開・センシティブ表示・折りたたみ状態を更新する。
// PUT /api/accounts/{accountID}/statuses/{id}/view
func (h *StatusHandler) SetViewState(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	var req viewStateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	field, err := mutation.ParseViewStateField(req.Field)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if req.Value == nil {
		handleServiceError(w, model.NewInvalidRequestError("value を指定してください"))
		return
	}

	if err := h.actions.SetViewState(r.Context(), sess.Account.ID, chi.URLParam(r, "id"), field, *req.Value); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteStatus は自分の投稿を削除する。
// DELETE /api/accounts/{accountID}/statuses/{id}
func (h *StatusHandler) DeleteStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	if err := h.actions.Delete(r.Context(), sess.Account.ID, sess.Client, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetEditHistory は差分付きの編集履歴を返す。
// GET /api/accounts/{accountID}/statuses/{id}/edits
func (h *StatusHandler) GetEditHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	result, err := h.edits.Fetch(r.Context(), sess.Client, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// StreamEditHistory は編集履歴の読み込み状態をNDJSONで配信する。
// GET /api/accounts/{accountID}/statuses/{id}/edits/stream
func (h *StatusHandler) StreamEditHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	states := h.edits.Load(r.Context(), sess.Client, chi.URLParam(r, "id"))
	streamJSONLines(w, r, states, func(s editdiff.State) streamEvent {
		ev := streamEvent{State: string(s.Kind)}
		switch {
		case s.Err != nil:
			ev.Error = errorBody(s.Err)
		case s.Result != nil:
			ev.Page = s.Result
		}
		return ev
	})
}
