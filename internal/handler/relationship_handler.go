package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/mutation"
)

// AccountActionsInterface はアカウント操作に必要なサービスインターフェース。
type AccountActionsInterface interface {
	SetRelationship(ctx context.Context, accountID string, api mutation.AccountAPI, p mutation.SetRelationshipParams) (*model.Relationship, error)
	Unfollow(ctx context.Context, accountID string, api mutation.AccountAPI, targetID string) (*model.Relationship, error)
	SetListMember(ctx context.Context, accountID string, api mutation.AccountAPI, listID, targetID string, member bool) error
}

// RelationshipHandler はミュート・ブロック・フォロー解除・リスト所属のHTTPハンドラー。
type RelationshipHandler struct {
	actions AccountActionsInterface
}

// NewRelationshipHandler はRelationshipHandlerを生成する。
func NewRelationshipHandler(actions AccountActionsInterface) *RelationshipHandler {
	return &RelationshipHandler{actions: actions}
}

// relationshipRequest は関係の更新リクエストのボディ。
type relationshipRequest struct {
	Kind          string `json:"kind"` // mute | block
	Value         *bool  `json:"value"`
	Notifications bool   `json:"notifications"`
}

// SetRelationship は対象アカウントのミュートまたはブロックを切り替える。
// PUT /api/accounts/{accountID}/relationships/{targetID}
func (h *RelationshipHandler) SetRelationship(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	var req relationshipRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Value == nil {
		handleServiceError(w, model.NewInvalidRequestError("value を指定してください"))
		return
	}

	rel, err := h.actions.SetRelationship(r.Context(), sess.Account.ID, sess.Client, mutation.SetRelationshipParams{
		TargetID:          chi.URLParam(r, "targetID"),
		Kind:              mutation.RelationshipKind(req.Kind),
		Value:             *req.Value,
		MuteNotifications: req.Notifications,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rel)
}

// Unfollow は対象アカウントのフォローを解除する。
// POST /api/accounts/{accountID}/relationships/{targetID}/unfollow
func (h *RelationshipHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	rel, err := h.actions.Unfollow(r.Context(), sess.Account.ID, sess.Client, chi.URLParam(r, "targetID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rel)
}

// AddListMember はアカウントをリストに追加する。
// PUT /api/accounts/{accountID}/lists/{listID}/members/{targetID}
func (h *RelationshipHandler) AddListMember(w http.ResponseWriter, r *http.Request) {
	h.setListMember(w, r, true)
}

// RemoveListMember はアカウントをリストから外す。
// DELETE /api/accounts/{accountID}/lists/{listID}/members/{targetID}
func (h *RelationshipHandler) RemoveListMember(w http.ResponseWriter, r *http.Request) {
	h.setListMember(w, r, false)
}

func (h *RelationshipHandler) setListMember(w http.ResponseWriter, r *http.Request, member bool) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	err := h.actions.SetListMember(r.Context(), sess.Account.ID, sess.Client, chi.URLParam(r, "listID"), chi.URLParam(r, "targetID"), member)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
