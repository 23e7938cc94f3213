package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mastosync/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// Register はアクセストークンを検証してアカウントを登録する。
	Register(ctx context.Context, domain, token string) (*model.Account, error)
	List(ctx context.Context) ([]*model.Account, error)
	Remove(ctx context.Context, accountID string) error
}

// CacheForgetter はアカウント削除時にメモリ上の Pager を破棄する。
type CacheForgetter interface {
	Forget(accountID string)
}

// AccountHandler はログイン中アカウントの管理を行うHTTPハンドラー。
type AccountHandler struct {
	service    AccountServiceInterface
	forgetters []CacheForgetter
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, forgetters ...CacheForgetter) *AccountHandler {
	return &AccountHandler{service: service, forgetters: forgetters}
}

// registerAccountRequest はアカウント登録リクエストのボディ。
type registerAccountRequest struct {
	Domain      string `json:"domain"`
	AccessToken string `json:"access_token"`
}

// accountListResponse はアカウント一覧のレスポンス。
type accountListResponse struct {
	Accounts []*model.Account `json:"accounts"`
}

// RegisterAccount はアカウントを登録する。
// POST /api/accounts
func (h *AccountHandler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	var req registerAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, err := h.service.Register(r.Context(), req.Domain, req.AccessToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// ListAccounts は登録済みアカウントの一覧を返す。
// GET /api/accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if accounts == nil {
		accounts = []*model.Account{}
	}

	writeJSON(w, http.StatusOK, accountListResponse{Accounts: accounts})
}

// RemoveAccount はアカウントとそのキャッシュを削除する。
// DELETE /api/accounts/{accountID}
func (h *AccountHandler) RemoveAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	if err := h.service.Remove(r.Context(), accountID); err != nil {
		handleServiceError(w, err)
		return
	}
	for _, f := range h.forgetters {
		f.Forget(accountID)
	}

	w.WriteHeader(http.StatusNoContent)
}
