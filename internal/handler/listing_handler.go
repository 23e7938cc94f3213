package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mastosync/internal/listing"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/timeline"
)

// ListingServiceInterface はネットワークのみの一覧に必要なサービスインターフェース。
type ListingServiceInterface interface {
	ScheduledStatuses(ctx context.Context, accountID string, api listing.API, loadType paging.LoadType, key string) (*listing.Page[model.ScheduledStatus], error)
	DeleteScheduledStatus(ctx context.Context, accountID string, api listing.API, id string) error
	NotificationRequests(ctx context.Context, accountID string, api listing.API, loadType paging.LoadType, key string) (*listing.Page[model.NotificationRequest], error)
	AcceptNotificationRequest(ctx context.Context, accountID string, api listing.API, id string) error
	DismissNotificationRequest(ctx context.Context, accountID string, api listing.API, id string) error
	Search(ctx context.Context, accountID string, api listing.API, query string, typ model.SearchType, loadType paging.LoadType, key string) (*listing.Page[model.SearchResult], error)
	ReportStatuses(ctx context.Context, accountID string, api listing.API, targetID string, loadType paging.LoadType, key string) (*listing.Page[timeline.StatusViewData], error)
}

// ListingHandler は予約投稿・検索・通知リクエスト・通報用の投稿一覧のHTTPハンドラー。
type ListingHandler struct {
	service ListingServiceInterface
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(service ListingServiceInterface) *ListingHandler {
	return &ListingHandler{service: service}
}

// ListScheduledStatuses は予約投稿の一覧を返す。
// GET /api/accounts/{accountID}/scheduled_statuses?load=&key=
func (h *ListingHandler) ListScheduledStatuses(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	loadType, key, ok := loadParams(w, r)
	if !ok {
		return
	}

	page, err := h.service.ScheduledStatuses(r.Context(), sess.Account.ID, sess.Client, loadType, key)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// DeleteScheduledStatus は予約投稿を取り消す。
// DELETE /api/accounts/{accountID}/scheduled_statuses/{id}
func (h *ListingHandler) DeleteScheduledStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteScheduledStatus(r.Context(), sess.Account.ID, sess.Client, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Search は検索結果を返す。key は結果のオフセット。
// GET /api/accounts/{accountID}/search?q=&type=&load=&key=
func (h *ListingHandler) Search(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	loadType, key, ok := loadParams(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	typ := model.SearchType(q.Get("type"))
	if typ == "" {
		typ = model.SearchStatuses
	}

	page, err := h.service.Search(r.Context(), sess.Account.ID, sess.Client, q.Get("q"), typ, loadType, key)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// ListNotificationRequests はフィルタされた通知リクエストの一覧を返す。
// GET /api/accounts/{accountID}/notification_requests?load=&key=
func (h *ListingHandler) ListNotificationRequests(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	loadType, key, ok := loadParams(w, r)
	if !ok {
		return
	}

	page, err := h.service.NotificationRequests(r.Context(), sess.Account.ID, sess.Client, loadType, key)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// AcceptNotificationRequest は通知リクエストを承認する。
// POST /api/accounts/{accountID}/notification_requests/{id}/accept
func (h *ListingHandler) AcceptNotificationRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	if err := h.service.AcceptNotificationRequest(r.Context(), sess.Account.ID, sess.Client, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DismissNotificationRequest は通知リクエストを却下する。
// POST /api/accounts/{accountID}/notification_requests/{id}/dismiss
func (h *ListingHandler) DismissNotificationRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	if err := h.service.DismissNotificationRequest(r.Context(), sess.Account.ID, sess.Client, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListReportStatuses は通報対象アカウントの投稿を返す。
// GET /api/accounts/{accountID}/reports/{targetID}/statuses?load=&key=
func (h *ListingHandler) ListReportStatuses(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	loadType, key, ok := loadParams(w, r)
	if !ok {
		return
	}

	page, err := h.service.ReportStatuses(r.Context(), sess.Account.ID, sess.Client, chi.URLParam(r, "targetID"), loadType, key)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}
