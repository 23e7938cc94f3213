package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mastosync/internal/notification"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/timeline"
)

// TimelineServiceInterface はタイムラインの読み込みに必要なサービスインターフェース。
type TimelineServiceInterface interface {
	Load(ctx context.Context, accountID string, api timeline.API, tl string, loadType paging.LoadType, key string) (*timeline.Page, error)
	// LoadMore はプレースホルダー（未取得区間）を読み込む。
	LoadMore(ctx context.Context, accountID string, api timeline.API, tl, placeholderID string) error
	Subscribe(ctx context.Context, accountID string, api timeline.API, tl string) (<-chan timeline.Update, error)
}

// NotificationServiceInterface は通知の読み込みに必要なサービスインターフェース。
type NotificationServiceInterface interface {
	Load(ctx context.Context, accountID string, api notification.API, loadType paging.LoadType, key string) (*notification.Page, error)
	LoadMore(ctx context.Context, accountID string, api notification.API, placeholderID string) error
	Subscribe(ctx context.Context, accountID string, api notification.API) <-chan notification.Update
}

// TimelineHandler はタイムラインと通知のHTTPハンドラー。
type TimelineHandler struct {
	timelines     TimelineServiceInterface
	notifications NotificationServiceInterface
}

// NewTimelineHandler はTimelineHandlerを生成する。
func NewTimelineHandler(timelines TimelineServiceInterface, notifications NotificationServiceInterface) *TimelineHandler {
	return &TimelineHandler{timelines: timelines, notifications: notifications}
}

// LoadTimeline はタイムラインを1ページ読み込む。
// GET /api/accounts/{accountID}/timelines/{timeline}?load=refresh|append|prepend&key=
func (h *TimelineHandler) LoadTimeline(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	loadType, key, ok := loadParams(w, r)
	if !ok {
		return
	}

	page, err := h.timelines.Load(r.Context(), sess.Account.ID, sess.Client, chi.URLParam(r, "timeline"), loadType, key)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// LoadTimelinePlaceholder はタイムラインのギャップを読み込む。
// POST /api/accounts/{accountID}/timelines/{timeline}/placeholders/{id}/load
func (h *TimelineHandler) LoadTimelinePlaceholder(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	err := h.timelines.LoadMore(r.Context(), sess.Account.ID, sess.Client, chi.URLParam(r, "timeline"), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StreamTimeline はタイムラインの変更をNDJSONで配信する。
// GET /api/accounts/{accountID}/timelines/{timeline}/stream
func (h *TimelineHandler) StreamTimeline(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	updates, err := h.timelines.Subscribe(r.Context(), sess.Account.ID, sess.Client, chi.URLParam(r, "timeline"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	streamJSONLines(w, r, updates, func(u timeline.Update) streamEvent {
		if u.Err != nil {
			return streamEvent{Error: errorBody(u.Err)}
		}
		return streamEvent{Page: u.Page}
	})
}

// LoadNotifications は通知を1ページ読み込む。
// GET /api/accounts/{accountID}/notifications?load=&key=
func (h *TimelineHandler) LoadNotifications(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	loadType, key, ok := loadParams(w, r)
	if !ok {
		return
	}

	page, err := h.notifications.Load(r.Context(), sess.Account.ID, sess.Client, loadType, key)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// LoadNotificationPlaceholder は通知のギャップを読み込む。
// POST /api/accounts/{accountID}/notifications/placeholders/{id}/load
func (h *TimelineHandler) LoadNotificationPlaceholder(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	if err := h.notifications.LoadMore(r.Context(), sess.Account.ID, sess.Client, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StreamNotifications は通知の変更をNDJSONで配信する。
// GET /api/accounts/{accountID}/notifications/stream
func (h *TimelineHandler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	updates := h.notifications.Subscribe(r.Context(), sess.Account.ID, sess.Client)
	streamJSONLines(w, r, updates, func(u notification.Update) streamEvent {
		if u.Err != nil {
			return streamEvent{Error: errorBody(u.Err)}
		}
		return streamEvent{Page: u.Page}
	})
}
