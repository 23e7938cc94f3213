package notification

import (
	"time"

	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/timeline"
)

// NotificationViewData は表示用に加工した通知。
type NotificationViewData struct {
	ID          string                   `json:"id"`
	Type        model.NotificationType   `json:"type,omitempty"`
	Account     *model.TimelineAccount   `json:"account,omitempty"`
	Status      *timeline.StatusViewData `json:"status,omitempty"`
	Report      *model.Report            `json:"report,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	Placeholder bool                     `json:"placeholder"`
	Loading     bool                     `json:"loading"`
}

// NewNotificationViewData はキャッシュの通知行を表示用に変換する。
// 対象の投稿が notifications コンテキストの hide フィルタに掛かった場合は false を返す。
func NewNotificationViewData(item model.NotificationItem) (NotificationViewData, bool) {
	n := item.Notification
	vd := NotificationViewData{
		ID:          n.ID,
		CreatedAt:   n.CreatedAt,
		Placeholder: n.IsPlaceholder(),
		Loading:     n.Loading,
	}
	if vd.Placeholder {
		return vd, true
	}
	vd.Type = *n.Type
	vd.Account = item.Account
	vd.Report = n.Report

	if item.Status != nil {
		status, ok := timeline.NewStatusViewData(model.TimelineItem{
			Entry:  model.TimelineEntry{ID: item.Status.ServerID, StatusServerID: item.Status.ServerID},
			Status: item.Status,
			Author: item.StatusAuthor,
		}, timeline.FilterContextNotifications)
		if !ok {
			return NotificationViewData{}, false
		}
		vd.Status = &status
	}
	return vd, true
}

func viewItems(items []model.NotificationItem) []NotificationViewData {
	out := make([]NotificationViewData, 0, len(items))
	for _, it := range items {
		if vd, ok := NewNotificationViewData(it); ok {
			out = append(out, vd)
		}
	}
	return out
}
