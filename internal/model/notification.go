package model

import "time"

// NotificationType は通知の種類を表す。
type NotificationType string

const (
	NotificationMention              NotificationType = "mention"
	NotificationStatus               NotificationType = "status"
	NotificationReblog               NotificationType = "reblog"
	NotificationFollow               NotificationType = "follow"
	NotificationFollowRequest        NotificationType = "follow_request"
	NotificationFavourite            NotificationType = "favourite"
	NotificationPoll                 NotificationType = "poll"
	NotificationUpdate               NotificationType = "update"
	NotificationSignUp               NotificationType = "admin.sign_up"
	NotificationReport               NotificationType = "admin.report"
	NotificationSeveredRelationships NotificationType = "severed_relationships"
	NotificationModerationWarning    NotificationType = "moderation_warning"
	NotificationUnknown              NotificationType = "unknown"
)

var knownNotificationTypes = map[NotificationType]bool{
	NotificationMention:              true,
	NotificationStatus:               true,
	NotificationReblog:               true,
	NotificationFollow:               true,
	NotificationFollowRequest:        true,
	NotificationFavourite:            true,
	NotificationPoll:                 true,
	NotificationUpdate:               true,
	NotificationSignUp:               true,
	NotificationReport:               true,
	NotificationSeveredRelationships: true,
	NotificationModerationWarning:    true,
}

// ParseNotificationType はサーバーの文字列を NotificationType に変換する。
// 未知の種類は NotificationUnknown になる。
func ParseNotificationType(s string) NotificationType {
	t := NotificationType(s)
	if knownNotificationTypes[t] {
		return t
	}
	return NotificationUnknown
}

// Notification はキャッシュされる通知を表す。
// Type が nil の行はプレースホルダー（未取得区間）を表す。
type Notification struct {
	ID              string
	Type            *NotificationType
	AccountServerID string
	StatusServerID  string
	Report          *Report
	CreatedAt       time.Time
	Loading         bool
}

// IsPlaceholder はプレースホルダー行かどうかを返す。
func (n *Notification) IsPlaceholder() bool {
	return n.Type == nil
}

// Report はモデレーション通報を表す。
type Report struct {
	ID            string    `json:"id"`
	Category      string    `json:"category"`
	Comment       string    `json:"comment"`
	StatusIDs     []string  `json:"status_ids"`
	CreatedAt     time.Time `json:"created_at"`
	TargetAccount string    `json:"target_account_id"`
}

// NotificationItem は通知行と参照先を結合したもの。
type NotificationItem struct {
	Notification Notification
	Account      *TimelineAccount
	Status       *Status
	StatusAuthor *TimelineAccount
}

// NotificationPageItem はリモートから取得した1件分の通知。
type NotificationPageItem struct {
	ID           string
	Type         NotificationType
	Account      TimelineAccount
	Status       *Status
	StatusAuthor *TimelineAccount
	Report       *Report
	CreatedAt    time.Time
}
