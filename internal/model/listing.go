package model

import "time"

// StatusEdit は投稿の編集履歴の1版を表す。
type StatusEdit struct {
	Content          string          `json:"content"`
	SpoilerText      string          `json:"spoiler_text"`
	Sensitive        bool            `json:"sensitive"`
	CreatedAt        time.Time       `json:"created_at"`
	Account          TimelineAccount `json:"account"`
	Poll             *Poll           `json:"poll,omitempty"`
	MediaAttachments []Attachment    `json:"media_attachments,omitempty"`
}

// ScheduledStatus は予約投稿を表す。ネットワークからのみ取得しキャッシュしない。
type ScheduledStatus struct {
	ID          string     `json:"id"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Text        string     `json:"text"`
	SpoilerText string     `json:"spoiler_text"`
	Visibility  Visibility `json:"visibility"`
	Sensitive   bool       `json:"sensitive"`
	MediaIDs    []string   `json:"media_ids,omitempty"`
}

// SearchType は検索対象の種類を表す。
type SearchType string

const (
	SearchAccounts SearchType = "accounts"
	SearchStatuses SearchType = "statuses"
	SearchHashtags SearchType = "hashtags"
)

// SearchResult は検索結果の1件を表す。種類に応じていずれか1つのフィールドのみ設定される。
type SearchResult struct {
	Account *TimelineAccount `json:"account,omitempty"`
	Status  *TimelineItem    `json:"status,omitempty"`
	Hashtag *Tag             `json:"hashtag,omitempty"`
}

// NotificationRequest はフィルタされた通知の受信リクエストを表す。
type NotificationRequest struct {
	ID                 string          `json:"id"`
	Account            TimelineAccount `json:"account"`
	NotificationsCount int             `json:"notifications_count"`
	LastStatus         *TimelineItem   `json:"last_status,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
