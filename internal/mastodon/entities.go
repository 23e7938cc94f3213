package mastodon

import (
	"encoding/json"
	"time"

	"github.com/hitoshi/mastosync/internal/model"
)

// 以下はMastodon REST APIのレスポンス形式。キャッシュに必要なフィールドのみ定義する。
// null が返るフィールドは文字列のゼロ値として扱う。

type apiAccount struct {
	ID          string        `json:"id"`
	Username    string        `json:"username"`
	Acct        string        `json:"acct"`
	DisplayName string        `json:"display_name"`
	URL         string        `json:"url"`
	Avatar      string        `json:"avatar"`
	Note        string        `json:"note"`
	Bot         bool          `json:"bot"`
	Emojis      []model.Emoji `json:"emojis"`
}

type apiStatus struct {
	ID                 string               `json:"id"`
	URI                string               `json:"uri"`
	URL                string               `json:"url"`
	Account            apiAccount           `json:"account"`
	InReplyToID        string               `json:"in_reply_to_id"`
	InReplyToAccountID string               `json:"in_reply_to_account_id"`
	Reblog             *apiStatus           `json:"reblog"`
	Content            string               `json:"content"`
	SpoilerText        string               `json:"spoiler_text"`
	CreatedAt          time.Time            `json:"created_at"`
	EditedAt           *time.Time           `json:"edited_at"`
	ReblogsCount       int                  `json:"reblogs_count"`
	FavouritesCount    int                  `json:"favourites_count"`
	RepliesCount       int                  `json:"replies_count"`
	Reblogged          bool                 `json:"reblogged"`
	Favourited         bool                 `json:"favourited"`
	Bookmarked         bool                 `json:"bookmarked"`
	Sensitive          bool                 `json:"sensitive"`
	Pinned             bool                 `json:"pinned"`
	Muted              bool                 `json:"muted"`
	MediaAttachments   []model.Attachment   `json:"media_attachments"`
	Mentions           []model.Mention      `json:"mentions"`
	Tags               []model.Tag          `json:"tags"`
	Poll               *model.Poll          `json:"poll"`
	Card               *model.Card          `json:"card"`
	Visibility         string               `json:"visibility"`
	Language           string               `json:"language"`
	Filtered           []model.FilterResult `json:"filtered"`
}

type apiReport struct {
	ID            string     `json:"id"`
	Category      string     `json:"category"`
	Comment       string     `json:"comment"`
	StatusIDs     []string   `json:"status_ids"`
	CreatedAt     time.Time  `json:"created_at"`
	TargetAccount apiAccount `json:"target_account"`
}

type apiNotification struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
	Account   apiAccount `json:"account"`
	Status    *apiStatus `json:"status"`
	Report    *apiReport `json:"report"`
}

type apiStatusEdit struct {
	Content          string             `json:"content"`
	SpoilerText      string             `json:"spoiler_text"`
	Sensitive        bool               `json:"sensitive"`
	CreatedAt        time.Time          `json:"created_at"`
	Account          apiAccount         `json:"account"`
	Poll             *model.Poll        `json:"poll"`
	MediaAttachments []model.Attachment `json:"media_attachments"`
}

type apiScheduledStatus struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Params      struct {
		Text        string   `json:"text"`
		SpoilerText string   `json:"spoiler_text"`
		Visibility  string   `json:"visibility"`
		Sensitive   bool     `json:"sensitive"`
		MediaIDs    []string `json:"media_ids"`
	} `json:"params"`
}

type apiSearchResults struct {
	Accounts []apiAccount `json:"accounts"`
	Statuses []apiStatus  `json:"statuses"`
	Hashtags []model.Tag  `json:"hashtags"`
}

type apiNotificationRequest struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Account   apiAccount `json:"account"`
	// サーバーは件数を文字列で返す
	NotificationsCount json.Number `json:"notifications_count"`
	LastStatus         *apiStatus  `json:"last_status"`
}

type apiRelationship struct {
	ID        string `json:"id"`
	Following bool   `json:"following"`
	Muting    bool   `json:"muting"`
	Blocking  bool   `json:"blocking"`
}
