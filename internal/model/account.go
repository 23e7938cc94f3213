package model

import "time"

// Account はこのクライアントにログインしているアカウントを表す。
// キャッシュ行はすべてこのIDでスコープされる。
type Account struct {
	ID              string     `json:"id"`
	Domain          string     `json:"domain"`
	AccessToken     string     `json:"-"`
	ServerAccountID string     `json:"server_account_id"`
	Username        string     `json:"username"`
	DisplayName     string     `json:"display_name"`
	AvatarURL       string     `json:"avatar_url"`
	IsActive        bool       `json:"is_active"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FullName は user@domain 形式のハンドルを返す。
func (a *Account) FullName() string {
	return a.Username + "@" + a.Domain
}

// TimelineAccount はタイムライン上の投稿者・ブースト者として非正規化キャッシュされるアカウント。
type TimelineAccount struct {
	ServerID    string  `json:"id"`
	Username    string  `json:"username"`
	Acct        string  `json:"acct"`
	DisplayName string  `json:"display_name"`
	URL         string  `json:"url"`
	AvatarURL   string  `json:"avatar_url"`
	Note        string  `json:"note"`
	Bot         bool    `json:"bot"`
	Emojis      []Emoji `json:"emojis,omitempty"`
}

// Name は表示名が空の場合にユーザー名で代用した名前を返す。
func (a *TimelineAccount) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// Emoji はカスタム絵文字を表す。
type Emoji struct {
	Shortcode string `json:"shortcode"`
	URL       string `json:"url"`
	StaticURL string `json:"static_url"`
}

// Relationship はログイン中アカウントから見た対象アカウントとの関係（ミュート/ブロック）。
type Relationship struct {
	TargetServerID string    `json:"target_id"`
	Muting         bool      `json:"muting"`
	Blocking       bool      `json:"blocking"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListMembership はリストへの所属を表す。
type ListMembership struct {
	ListID         string    `json:"list_id"`
	TargetServerID string    `json:"target_id"`
	CreatedAt      time.Time `json:"created_at"`
}
