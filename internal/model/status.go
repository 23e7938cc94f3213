package model

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Visibility は投稿の公開範囲を表す。
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
	VisibilityDirect   Visibility = "direct"
)

// ParseVisibility はサーバーの文字列を Visibility に変換する。未知の値は public とみなす。
func ParseVisibility(s string) Visibility {
	switch Visibility(s) {
	case VisibilityUnlisted, VisibilityPrivate, VisibilityDirect:
		return Visibility(s)
	default:
		return VisibilityPublic
	}
}

// Status はキャッシュされる投稿を表す。
// サーバー視点では不変だが、カウンタとフラグはユーザー操作で楽観的に書き換えられる。
type Status struct {
	ServerID           string         `json:"id"`
	URL                string         `json:"url"`
	AuthorServerID     string         `json:"author_id"`
	InReplyToID        string         `json:"in_reply_to_id,omitempty"`
	InReplyToAccountID string         `json:"in_reply_to_account_id,omitempty"`
	Content            string         `json:"content"` // サニタイズ済みHTML
	SpoilerText        string         `json:"spoiler_text"`
	CreatedAt          time.Time      `json:"created_at"`
	EditedAt           *time.Time     `json:"edited_at,omitempty"`
	ReblogsCount       int            `json:"reblogs_count"`
	FavouritesCount    int            `json:"favourites_count"`
	RepliesCount       int            `json:"replies_count"`
	Reblogged          bool           `json:"reblogged"`
	Favourited         bool           `json:"favourited"`
	Bookmarked         bool           `json:"bookmarked"`
	Sensitive          bool           `json:"sensitive"`
	Pinned             bool           `json:"pinned"`
	Muted              bool           `json:"muted"`
	Attachments        []Attachment   `json:"attachments,omitempty"`
	Mentions           []Mention      `json:"mentions,omitempty"`
	Tags               []Tag          `json:"tags,omitempty"`
	Poll               *Poll          `json:"poll,omitempty"`
	Card               *Card          `json:"card,omitempty"`
	Visibility         Visibility     `json:"visibility"`
	Language           string         `json:"language,omitempty"`
	Filtered           []FilterResult `json:"filtered,omitempty"`

	// ローカルの表示状態。ユーザー操作でのみ変化する。
	Expanded         bool `json:"expanded"`
	ContentShowing   bool `json:"content_showing"`
	ContentCollapsed bool `json:"content_collapsed"`
}

// Attachment はメディア添付を表す。
type Attachment struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	PreviewURL  string `json:"preview_url"`
	Description string `json:"description,omitempty"`
	Blurhash    string `json:"blurhash,omitempty"`
}

// Mention は投稿内のメンションを表す。
type Mention struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
	URL      string `json:"url"`
}

// Tag はハッシュタグを表す。
type Tag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Poll は投稿に埋め込まれた投票を表す。
type Poll struct {
	ID          string       `json:"id"`
	ExpiresAt   *time.Time   `json:"expires_at"`
	Expired     bool         `json:"expired"`
	Multiple    bool         `json:"multiple"`
	VotesCount  int          `json:"votes_count"`
	VotersCount *int         `json:"voters_count"`
	Options     []PollOption `json:"options"`
	Voted       bool         `json:"voted"`
	OwnVotes    []int        `json:"own_votes"`
}

// PollOption は投票の選択肢を表す。
type PollOption struct {
	Title      string `json:"title"`
	VotesCount *int   `json:"votes_count"`
}

// Card はリンクプレビューを表す。
type Card struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
}

// FilterAction はフィルタに一致した投稿の扱いを表す。
type FilterAction string

const (
	FilterActionNone FilterAction = "none"
	FilterActionWarn FilterAction = "warn"
	FilterActionHide FilterAction = "hide"
)

// FilterResult はサーバー側フィルタの一致結果を表す。
type FilterResult struct {
	Filter         Filter   `json:"filter"`
	KeywordMatches []string `json:"keyword_matches,omitempty"`
}

// Filter はサーバー側フィルタの定義（一致結果に含まれる部分のみ）。
type Filter struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Context      []string     `json:"context"`
	FilterAction FilterAction `json:"filter_action"`
}

// TimelineEntry はタイムラインの並び順を表す結合行。
// ID はサーバーの投稿ID（ブーストの場合はブースト自体のID）で、並び順のキーになる。
// Placeholder が true の行は未取得区間（ギャップ）を表し、投稿を参照しない。
type TimelineEntry struct {
	Timeline          string `json:"timeline"`
	ID                string `json:"id"`
	StatusServerID    string `json:"status_id,omitempty"`
	RebloggerServerID string `json:"reblogger_id,omitempty"`
	Placeholder       bool   `json:"placeholder"`
	Loading           bool   `json:"loading"`
}

// TimelineItem はタイムライン行と参照先の投稿・アカウントを結合したもの。
// プレースホルダーの場合 Status と Author は nil。
type TimelineItem struct {
	Entry     TimelineEntry    `json:"entry"`
	Status    *Status          `json:"status,omitempty"`
	Author    *TimelineAccount `json:"author,omitempty"`
	Reblogger *TimelineAccount `json:"reblogger,omitempty"`
}

// TimelinePageItem はリモートから取得した1件分のタイムライン要素。
// リポジトリにまとめて書き込む単位。
type TimelinePageItem struct {
	ID        string // タイムライン上のID（ブーストならブースト自体のID）
	Status    Status // 実体の投稿（ブーストならブースト元）
	Author    TimelineAccount
	Reblogger *TimelineAccount
}

// タイムライン識別子
const (
	TimelineHome = "home"
)

// ListTimeline はリストタイムラインの識別子を返す。
func ListTimeline(listID string) string {
	return "list:" + listID
}

// ListIDFromTimeline はリストタイムライン識別子からリストIDを取り出す。
func ListIDFromTimeline(timeline string) (string, bool) {
	if !strings.HasPrefix(timeline, "list:") {
		return "", false
	}
	id := strings.TrimPrefix(timeline, "list:")
	return id, id != ""
}

// NormalizeLanguage はサーバーが返す言語タグをBCP 47の正規形にする。
// 解釈できないタグは空文字列を返す。
func NormalizeLanguage(tag string) string {
	if tag == "" {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil {
		return ""
	}
	return t.String()
}
