package timeline

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/security"
)

const (
	// collapseRuneThreshold を超える長さの本文は折りたたみ可能になる。
	collapseRuneThreshold = 500
	// collapseLineThreshold を超える行数の本文は折りたたみ可能になる。
	collapseLineThreshold = 14
)

// フィルタのコンテキスト名
const (
	FilterContextHome          = "home"
	FilterContextNotifications = "notifications"
	FilterContextAccount       = "account"
)

// ViewConfig は表示状態の既定値に関わるユーザー設定。
type ViewConfig struct {
	AlwaysShowSensitiveMedia bool
	AlwaysOpenSpoiler        bool
}

// ApplyViewDefaults はキャッシュへ初めて書き込む投稿の表示状態を設定する。
// 既存の行ではローカルの表示状態が優先され、この値は使われない。
func ApplyViewDefaults(s *model.Status, cfg ViewConfig) {
	s.Expanded = cfg.AlwaysOpenSpoiler || s.SpoilerText == ""
	s.ContentShowing = cfg.AlwaysShowSensitiveMedia || !s.Sensitive
	s.ContentCollapsed = true
}

// StatusViewData は表示用に加工したタイムライン要素。
// ブーストの場合 Status はブースト元、Reblogger はブーストしたアカウント。
type StatusViewData struct {
	ID               string                 `json:"id"`
	Status           *model.Status          `json:"status,omitempty"`
	Author           *model.TimelineAccount `json:"author,omitempty"`
	Reblogger        *model.TimelineAccount `json:"reblogger,omitempty"`
	IsExpanded       bool                   `json:"is_expanded"`
	IsShowingContent bool                   `json:"is_showing_content"`
	IsCollapsible    bool                   `json:"is_collapsible"`
	IsCollapsed      bool                   `json:"is_collapsed"`
	FilterAction     model.FilterAction     `json:"filter_action"`
	FilterTitles     []string               `json:"filter_titles,omitempty"`
	Placeholder      bool                   `json:"placeholder"`
	Loading          bool                   `json:"loading"`
}

// NewStatusViewData はキャッシュの行を表示用に変換する。
// filterContext に一致する hide フィルタに掛かった投稿は false を返し、表示しない。
func NewStatusViewData(item model.TimelineItem, filterContext string) (StatusViewData, bool) {
	vd := StatusViewData{
		ID:           item.Entry.ID,
		Placeholder:  item.Entry.Placeholder,
		Loading:      item.Entry.Loading,
		FilterAction: model.FilterActionNone,
	}
	if item.Entry.Placeholder || item.Status == nil {
		return vd, true
	}

	action, titles := ResolveFilter(item.Status.Filtered, filterContext)
	if action == model.FilterActionHide {
		return StatusViewData{}, false
	}

	vd.Status = item.Status
	vd.Author = item.Author
	vd.Reblogger = item.Reblogger
	vd.IsExpanded = item.Status.Expanded
	vd.IsShowingContent = item.Status.ContentShowing
	vd.IsCollapsible = IsCollapsible(item.Status.Content)
	vd.IsCollapsed = vd.IsCollapsible && item.Status.ContentCollapsed
	vd.FilterAction = action
	vd.FilterTitles = titles
	return vd, true
}

// ResolveFilter はコンテキストに一致するフィルタ結果のうち最も強い動作を返す。
// warn の場合は一致したフィルタのタイトルも返す。
func ResolveFilter(results []model.FilterResult, filterContext string) (model.FilterAction, []string) {
	action := model.FilterActionNone
	var titles []string
	for _, r := range results {
		if filterContext != "" && len(r.Filter.Context) > 0 && !slices.Contains(r.Filter.Context, filterContext) {
			continue
		}
		switch r.Filter.FilterAction {
		case model.FilterActionHide:
			return model.FilterActionHide, nil
		case model.FilterActionWarn:
			action = model.FilterActionWarn
			titles = append(titles, r.Filter.Title)
		}
	}
	return action, titles
}

// IsCollapsible は本文が長すぎて折りたたみ表示の対象になるかを返す。
func IsCollapsible(contentHTML string) bool {
	text := security.HTMLToText(contentHTML)
	if utf8.RuneCountInString(text) > collapseRuneThreshold {
		return true
	}
	return strings.Count(text, "\n")+1 > collapseLineThreshold
}
