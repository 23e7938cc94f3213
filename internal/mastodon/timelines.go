package mastodon

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/mastosync/internal/model"
)

// VerifyCredentials はアクセストークンの持ち主のアカウントを返す。
func (c *Client) VerifyCredentials(ctx context.Context) (*model.TimelineAccount, error) {
	var a apiAccount
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/accounts/verify_credentials"}, &a); err != nil {
		return nil, err
	}
	account := c.toTimelineAccount(&a)
	return &account, nil
}

// HomeTimeline はホームタイムラインを新しい順に取得する。
func (c *Client) HomeTimeline(ctx context.Context, p PageParams) (Page[model.TimelinePageItem], error) {
	return c.statusPage(ctx, "/api/v1/timelines/home", p.values())
}

// ListTimeline はリストタイムラインを新しい順に取得する。
func (c *Client) ListTimeline(ctx context.Context, listID string, p PageParams) (Page[model.TimelinePageItem], error) {
	return c.statusPage(ctx, "/api/v1/timelines/list/"+url.PathEscape(listID), p.values())
}

// Timeline はタイムライン識別子（home または list:<id>）に応じて取得先を切り替える。
func (c *Client) Timeline(ctx context.Context, timeline string, p PageParams) (Page[model.TimelinePageItem], error) {
	if timeline == model.TimelineHome {
		return c.HomeTimeline(ctx, p)
	}
	if listID, ok := model.ListIDFromTimeline(timeline); ok {
		return c.ListTimeline(ctx, listID, p)
	}
	return Page[model.TimelinePageItem]{}, model.NewInvalidRequestError("未知のタイムラインです: " + timeline)
}

// AccountStatuses は指定アカウントの投稿を取得する。通報対象の投稿選択に使う。
func (c *Client) AccountStatuses(ctx context.Context, accountID string, p PageParams) (Page[model.TimelinePageItem], error) {
	q := p.values()
	q.Set("exclude_reblogs", "true")
	return c.statusPage(ctx, "/api/v1/accounts/"+url.PathEscape(accountID)+"/statuses", q)
}

func (c *Client) statusPage(ctx context.Context, path string, q url.Values) (Page[model.TimelinePageItem], error) {
	var statuses []apiStatus
	links, err := c.do(ctx, request{method: http.MethodGet, path: path, query: q}, &statuses)
	if err != nil {
		return Page[model.TimelinePageItem]{}, err
	}
	return Page[model.TimelinePageItem]{Items: c.toPageItems(statuses), Links: links}, nil
}

// Notifications は通知を新しい順に取得する。excludeTypes の種類は除外される。
func (c *Client) Notifications(ctx context.Context, p PageParams, excludeTypes []string) (Page[model.NotificationPageItem], error) {
	q := p.values()
	for _, t := range excludeTypes {
		q.Add("exclude_types[]", t)
	}
	var notifications []apiNotification
	links, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/notifications", query: q}, &notifications)
	if err != nil {
		return Page[model.NotificationPageItem]{}, err
	}
	items := make([]model.NotificationPageItem, 0, len(notifications))
	for i := range notifications {
		items = append(items, c.toNotification(&notifications[i]))
	}
	return Page[model.NotificationPageItem]{Items: items, Links: links}, nil
}

// Status は投稿を1件取得する。
func (c *Client) Status(ctx context.Context, id string) (*model.TimelinePageItem, error) {
	return c.statusAction(ctx, http.MethodGet, id, "")
}

// StatusEdits は投稿の編集履歴を取得する。サーバーは古い順に返すが、順序は保証しない。
func (c *Client) StatusEdits(ctx context.Context, id string) ([]model.StatusEdit, error) {
	var edits []apiStatusEdit
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/statuses/" + url.PathEscape(id) + "/history"}, &edits); err != nil {
		return nil, err
	}
	out := make([]model.StatusEdit, 0, len(edits))
	for i := range edits {
		out = append(out, c.toStatusEdit(&edits[i]))
	}
	return out, nil
}
