package mastodon

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/mastosync/internal/model"
)

// ScheduledStatuses は予約投稿の一覧を取得する。
func (c *Client) ScheduledStatuses(ctx context.Context, p PageParams) (Page[model.ScheduledStatus], error) {
	var scheduled []apiScheduledStatus
	links, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/scheduled_statuses", query: p.values()}, &scheduled)
	if err != nil {
		return Page[model.ScheduledStatus]{}, err
	}
	items := make([]model.ScheduledStatus, 0, len(scheduled))
	for i := range scheduled {
		items = append(items, toScheduledStatus(&scheduled[i]))
	}
	return Page[model.ScheduledStatus]{Items: items, Links: links}, nil
}

// DeleteScheduledStatus は予約投稿を取り消す。
func (c *Client) DeleteScheduledStatus(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/v1/scheduled_statuses/" + url.PathEscape(id)}, nil)
	return err
}

// SearchParams は検索条件。検索APIはIDではなくオフセットでページングする。
type SearchParams struct {
	Query   string
	Type    model.SearchType
	Offset  int
	Limit   int
	Resolve bool
}

// Search はv2検索APIで1種類の結果を取得する。
func (c *Client) Search(ctx context.Context, p SearchParams) ([]model.SearchResult, error) {
	q := url.Values{}
	q.Set("q", p.Query)
	q.Set("type", string(p.Type))
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Resolve {
		q.Set("resolve", "true")
	}

	var res apiSearchResults
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v2/search", query: q}, &res); err != nil {
		return nil, err
	}

	var out []model.SearchResult
	switch p.Type {
	case model.SearchAccounts:
		for i := range res.Accounts {
			a := c.toTimelineAccount(&res.Accounts[i])
			out = append(out, model.SearchResult{Account: &a})
		}
	case model.SearchStatuses:
		for i := range res.Statuses {
			item := c.toPageItem(&res.Statuses[i])
			out = append(out, model.SearchResult{Status: &model.TimelineItem{
				Entry:     model.TimelineEntry{ID: item.ID, StatusServerID: item.Status.ServerID},
				Status:    &item.Status,
				Author:    &item.Author,
				Reblogger: item.Reblogger,
			}})
		}
	case model.SearchHashtags:
		for i := range res.Hashtags {
			tag := res.Hashtags[i]
			out = append(out, model.SearchResult{Hashtag: &tag})
		}
	}
	return out, nil
}

// NotificationRequests はフィルタされた通知の受信リクエスト一覧を取得する。
func (c *Client) NotificationRequests(ctx context.Context, p PageParams) (Page[model.NotificationRequest], error) {
	var reqs []apiNotificationRequest
	links, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/notifications/requests", query: p.values()}, &reqs)
	if err != nil {
		return Page[model.NotificationRequest]{}, err
	}
	items := make([]model.NotificationRequest, 0, len(reqs))
	for i := range reqs {
		items = append(items, c.toNotificationRequest(&reqs[i]))
	}
	return Page[model.NotificationRequest]{Items: items, Links: links}, nil
}

// AcceptNotificationRequest はリクエストを承認し、以降の通知を受け取る。
func (c *Client) AcceptNotificationRequest(ctx context.Context, id string) error {
	path := "/api/v1/notifications/requests/" + url.PathEscape(id) + "/accept"
	_, err := c.do(ctx, request{method: http.MethodPost, path: path}, nil)
	return err
}

// DismissNotificationRequest はリクエストを却下する。
func (c *Client) DismissNotificationRequest(ctx context.Context, id string) error {
	path := "/api/v1/notifications/requests/" + url.PathEscape(id) + "/dismiss"
	_, err := c.do(ctx, request{method: http.MethodPost, path: path}, nil)
	return err
}
