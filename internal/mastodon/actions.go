package mastodon

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/mastosync/internal/model"
)

// statusAction は /api/v1/statuses/:id[/action] を呼び出し、返された投稿を変換する。
// ブーストの場合サーバーはブースト自体を返すため、ブースト元の投稿に展開される。
func (c *Client) statusAction(ctx context.Context, method, id, action string) (*model.TimelinePageItem, error) {
	path := "/api/v1/statuses/" + url.PathEscape(id)
	if action != "" {
		path += "/" + action
	}
	var s apiStatus
	if _, err := c.do(ctx, request{method: method, path: path}, &s); err != nil {
		return nil, err
	}
	item := c.toPageItem(&s)
	return &item, nil
}

// Favourite は投稿をお気に入りに追加する。
func (c *Client) Favourite(ctx context.Context, id string) (*model.TimelinePageItem, error) {
	return c.statusAction(ctx, http.MethodPost, id, "favourite")
}

// Unfavourite はお気に入りを解除する。
func (c *Client) Unfavourite(ctx context.Context, id string) (*model.TimelinePageItem, error) {
	return c.statusAction(ctx, http.MethodPost, id, "unfavourite")
}

// Reblog は投稿をブーストする。
func (c *Client) Reblog(ctx context.Context, id string) (*model.TimelinePageItem, error) {
	return c.statusAction(ctx, http.MethodPost, id, "reblog")
}

// Unreblog はブーストを取り消す。
func (c *Client) Unreblog(ctx context.Context, id string) (*model.TimelinePageItem, error) {
	return c.statusAction(ctx, http.MethodPost, id, "unreblog")
}

// Bookmark は投稿をブックマークする。
func (c *Client) Bookmark(ctx context.Context, id string) (*model.TimelinePageItem, error) {
	return c.statusAction(ctx, http.MethodPost, id, "bookmark")
}

// Unbookmark はブックマークを解除する。
func (c *Client) Unbookmark(ctx context.Context, id string) (*model.TimelinePageItem, error) {
	return c.statusAction(ctx, http.MethodPost, id, "unbookmark")
}

// MuteConversation は投稿の会話をミュートする。
func (c *Client) MuteConversation(ctx context.Context, id string) (*model.TimelinePageItem, error) {
	return c.statusAction(ctx, http.MethodPost, id, "mute")
}

// UnmuteConversation は会話のミュートを解除する。
func (c *Client) UnmuteConversation(ctx context.Context, id string) (*model.TimelinePageItem, error) {
	return c.statusAction(ctx, http.MethodPost, id, "unmute")
}

// Pin は自分の投稿をプロフィールにピン留めする。
func (c *Client) Pin(ctx context.Context, id string) (*model.TimelinePageItem, error) {
	return c.statusAction(ctx, http.MethodPost, id, "pin")
}

// Unpin はピン留めを解除する。
func (c *Client) Unpin(ctx context.Context, id string) (*model.TimelinePageItem, error) {
	return c.statusAction(ctx, http.MethodPost, id, "unpin")
}

// DeleteStatus は自分の投稿を削除する。
func (c *Client) DeleteStatus(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/v1/statuses/" + url.PathEscape(id)}, nil)
	return err
}

func (c *Client) accountAction(ctx context.Context, id, action string, form url.Values) (*model.Relationship, error) {
	var r apiRelationship
	path := "/api/v1/accounts/" + url.PathEscape(id) + "/" + action
	if _, err := c.do(ctx, request{method: http.MethodPost, path: path, form: form}, &r); err != nil {
		return nil, err
	}
	rel := toRelationship(&r)
	return &rel, nil
}

// MuteAccount はアカウントをミュートする。notifications が false なら通知はミュートしない。
func (c *Client) MuteAccount(ctx context.Context, id string, notifications bool) (*model.Relationship, error) {
	form := url.Values{}
	form.Set("notifications", strconv.FormatBool(notifications))
	return c.accountAction(ctx, id, "mute", form)
}

// UnmuteAccount はミュートを解除する。
func (c *Client) UnmuteAccount(ctx context.Context, id string) (*model.Relationship, error) {
	return c.accountAction(ctx, id, "unmute", nil)
}

// BlockAccount はアカウントをブロックする。
func (c *Client) BlockAccount(ctx context.Context, id string) (*model.Relationship, error) {
	return c.accountAction(ctx, id, "block", nil)
}

// UnblockAccount はブロックを解除する。
func (c *Client) UnblockAccount(ctx context.Context, id string) (*model.Relationship, error) {
	return c.accountAction(ctx, id, "unblock", nil)
}

// Unfollow はフォローを解除する。
func (c *Client) Unfollow(ctx context.Context, id string) (*model.Relationship, error) {
	return c.accountAction(ctx, id, "unfollow", nil)
}

func listMembersForm(accountIDs []string) url.Values {
	form := url.Values{}
	for _, id := range accountIDs {
		form.Add("account_ids[]", id)
	}
	return form
}

// AddToList はリストにアカウントを追加する。対象はフォロー中である必要がある。
func (c *Client) AddToList(ctx context.Context, listID string, accountIDs ...string) error {
	path := "/api/v1/lists/" + url.PathEscape(listID) + "/accounts"
	_, err := c.do(ctx, request{method: http.MethodPost, path: path, form: listMembersForm(accountIDs)}, nil)
	return err
}

// RemoveFromList はリストからアカウントを削除する。
func (c *Client) RemoveFromList(ctx context.Context, listID string, accountIDs ...string) error {
	path := "/api/v1/lists/" + url.PathEscape(listID) + "/accounts"
	_, err := c.do(ctx, request{method: http.MethodDelete, path: path, query: listMembersForm(accountIDs)}, nil)
	return err
}
