package mastodon

import (
	"time"

	"github.com/hitoshi/mastosync/internal/model"
)

func (c *Client) toTimelineAccount(a *apiAccount) model.TimelineAccount {
	return model.TimelineAccount{
		ServerID:    a.ID,
		Username:    a.Username,
		Acct:        a.Acct,
		DisplayName: a.DisplayName,
		URL:         a.URL,
		AvatarURL:   a.Avatar,
		Note:        c.sanitizer.Sanitize(a.Note),
		Bot:         a.Bot,
		Emojis:      a.Emojis,
	}
}

func (c *Client) toStatus(s *apiStatus) model.Status {
	u := s.URL
	if u == "" {
		u = s.URI
	}
	return model.Status{
		ServerID:           s.ID,
		URL:                u,
		AuthorServerID:     s.Account.ID,
		InReplyToID:        s.InReplyToID,
		InReplyToAccountID: s.InReplyToAccountID,
		Content:            c.sanitizer.Sanitize(s.Content),
		SpoilerText:        s.SpoilerText,
		CreatedAt:          s.CreatedAt,
		EditedAt:           s.EditedAt,
		ReblogsCount:       s.ReblogsCount,
		FavouritesCount:    s.FavouritesCount,
		RepliesCount:       s.RepliesCount,
		Reblogged:          s.Reblogged,
		Favourited:         s.Favourited,
		Bookmarked:         s.Bookmarked,
		Sensitive:          s.Sensitive,
		Pinned:             s.Pinned,
		Muted:              s.Muted,
		Attachments:        s.MediaAttachments,
		Mentions:           s.Mentions,
		Tags:               s.Tags,
		Poll:               s.Poll,
		Card:               s.Card,
		Visibility:         model.ParseVisibility(s.Visibility),
		Language:           model.NormalizeLanguage(s.Language),
		Filtered:           s.Filtered,
		ContentCollapsed:   true,
	}
}

// toPageItem はタイムライン要素に変換する。
// ブーストの場合、要素のIDはブースト自体のID、投稿と投稿者はブースト元になる。
func (c *Client) toPageItem(s *apiStatus) model.TimelinePageItem {
	if s.Reblog != nil {
		reblogger := c.toTimelineAccount(&s.Account)
		return model.TimelinePageItem{
			ID:        s.ID,
			Status:    c.toStatus(s.Reblog),
			Author:    c.toTimelineAccount(&s.Reblog.Account),
			Reblogger: &reblogger,
		}
	}
	return model.TimelinePageItem{
		ID:     s.ID,
		Status: c.toStatus(s),
		Author: c.toTimelineAccount(&s.Account),
	}
}

func (c *Client) toPageItems(statuses []apiStatus) []model.TimelinePageItem {
	items := make([]model.TimelinePageItem, 0, len(statuses))
	for i := range statuses {
		items = append(items, c.toPageItem(&statuses[i]))
	}
	return items
}

func (c *Client) toNotification(n *apiNotification) model.NotificationPageItem {
	item := model.NotificationPageItem{
		ID:        n.ID,
		Type:      model.ParseNotificationType(n.Type),
		Account:   c.toTimelineAccount(&n.Account),
		CreatedAt: n.CreatedAt,
	}
	if n.Status != nil {
		s := n.Status
		if s.Reblog != nil {
			s = s.Reblog
		}
		status := c.toStatus(s)
		author := c.toTimelineAccount(&s.Account)
		item.Status = &status
		item.StatusAuthor = &author
	}
	if n.Report != nil {
		item.Report = &model.Report{
			ID:            n.Report.ID,
			Category:      n.Report.Category,
			Comment:       n.Report.Comment,
			StatusIDs:     n.Report.StatusIDs,
			CreatedAt:     n.Report.CreatedAt,
			TargetAccount: n.Report.TargetAccount.ID,
		}
	}
	return item
}

func (c *Client) toStatusEdit(e *apiStatusEdit) model.StatusEdit {
	return model.StatusEdit{
		Content:          c.sanitizer.Sanitize(e.Content),
		SpoilerText:      e.SpoilerText,
		Sensitive:        e.Sensitive,
		CreatedAt:        e.CreatedAt,
		Account:          c.toTimelineAccount(&e.Account),
		Poll:             e.Poll,
		MediaAttachments: e.MediaAttachments,
	}
}

func toScheduledStatus(s *apiScheduledStatus) model.ScheduledStatus {
	return model.ScheduledStatus{
		ID:          s.ID,
		ScheduledAt: s.ScheduledAt,
		Text:        s.Params.Text,
		SpoilerText: s.Params.SpoilerText,
		Visibility:  model.ParseVisibility(s.Params.Visibility),
		Sensitive:   s.Params.Sensitive,
		MediaIDs:    s.Params.MediaIDs,
	}
}

func (c *Client) toNotificationRequest(r *apiNotificationRequest) model.NotificationRequest {
	count, _ := r.NotificationsCount.Int64()
	req := model.NotificationRequest{
		ID:                 r.ID,
		Account:            c.toTimelineAccount(&r.Account),
		NotificationsCount: int(count),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.LastStatus != nil {
		item := c.toPageItem(r.LastStatus)
		req.LastStatus = &model.TimelineItem{
			Entry:     model.TimelineEntry{ID: item.ID, StatusServerID: item.Status.ServerID},
			Status:    &item.Status,
			Author:    &item.Author,
			Reblogger: item.Reblogger,
		}
	}
	return req
}

func toRelationship(r *apiRelationship) model.Relationship {
	return model.Relationship{
		TargetServerID: r.ID,
		Muting:         r.Muting,
		Blocking:       r.Blocking,
		UpdatedAt:      time.Now(),
	}
}
