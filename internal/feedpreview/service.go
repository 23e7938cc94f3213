// Package feedpreview はフォロー前のアカウントやハッシュタグを公開RSSでプレビューする。
// 取得結果はキャッシュしない。
package feedpreview

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/security"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxBodySize = 2 * 1024 * 1024
	// maxItems はプレビューに含める投稿の上限。
	maxItems = 40
)

// Preview はリモートフィードのプレビュー。
type Preview struct {
	FeedURL     string         `json:"feed_url"`
	Title       string         `json:"title"`
	Link        string         `json:"link"`
	Description string         `json:"description"`
	Statuses    []model.Status `json:"statuses"`
}

// Service はリモートフィードを取得してプレビューに変換する。
type Service struct {
	guard       security.SSRFGuard
	sanitizer   security.ContentSanitizer
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewService は Service を生成する。
func NewService(guard security.SSRFGuard, sanitizer security.ContentSanitizer, logger *slog.Logger, timeout time.Duration, maxBodySize int64) *Service {
	if sanitizer == nil {
		sanitizer = security.NewContentSanitizer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	return &Service{
		guard:       guard,
		sanitizer:   sanitizer,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// ResolveFeedURL はプロフィールURL・タグURL・ハンドルをRSSフィードのURLに変換する。
//
//	https://host/@user        → https://host/@user.rss
//	https://host/tags/go      → https://host/tags/go.rss
//	@user@host / user@host    → https://host/@user.rss
//	#go@host                  → https://host/tags/go.rss
func ResolveFeedURL(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", model.NewInvalidRequestError("プレビュー対象を指定してください")
	}

	if !strings.Contains(target, "://") {
		return resolveHandle(target)
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "", model.NewInvalidRequestError("URLを解析できません: " + target)
	}
	u.RawQuery = ""
	u.Fragment = ""
	path := strings.TrimRight(u.Path, "/")
	switch {
	case strings.HasSuffix(path, ".rss"):
	case strings.HasPrefix(path, "/@") && !strings.Contains(path[2:], "/"):
		path += ".rss"
	case strings.HasPrefix(path, "/tags/") && !strings.Contains(path[len("/tags/"):], "/"):
		path += ".rss"
	default:
		return "", model.NewInvalidRequestError("プロフィールまたはハッシュタグのURLを指定してください")
	}
	u.Path = path
	return u.String(), nil
}

func resolveHandle(handle string) (string, error) {
	if strings.HasPrefix(handle, "#") {
		tag, host, ok := strings.Cut(handle[1:], "@")
		if !ok || tag == "" || host == "" {
			return "", model.NewInvalidRequestError("ハッシュタグは #tag@host の形式で指定してください")
		}
		return "https://" + host + "/tags/" + url.PathEscape(tag) + ".rss", nil
	}

	user, host, ok := strings.Cut(strings.TrimPrefix(handle, "@"), "@")
	if !ok || user == "" || host == "" || strings.ContainsAny(host, "/@") {
		return "", model.NewInvalidRequestError("アカウントは @user@host の形式で指定してください")
	}
	return "https://" + host + "/@" + url.PathEscape(user) + ".rss", nil
}

// Fetch は対象のフィードを取得してプレビューを返す。
// 接続先はSSRFガードで検証し、投稿本文はキャッシュと同じサニタイザを通す。
func (s *Service) Fetch(ctx context.Context, target string) (*Preview, error) {
	feedURL, err := ResolveFeedURL(target)
	if err != nil {
		return nil, err
	}
	if err := s.guard.ValidateURL(feedURL); err != nil {
		s.logger.Warn("プレビュー対象のURLを拒否しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, model.NewInvalidRequestError("リクエストを作成できません")
	}
	req.Header.Set("User-Agent", "mastosync/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	start := time.Now()
	resp, err := s.guard.NewSafeClient(s.timeout).Do(req)
	if err != nil {
		s.logger.Error("フィードの取得に失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewFeedPreviewFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		previewErr := model.NewFeedPreviewFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
		previewErr.Retryable = resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, previewErr
	}

	parsed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		s.logger.Warn("フィードのパースに失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		previewErr := model.NewFeedPreviewFailedError("フィードを解析できません")
		previewErr.Retryable = false
		return nil, previewErr
	}

	preview := &Preview{
		FeedURL:     feedURL,
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: s.sanitizer.PlainText(parsed.Description),
		Statuses:    s.convertItems(parsed.Items),
	}

	s.logger.Info("フィードプレビューを取得しました",
		slog.String("feed_url", feedURL),
		slog.Int("items", len(preview.Statuses)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return preview, nil
}

// convertItems はフィードの記事をプレビュー用の投稿に変換する。
func (s *Service) convertItems(items []*gofeed.Item) []model.Status {
	statuses := make([]model.Status, 0, min(len(items), maxItems))
	for _, item := range items {
		if item == nil {
			continue
		}
		if len(statuses) == maxItems {
			break
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}
		st := model.Status{
			ServerID:   item.GUID,
			URL:        item.Link,
			Content:    s.sanitizer.Sanitize(content),
			Visibility: model.VisibilityPublic,
		}
		if st.ServerID == "" {
			st.ServerID = item.Link
		}
		if item.PublishedParsed != nil {
			st.CreatedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			st.CreatedAt = *item.UpdatedParsed
		}
		for _, c := range item.Categories {
			st.Tags = append(st.Tags, model.Tag{Name: c})
		}
		for i, e := range item.Enclosures {
			if e == nil || e.URL == "" {
				continue
			}
			st.Attachments = append(st.Attachments, model.Attachment{
				ID:   fmt.Sprintf("%s#%d", st.ServerID, i),
				Type: attachmentType(e.Type),
				URL:  e.URL,
			})
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// attachmentType はMIMEタイプを添付の種類に変換する。
func attachmentType(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	case strings.HasPrefix(mime, "audio/"):
		return "audio"
	default:
		return "unknown"
	}
}
