// Package notification は通知キャッシュの同期と表示用データの生成を提供する。
package notification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/mastosync/internal/mastodon"
	"github.com/hitoshi/mastosync/internal/metrics"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/repository"
	"github.com/hitoshi/mastosync/internal/timeline"
)

// API は通知取得に使うMastodon APIのサブセット。
type API interface {
	Notifications(ctx context.Context, p mastodon.PageParams, excludeTypes []string) (mastodon.Page[model.NotificationPageItem], error)
}

// MediatorConfig は Mediator の生成パラメータ。
type MediatorConfig struct {
	AccountID    string
	PageSize     int
	ExcludeTypes []string
	View         timeline.ViewConfig
	Metrics      metrics.MetricsCollector
	Logger       *slog.Logger
}

// Mediator は1つのアカウントの通知について、リモートのページをキャッシュへマージする。
type Mediator struct {
	api     API
	repo    repository.NotificationRepository
	cfg     MediatorConfig
	metrics metrics.MetricsCollector
	logger  *slog.Logger

	// next は直前のRefresh/Appendで受け取った rel="next" カーソル。
	next mastodon.Cursor
}

var _ paging.RemoteMediator[model.NotificationItem] = (*Mediator)(nil)

// NewMediator は Mediator を生成する。
func NewMediator(api API, repo repository.NotificationRepository, cfg MediatorConfig) *Mediator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 40
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Mediator{api: api, repo: repo, cfg: cfg, metrics: cfg.Metrics, logger: cfg.Logger}
}

// Load は loadType に応じてリモートから取得し、キャッシュへマージする。
func (m *Mediator) Load(ctx context.Context, loadType paging.LoadType, _ paging.PagingState[model.NotificationItem]) (paging.MediatorResult, error) {
	var (
		res paging.MediatorResult
		err error
	)
	switch loadType {
	case paging.Refresh:
		res, err = m.fetchAndMerge(ctx, mastodon.PageParams{Limit: m.cfg.PageSize}, true)
	case paging.Append:
		var oldest string
		oldest, err = m.repo.OldestID(ctx, m.cfg.AccountID)
		if err != nil {
			err = model.NewCacheFailureError(err)
			break
		}
		res, err = m.fetchAndMerge(ctx, mastodon.AppendParams(m.next, oldest, m.cfg.PageSize), false)
	default:
		return paging.MediatorResult{EndOfPaginationReached: true}, nil
	}

	result := "success"
	if err != nil {
		result = "error"
		m.logger.Warn("通知の取得に失敗しました",
			slog.String("account_id", m.cfg.AccountID),
			slog.String("load_type", loadType.String()),
			slog.String("error", err.Error()),
		)
	}
	m.metrics.RecordMediatorLoad("notifications", loadType.String(), result)
	return res, err
}

func (m *Mediator) fetchAndMerge(ctx context.Context, params mastodon.PageParams, insertGap bool) (paging.MediatorResult, error) {
	page, err := m.api.Notifications(ctx, params, m.cfg.ExcludeTypes)
	if err != nil {
		return paging.MediatorResult{}, err
	}
	if len(page.Items) == 0 {
		m.next = mastodon.Cursor{}
		return paging.MediatorResult{EndOfPaginationReached: true}, nil
	}

	merged, err := m.repo.ReplaceRange(ctx, m.cfg.AccountID, m.withDefaults(page.Items), insertGap)
	if err != nil {
		return paging.MediatorResult{}, model.NewCacheFailureError(err)
	}
	m.metrics.RecordRowsMerged(len(page.Items))
	m.next = page.Links.Next
	if merged.PlaceholderID != "" {
		m.logger.Info("通知にギャップを挿入しました",
			slog.String("account_id", m.cfg.AccountID),
			slog.String("placeholder_id", merged.PlaceholderID),
		)
	}
	return paging.MediatorResult{EndOfPaginationReached: page.Links.Next.IsZero()}, nil
}

// LoadMore はプレースホルダーが表す未取得区間の通知を取得する。
func (m *Mediator) LoadMore(ctx context.Context, placeholderID string) error {
	err := m.loadMore(ctx, placeholderID)
	result := "success"
	if err != nil {
		result = "error"
	}
	m.metrics.RecordMediatorLoad("notifications", "load_more", result)
	return err
}

func (m *Mediator) loadMore(ctx context.Context, placeholderID string) error {
	n, err := m.repo.FindByID(ctx, m.cfg.AccountID, placeholderID)
	if err != nil {
		return model.NewCacheFailureError(err)
	}
	if n == nil || !n.IsPlaceholder() {
		return model.NewPlaceholderNotFoundError(placeholderID)
	}

	if err := m.repo.SetPlaceholderLoading(ctx, m.cfg.AccountID, placeholderID, true); err != nil {
		return model.NewCacheFailureError(err)
	}

	sinceID, err := m.repo.NextOlderID(ctx, m.cfg.AccountID, placeholderID)
	if err != nil {
		m.clearLoading(ctx, placeholderID)
		return model.NewCacheFailureError(err)
	}

	page, err := m.api.Notifications(ctx, mastodon.PageParams{
		MaxID:   model.IncID(placeholderID),
		SinceID: sinceID,
		Limit:   m.cfg.PageSize,
	}, m.cfg.ExcludeTypes)
	if err != nil {
		m.clearLoading(ctx, placeholderID)
		return err
	}

	ids := make([]string, len(page.Items))
	for i := range page.Items {
		ids[i] = page.Items[i].ID
	}
	newPlaceholder := model.GapAfterPage(ids, m.cfg.PageSize, sinceID)
	if err := m.repo.ReplacePlaceholder(ctx, m.cfg.AccountID, placeholderID, m.withDefaults(page.Items), newPlaceholder); err != nil {
		m.clearLoading(ctx, placeholderID)
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewPlaceholderNotFoundError(placeholderID)
		}
		return model.NewCacheFailureError(err)
	}
	m.metrics.RecordRowsMerged(len(page.Items))
	return nil
}

func (m *Mediator) clearLoading(ctx context.Context, placeholderID string) {
	if err := m.repo.SetPlaceholderLoading(context.WithoutCancel(ctx), m.cfg.AccountID, placeholderID, false); err != nil {
		m.logger.Error("通知プレースホルダーの読み込み中フラグの解除に失敗しました",
			slog.String("account_id", m.cfg.AccountID),
			slog.String("placeholder_id", placeholderID),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Mediator) withDefaults(items []model.NotificationPageItem) []model.NotificationPageItem {
	for i := range items {
		if items[i].Status != nil {
			timeline.ApplyViewDefaults(items[i].Status, m.cfg.View)
		}
	}
	return items
}
