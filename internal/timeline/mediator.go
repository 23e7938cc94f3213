// Package timeline はホーム・リストタイムラインのキャッシュ同期と表示用データの生成を提供する。
package timeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/mastosync/internal/mastodon"
	"github.com/hitoshi/mastosync/internal/metrics"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/repository"
)

// API はタイムライン取得に使うMastodon APIのサブセット。
type API interface {
	Timeline(ctx context.Context, timeline string, p mastodon.PageParams) (mastodon.Page[model.TimelinePageItem], error)
}

// Mediator は1つのアカウントの1つのタイムラインについて、リモートのページをキャッシュへマージする。
type Mediator struct {
	api       API
	repo      repository.TimelineRepository
	accountID string
	timeline  string
	pageSize  int
	view      ViewConfig
	metrics   metrics.MetricsCollector
	logger    *slog.Logger

	// next は直前のRefresh/Appendで受け取った rel="next" カーソル。
	// Pager がメディエーターの実行を直列化するためロックは不要。
	next mastodon.Cursor
}

var _ paging.RemoteMediator[model.TimelineItem] = (*Mediator)(nil)

// MediatorConfig は Mediator の生成パラメータ。
type MediatorConfig struct {
	AccountID string
	Timeline  string
	PageSize  int
	View      ViewConfig
	Metrics   metrics.MetricsCollector
	Logger    *slog.Logger
}

// NewMediator は Mediator を生成する。
func NewMediator(api API, repo repository.TimelineRepository, cfg MediatorConfig) *Mediator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 40
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Mediator{
		api:       api,
		repo:      repo,
		accountID: cfg.AccountID,
		timeline:  cfg.Timeline,
		pageSize:  cfg.PageSize,
		view:      cfg.View,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Load は loadType に応じてリモートから取得し、キャッシュへマージする。
// 失敗した場合キャッシュは変更されない。
func (m *Mediator) Load(ctx context.Context, loadType paging.LoadType, _ paging.PagingState[model.TimelineItem]) (paging.MediatorResult, error) {
	var (
		res paging.MediatorResult
		err error
	)
	switch loadType {
	case paging.Refresh:
		res, err = m.refresh(ctx)
	case paging.Append:
		res, err = m.append(ctx)
	default:
		// 最新側はRefreshで取得するため、Prependでは何もしない
		return paging.MediatorResult{EndOfPaginationReached: true}, nil
	}
	m.record(loadType, err)
	return res, err
}

func (m *Mediator) refresh(ctx context.Context) (paging.MediatorResult, error) {
	page, err := m.api.Timeline(ctx, m.timeline, mastodon.PageParams{Limit: m.pageSize})
	if err != nil {
		return paging.MediatorResult{}, err
	}
	if len(page.Items) == 0 {
		m.next = mastodon.Cursor{}
		return paging.MediatorResult{EndOfPaginationReached: true}, nil
	}

	merged, err := m.repo.ReplaceRange(ctx, m.accountID, m.timeline, m.withDefaults(page.Items), true)
	if err != nil {
		return paging.MediatorResult{}, model.NewCacheFailureError(err)
	}
	m.metrics.RecordRowsMerged(len(page.Items))
	m.next = page.Links.Next
	if merged.PlaceholderID != "" {
		m.logger.Info("タイムラインにギャップを挿入しました",
			slog.String("account_id", m.accountID),
			slog.String("timeline", m.timeline),
			slog.String("placeholder_id", merged.PlaceholderID),
		)
	}
	return paging.MediatorResult{EndOfPaginationReached: page.Links.Next.IsZero()}, nil
}

func (m *Mediator) append(ctx context.Context) (paging.MediatorResult, error) {
	oldest, err := m.repo.OldestID(ctx, m.accountID, m.timeline)
	if err != nil {
		return paging.MediatorResult{}, model.NewCacheFailureError(err)
	}

	page, err := m.api.Timeline(ctx, m.timeline, mastodon.AppendParams(m.next, oldest, m.pageSize))
	if err != nil {
		return paging.MediatorResult{}, err
	}
	if len(page.Items) == 0 {
		m.next = mastodon.Cursor{}
		return paging.MediatorResult{EndOfPaginationReached: true}, nil
	}

	if _, err := m.repo.ReplaceRange(ctx, m.accountID, m.timeline, m.withDefaults(page.Items), false); err != nil {
		return paging.MediatorResult{}, model.NewCacheFailureError(err)
	}
	m.metrics.RecordRowsMerged(len(page.Items))
	m.next = page.Links.Next
	return paging.MediatorResult{EndOfPaginationReached: page.Links.Next.IsZero()}, nil
}

// LoadMore はプレースホルダーが表す未取得区間を取得する。
// プレースホルダーの直後（新しい側）から次の既存エントリまでを取得し、
// 1ページで埋まらなかった場合は残りの区間に新しいプレースホルダーを置く。
// 失敗した場合は読み込み中フラグを戻してエラーを返す。
func (m *Mediator) LoadMore(ctx context.Context, placeholderID string) error {
	err := m.loadMore(ctx, placeholderID)
	if err != nil {
		m.metrics.RecordMediatorLoad("timeline", "load_more", "error")
	} else {
		m.metrics.RecordMediatorLoad("timeline", "load_more", "success")
	}
	return err
}

func (m *Mediator) loadMore(ctx context.Context, placeholderID string) error {
	entry, err := m.repo.FindEntry(ctx, m.accountID, m.timeline, placeholderID)
	if err != nil {
		return model.NewCacheFailureError(err)
	}
	if entry == nil || !entry.Placeholder {
		return model.NewPlaceholderNotFoundError(placeholderID)
	}

	if err := m.repo.SetPlaceholderLoading(ctx, m.accountID, m.timeline, placeholderID, true); err != nil {
		return model.NewCacheFailureError(err)
	}

	sinceID, err := m.repo.NextOlderID(ctx, m.accountID, m.timeline, placeholderID)
	if err != nil {
		m.clearLoading(ctx, placeholderID)
		return model.NewCacheFailureError(err)
	}

	page, err := m.api.Timeline(ctx, m.timeline, mastodon.PageParams{
		MaxID:   model.IncID(placeholderID),
		SinceID: sinceID,
		Limit:   m.pageSize,
	})
	if err != nil {
		m.clearLoading(ctx, placeholderID)
		return err
	}

	newPlaceholder := nextGap(page.Items, m.pageSize, sinceID)
	if err := m.repo.ReplacePlaceholder(ctx, m.accountID, m.timeline, placeholderID, m.withDefaults(page.Items), newPlaceholder); err != nil {
		m.clearLoading(ctx, placeholderID)
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewPlaceholderNotFoundError(placeholderID)
		}
		return model.NewCacheFailureError(err)
	}
	m.metrics.RecordRowsMerged(len(page.Items))
	return nil
}

// nextGap はギャップ取得後に残る未取得区間のプレースホルダーIDを返す。
func nextGap(items []model.TimelinePageItem, pageSize int, sinceID string) string {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	return model.GapAfterPage(ids, pageSize, sinceID)
}

// clearLoading は読み込み中フラグを戻す。呼び出し元のctxが終了していても実行する。
func (m *Mediator) clearLoading(ctx context.Context, placeholderID string) {
	if err := m.repo.SetPlaceholderLoading(context.WithoutCancel(ctx), m.accountID, m.timeline, placeholderID, false); err != nil {
		m.logger.Error("プレースホルダーの読み込み中フラグの解除に失敗しました",
			slog.String("account_id", m.accountID),
			slog.String("timeline", m.timeline),
			slog.String("placeholder_id", placeholderID),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Mediator) withDefaults(items []model.TimelinePageItem) []model.TimelinePageItem {
	for i := range items {
		ApplyViewDefaults(&items[i].Status, m.view)
	}
	return items
}

func (m *Mediator) record(loadType paging.LoadType, err error) {
	result := "success"
	if err != nil {
		result = "error"
		m.logger.Warn("タイムラインの取得に失敗しました",
			slog.String("account_id", m.accountID),
			slog.String("timeline", m.timeline),
			slog.String("load_type", loadType.String()),
			slog.String("error", err.Error()),
		)
	}
	m.metrics.RecordMediatorLoad("timeline", loadType.String(), result)
}
