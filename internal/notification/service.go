package notification

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/mastosync/internal/metrics"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/repository"
	"github.com/hitoshi/mastosync/internal/timeline"
)

// Page は表示用に変換した通知の1ページ。
type Page struct {
	Items                  []NotificationViewData `json:"items"`
	PrevKey                string                 `json:"prev_key,omitempty"`
	NextKey                string                 `json:"next_key,omitempty"`
	EndOfPaginationReached bool                   `json:"end_of_pagination_reached"`
}

// Update は購読者に配信される通知一覧の現在の内容。
type Update struct {
	Page *Page
	Err  error
}

// ServiceConfig は Service の設定。
type ServiceConfig struct {
	Paging       paging.Config
	ExcludeTypes []string
	View         timeline.ViewConfig
	Metrics      metrics.MetricsCollector
	Logger       *slog.Logger
}

type pagerEntry struct {
	pager    *paging.Pager[model.NotificationItem]
	mediator *Mediator
}

// Service はアカウントごとの通知 Pager を保持する。
type Service struct {
	repo    repository.NotificationRepository
	tracker *paging.InvalidationTracker
	cfg     ServiceConfig

	mu     sync.Mutex
	pagers map[string]*pagerEntry
}

// NewService は Service を生成する。
func NewService(repo repository.NotificationRepository, tracker *paging.InvalidationTracker, cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	return &Service{repo: repo, tracker: tracker, cfg: cfg, pagers: make(map[string]*pagerEntry)}
}

// NewSourceFactory は通知キャッシュのページングソースを生成する関数を返す。
func NewSourceFactory(
	repo repository.NotificationRepository,
	tracker *paging.InvalidationTracker,
	accountID string,
) func() paging.PagingSource[model.NotificationItem] {
	return func() paging.PagingSource[model.NotificationItem] {
		stamp := tracker.Snapshot(accountID, repository.TableNotifications, repository.TableRelationships)
		fetch := func(ctx context.Context, params paging.LoadParams) ([]model.NotificationItem, error) {
			return repo.Page(ctx, accountID, repository.QueryFor(params))
		}
		return paging.NewCacheSource(stamp, fetch, func(it model.NotificationItem) string { return it.Notification.ID })
	}
}

func (s *Service) entry(accountID string, api API) *pagerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.pagers[accountID]; ok {
		return e
	}
	mediator := NewMediator(api, s.repo, MediatorConfig{
		AccountID:    accountID,
		PageSize:     s.cfg.Paging.PageSize,
		ExcludeTypes: s.cfg.ExcludeTypes,
		View:         s.cfg.View,
		Metrics:      s.cfg.Metrics,
		Logger:       s.cfg.Logger,
	})
	e := &pagerEntry{
		pager:    paging.NewPager[model.NotificationItem](s.cfg.Paging, mediator, NewSourceFactory(s.repo, s.tracker, accountID), s.cfg.Logger),
		mediator: mediator,
	}
	s.pagers[accountID] = e
	return e
}

// Load は通知を1ページ読み込む。
func (s *Service) Load(ctx context.Context, accountID string, api API, loadType paging.LoadType, key string) (*Page, error) {
	loaded, err := s.entry(accountID, api).pager.Load(ctx, loadType, key)
	if err != nil {
		return nil, model.AsServiceError(err)
	}
	data := loaded.Page.Data
	next := loaded.Page.NextKey
	if next == "" && !loaded.EndOfPaginationReached && loadType != paging.Prepend && len(data) > 0 {
		next = data[len(data)-1].Notification.ID
	}
	return &Page{
		Items:                  viewItems(data),
		PrevKey:                loaded.Page.PrevKey,
		NextKey:                next,
		EndOfPaginationReached: loaded.EndOfPaginationReached,
	}, nil
}

// Refresh は最新の通知を取得してキャッシュへマージする。バックグラウンド同期から呼ばれる。
func (s *Service) Refresh(ctx context.Context, accountID string, api API) error {
	_, err := s.Load(ctx, accountID, api, paging.Refresh, "")
	return err
}

// LoadMore はプレースホルダーを読み込む。
func (s *Service) LoadMore(ctx context.Context, accountID string, api API, placeholderID string) error {
	e := s.entry(accountID, api)
	return e.pager.RunExclusive(ctx, func(ctx context.Context) error {
		return e.mediator.LoadMore(ctx, placeholderID)
	})
}

// Subscribe はキャッシュの変更を購読する。ctx が終了するとチャネルは閉じられる。
func (s *Service) Subscribe(ctx context.Context, accountID string, api API) <-chan Update {
	e := s.entry(accountID, api)
	snapshots := e.pager.Subscribe(ctx, s.tracker.Watch(ctx, accountID, repository.TableNotifications, repository.TableRelationships))

	out := make(chan Update)
	go func() {
		defer close(out)
		for snap := range snapshots {
			u := Update{}
			if snap.Err != nil {
				u.Err = model.AsServiceError(snap.Err)
			} else {
				u.Page = &Page{Items: viewItems(snap.Items), PrevKey: snap.PrevKey, NextKey: snap.NextKey}
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Forget はアカウントの Pager を破棄する。
func (s *Service) Forget(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pagers, accountID)
}
