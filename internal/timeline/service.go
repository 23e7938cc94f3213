package timeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/mastosync/internal/metrics"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/repository"
)

// Page は表示用に変換したタイムラインの1ページ。
type Page struct {
	Items                  []StatusViewData `json:"items"`
	PrevKey                string           `json:"prev_key,omitempty"`
	NextKey                string           `json:"next_key,omitempty"`
	EndOfPaginationReached bool             `json:"end_of_pagination_reached"`
}

// Update は購読者に配信されるタイムラインの現在の内容。
type Update struct {
	Page *Page
	Err  error
}

// ServiceConfig は Service の設定。
type ServiceConfig struct {
	Paging  paging.Config
	View    ViewConfig
	Metrics metrics.MetricsCollector
	Logger  *slog.Logger
}

type pagerKey struct {
	accountID string
	timeline  string
}

type pagerEntry struct {
	pager    *paging.Pager[model.TimelineItem]
	mediator *Mediator
}

// Service はアカウント・タイムラインごとの Pager を保持し、読み込みを仲介する。
// 同じタイムラインへのリモート取得は Pager 内で直列化される。
type Service struct {
	repo    repository.TimelineRepository
	tracker *paging.InvalidationTracker
	cfg     ServiceConfig

	mu     sync.Mutex
	pagers map[pagerKey]*pagerEntry
}

// NewService は Service を生成する。
func NewService(repo repository.TimelineRepository, tracker *paging.InvalidationTracker, cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	return &Service{
		repo:    repo,
		tracker: tracker,
		cfg:     cfg,
		pagers:  make(map[pagerKey]*pagerEntry),
	}
}

// ValidateTimeline はタイムライン識別子が home または list:<id> であることを検証する。
func ValidateTimeline(timeline string) error {
	if timeline == model.TimelineHome {
		return nil
	}
	if _, ok := model.ListIDFromTimeline(timeline); ok {
		return nil
	}
	return model.NewInvalidRequestError("未知のタイムラインです: " + timeline)
}

func (s *Service) entry(accountID string, api API, timeline string) *pagerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pagerKey{accountID: accountID, timeline: timeline}
	if e, ok := s.pagers[key]; ok {
		return e
	}
	mediator := NewMediator(api, s.repo, MediatorConfig{
		AccountID: accountID,
		Timeline:  timeline,
		PageSize:  s.cfg.Paging.PageSize,
		View:      s.cfg.View,
		Metrics:   s.cfg.Metrics,
		Logger:    s.cfg.Logger,
	})
	e := &pagerEntry{
		pager:    paging.NewPager[model.TimelineItem](s.cfg.Paging, mediator, NewSourceFactory(s.repo, s.tracker, accountID, timeline), s.cfg.Logger),
		mediator: mediator,
	}
	s.pagers[key] = e
	return e
}

// Load はタイムラインを1ページ読み込む。
func (s *Service) Load(ctx context.Context, accountID string, api API, timeline string, loadType paging.LoadType, key string) (*Page, error) {
	if err := ValidateTimeline(timeline); err != nil {
		return nil, err
	}
	loaded, err := s.entry(accountID, api, timeline).pager.Load(ctx, loadType, key)
	if err != nil {
		return nil, model.AsServiceError(err)
	}
	data := loaded.Page.Data
	next := loaded.Page.NextKey
	// キャッシュが尽きてもリモートに続きがある場合は、末尾から Append できるようにする
	if next == "" && !loaded.EndOfPaginationReached && loadType != paging.Prepend && len(data) > 0 {
		next = data[len(data)-1].Entry.ID
	}
	return &Page{
		Items:                  viewItems(data),
		PrevKey:                loaded.Page.PrevKey,
		NextKey:                next,
		EndOfPaginationReached: loaded.EndOfPaginationReached,
	}, nil
}

// LoadMore はプレースホルダーを読み込む。同じタイムラインのメディエーターとは排他的に実行される。
func (s *Service) LoadMore(ctx context.Context, accountID string, api API, timeline, placeholderID string) error {
	if err := ValidateTimeline(timeline); err != nil {
		return err
	}
	e := s.entry(accountID, api, timeline)
	return e.pager.RunExclusive(ctx, func(ctx context.Context) error {
		return e.mediator.LoadMore(ctx, placeholderID)
	})
}

// Subscribe はキャッシュの変更を購読する。ctx が終了するとチャネルは閉じられる。
func (s *Service) Subscribe(ctx context.Context, accountID string, api API, timeline string) (<-chan Update, error) {
	if err := ValidateTimeline(timeline); err != nil {
		return nil, err
	}
	e := s.entry(accountID, api, timeline)
	snapshots := e.pager.Subscribe(ctx, s.tracker.Watch(ctx, accountID, repository.TableTimeline, repository.TableRelationships))

	out := make(chan Update)
	go func() {
		defer close(out)
		for snap := range snapshots {
			u := Update{Err: snap.Err}
			if snap.Err == nil {
				u.Page = &Page{Items: viewItems(snap.Items), PrevKey: snap.PrevKey, NextKey: snap.NextKey}
			} else {
				u.Err = model.AsServiceError(snap.Err)
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Forget はアカウントの Pager を破棄する。アカウント削除時に呼び出す。
func (s *Service) Forget(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.pagers {
		if key.accountID == accountID {
			delete(s.pagers, key)
		}
	}
}

func viewItems(items []model.TimelineItem) []StatusViewData {
	out := make([]StatusViewData, 0, len(items))
	for _, it := range items {
		if vd, ok := NewStatusViewData(it, FilterContextHome); ok {
			out = append(out, vd)
		}
	}
	return out
}
