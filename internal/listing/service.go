// Package listing はキャッシュを持たないネットワークのみの一覧
// （予約投稿、検索、通知リクエスト、通報対象の投稿）のページングを提供する。
package listing

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/hitoshi/mastosync/internal/mastodon"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/timeline"
)

// 無効化の通知に使う一覧名。キャッシュテーブルと同じ InvalidationTracker で管理する。
const (
	TableScheduledStatuses    = "scheduled_statuses"
	TableNotificationRequests = "notification_requests"
)

// API は一覧の取得と操作に使うMastodon APIのサブセット。
type API interface {
	ScheduledStatuses(ctx context.Context, p mastodon.PageParams) (mastodon.Page[model.ScheduledStatus], error)
	DeleteScheduledStatus(ctx context.Context, id string) error
	Search(ctx context.Context, p mastodon.SearchParams) ([]model.SearchResult, error)
	NotificationRequests(ctx context.Context, p mastodon.PageParams) (mastodon.Page[model.NotificationRequest], error)
	AcceptNotificationRequest(ctx context.Context, id string) error
	DismissNotificationRequest(ctx context.Context, id string) error
	AccountStatuses(ctx context.Context, accountID string, p mastodon.PageParams) (mastodon.Page[model.TimelinePageItem], error)
}

// Page は一覧の1ページ。
type Page[T any] struct {
	Items                  []T    `json:"items"`
	PrevKey                string `json:"prev_key,omitempty"`
	NextKey                string `json:"next_key,omitempty"`
	EndOfPaginationReached bool   `json:"end_of_pagination_reached"`
}

// Config は Service の設定。
type Config struct {
	Paging paging.Config
	View   timeline.ViewConfig
	Logger *slog.Logger
}

// Service はネットワークのみの一覧を読み込む。
type Service struct {
	tracker *paging.InvalidationTracker
	cfg     Config
}

// NewService は Service を生成する。
func NewService(tracker *paging.InvalidationTracker, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{tracker: tracker, cfg: cfg}
}

// load はネットワークソースから1ページを読み込む。
// tables のいずれかが読み込み中に無効化された場合、ソースを作り直して再試行する。
func load[T any](
	ctx context.Context,
	s *Service,
	accountID string,
	loadType paging.LoadType,
	key string,
	fetch paging.NetworkFetchFunc[T],
	tables ...string,
) (*Page[T], error) {
	newSource := func() paging.PagingSource[T] {
		return paging.NewNetworkSource(s.tracker.Snapshot(accountID, tables...), fetch, nil)
	}
	pager := paging.NewPager[T](s.cfg.Paging, nil, newSource, s.cfg.Logger)
	loaded, err := pager.Load(ctx, loadType, key)
	if err != nil {
		return nil, model.AsServiceError(err)
	}
	items := loaded.Page.Data
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:                  items,
		PrevKey:                loaded.Page.PrevKey,
		NextKey:                loaded.Page.NextKey,
		EndOfPaginationReached: loaded.EndOfPaginationReached,
	}, nil
}

// ScheduledStatuses は予約投稿を読み込む。Append のキーは Link ヘッダーの max_id。
func (s *Service) ScheduledStatuses(ctx context.Context, accountID string, api API, loadType paging.LoadType, key string) (*Page[model.ScheduledStatus], error) {
	fetch := func(ctx context.Context, params paging.LoadParams) (paging.PageResult[model.ScheduledStatus], error) {
		p := mastodon.PageParams{Limit: params.LoadSize}
		if params.Type == paging.Append {
			p.MaxID = params.Key
		}
		page, err := api.ScheduledStatuses(ctx, p)
		if err != nil {
			return paging.PageResult[model.ScheduledStatus]{}, err
		}
		return forwardPage(page.Items, page.Links), nil
	}
	if loadType == paging.Prepend {
		key = ""
	}
	return load(ctx, s, accountID, loadType, key, fetch, TableScheduledStatuses)
}

// DeleteScheduledStatus は予約投稿を取り消し、一覧を無効化する。
func (s *Service) DeleteScheduledStatus(ctx context.Context, accountID string, api API, id string) error {
	if err := api.DeleteScheduledStatus(ctx, id); err != nil {
		return err
	}
	s.tracker.Invalidate(accountID, TableScheduledStatuses)
	return nil
}

// NotificationRequests は通知リクエストを読み込む。
func (s *Service) NotificationRequests(ctx context.Context, accountID string, api API, loadType paging.LoadType, key string) (*Page[model.NotificationRequest], error) {
	fetch := func(ctx context.Context, params paging.LoadParams) (paging.PageResult[model.NotificationRequest], error) {
		p := mastodon.PageParams{Limit: params.LoadSize}
		if params.Type == paging.Append {
			p.MaxID = params.Key
		}
		page, err := api.NotificationRequests(ctx, p)
		if err != nil {
			return paging.PageResult[model.NotificationRequest]{}, err
		}
		return forwardPage(page.Items, page.Links), nil
	}
	if loadType == paging.Prepend {
		key = ""
	}
	return load(ctx, s, accountID, loadType, key, fetch, TableNotificationRequests)
}

// AcceptNotificationRequest はリクエストを承認し、一覧を無効化する。
func (s *Service) AcceptNotificationRequest(ctx context.Context, accountID string, api API, id string) error {
	if err := api.AcceptNotificationRequest(ctx, id); err != nil {
		return err
	}
	s.tracker.Invalidate(accountID, TableNotificationRequests)
	return nil
}

// DismissNotificationRequest はリクエストを却下し、一覧を無効化する。
func (s *Service) DismissNotificationRequest(ctx context.Context, accountID string, api API, id string) error {
	if err := api.DismissNotificationRequest(ctx, id); err != nil {
		return err
	}
	s.tracker.Invalidate(accountID, TableNotificationRequests)
	return nil
}

// Search は検索結果を読み込む。キーは結果のオフセット。
func (s *Service) Search(ctx context.Context, accountID string, api API, query string, typ model.SearchType, loadType paging.LoadType, key string) (*Page[model.SearchResult], error) {
	if query == "" {
		return nil, model.NewInvalidRequestError("検索語が空です")
	}
	switch typ {
	case model.SearchAccounts, model.SearchStatuses, model.SearchHashtags:
	default:
		return nil, model.NewInvalidRequestError("未知の検索種別です: " + string(typ))
	}
	if key != "" {
		if n, err := strconv.Atoi(key); err != nil || n < 0 {
			return nil, model.NewInvalidRequestError("検索のキーが不正です: " + key)
		}
	}
	if loadType == paging.Prepend {
		key = ""
	}

	fetch := func(ctx context.Context, params paging.LoadParams) (paging.PageResult[model.SearchResult], error) {
		offset, _ := strconv.Atoi(params.Key)
		results, err := api.Search(ctx, mastodon.SearchParams{
			Query:   query,
			Type:    typ,
			Offset:  offset,
			Limit:   params.LoadSize,
			Resolve: offset == 0,
		})
		if err != nil {
			return paging.PageResult[model.SearchResult]{}, err
		}
		page := paging.PageResult[model.SearchResult]{Data: results}
		if len(results) >= params.LoadSize && len(results) > 0 {
			page.NextKey = strconv.Itoa(offset + len(results))
		}
		if offset > 0 {
			page.PrevKey = strconv.Itoa(max(offset-params.LoadSize, 0))
		}
		return page, nil
	}
	return load(ctx, s, accountID, loadType, key, fetch)
}

// ReportStatuses は通報対象アカウントの投稿を読み込む。
// 任意の投稿を起点に開けるよう双方向にページングし、Prepend は min_id で新しい側を取得する。
// Refresh にキーを指定した場合はその投稿を含む古い側を読み込む。
func (s *Service) ReportStatuses(ctx context.Context, accountID string, api API, targetID string, loadType paging.LoadType, key string) (*Page[timeline.StatusViewData], error) {
	if targetID == "" {
		return nil, model.NewInvalidRequestError("通報対象のアカウントが指定されていません")
	}
	fetch := func(ctx context.Context, params paging.LoadParams) (paging.PageResult[model.TimelinePageItem], error) {
		p := mastodon.PageParams{Limit: params.LoadSize}
		switch {
		case params.Type == paging.Prepend:
			p.MinID = params.Key
		case params.Type == paging.Append:
			p.MaxID = params.Key
		case params.Key != "":
			p.MaxID = model.IncID(params.Key)
		}
		page, err := api.AccountStatuses(ctx, targetID, p)
		if err != nil {
			return paging.PageResult[model.TimelinePageItem]{}, err
		}
		return bidirectionalPage(params, page), nil
	}

	loaded, err := load(ctx, s, accountID, loadType, key, fetch)
	if err != nil {
		return nil, err
	}
	items := make([]timeline.StatusViewData, 0, len(loaded.Items))
	for i := range loaded.Items {
		it := loaded.Items[i]
		timeline.ApplyViewDefaults(&it.Status, s.cfg.View)
		vd, ok := timeline.NewStatusViewData(model.TimelineItem{
			Entry:     model.TimelineEntry{ID: it.ID, StatusServerID: it.Status.ServerID},
			Status:    &it.Status,
			Author:    &it.Author,
			Reblogger: it.Reblogger,
		}, timeline.FilterContextAccount)
		if ok {
			items = append(items, vd)
		}
	}
	return &Page[timeline.StatusViewData]{
		Items:                  items,
		PrevKey:                loaded.PrevKey,
		NextKey:                loaded.NextKey,
		EndOfPaginationReached: loaded.EndOfPaginationReached,
	}, nil
}

// forwardPage は古い方向にのみ進む一覧のページを作る。次のキーは Link ヘッダーの max_id。
func forwardPage[T any](items []T, links mastodon.Links) paging.PageResult[T] {
	page := paging.PageResult[T]{Data: items}
	if len(items) > 0 {
		page.NextKey = links.Next.MaxID
	}
	return page
}

// bidirectionalPage は双方向の一覧のページを作る。
// 新しい側のキーは Link の prev（min_id）、古い側のキーは Link の next（max_id）。
func bidirectionalPage(params paging.LoadParams, page mastodon.Page[model.TimelinePageItem]) paging.PageResult[model.TimelinePageItem] {
	out := paging.PageResult[model.TimelinePageItem]{Data: page.Items}
	if len(page.Items) == 0 {
		return out
	}
	first, last := page.Items[0].ID, page.Items[len(page.Items)-1].ID

	switch params.Type {
	case paging.Prepend:
		out.NextKey = last
		out.PrevKey = page.Links.Prev.MinID
	case paging.Append:
		out.PrevKey = first
		out.NextKey = page.Links.Next.MaxID
	default:
		if params.Key != "" {
			out.PrevKey = first
		}
		out.NextKey = page.Links.Next.MaxID
	}
	return out
}
