package timeline

import (
	"context"

	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/repository"
)

// NewSourceFactory はタイムラインキャッシュのページングソースを生成する関数を返す。
// ソースは生成時点のキャッシュの世代を記録し、以降の書き込みで無効になる。
func NewSourceFactory(
	repo repository.TimelineRepository,
	tracker *paging.InvalidationTracker,
	accountID, timeline string,
) func() paging.PagingSource[model.TimelineItem] {
	return func() paging.PagingSource[model.TimelineItem] {
		stamp := tracker.Snapshot(accountID, repository.TableTimeline, repository.TableRelationships)
		fetch := func(ctx context.Context, params paging.LoadParams) ([]model.TimelineItem, error) {
			return repo.Page(ctx, accountID, timeline, repository.QueryFor(params))
		}
		return paging.NewCacheSource(stamp, fetch, func(it model.TimelineItem) string { return it.Entry.ID })
	}
}
