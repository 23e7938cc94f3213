package paging

import "context"

// NetworkFetchFunc はリモートから1ページ分を取得し、前後のキーを付けて返す。
type NetworkFetchFunc[T any] func(ctx context.Context, params LoadParams) (PageResult[T], error)

// NetworkSource はキャッシュを持たず、リモートAPIを直接ページングするソース。
// 削除などの操作で stamp の世代が進むと InvalidResult を返す。
type NetworkSource[T any] struct {
	stamp      Stamp
	fetch      NetworkFetchFunc[T]
	refreshKey func(PagingState[T]) string
}

// NewNetworkSource は NetworkSource を生成する。
// refreshKey が nil の場合、再読み込みは常に先頭から行う。
func NewNetworkSource[T any](stamp Stamp, fetch NetworkFetchFunc[T], refreshKey func(PagingState[T]) string) *NetworkSource[T] {
	return &NetworkSource[T]{stamp: stamp, fetch: fetch, refreshKey: refreshKey}
}

var _ PagingSource[int] = (*NetworkSource[int])(nil)

// Load はリモートから1ページ分を取得する。
func (s *NetworkSource[T]) Load(ctx context.Context, params LoadParams) LoadResult[T] {
	if s.stamp.Stale() {
		return InvalidResult[T]{}
	}
	if params.Type != Refresh && params.Key == "" {
		return PageResult[T]{}
	}
	page, err := s.fetch(ctx, params)
	if err != nil {
		return ErrorResult[T]{Err: err}
	}
	if s.stamp.Stale() {
		return InvalidResult[T]{}
	}
	return page
}

// RefreshKey は再読み込み時の開始キーを返す。
func (s *NetworkSource[T]) RefreshKey(state PagingState[T]) string {
	if s.refreshKey == nil {
		return ""
	}
	return s.refreshKey(state)
}
