package paging

import "context"

// FetchFunc はキャッシュから1ページ分を読み出す。
type FetchFunc[T any] func(ctx context.Context, params LoadParams) ([]T, error)

// CacheSource はローカルキャッシュをIDのキーセットでページングするソース。
// 生成時の世代番号を記録し、読み込みの前後でキャッシュが変更されていれば InvalidResult を返す。
type CacheSource[T any] struct {
	stamp Stamp
	fetch FetchFunc[T]
	key   func(T) string
}

// NewCacheSource はCacheSourceを生成する。
func NewCacheSource[T any](stamp Stamp, fetch FetchFunc[T], key func(T) string) *CacheSource[T] {
	return &CacheSource[T]{stamp: stamp, fetch: fetch, key: key}
}

var _ PagingSource[int] = (*CacheSource[int])(nil)

// Load はキャッシュから1ページ分を読み出す。
func (s *CacheSource[T]) Load(ctx context.Context, params LoadParams) LoadResult[T] {
	if s.stamp.Stale() {
		return InvalidResult[T]{}
	}
	if params.Type == Prepend && params.Key == "" {
		return PageResult[T]{}
	}

	data, err := s.fetch(ctx, params)
	if err != nil {
		return ErrorResult[T]{Err: err}
	}
	if s.stamp.Stale() {
		return InvalidResult[T]{}
	}

	page := PageResult[T]{Data: data}
	if len(data) == 0 {
		return page
	}
	full := len(data) >= params.LoadSize
	first, last := s.key(data[0]), s.key(data[len(data)-1])

	switch params.Type {
	case Refresh:
		if params.Key != "" {
			page.PrevKey = first
		}
		if full {
			page.NextKey = last
		}
	case Append:
		page.PrevKey = first
		if full {
			page.NextKey = last
		}
	case Prepend:
		page.NextKey = last
		if full {
			page.PrevKey = first
		}
	}
	return page
}

// RefreshKey はアンカー位置の要素のキーを返す。
// アンカーが先頭にある場合は空文字列を返し、最新から読み直させる。
func (s *CacheSource[T]) RefreshKey(state PagingState[T]) string {
	if state.AnchorPosition <= 0 {
		return ""
	}
	item, ok := state.ClosestItemToPosition(state.AnchorPosition)
	if !ok {
		return ""
	}
	return s.key(item)
}
