// Package paging はローカルキャッシュとリモートAPIを組み合わせたページ読み込みを提供する。
//
// PagingSource はキャッシュ（またはネットワーク）からページを読み出し、
// RemoteMediator はキャッシュが尽きたときにリモートから取得してキャッシュへマージする。
// Pager は両者を組み合わせ、メディエーターの実行を直列化する。
package paging

import (
	"context"
	"fmt"

	"github.com/hitoshi/mastosync/internal/model"
)

// LoadType はページ読み込みの方向を表す。
type LoadType int

const (
	// Refresh は最新（またはアンカー位置）から読み直す。
	Refresh LoadType = iota
	// Prepend は現在の先頭より新しい側を読み込む。
	Prepend
	// Append は現在の末尾より古い側を読み込む。
	Append
)

// String はLoadTypeの文字列表現を返す。
func (t LoadType) String() string {
	switch t {
	case Refresh:
		return "refresh"
	case Prepend:
		return "prepend"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("LoadType(%d)", int(t))
	}
}

// ParseLoadType は文字列からLoadTypeを解析する。空文字列はRefreshとみなす。
func ParseLoadType(s string) (LoadType, error) {
	switch s {
	case "", "refresh":
		return Refresh, nil
	case "prepend":
		return Prepend, nil
	case "append":
		return Append, nil
	default:
		return 0, model.NewInvalidLoadTypeError(s)
	}
}

// LoadParams はPagingSourceへの読み込み要求。
// Key はRefreshではアンカー、Appendでは末尾、Prependでは先頭を指す。空の場合は先頭から読む。
type LoadParams struct {
	Type     LoadType
	Key      string
	LoadSize int
}

// LoadResult はPagingSource.Loadの結果。PageResult、ErrorResult、InvalidResult のいずれか。
type LoadResult[T any] interface {
	isLoadResult()
}

// PageResult は読み込みに成功したページ。
// PrevKey / NextKey が空の場合、その方向にはこれ以上データが無い。
type PageResult[T any] struct {
	Data    []T
	PrevKey string
	NextKey string
}

// ErrorResult は読み込みに失敗したことを表す。
type ErrorResult[T any] struct {
	Err error
}

// InvalidResult は読み込み中にデータが変更されたため結果を破棄すべきことを表す。
type InvalidResult[T any] struct{}

func (PageResult[T]) isLoadResult()    {}
func (ErrorResult[T]) isLoadResult()   {}
func (InvalidResult[T]) isLoadResult() {}

// PagingState は読み込み済みのページと、ユーザーが見ている位置を表す。
type PagingState[T any] struct {
	Pages []PageResult[T]
	// AnchorPosition は全ページを連結したときのアンカー位置。負の場合はアンカーなし。
	AnchorPosition int
	PageSize       int
}

// Items は読み込み済みの全要素を連結して返す。
func (s PagingState[T]) Items() []T {
	var items []T
	for _, p := range s.Pages {
		items = append(items, p.Data...)
	}
	return items
}

// ClosestItemToPosition はアンカー位置に最も近い要素を返す。要素が無い場合はfalseを返す。
func (s PagingState[T]) ClosestItemToPosition(pos int) (T, bool) {
	var zero T
	items := s.Items()
	if len(items) == 0 || pos < 0 {
		return zero, false
	}
	if pos >= len(items) {
		pos = len(items) - 1
	}
	return items[pos], true
}

// LastItem は最後の要素を返す。
func (s PagingState[T]) LastItem() (T, bool) {
	var zero T
	items := s.Items()
	if len(items) == 0 {
		return zero, false
	}
	return items[len(items)-1], true
}

// PagingSource はページ単位でデータを読み出す。
// 一度無効化されたソースは InvalidResult を返し続け、Pager が新しいソースを生成する。
type PagingSource[T any] interface {
	Load(ctx context.Context, params LoadParams) LoadResult[T]
	// RefreshKey は再読み込み時にアンカー位置を保つためのキーを返す。
	RefreshKey(state PagingState[T]) string
}

// MediatorResult はRemoteMediator.Loadの成功結果。
type MediatorResult struct {
	EndOfPaginationReached bool
}

// RemoteMediator はリモートから取得したページをローカルキャッシュへマージする。
// 失敗した場合はキャッシュを変更せずにエラーを返す。
type RemoteMediator[T any] interface {
	Load(ctx context.Context, loadType LoadType, state PagingState[T]) (MediatorResult, error)
}
