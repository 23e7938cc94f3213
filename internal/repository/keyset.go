package repository

import "github.com/hitoshi/mastosync/internal/paging"

// QueryFor はページングの読み込み要求をキーセット条件に変換する。
func QueryFor(params paging.LoadParams) PageQuery {
	q := PageQuery{Key: params.Key, Limit: params.LoadSize}
	switch {
	case params.Key == "":
		q.Op = KeyNone
	case params.Type == paging.Append:
		q.Op = KeyOlder
	case params.Type == paging.Prepend:
		q.Op = KeyNewer
	default:
		q.Op = KeyAtOrOlder
	}
	return q
}
