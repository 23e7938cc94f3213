package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteには日時型がないため、日時はUnixミリ秒のINTEGERとして保存する。

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func nullTimeValue(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// encodeJSON は埋め込みオブジェクト（添付・メンションなど）をJSON文字列にする。
// nilスライスは空配列として保存する。
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("JSONエンコードに失敗しました: %w", err)
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

// encodeNullableJSON はnilの場合にNULLを返す。
func encodeNullableJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("JSONエンコードに失敗しました: %w", err)
	}
	return string(b), nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("JSONデコードに失敗しました: %w", err)
	}
	return nil
}

func decodeNullableJSON[T any](ns sql.NullString) (*T, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal([]byte(ns.String), v); err != nil {
		return nil, fmt.Errorf("JSONデコードに失敗しました: %w", err)
	}
	return v, nil
}

// idCondition はサーバーIDを「長さ→辞書順」で比較するSQL条件を組み立てる。
// op は "<", "<=", ">", ">=" のいずれか。
func idCondition(col, op, key string) (string, []any) {
	strict := op
	switch op {
	case "<=":
		strict = "<"
	case ">=":
		strict = ">"
	}
	cond := fmt.Sprintf("(LENGTH(%s) %s LENGTH(?) OR (LENGTH(%s) = LENGTH(?) AND %s %s ?))", col, strict, col, col, op)
	return cond, []any{key, key, key}
}

// idRangeCondition は low 以上 high 以下の範囲条件を組み立てる。
func idRangeCondition(col, low, high string) (string, []any) {
	lowCond, lowArgs := idCondition(col, ">=", low)
	highCond, highArgs := idCondition(col, "<=", high)
	return lowCond + " AND " + highCond, append(lowArgs, highArgs...)
}

// 降順・昇順の並び順
func idOrderDesc(col string) string {
	return fmt.Sprintf("LENGTH(%s) DESC, %s DESC", col, col)
}

func idOrderAsc(col string) string {
	return fmt.Sprintf("LENGTH(%s) ASC, %s ASC", col, col)
}

// execer はトランザクション内外で共通に使うExec用インターフェース。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// requireAffected は更新件数が0の場合に ErrNotFound を返す。
func requireAffected(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// notify は通知先が設定されている場合のみ変更を通知する。
func notify(n ChangeNotifier, accountID string, tables ...string) {
	if n == nil {
		return
	}
	for _, t := range tables {
		n.Invalidate(accountID, t)
	}
}
