package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mastosync/internal/model"
)

// SQLiteTimelineRepo はSQLiteを使用したタイムラインキャッシュのリポジトリ。
type SQLiteTimelineRepo struct {
	db       *sql.DB
	notifier ChangeNotifier
}

// NewSQLiteTimelineRepo はSQLiteTimelineRepoを生成する。
// notifierには各書き込みのコミット後に変更が通知される。
func NewSQLiteTimelineRepo(db *sql.DB, notifier ChangeNotifier) *SQLiteTimelineRepo {
	return &SQLiteTimelineRepo{db: db, notifier: notifier}
}

var _ TimelineRepository = (*SQLiteTimelineRepo)(nil)

// pageIDRange はページ内の最新・最古IDを返す。
func pageIDRange(ids []string) (newest, oldest string) {
	for _, id := range ids {
		if newest == "" || model.CompareIDs(id, newest) > 0 {
			newest = id
		}
		if oldest == "" || model.CompareIDs(id, oldest) < 0 {
			oldest = id
		}
	}
	return newest, oldest
}

func timelineItemIDs(items []model.TimelinePageItem) []string {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	return ids
}

// ReplaceRange はリモートから取得したページを1トランザクションでマージする。
func (r *SQLiteTimelineRepo) ReplaceRange(
	ctx context.Context,
	accountID, timeline string,
	items []model.TimelinePageItem,
	insertGap bool,
) (MergeResult, error) {
	var result MergeResult
	if len(items) == 0 {
		return result, nil
	}
	newest, oldest := pageIDRange(timelineItemIDs(items))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	rangeCond, rangeArgs := idRangeCondition("id", oldest, newest)
	args := append([]any{accountID, timeline}, rangeArgs...)
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM timeline_entries
		 WHERE account_id = ? AND timeline = ? AND placeholder = 0 AND `+rangeCond,
		args...,
	).Scan(&result.Overlapped); err != nil {
		return result, fmt.Errorf("重複エントリ数の取得に失敗しました: %w", err)
	}

	if err := mergeTimelineEntries(ctx, tx, accountID, timeline, items, oldest, newest); err != nil {
		return result, err
	}

	if insertGap && result.Overlapped == 0 {
		id, err := insertGapPlaceholder(ctx, tx, accountID, timeline, oldest)
		if err != nil {
			return result, err
		}
		result.PlaceholderID = id
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	notify(r.notifier, accountID, TableTimeline)
	return result, nil
}

// mergeTimelineEntries は投稿とアカウントを保存し、[oldest, newest] の既存エントリを置き換える。
func mergeTimelineEntries(
	ctx context.Context,
	tx *sql.Tx,
	accountID, timeline string,
	items []model.TimelinePageItem,
	oldest, newest string,
) error {
	for i := range items {
		item := &items[i]
		if err := upsertTimelineAccount(ctx, tx, accountID, &item.Author); err != nil {
			return err
		}
		if item.Reblogger != nil {
			if err := upsertTimelineAccount(ctx, tx, accountID, item.Reblogger); err != nil {
				return err
			}
		}
		if err := upsertStatus(ctx, tx, accountID, &item.Status); err != nil {
			return err
		}
	}

	rangeCond, rangeArgs := idRangeCondition("id", oldest, newest)
	args := append([]any{accountID, timeline}, rangeArgs...)
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM timeline_entries WHERE account_id = ? AND timeline = ? AND `+rangeCond,
		args...,
	); err != nil {
		return fmt.Errorf("既存エントリの削除に失敗しました: %w", err)
	}

	for i := range items {
		item := &items[i]
		var reblogger any
		if item.Reblogger != nil {
			reblogger = item.Reblogger.ServerID
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO timeline_entries
			     (account_id, timeline, id, status_server_id, reblogger_server_id, placeholder, loading)
			 VALUES (?, ?, ?, ?, ?, 0, 0)`,
			accountID, timeline, item.ID, item.Status.ServerID, reblogger,
		); err != nil {
			return fmt.Errorf("エントリ %s の挿入に失敗しました: %w", item.ID, err)
		}
	}
	return nil
}

// insertGapPlaceholder は oldest の直前にプレースホルダーを挿入する。
// より古いエントリが無い場合、直前の行が既にプレースホルダーの場合、
// 直前のIDが実在して隙間が無い場合は挿入しない。
func insertGapPlaceholder(ctx context.Context, tx *sql.Tx, accountID, timeline, oldest string) (string, error) {
	cond, condArgs := idCondition("id", "<", oldest)
	args := append([]any{accountID, timeline}, condArgs...)

	var olderID string
	var olderPlaceholder int
	err := tx.QueryRowContext(ctx,
		`SELECT id, placeholder FROM timeline_entries
		 WHERE account_id = ? AND timeline = ? AND `+cond+`
		 ORDER BY `+idOrderDesc("id")+` LIMIT 1`,
		args...,
	).Scan(&olderID, &olderPlaceholder)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("直前エントリの取得に失敗しました: %w", err)
	}

	placeholderID := model.DecID(oldest)
	if olderPlaceholder == 1 || olderID == placeholderID {
		return "", nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO timeline_entries (account_id, timeline, id, placeholder, loading)
		 VALUES (?, ?, ?, 1, 0)`,
		accountID, timeline, placeholderID,
	); err != nil {
		return "", fmt.Errorf("プレースホルダーの挿入に失敗しました: %w", err)
	}
	return placeholderID, nil
}

// ReplacePlaceholder はプレースホルダーを取得したページで置き換える。
func (r *SQLiteTimelineRepo) ReplacePlaceholder(
	ctx context.Context,
	accountID, timeline, placeholderID string,
	items []model.TimelinePageItem,
	newPlaceholderID string,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM timeline_entries
		 WHERE account_id = ? AND timeline = ? AND id = ? AND placeholder = 1`,
		accountID, timeline, placeholderID)
	if err != nil {
		return fmt.Errorf("プレースホルダーの削除に失敗しました: %w", err)
	}
	if err := requireAffected(result, "プレースホルダーが見つかりません: "+placeholderID); err != nil {
		return err
	}

	if len(items) > 0 {
		newest, oldest := pageIDRange(timelineItemIDs(items))
		if err := mergeTimelineEntries(ctx, tx, accountID, timeline, items, oldest, newest); err != nil {
			return err
		}
	}

	if newPlaceholderID != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO timeline_entries (account_id, timeline, id, placeholder, loading)
			 VALUES (?, ?, ?, 1, 0)`,
			accountID, timeline, newPlaceholderID,
		); err != nil {
			return fmt.Errorf("プレースホルダーの挿入に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	notify(r.notifier, accountID, TableTimeline)
	return nil
}

// SetPlaceholderLoading はプレースホルダーの読み込み中フラグを切り替える。
func (r *SQLiteTimelineRepo) SetPlaceholderLoading(ctx context.Context, accountID, timeline, id string, loading bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE timeline_entries SET loading = ?
		 WHERE account_id = ? AND timeline = ? AND id = ? AND placeholder = 1`,
		boolToInt(loading), accountID, timeline, id)
	if err != nil {
		return fmt.Errorf("プレースホルダーの更新に失敗しました: %w", err)
	}
	if err := requireAffected(result, "プレースホルダーが見つかりません: "+id); err != nil {
		return err
	}
	notify(r.notifier, accountID, TableTimeline)
	return nil
}

// FindEntry は指定IDのエントリを取得する。見つからない場合はnilを返す。
func (r *SQLiteTimelineRepo) FindEntry(ctx context.Context, accountID, timeline, id string) (*model.TimelineEntry, error) {
	e := &model.TimelineEntry{}
	var statusID, rebloggerID sql.NullString
	var placeholder, loading int

	err := r.db.QueryRowContext(ctx,
		`SELECT timeline, id, status_server_id, reblogger_server_id, placeholder, loading
		 FROM timeline_entries WHERE account_id = ? AND timeline = ? AND id = ?`,
		accountID, timeline, id,
	).Scan(&e.Timeline, &e.ID, &statusID, &rebloggerID, &placeholder, &loading)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("エントリの取得に失敗しました: %w", err)
	}

	e.StatusServerID = nullStringValue(statusID)
	e.RebloggerServerID = nullStringValue(rebloggerID)
	e.Placeholder = placeholder == 1
	e.Loading = loading == 1
	return e, nil
}

// Page はキャッシュからIDの降順で1ページ分を読み出す。
func (r *SQLiteTimelineRepo) Page(ctx context.Context, accountID, timeline string, q PageQuery) ([]model.TimelineItem, error) {
	query := `SELECT e.timeline, e.id, e.status_server_id, e.reblogger_server_id, e.placeholder, e.loading,
		` + selectCols("s", statusCols) + `,
		` + selectCols("a", timelineAccountCols) + `,
		` + selectCols("rb", timelineAccountCols) + `
		FROM timeline_entries e
		LEFT JOIN statuses s ON s.account_id = e.account_id AND s.server_id = e.status_server_id
		LEFT JOIN timeline_accounts a ON a.account_id = e.account_id AND a.server_id = s.author_server_id
		LEFT JOIN timeline_accounts rb ON rb.account_id = e.account_id AND rb.server_id = e.reblogger_server_id
		WHERE e.account_id = ? AND e.timeline = ?
		  AND (e.placeholder = 1 OR (` + notMutedOrBlocked("s.author_server_id") + `
		       AND (e.reblogger_server_id IS NULL OR ` + notMutedOrBlocked("e.reblogger_server_id") + `)))`
	args := []any{accountID, timeline}

	query, args = applyKeyset(query, args, "e.id", q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("タイムラインの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []model.TimelineItem
	for rows.Next() {
		item, err := scanTimelineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("タイムライン行の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タイムラインの取得に失敗しました: %w", err)
	}

	if q.Op == KeyNewer {
		reverse(items)
	}
	return items, nil
}

// applyKeyset はキーセット条件・並び順・件数をクエリに付加する。
func applyKeyset(query string, args []any, col string, q PageQuery) (string, []any) {
	order := idOrderDesc(col)
	switch q.Op {
	case KeyAtOrOlder:
		cond, condArgs := idCondition(col, "<=", q.Key)
		query += " AND " + cond
		args = append(args, condArgs...)
	case KeyOlder:
		cond, condArgs := idCondition(col, "<", q.Key)
		query += " AND " + cond
		args = append(args, condArgs...)
	case KeyNewer:
		cond, condArgs := idCondition(col, ">", q.Key)
		query += " AND " + cond
		args = append(args, condArgs...)
		order = idOrderAsc(col)
	}
	query += " ORDER BY " + order
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}
	return query, args
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func scanTimelineItem(rows *sql.Rows) (model.TimelineItem, error) {
	var item model.TimelineItem
	var statusID, rebloggerID sql.NullString
	var placeholder, loading int
	var st statusRow
	var author, reblogger accountRow

	dest := []any{&item.Entry.Timeline, &item.Entry.ID, &statusID, &rebloggerID, &placeholder, &loading}
	dest = append(dest, st.dest()...)
	dest = append(dest, author.dest()...)
	dest = append(dest, reblogger.dest()...)
	if err := rows.Scan(dest...); err != nil {
		return item, err
	}

	item.Entry.StatusServerID = nullStringValue(statusID)
	item.Entry.RebloggerServerID = nullStringValue(rebloggerID)
	item.Entry.Placeholder = placeholder == 1
	item.Entry.Loading = loading == 1

	var err error
	if item.Status, err = st.toModel(); err != nil {
		return item, err
	}
	if item.Author, err = author.toModel(); err != nil {
		return item, err
	}
	if item.Reblogger, err = reblogger.toModel(); err != nil {
		return item, err
	}
	return item, nil
}

// NewestID は最新エントリのIDを返す。空の場合は空文字列を返す。
func (r *SQLiteTimelineRepo) NewestID(ctx context.Context, accountID, timeline string) (string, error) {
	return r.singleID(ctx,
		`SELECT id FROM timeline_entries WHERE account_id = ? AND timeline = ?
		 ORDER BY `+idOrderDesc("id")+` LIMIT 1`,
		accountID, timeline)
}

// OldestID は最古の実エントリのIDを返す。空の場合は空文字列を返す。
func (r *SQLiteTimelineRepo) OldestID(ctx context.Context, accountID, timeline string) (string, error) {
	return r.singleID(ctx,
		`SELECT id FROM timeline_entries WHERE account_id = ? AND timeline = ? AND placeholder = 0
		 ORDER BY `+idOrderAsc("id")+` LIMIT 1`,
		accountID, timeline)
}

// NextOlderID は指定IDより古いエントリのうち最新のIDを返す。
func (r *SQLiteTimelineRepo) NextOlderID(ctx context.Context, accountID, timeline, id string) (string, error) {
	cond, condArgs := idCondition("id", "<", id)
	args := append([]any{accountID, timeline}, condArgs...)
	return r.singleID(ctx,
		`SELECT id FROM timeline_entries WHERE account_id = ? AND timeline = ? AND `+cond+`
		 ORDER BY `+idOrderDesc("id")+` LIMIT 1`,
		args...)
}

func (r *SQLiteTimelineRepo) singleID(ctx context.Context, query string, args ...any) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("エントリIDの取得に失敗しました: %w", err)
	}
	return id, nil
}

// Clear はタイムラインの全エントリを削除する。
func (r *SQLiteTimelineRepo) Clear(ctx context.Context, accountID, timeline string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM timeline_entries WHERE account_id = ? AND timeline = ?`,
		accountID, timeline,
	); err != nil {
		return fmt.Errorf("タイムラインの削除に失敗しました: %w", err)
	}
	notify(r.notifier, accountID, TableTimeline)
	return nil
}

// FindStatus はキャッシュ内の投稿を取得する。見つからない場合はnilを返す。
func (r *SQLiteTimelineRepo) FindStatus(ctx context.Context, accountID, statusID string) (*model.Status, error) {
	var st statusRow
	err := r.db.QueryRowContext(ctx,
		`SELECT `+selectCols("s", statusCols)+` FROM statuses s WHERE s.account_id = ? AND s.server_id = ?`,
		accountID, statusID,
	).Scan(st.dest()...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	return st.toModel()
}

// SetFavourited はお気に入りフラグを更新する。値が変わる場合のみカウンタを±1する。
func (r *SQLiteTimelineRepo) SetFavourited(ctx context.Context, accountID, statusID string, value bool) error {
	return r.setCountedFlag(ctx, accountID, statusID, "favourited", "favourites_count", value)
}

// SetReblogged はブーストフラグを更新する。値が変わる場合のみカウンタを±1する。
func (r *SQLiteTimelineRepo) SetReblogged(ctx context.Context, accountID, statusID string, value bool) error {
	return r.setCountedFlag(ctx, accountID, statusID, "reblogged", "reblogs_count", value)
}

// setCountedFlag はフラグとカウンタを1文で更新する。SET句の右辺は更新前の値で評価される。
func (r *SQLiteTimelineRepo) setCountedFlag(ctx context.Context, accountID, statusID, flagCol, countCol string, value bool) error {
	v := boolToInt(value)
	result, err := r.db.ExecContext(ctx,
		`UPDATE statuses SET
		     `+countCol+` = MAX(0, `+countCol+` + CASE WHEN `+flagCol+` = ? THEN 0 WHEN ? = 1 THEN 1 ELSE -1 END),
		     `+flagCol+` = ?
		 WHERE account_id = ? AND server_id = ?`,
		v, v, v, accountID, statusID)
	if err != nil {
		return fmt.Errorf("%sの更新に失敗しました: %w", flagCol, err)
	}
	if err := requireAffected(result, "投稿が見つかりません: "+statusID); err != nil {
		return err
	}
	notify(r.notifier, accountID, TableTimeline, TableNotifications)
	return nil
}

// SetBookmarked はブックマークフラグを更新する。
func (r *SQLiteTimelineRepo) SetBookmarked(ctx context.Context, accountID, statusID string, value bool) error {
	return r.setFlag(ctx, accountID, statusID, "bookmarked", value)
}

// SetStatusMuted は会話ミュートフラグを更新する。
func (r *SQLiteTimelineRepo) SetStatusMuted(ctx context.Context, accountID, statusID string, value bool) error {
	return r.setFlag(ctx, accountID, statusID, "muted", value)
}

// SetPinned はピン留めフラグを更新する。
func (r *SQLiteTimelineRepo) SetPinned(ctx context.Context, accountID, statusID string, value bool) error {
	return r.setFlag(ctx, accountID, statusID, "pinned", value)
}

// SetViewState は投稿のローカル表示状態を更新する。
func (r *SQLiteTimelineRepo) SetViewState(ctx context.Context, accountID, statusID string, field ViewStateField, value bool) error {
	if !viewStateCols[string(field)] {
		return fmt.Errorf("不明な表示状態です: %s", field)
	}
	return r.setFlag(ctx, accountID, statusID, string(field), value)
}

func (r *SQLiteTimelineRepo) setFlag(ctx context.Context, accountID, statusID, col string, value bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE statuses SET `+col+` = ? WHERE account_id = ? AND server_id = ?`,
		boolToInt(value), accountID, statusID)
	if err != nil {
		return fmt.Errorf("%sの更新に失敗しました: %w", col, err)
	}
	if err := requireAffected(result, "投稿が見つかりません: "+statusID); err != nil {
		return err
	}
	notify(r.notifier, accountID, TableTimeline, TableNotifications)
	return nil
}

// ApplyServerStatus はサーバーが返した投稿でキャッシュ行を上書きする。
func (r *SQLiteTimelineRepo) ApplyServerStatus(ctx context.Context, accountID string, status *model.Status) error {
	if err := upsertStatus(ctx, r.db, accountID, status); err != nil {
		return err
	}
	notify(r.notifier, accountID, TableTimeline, TableNotifications)
	return nil
}

// DeleteStatus は投稿と、それを参照するタイムライン・通知エントリを1トランザクションで削除する。
// キャッシュに存在しない投稿の削除はエラーにしない。
func (r *SQLiteTimelineRepo) DeleteStatus(ctx context.Context, accountID, statusID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM timeline_entries WHERE account_id = ? AND status_server_id = ?`,
		`DELETE FROM notifications WHERE account_id = ? AND status_server_id = ?`,
		`DELETE FROM statuses WHERE account_id = ? AND server_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, accountID, statusID); err != nil {
			return fmt.Errorf("投稿の削除に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	notify(r.notifier, accountID, TableTimeline, TableNotifications)
	return nil
}

// DeleteByAuthor は指定アカウントが投稿またはブーストしたエントリを削除する。
func (r *SQLiteTimelineRepo) DeleteByAuthor(ctx context.Context, accountID, timeline, authorID string) (int64, error) {
	query := `DELETE FROM timeline_entries
		WHERE account_id = ?
		  AND (reblogger_server_id = ?
		       OR status_server_id IN (SELECT server_id FROM statuses WHERE account_id = ? AND author_server_id = ?))`
	args := []any{accountID, authorID, accountID, authorID}
	if timeline != "" {
		query += ` AND timeline = ?`
		args = append(args, timeline)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("アカウントのエントリ削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if n > 0 {
		notify(r.notifier, accountID, TableTimeline)
	}
	return n, nil
}

// Cleanup はタイムラインごとに最新keep件を残して古いエントリを削除し、
// どこからも参照されなくなった投稿とアカウントを削除する。
func (r *SQLiteTimelineRepo) Cleanup(ctx context.Context, accountID string, keep int) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	timelines, err := distinctTimelines(ctx, tx, accountID)
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, timeline := range timelines {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM timeline_entries
			 WHERE account_id = ? AND timeline = ?
			   AND id NOT IN (
			       SELECT id FROM timeline_entries WHERE account_id = ? AND timeline = ?
			       ORDER BY `+idOrderDesc("id")+` LIMIT ?)`,
			accountID, timeline, accountID, timeline, keep)
		if err != nil {
			return 0, fmt.Errorf("古いエントリの削除に失敗しました: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
		}
		deleted += n
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM statuses
		 WHERE account_id = ?
		   AND server_id NOT IN (SELECT status_server_id FROM timeline_entries
		                         WHERE account_id = ? AND status_server_id IS NOT NULL)
		   AND server_id NOT IN (SELECT status_server_id FROM notifications WHERE account_id = ?)`,
		accountID, accountID, accountID,
	); err != nil {
		return 0, fmt.Errorf("孤立した投稿の削除に失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM timeline_accounts
		 WHERE account_id = ?
		   AND server_id NOT IN (SELECT author_server_id FROM statuses WHERE account_id = ?)
		   AND server_id NOT IN (SELECT reblogger_server_id FROM timeline_entries
		                         WHERE account_id = ? AND reblogger_server_id IS NOT NULL)
		   AND server_id NOT IN (SELECT account_server_id FROM notifications WHERE account_id = ?)`,
		accountID, accountID, accountID, accountID,
	); err != nil {
		return 0, fmt.Errorf("孤立したアカウントの削除に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	if deleted > 0 {
		notify(r.notifier, accountID, TableTimeline)
	}
	return deleted, nil
}

func distinctTimelines(ctx context.Context, tx *sql.Tx, accountID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT DISTINCT timeline FROM timeline_entries WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, fmt.Errorf("タイムライン一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var timelines []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("タイムライン行の読み取りに失敗しました: %w", err)
		}
		timelines = append(timelines, t)
	}
	return timelines, rows.Err()
}
