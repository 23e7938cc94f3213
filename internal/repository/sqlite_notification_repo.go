package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/mastosync/internal/model"
)

// SQLiteNotificationRepo はSQLiteを使用した通知キャッシュのリポジトリ。
type SQLiteNotificationRepo struct {
	db       *sql.DB
	notifier ChangeNotifier
}

// NewSQLiteNotificationRepo はSQLiteNotificationRepoを生成する。
func NewSQLiteNotificationRepo(db *sql.DB, notifier ChangeNotifier) *SQLiteNotificationRepo {
	return &SQLiteNotificationRepo{db: db, notifier: notifier}
}

var _ NotificationRepository = (*SQLiteNotificationRepo)(nil)

func notificationIDs(items []model.NotificationPageItem) []string {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	return ids
}

// oldestCreatedAt はページ内で最も古い作成日時を返す。プレースホルダーの日時に使う。
func oldestCreatedAt(items []model.NotificationPageItem) time.Time {
	var oldest time.Time
	for i := range items {
		if oldest.IsZero() || items[i].CreatedAt.Before(oldest) {
			oldest = items[i].CreatedAt
		}
	}
	return oldest
}

// ReplaceRange はリモートから取得した通知ページを1トランザクションでマージする。
func (r *SQLiteNotificationRepo) ReplaceRange(
	ctx context.Context,
	accountID string,
	items []model.NotificationPageItem,
	insertGap bool,
) (MergeResult, error) {
	var result MergeResult
	if len(items) == 0 {
		return result, nil
	}
	newest, oldest := pageIDRange(notificationIDs(items))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	rangeCond, rangeArgs := idRangeCondition("id", oldest, newest)
	args := append([]any{accountID}, rangeArgs...)
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE account_id = ? AND type IS NOT NULL AND `+rangeCond,
		args...,
	).Scan(&result.Overlapped); err != nil {
		return result, fmt.Errorf("重複通知数の取得に失敗しました: %w", err)
	}

	if err := mergeNotifications(ctx, tx, accountID, items, oldest, newest); err != nil {
		return result, err
	}

	if insertGap && result.Overlapped == 0 {
		id, err := insertNotificationGap(ctx, tx, accountID, oldest, oldestCreatedAt(items))
		if err != nil {
			return result, err
		}
		result.PlaceholderID = id
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	notify(r.notifier, accountID, TableNotifications)
	return result, nil
}

func mergeNotifications(
	ctx context.Context,
	tx *sql.Tx,
	accountID string,
	items []model.NotificationPageItem,
	oldest, newest string,
) error {
	for i := range items {
		item := &items[i]
		if err := upsertTimelineAccount(ctx, tx, accountID, &item.Account); err != nil {
			return err
		}
		if item.StatusAuthor != nil {
			if err := upsertTimelineAccount(ctx, tx, accountID, item.StatusAuthor); err != nil {
				return err
			}
		}
		if item.Status != nil {
			if err := upsertStatus(ctx, tx, accountID, item.Status); err != nil {
				return err
			}
		}
	}

	rangeCond, rangeArgs := idRangeCondition("id", oldest, newest)
	args := append([]any{accountID}, rangeArgs...)
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM notifications WHERE account_id = ? AND `+rangeCond, args...,
	); err != nil {
		return fmt.Errorf("既存通知の削除に失敗しました: %w", err)
	}

	for i := range items {
		item := &items[i]
		report, err := encodeNullableJSON(item.Report)
		if err != nil {
			return err
		}
		statusID := ""
		if item.Status != nil {
			statusID = item.Status.ServerID
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO notifications
			     (account_id, id, type, account_server_id, status_server_id, report, created_at, loading)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
			accountID, item.ID, string(item.Type), item.Account.ServerID, statusID, report,
			toMillis(item.CreatedAt),
		); err != nil {
			return fmt.Errorf("通知 %s の挿入に失敗しました: %w", item.ID, err)
		}
	}
	return nil
}

// insertNotificationGap は oldest の直前にプレースホルダーを挿入する。
func insertNotificationGap(ctx context.Context, tx *sql.Tx, accountID, oldest string, createdAt time.Time) (string, error) {
	cond, condArgs := idCondition("id", "<", oldest)
	args := append([]any{accountID}, condArgs...)

	var olderID string
	var olderType sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT id, type FROM notifications WHERE account_id = ? AND `+cond+`
		 ORDER BY `+idOrderDesc("id")+` LIMIT 1`,
		args...,
	).Scan(&olderID, &olderType)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("直前通知の取得に失敗しました: %w", err)
	}

	placeholderID := model.DecID(oldest)
	if !olderType.Valid || olderID == placeholderID {
		return "", nil
	}

	if err := insertNotificationPlaceholder(ctx, tx, accountID, placeholderID, createdAt); err != nil {
		return "", err
	}
	return placeholderID, nil
}

func insertNotificationPlaceholder(ctx context.Context, tx *sql.Tx, accountID, id string, createdAt time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO notifications (account_id, id, type, created_at, loading)
		 VALUES (?, ?, NULL, ?, 0)`,
		accountID, id, toMillis(createdAt),
	); err != nil {
		return fmt.Errorf("プレースホルダーの挿入に失敗しました: %w", err)
	}
	return nil
}

// ReplacePlaceholder はプレースホルダーを取得したページで置き換える。
func (r *SQLiteNotificationRepo) ReplacePlaceholder(
	ctx context.Context,
	accountID, placeholderID string,
	items []model.NotificationPageItem,
	newPlaceholderID string,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	var createdAtMillis int64
	err = tx.QueryRowContext(ctx,
		`SELECT created_at FROM notifications WHERE account_id = ? AND id = ? AND type IS NULL`,
		accountID, placeholderID,
	).Scan(&createdAtMillis)
	if err == sql.ErrNoRows {
		return fmt.Errorf("プレースホルダーが見つかりません: %s: %w", placeholderID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("プレースホルダーの取得に失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM notifications WHERE account_id = ? AND id = ?`, accountID, placeholderID,
	); err != nil {
		return fmt.Errorf("プレースホルダーの削除に失敗しました: %w", err)
	}

	createdAt := fromMillis(createdAtMillis)
	if len(items) > 0 {
		newest, oldest := pageIDRange(notificationIDs(items))
		if err := mergeNotifications(ctx, tx, accountID, items, oldest, newest); err != nil {
			return err
		}
		createdAt = oldestCreatedAt(items)
	}

	if newPlaceholderID != "" {
		if err := insertNotificationPlaceholder(ctx, tx, accountID, newPlaceholderID, createdAt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	notify(r.notifier, accountID, TableNotifications)
	return nil
}

// SetPlaceholderLoading はプレースホルダーの読み込み中フラグを切り替える。
func (r *SQLiteNotificationRepo) SetPlaceholderLoading(ctx context.Context, accountID, id string, loading bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET loading = ? WHERE account_id = ? AND id = ? AND type IS NULL`,
		boolToInt(loading), accountID, id)
	if err != nil {
		return fmt.Errorf("プレースホルダーの更新に失敗しました: %w", err)
	}
	if err := requireAffected(result, "プレースホルダーが見つかりません: "+id); err != nil {
		return err
	}
	notify(r.notifier, accountID, TableNotifications)
	return nil
}

const notificationCols = `n.id, n.type, n.account_server_id, n.status_server_id, n.report, n.created_at, n.loading`

// FindByID は指定IDの通知を取得する。見つからない場合はnilを返す。
func (r *SQLiteNotificationRepo) FindByID(ctx context.Context, accountID, id string) (*model.Notification, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+notificationCols+` FROM notifications n WHERE n.account_id = ? AND n.id = ?`,
		accountID, id)

	var nr notificationRow
	if err := row.Scan(nr.dest()...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("通知の取得に失敗しました: %w", err)
	}
	return nr.toModel()
}

// Page はキャッシュからIDの降順で1ページ分を読み出す。
// ミュート・ブロック中のアカウントからの通知は除外する。
func (r *SQLiteNotificationRepo) Page(ctx context.Context, accountID string, q PageQuery) ([]model.NotificationItem, error) {
	query := `SELECT ` + notificationCols + `,
		` + selectCols("a", timelineAccountCols) + `,
		` + selectCols("s", statusCols) + `,
		` + selectCols("sa", timelineAccountCols) + `
		FROM notifications n
		LEFT JOIN timeline_accounts a ON a.account_id = n.account_id AND a.server_id = n.account_server_id
		LEFT JOIN statuses s ON s.account_id = n.account_id AND s.server_id = n.status_server_id
		LEFT JOIN timeline_accounts sa ON sa.account_id = n.account_id AND sa.server_id = s.author_server_id
		WHERE n.account_id = ?
		  AND (n.type IS NULL OR NOT EXISTS (SELECT 1 FROM relationships rel
		       WHERE rel.account_id = n.account_id AND rel.target_server_id = n.account_server_id
		         AND (rel.muting = 1 OR rel.blocking = 1)))`
	args := []any{accountID}

	query, args = applyKeyset(query, args, "n.id", q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("通知の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []model.NotificationItem
	for rows.Next() {
		var nr notificationRow
		var actor, author accountRow
		var st statusRow

		dest := nr.dest()
		dest = append(dest, actor.dest()...)
		dest = append(dest, st.dest()...)
		dest = append(dest, author.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("通知行の読み取りに失敗しました: %w", err)
		}

		n, err := nr.toModel()
		if err != nil {
			return nil, err
		}
		item := model.NotificationItem{Notification: *n}
		if item.Account, err = actor.toModel(); err != nil {
			return nil, err
		}
		if item.Status, err = st.toModel(); err != nil {
			return nil, err
		}
		if item.StatusAuthor, err = author.toModel(); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知の取得に失敗しました: %w", err)
	}

	if q.Op == KeyNewer {
		reverse(items)
	}
	return items, nil
}

// NewestID は最新通知のIDを返す。
func (r *SQLiteNotificationRepo) NewestID(ctx context.Context, accountID string) (string, error) {
	return r.singleID(ctx,
		`SELECT id FROM notifications WHERE account_id = ? ORDER BY `+idOrderDesc("id")+` LIMIT 1`,
		accountID)
}

// OldestID は最古の実通知のIDを返す。
func (r *SQLiteNotificationRepo) OldestID(ctx context.Context, accountID string) (string, error) {
	return r.singleID(ctx,
		`SELECT id FROM notifications WHERE account_id = ? AND type IS NOT NULL
		 ORDER BY `+idOrderAsc("id")+` LIMIT 1`,
		accountID)
}

// NextOlderID は指定IDより古い通知のうち最新のIDを返す。
func (r *SQLiteNotificationRepo) NextOlderID(ctx context.Context, accountID, id string) (string, error) {
	cond, condArgs := idCondition("id", "<", id)
	args := append([]any{accountID}, condArgs...)
	return r.singleID(ctx,
		`SELECT id FROM notifications WHERE account_id = ? AND `+cond+`
		 ORDER BY `+idOrderDesc("id")+` LIMIT 1`,
		args...)
}

func (r *SQLiteNotificationRepo) singleID(ctx context.Context, query string, args ...any) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("通知IDの取得に失敗しました: %w", err)
	}
	return id, nil
}

// DeleteByAccount は指定アカウントが起こした通知を削除する。
func (r *SQLiteNotificationRepo) DeleteByAccount(ctx context.Context, accountID, actorID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE account_id = ? AND account_server_id = ? AND type IS NOT NULL`,
		accountID, actorID)
	if err != nil {
		return 0, fmt.Errorf("通知の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if n > 0 {
		notify(r.notifier, accountID, TableNotifications)
	}
	return n, nil
}

// Cleanup は指定日時より古い通知（プレースホルダーを含む）を削除する。
func (r *SQLiteNotificationRepo) Cleanup(ctx context.Context, accountID string, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE account_id = ? AND created_at < ?`,
		accountID, toMillis(olderThan))
	if err != nil {
		return 0, fmt.Errorf("古い通知の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if n > 0 {
		notify(r.notifier, accountID, TableNotifications)
	}
	return n, nil
}

type notificationRow struct {
	id, typ, accountID, statusID, report sql.NullString
	createdAt, loading                   sql.NullInt64
}

func (r *notificationRow) dest() []any {
	return []any{&r.id, &r.typ, &r.accountID, &r.statusID, &r.report, &r.createdAt, &r.loading}
}

func (r *notificationRow) toModel() (*model.Notification, error) {
	n := &model.Notification{
		ID:              r.id.String,
		AccountServerID: nullStringValue(r.accountID),
		StatusServerID:  nullStringValue(r.statusID),
		CreatedAt:       fromMillis(r.createdAt.Int64),
		Loading:         r.loading.Int64 != 0,
	}
	if r.typ.Valid {
		t := model.ParseNotificationType(r.typ.String)
		n.Type = &t
	}
	report, err := decodeNullableJSON[model.Report](r.report)
	if err != nil {
		return nil, err
	}
	n.Report = report
	return n, nil
}
