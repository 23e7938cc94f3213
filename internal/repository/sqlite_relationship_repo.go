package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/mastosync/internal/model"
)

// SQLiteRelationshipRepo はSQLiteを使用したミュート・ブロック状態のリポジトリ。
// タイムラインと通知の読み出しはこのテーブルを参照して対象アカウントを除外する。
type SQLiteRelationshipRepo struct {
	db       *sql.DB
	notifier ChangeNotifier
}

// NewSQLiteRelationshipRepo はSQLiteRelationshipRepoを生成する。
func NewSQLiteRelationshipRepo(db *sql.DB, notifier ChangeNotifier) *SQLiteRelationshipRepo {
	return &SQLiteRelationshipRepo{db: db, notifier: notifier}
}

var _ RelationshipRepository = (*SQLiteRelationshipRepo)(nil)

// Find は対象アカウントとの関係を取得する。見つからない場合はnilを返す。
func (r *SQLiteRelationshipRepo) Find(ctx context.Context, accountID, targetID string) (*model.Relationship, error) {
	rel := &model.Relationship{TargetServerID: targetID}
	var muting, blocking int
	var updatedAt int64

	err := r.db.QueryRowContext(ctx,
		`SELECT muting, blocking, updated_at FROM relationships
		 WHERE account_id = ? AND target_server_id = ?`,
		accountID, targetID,
	).Scan(&muting, &blocking, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("関係の取得に失敗しました: %w", err)
	}

	rel.Muting = muting == 1
	rel.Blocking = blocking == 1
	rel.UpdatedAt = fromMillis(updatedAt)
	return rel, nil
}

// SetMuting はミュート状態を更新する。
func (r *SQLiteRelationshipRepo) SetMuting(ctx context.Context, accountID, targetID string, value bool) error {
	return r.set(ctx, accountID, targetID, "muting", value)
}

// SetBlocking はブロック状態を更新する。
func (r *SQLiteRelationshipRepo) SetBlocking(ctx context.Context, accountID, targetID string, value bool) error {
	return r.set(ctx, accountID, targetID, "blocking", value)
}

func (r *SQLiteRelationshipRepo) set(ctx context.Context, accountID, targetID, col string, value bool) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO relationships (account_id, target_server_id, `+col+`, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (account_id, target_server_id) DO UPDATE SET
		     `+col+` = excluded.`+col+`,
		     updated_at = excluded.updated_at`,
		accountID, targetID, boolToInt(value), toMillis(time.Now()),
	); err != nil {
		return fmt.Errorf("関係の更新に失敗しました: %w", err)
	}
	notify(r.notifier, accountID, TableRelationships, TableTimeline, TableNotifications)
	return nil
}

// SQLiteListMembershipRepo はSQLiteを使用したリスト所属のリポジトリ。
type SQLiteListMembershipRepo struct {
	db       *sql.DB
	notifier ChangeNotifier
}

// NewSQLiteListMembershipRepo はSQLiteListMembershipRepoを生成する。
func NewSQLiteListMembershipRepo(db *sql.DB, notifier ChangeNotifier) *SQLiteListMembershipRepo {
	return &SQLiteListMembershipRepo{db: db, notifier: notifier}
}

var _ ListMembershipRepository = (*SQLiteListMembershipRepo)(nil)

// Add はリストにアカウントを追加する。既に所属している場合は何もしない。
func (r *SQLiteListMembershipRepo) Add(ctx context.Context, accountID, listID, targetID string) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO list_memberships (account_id, list_id, target_server_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		accountID, listID, targetID, toMillis(time.Now()),
	); err != nil {
		return fmt.Errorf("リストへの追加に失敗しました: %w", err)
	}
	notify(r.notifier, accountID, TableListMemberships)
	return nil
}

// Remove はリストからアカウントを削除する。所属していない場合も成功とする。
func (r *SQLiteListMembershipRepo) Remove(ctx context.Context, accountID, listID, targetID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM list_memberships WHERE account_id = ? AND list_id = ? AND target_server_id = ?`,
		accountID, listID, targetID,
	); err != nil {
		return fmt.Errorf("リストからの削除に失敗しました: %w", err)
	}
	notify(r.notifier, accountID, TableListMemberships)
	return nil
}

// Contains はアカウントがリストに所属しているかを返す。
func (r *SQLiteListMembershipRepo) Contains(ctx context.Context, accountID, listID, targetID string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM list_memberships
		                WHERE account_id = ? AND list_id = ? AND target_server_id = ?)`,
		accountID, listID, targetID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("リスト所属の確認に失敗しました: %w", err)
	}
	return exists == 1, nil
}

// ListByList はリストに所属するアカウントのIDを追加順に返す。
func (r *SQLiteListMembershipRepo) ListByList(ctx context.Context, accountID, listID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT target_server_id FROM list_memberships
		 WHERE account_id = ? AND list_id = ? ORDER BY created_at, target_server_id`,
		accountID, listID)
	if err != nil {
		return nil, fmt.Errorf("リストメンバーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("リストメンバー行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
