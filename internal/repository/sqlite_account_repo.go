package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/mastosync/internal/model"
)

// SQLiteAccountRepo はSQLiteを使用したログイン中アカウントのリポジトリ。
type SQLiteAccountRepo struct {
	db       *sql.DB
	notifier ChangeNotifier
}

// NewSQLiteAccountRepo はSQLiteAccountRepoを生成する。
func NewSQLiteAccountRepo(db *sql.DB, notifier ChangeNotifier) *SQLiteAccountRepo {
	return &SQLiteAccountRepo{db: db, notifier: notifier}
}

var _ AccountRepository = (*SQLiteAccountRepo)(nil)

const accountColumns = `id, domain, access_token, server_account_id, username, display_name,
	avatar_url, is_active, last_refreshed_at, created_at, updated_at`

// Create はアカウントを作成する。
// (domain, server_account_id) が重複する場合は既存行のトークンとプロフィールを更新し、
// account.ID を既存行のIDに置き換える。
func (r *SQLiteAccountRepo) Create(ctx context.Context, account *model.Account) error {
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (domain, server_account_id) DO UPDATE SET
		     access_token = excluded.access_token,
		     username = excluded.username,
		     display_name = excluded.display_name,
		     avatar_url = excluded.avatar_url,
		     is_active = excluded.is_active,
		     updated_at = excluded.updated_at
		 RETURNING id`,
		account.ID, account.Domain, account.AccessToken, account.ServerAccountID,
		account.Username, account.DisplayName, account.AvatarURL,
		boolToInt(account.IsActive), nullMillis(account.LastRefreshedAt),
		toMillis(account.CreatedAt), toMillis(account.UpdatedAt),
	).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("アカウントの作成に失敗しました: %w", err)
	}

	notify(r.notifier, account.ID, TableAccounts)
	return nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *SQLiteAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	return account, nil
}

// ListActive は有効なアカウント一覧を返す。
func (r *SQLiteAccountRepo) ListActive(ctx context.Context) ([]*model.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE is_active = 1 ORDER BY created_at`)
}

// List は全アカウントを作成順に返す。
func (r *SQLiteAccountRepo) List(ctx context.Context) ([]*model.Account, error) {
	return r.list(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at`)
}

func (r *SQLiteAccountRepo) list(ctx context.Context, query string) ([]*model.Account, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("アカウント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("アカウント行の読み取りに失敗しました: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// SetActive はアカウントの有効/無効を切り替える。
func (r *SQLiteAccountRepo) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("アカウント状態の更新に失敗しました: %w", err)
	}
	if err := requireAffected(result, "アカウントが見つかりません: "+id); err != nil {
		return err
	}
	notify(r.notifier, id, TableAccounts)
	return nil
}

// TouchRefreshed は最終同期日時を更新する。
func (r *SQLiteAccountRepo) TouchRefreshed(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET last_refreshed_at = ?, updated_at = ? WHERE id = ?`,
		toMillis(at), toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("最終同期日時の更新に失敗しました: %w", err)
	}
	return requireAffected(result, "アカウントが見つかりません: "+id)
}

// Delete はアカウントを削除する。
// timeline_entries、statuses、notifications などのキャッシュ行はCASCADE削除される。
func (r *SQLiteAccountRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("アカウントの削除に失敗しました: %w", err)
	}
	if err := requireAffected(result, "アカウントが見つかりません: "+id); err != nil {
		return err
	}
	notify(r.notifier, id, TableAccounts, TableTimeline, TableNotifications, TableRelationships, TableListMemberships)
	return nil
}

// rowScanner は *sql.Row と *sql.Rows の共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(s rowScanner) (*model.Account, error) {
	a := &model.Account{}
	var isActive int
	var lastRefreshed sql.NullInt64
	var createdAt, updatedAt int64

	err := s.Scan(
		&a.ID, &a.Domain, &a.AccessToken, &a.ServerAccountID, &a.Username,
		&a.DisplayName, &a.AvatarURL, &isActive, &lastRefreshed, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.IsActive = isActive != 0
	a.LastRefreshedAt = nullTimeValue(lastRefreshed)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}
