// Package repository はローカルキャッシュの永続化インターフェースを定義する。
// すべての行はログイン中アカウントのIDでスコープされ、アカウント間で共有されない。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hitoshi/mastosync/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しない場合に返される。
var ErrNotFound = errors.New("repository: row not found")

// 変更通知で使用するテーブル名
const (
	TableAccounts        = "accounts"
	TableTimeline        = "timeline_entries"
	TableNotifications   = "notifications"
	TableRelationships   = "relationships"
	TableListMemberships = "list_memberships"
)

// ChangeNotifier はトランザクションのコミット後に変更を受け取る。
// ページングソースの無効化に使用する。
type ChangeNotifier interface {
	Invalidate(accountID, table string)
}

// KeyOp はキーセットページングでキーとIDを比較する方向を表す。
type KeyOp int

const (
	// KeyNone は先頭（最新）から取得する。
	KeyNone KeyOp = iota
	// KeyAtOrOlder はキー以下のIDを新しい順に取得する。
	KeyAtOrOlder
	// KeyOlder はキーより小さいIDを新しい順に取得する。
	KeyOlder
	// KeyNewer はキーより大きいIDを取得する。結果は新しい順に並べ替えて返す。
	KeyNewer
)

// PageQuery はキャッシュからの1ページ分の読み出し条件。
type PageQuery struct {
	Key   string
	Op    KeyOp
	Limit int
}

// MergeResult はリモートページのマージ結果。
type MergeResult struct {
	// Overlapped はページの範囲内に既に存在していた実エントリの数。
	Overlapped int
	// PlaceholderID は挿入されたプレースホルダーのID。挿入しなかった場合は空。
	PlaceholderID string
}

// ViewStateField は投稿のローカル表示状態の列を表す。
type ViewStateField string

const (
	ViewExpanded         ViewStateField = "expanded"
	ViewContentShowing   ViewStateField = "content_showing"
	ViewContentCollapsed ViewStateField = "content_collapsed"
)

// AccountRepository はログイン中アカウントの永続化インターフェース。
type AccountRepository interface {
	// Create はアカウントを作成する。同じドメイン・サーバーIDのアカウントが既にあればトークンを更新する。
	Create(ctx context.Context, account *model.Account) error

	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// ListActive は有効なアカウント一覧を返す。
	ListActive(ctx context.Context) ([]*model.Account, error)

	// List は全アカウントを作成順に返す。
	List(ctx context.Context) ([]*model.Account, error)

	// SetActive はアカウントの有効/無効を切り替える。
	SetActive(ctx context.Context, id string, active bool) error

	// TouchRefreshed は最終同期日時を更新する。
	TouchRefreshed(ctx context.Context, id string, at time.Time) error

	// Delete はアカウントを削除する。キャッシュ行はCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// TimelineRepository はタイムラインキャッシュの永続化インターフェース。
type TimelineRepository interface {
	// ReplaceRange はリモートから取得したページを1トランザクションでマージする。
	// ページの最古〜最新IDの範囲にある既存エントリ（プレースホルダーを含む）を削除してから挿入する。
	// insertGap が true で、ページが既存エントリと重ならず、より古いエントリが存在する場合は
	// ページ最古IDの直前にプレースホルダーを挿入する。
	ReplaceRange(ctx context.Context, accountID, timeline string, items []model.TimelinePageItem, insertGap bool) (MergeResult, error)

	// ReplacePlaceholder はプレースホルダーを取得したページで置き換える。
	// newPlaceholderID が空でなければ、その位置に新しいプレースホルダーを挿入する。
	ReplacePlaceholder(ctx context.Context, accountID, timeline, placeholderID string, items []model.TimelinePageItem, newPlaceholderID string) error

	// SetPlaceholderLoading はプレースホルダーの読み込み中フラグを切り替える。
	SetPlaceholderLoading(ctx context.Context, accountID, timeline, id string, loading bool) error

	// FindEntry は指定IDのエントリを取得する。見つからない場合はnilを返す。
	FindEntry(ctx context.Context, accountID, timeline, id string) (*model.TimelineEntry, error)

	// Page はキャッシュからIDの降順で1ページ分を読み出す。
	// ミュート・ブロック中のアカウントが投稿またはブーストしたエントリは除外する。
	Page(ctx context.Context, accountID, timeline string, q PageQuery) ([]model.TimelineItem, error)

	// NewestID は最新エントリのIDを返す。空の場合は空文字列を返す。
	NewestID(ctx context.Context, accountID, timeline string) (string, error)

	// OldestID は最古の実エントリ（プレースホルダー以外）のIDを返す。空の場合は空文字列を返す。
	OldestID(ctx context.Context, accountID, timeline string) (string, error)

	// NextOlderID は指定IDより古いエントリのうち最新のIDを返す。存在しない場合は空文字列を返す。
	NextOlderID(ctx context.Context, accountID, timeline, id string) (string, error)

	// Clear はタイムラインの全エントリを削除する。
	Clear(ctx context.Context, accountID, timeline string) error

	// FindStatus はキャッシュ内の投稿を取得する。見つからない場合はnilを返す。
	FindStatus(ctx context.Context, accountID, statusID string) (*model.Status, error)

	// SetFavourited はお気に入りフラグを更新する。値が変わる場合のみカウンタを±1する。
	SetFavourited(ctx context.Context, accountID, statusID string, value bool) error

	// SetReblogged はブーストフラグを更新する。値が変わる場合のみカウンタを±1する。
	SetReblogged(ctx context.Context, accountID, statusID string, value bool) error

	// SetBookmarked はブックマークフラグを更新する。
	SetBookmarked(ctx context.Context, accountID, statusID string, value bool) error

	// SetStatusMuted は会話ミュートフラグを更新する。
	SetStatusMuted(ctx context.Context, accountID, statusID string, value bool) error

	// SetPinned はピン留めフラグを更新する。
	SetPinned(ctx context.Context, accountID, statusID string, value bool) error

	// ApplyServerStatus はサーバーが返した投稿のカウンタとフラグでキャッシュ行を上書きする。
	// ローカルの表示状態は維持する。
	ApplyServerStatus(ctx context.Context, accountID string, status *model.Status) error

	// SetViewState は投稿のローカル表示状態を更新する。
	SetViewState(ctx context.Context, accountID, statusID string, field ViewStateField, value bool) error

	// DeleteStatus は投稿と、それを参照するタイムライン・通知エントリを削除する。
	DeleteStatus(ctx context.Context, accountID, statusID string) error

	// DeleteByAuthor は指定アカウントが投稿またはブーストしたエントリを削除する。
	// timeline が空の場合は全タイムラインが対象。
	DeleteByAuthor(ctx context.Context, accountID, timeline, authorID string) (int64, error)

	// Cleanup はタイムラインごとに最新keep件を残して古いエントリを削除し、
	// どこからも参照されなくなった投稿とアカウントを削除する。
	Cleanup(ctx context.Context, accountID string, keep int) (int64, error)
}

// NotificationRepository は通知キャッシュの永続化インターフェース。
type NotificationRepository interface {
	// ReplaceRange はリモートから取得した通知ページを1トランザクションでマージする。
	ReplaceRange(ctx context.Context, accountID string, items []model.NotificationPageItem, insertGap bool) (MergeResult, error)

	// ReplacePlaceholder はプレースホルダーを取得したページで置き換える。
	ReplacePlaceholder(ctx context.Context, accountID, placeholderID string, items []model.NotificationPageItem, newPlaceholderID string) error

	// SetPlaceholderLoading はプレースホルダーの読み込み中フラグを切り替える。
	SetPlaceholderLoading(ctx context.Context, accountID, id string, loading bool) error

	// FindByID は指定IDの通知を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, accountID, id string) (*model.Notification, error)

	// Page はキャッシュからIDの降順で1ページ分を読み出す。
	Page(ctx context.Context, accountID string, q PageQuery) ([]model.NotificationItem, error)

	// NewestID は最新通知のIDを返す。空の場合は空文字列を返す。
	NewestID(ctx context.Context, accountID string) (string, error)

	// OldestID は最古の実通知のIDを返す。空の場合は空文字列を返す。
	OldestID(ctx context.Context, accountID string) (string, error)

	// NextOlderID は指定IDより古い通知のうち最新のIDを返す。
	NextOlderID(ctx context.Context, accountID, id string) (string, error)

	// DeleteByAccount は指定アカウントが起こした通知を削除する。
	DeleteByAccount(ctx context.Context, accountID, actorID string) (int64, error)

	// Cleanup は指定日時より古い通知を削除する。
	Cleanup(ctx context.Context, accountID string, olderThan time.Time) (int64, error)
}

// RelationshipRepository はミュート・ブロック状態の永続化インターフェース。
type RelationshipRepository interface {
	// Find は対象アカウントとの関係を取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, accountID, targetID string) (*model.Relationship, error)

	// SetMuting はミュート状態を更新する。
	SetMuting(ctx context.Context, accountID, targetID string, value bool) error

	// SetBlocking はブロック状態を更新する。
	SetBlocking(ctx context.Context, accountID, targetID string, value bool) error
}

// ListMembershipRepository はリスト所属の永続化インターフェース。
type ListMembershipRepository interface {
	// Add はリストにアカウントを追加する。既に所属している場合は何もしない。
	Add(ctx context.Context, accountID, listID, targetID string) error

	// Remove はリストからアカウントを削除する。
	Remove(ctx context.Context, accountID, listID, targetID string) error

	// Contains はアカウントがリストに所属しているかを返す。
	Contains(ctx context.Context, accountID, listID, targetID string) (bool, error)

	// ListByList はリストに所属するアカウントのIDを返す。
	ListByList(ctx context.Context, accountID, listID string) ([]string, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
