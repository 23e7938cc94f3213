package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/mastosync/internal/database"
	"github.com/hitoshi/mastosync/internal/model"
)

// recordingNotifier は変更通知を記録するテスト用ChangeNotifier。
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Invalidate(accountID, table string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, accountID+"/"+table)
}

func (n *recordingNotifier) count(accountID, table string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == accountID+"/"+table {
			c++
		}
	}
	return c
}

// setupTestDB はマイグレーション済みの一時SQLiteデータベースを準備する。
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cache.db")
	if err := database.RunMigrations(path); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("データベースのオープンに失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestAccount はログイン中アカウントを1件作成してIDを返す。
func createTestAccount(t *testing.T, db *sql.DB, domain string) string {
	t.Helper()

	repo := NewSQLiteAccountRepo(db, nil)
	account := &model.Account{
		ID:              "acct-" + domain,
		Domain:          domain,
		AccessToken:     "token",
		ServerAccountID: "1",
		Username:        "alice",
		IsActive:        true,
	}
	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("アカウント作成に失敗: %v", err)
	}
	return account.ID
}

// pageItem はテスト用のタイムライン要素を生成する。
func pageItem(id, authorID string) model.TimelinePageItem {
	return model.TimelinePageItem{
		ID: id,
		Status: model.Status{
			ServerID:         id,
			AuthorServerID:   authorID,
			Content:          "<p>status " + id + "</p>",
			CreatedAt:        time.Unix(1700000000, 0).UTC(),
			Visibility:       model.VisibilityPublic,
			ContentCollapsed: true,
		},
		Author: model.TimelineAccount{ServerID: authorID, Username: "user" + authorID, Acct: "user" + authorID},
	}
}

func pageItems(authorID string, ids ...string) []model.TimelinePageItem {
	items := make([]model.TimelinePageItem, len(ids))
	for i, id := range ids {
		items[i] = pageItem(id, authorID)
	}
	return items
}

// entryIDs はページの各行のIDを返す。プレースホルダーには "ph:" を付ける。
func entryIDs(items []model.TimelineItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		if item.Entry.Placeholder {
			ids[i] = "ph:" + item.Entry.ID
		} else {
			ids[i] = item.Entry.ID
		}
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
