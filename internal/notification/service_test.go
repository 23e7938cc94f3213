package notification

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/mastosync/internal/database"
	"github.com/hitoshi/mastosync/internal/mastodon"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/repository"
)

// remoteNotificationList はIDの降順に並んだリモートの通知一覧を模倣するAPI。
type remoteNotificationList struct {
	mu  sync.Mutex
	ids []string
}

func (r *remoteNotificationList) set(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = ids
}

func (r *remoteNotificationList) Notifications(ctx context.Context, p mastodon.PageParams, excludeTypes []string) (mastodon.Page[model.NotificationPageItem], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, id := range r.ids {
		if p.MaxID != "" && !model.IDLess(id, p.MaxID) {
			continue
		}
		if p.SinceID != "" && !model.IDLess(p.SinceID, id) {
			continue
		}
		out = append(out, id)
		if len(out) == p.Limit {
			break
		}
	}
	page := mastodon.Page[model.NotificationPageItem]{Items: remoteNotifications(out...)}
	if len(out) > 0 {
		page.Links = mastodon.Links{Next: mastodon.Cursor{MaxID: out[len(out)-1]}}
	}
	return page, nil
}

func setupService(t *testing.T, pageSize int) (*Service, *remoteNotificationList, *repository.SQLiteRelationshipRepo) {
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

	tracker := paging.NewInvalidationTracker()
	account := &model.Account{ID: "acct-1", Domain: "m.example", AccessToken: "t", ServerAccountID: "1", Username: "me", IsActive: true}
	if err := repository.NewSQLiteAccountRepo(db, tracker).Create(context.Background(), account); err != nil {
		t.Fatalf("アカウント作成に失敗: %v", err)
	}

	svc := NewService(repository.NewSQLiteNotificationRepo(db, tracker), tracker, ServiceConfig{
		Paging: paging.Config{PageSize: pageSize, InitialLoadSize: 20},
		Logger: discardLogger(),
	})
	return svc, &remoteNotificationList{}, repository.NewSQLiteRelationshipRepo(db, tracker)
}

func notificationIDs(items []NotificationViewData) string {
	ids := make([]string, len(items))
	for i, it := range items {
		if it.Placeholder {
			ids[i] = "ph:" + it.ID
		} else {
			ids[i] = it.ID
		}
	}
	return strings.Join(ids, ",")
}

// TestService_RefreshGapAndLoadMore は通知のギャップ挿入とその読み込みを検証する。
func TestService_RefreshGapAndLoadMore(t *testing.T) {
	svc, remote, _ := setupService(t, 2)
	ctx := context.Background()

	remote.set("30", "29", "28")
	if _, err := svc.Load(ctx, "acct-1", remote, paging.Refresh, ""); err != nil {
		t.Fatalf("初回Refreshに失敗: %v", err)
	}

	remote.set("50", "49", "40", "30", "29", "28")
	page, err := svc.Load(ctx, "acct-1", remote, paging.Refresh, "")
	if err != nil {
		t.Fatalf("2回目のRefreshに失敗: %v", err)
	}
	if got := notificationIDs(page.Items); got != "50,49,ph:48,30,29" {
		t.Fatalf("items = %s, want 50,49,ph:48,30,29", got)
	}

	if err := svc.LoadMore(ctx, "acct-1", remote, "48"); err != nil {
		t.Fatalf("LoadMoreに失敗: %v", err)
	}
	page, err = svc.Load(ctx, "acct-1", remote, paging.Refresh, "")
	if err != nil {
		t.Fatalf("3回目のRefreshに失敗: %v", err)
	}
	if got := notificationIDs(page.Items); got != "50,49,40,30,29" {
		t.Errorf("items = %s, want 50,49,40,30,29", got)
	}
}

// TestService_MutedActorHidden はミュートしたアカウントの通知が表示されないことを検証する。
func TestService_MutedActorHidden(t *testing.T) {
	svc, remote, rels := setupService(t, 10)
	ctx := context.Background()

	remote.set("3", "2", "1")
	if _, err := svc.Load(ctx, "acct-1", remote, paging.Refresh, ""); err != nil {
		t.Fatalf("Refreshに失敗: %v", err)
	}
	if err := rels.SetMuting(ctx, "acct-1", "actor2", true); err != nil {
		t.Fatalf("SetMutingに失敗: %v", err)
	}

	remote.set()
	page, err := svc.Load(ctx, "acct-1", remote, paging.Refresh, "")
	if err != nil {
		t.Fatalf("Refreshに失敗: %v", err)
	}
	if got := notificationIDs(page.Items); got != "3,1" {
		t.Errorf("items = %s, want 3,1", got)
	}
}
