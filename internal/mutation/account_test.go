package mutation

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/repository"
)

// mockAccountAPI はテスト用のアカウント操作API。
type mockAccountAPI struct {
	muteFn       func(ctx context.Context, id string, notifications bool) (*model.Relationship, error)
	blockFn      func(ctx context.Context, id string) (*model.Relationship, error)
	unfollowFn   func(ctx context.Context, id string) (*model.Relationship, error)
	addToListFn  func(ctx context.Context, listID string, ids ...string) error
	removeListFn func(ctx context.Context, listID string, ids ...string) error
}

func (m *mockAccountAPI) MuteAccount(ctx context.Context, id string, notifications bool) (*model.Relationship, error) {
	return m.muteFn(ctx, id, notifications)
}

func (m *mockAccountAPI) UnmuteAccount(ctx context.Context, id string) (*model.Relationship, error) {
	return &model.Relationship{TargetServerID: id}, nil
}

func (m *mockAccountAPI) BlockAccount(ctx context.Context, id string) (*model.Relationship, error) {
	return m.blockFn(ctx, id)
}

func (m *mockAccountAPI) UnblockAccount(ctx context.Context, id string) (*model.Relationship, error) {
	return &model.Relationship{TargetServerID: id}, nil
}

func (m *mockAccountAPI) Unfollow(ctx context.Context, id string) (*model.Relationship, error) {
	return m.unfollowFn(ctx, id)
}

func (m *mockAccountAPI) AddToList(ctx context.Context, listID string, ids ...string) error {
	return m.addToListFn(ctx, listID, ids...)
}

func (m *mockAccountAPI) RemoveFromList(ctx context.Context, listID string, ids ...string) error {
	return m.removeListFn(ctx, listID, ids...)
}

type accountFixture struct {
	actions   *AccountActions
	timelines *repository.SQLiteTimelineRepo
	rels      *repository.SQLiteRelationshipRepo
	lists     *repository.SQLiteListMembershipRepo
}

func setupAccountActions(t *testing.T) accountFixture {
	t.Helper()
	db := setupDB(t)
	f := accountFixture{
		timelines: repository.NewSQLiteTimelineRepo(db, nil),
		rels:      repository.NewSQLiteRelationshipRepo(db, nil),
		lists:     repository.NewSQLiteListMembershipRepo(db, nil),
	}
	f.actions = NewAccountActions(AccountActionsConfig{
		Timelines:     f.timelines,
		Notifications: repository.NewSQLiteNotificationRepo(db, nil),
		Relationships: f.rels,
		Lists:         f.lists,
		Logger:        discardLogger(),
	})
	seedTimeline(t, f.timelines, cachedItem("300", "u1", 0), cachedItem("200", "u2", 0), cachedItem("100", "u1", 0))
	return f
}

func entryExists(t *testing.T, f accountFixture, id string) bool {
	t.Helper()
	e, err := f.timelines.FindEntry(context.Background(), testAccount, model.TimelineHome, id)
	if err != nil {
		t.Fatalf("FindEntryに失敗: %v", err)
	}
	return e != nil
}

// TestAccountActions_Block_PurgesEntries はブロック成功時に対象のエントリが削除されることを検証する。
func TestAccountActions_Block_PurgesEntries(t *testing.T) {
	f := setupAccountActions(t)
	ctx := context.Background()

	api := &mockAccountAPI{blockFn: func(ctx context.Context, id string) (*model.Relationship, error) {
		// 要求中は関係が既にキャッシュに書かれている
		rel, err := f.rels.Find(ctx, testAccount, id)
		if err != nil || rel == nil || !rel.Blocking {
			t.Errorf("楽観的なブロックが反映されていない: %+v, %v", rel, err)
		}
		return &model.Relationship{TargetServerID: id, Blocking: true}, nil
	}}

	rel, err := f.actions.SetRelationship(ctx, testAccount, api, SetRelationshipParams{TargetID: "u1", Kind: RelationshipBlock, Value: true})
	if err != nil {
		t.Fatalf("SetRelationship returned error: %v", err)
	}
	if !rel.Blocking {
		t.Error("ブロック状態が返されるべき")
	}
	if entryExists(t, f, "300") || entryExists(t, f, "100") {
		t.Error("ブロックしたアカウントのエントリは削除されるべき")
	}
	if !entryExists(t, f, "200") {
		t.Error("他のアカウントのエントリは残るべき")
	}
}

// TestAccountActions_Block_FailureReverts はブロック失敗時に関係が元に戻り、エントリも残ることを検証する。
func TestAccountActions_Block_FailureReverts(t *testing.T) {
	f := setupAccountActions(t)
	ctx := context.Background()

	api := &mockAccountAPI{blockFn: func(ctx context.Context, id string) (*model.Relationship, error) {
		return nil, model.NewNetworkError(errors.New("connection reset"))
	}}

	_, err := f.actions.SetRelationship(ctx, testAccount, api, SetRelationshipParams{TargetID: "u1", Kind: RelationshipBlock, Value: true})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeMutationFailed {
		t.Fatalf("MUTATION_FAILED を期待: %v", err)
	}

	rel, err := f.rels.Find(ctx, testAccount, "u1")
	if err != nil {
		t.Fatalf("Findに失敗: %v", err)
	}
	if rel != nil && rel.Blocking {
		t.Error("失敗後はブロックが取り消されるべき")
	}
	if !entryExists(t, f, "300") {
		t.Error("失敗時はエントリを削除しない")
	}
}

func TestAccountActions_Mute_PassesNotificationsFlag(t *testing.T) {
	f := setupAccountActions(t)

	var gotNotifications bool
	api := &mockAccountAPI{muteFn: func(ctx context.Context, id string, notifications bool) (*model.Relationship, error) {
		gotNotifications = notifications
		return &model.Relationship{TargetServerID: id, Muting: true}, nil
	}}

	p := SetRelationshipParams{TargetID: "u2", Kind: RelationshipMute, Value: true, MuteNotifications: true}
	if _, err := f.actions.SetRelationship(context.Background(), testAccount, api, p); err != nil {
		t.Fatalf("SetRelationship returned error: %v", err)
	}
	if !gotNotifications {
		t.Error("通知のミュート指定がAPIへ渡されるべき")
	}
	if entryExists(t, f, "200") {
		t.Error("ミュートしたアカウントのエントリは削除されるべき")
	}
}

func TestAccountActions_SetRelationship_InvalidParams(t *testing.T) {
	f := setupAccountActions(t)

	tests := []struct {
		name string
		p    SetRelationshipParams
	}{
		{"対象なし", SetRelationshipParams{Kind: RelationshipMute, Value: true}},
		{"未知の関係", SetRelationshipParams{TargetID: "u1", Kind: "follow", Value: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.actions.SetRelationship(context.Background(), testAccount, &mockAccountAPI{}, tt.p)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRequest {
				t.Errorf("INVALID_REQUEST を期待: %v", err)
			}
		})
	}
}

func TestAccountActions_Unfollow_RemovesHomeEntries(t *testing.T) {
	f := setupAccountActions(t)

	api := &mockAccountAPI{unfollowFn: func(ctx context.Context, id string) (*model.Relationship, error) {
		return &model.Relationship{TargetServerID: id}, nil
	}}
	if _, err := f.actions.Unfollow(context.Background(), testAccount, api, "u2"); err != nil {
		t.Fatalf("Unfollow returned error: %v", err)
	}
	if entryExists(t, f, "200") {
		t.Error("フォロー解除したアカウントのエントリは削除されるべき")
	}
	if !entryExists(t, f, "300") {
		t.Error("他のアカウントのエントリは残るべき")
	}
}

// TestAccountActions_SetListMember_FailureReverts はリスト追加の失敗で所属が元に戻ることを検証する。
func TestAccountActions_SetListMember_FailureReverts(t *testing.T) {
	f := setupAccountActions(t)
	ctx := context.Background()

	api := &mockAccountAPI{addToListFn: func(ctx context.Context, listID string, ids ...string) error {
		ok, err := f.lists.Contains(ctx, testAccount, listID, ids[0])
		if err != nil || !ok {
			t.Errorf("楽観的な追加が反映されていない: %v", err)
		}
		return model.NewHTTPError(500, "")
	}}

	err := f.actions.SetListMember(ctx, testAccount, api, "L1", "u1", true)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeMutationFailed {
		t.Fatalf("MUTATION_FAILED を期待: %v", err)
	}
	ok, err := f.lists.Contains(ctx, testAccount, "L1", "u1")
	if err != nil {
		t.Fatalf("Containsに失敗: %v", err)
	}
	if ok {
		t.Error("失敗後は所属が取り消されるべき")
	}
}

func TestAccountActions_SetListMember_Success(t *testing.T) {
	f := setupAccountActions(t)
	ctx := context.Background()

	api := &mockAccountAPI{
		addToListFn:  func(ctx context.Context, listID string, ids ...string) error { return nil },
		removeListFn: func(ctx context.Context, listID string, ids ...string) error { return nil },
	}
	if err := f.actions.SetListMember(ctx, testAccount, api, "L1", "u1", true); err != nil {
		t.Fatalf("SetListMember returned error: %v", err)
	}
	if ok, _ := f.lists.Contains(ctx, testAccount, "L1", "u1"); !ok {
		t.Error("追加後は所属しているべき")
	}
	if err := f.actions.SetListMember(ctx, testAccount, api, "L1", "u1", false); err != nil {
		t.Fatalf("SetListMember returned error: %v", err)
	}
	if ok, _ := f.lists.Contains(ctx, testAccount, "L1", "u1"); ok {
		t.Error("削除後は所属していないべき")
	}
}
