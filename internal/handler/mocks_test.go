package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/mastosync/internal/editdiff"
	"github.com/hitoshi/mastosync/internal/feedpreview"
	"github.com/hitoshi/mastosync/internal/listing"
	"github.com/hitoshi/mastosync/internal/middleware"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/mutation"
	"github.com/hitoshi/mastosync/internal/notification"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/repository"
	"github.com/hitoshi/mastosync/internal/session"
	"github.com/hitoshi/mastosync/internal/timeline"
)

// --- モック定義 ---

// mockSessions はSessionOpenerのモック実装。acct-1 以外は存在しない。
type mockSessions struct{}

func (mockSessions) Open(ctx context.Context, accountID string) (*session.Session, error) {
	if accountID != "acct-1" {
		return nil, model.NewAccountNotFoundError(accountID)
	}
	return &session.Session{Account: &model.Account{ID: accountID, IsActive: true}}, nil
}

type mockAccounts struct {
	registerFn func(ctx context.Context, domain, token string) (*model.Account, error)
	listFn     func(ctx context.Context) ([]*model.Account, error)
	removeFn   func(ctx context.Context, accountID string) error
}

func (m *mockAccounts) Register(ctx context.Context, domain, token string) (*model.Account, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, domain, token)
	}
	return nil, nil
}

func (m *mockAccounts) List(ctx context.Context) ([]*model.Account, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockAccounts) Remove(ctx context.Context, accountID string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, accountID)
	}
	return nil
}

type recordingForgetter struct {
	forgotten []string
}

func (f *recordingForgetter) Forget(accountID string) {
	f.forgotten = append(f.forgotten, accountID)
}

type mockTimelines struct {
	loadFn      func(ctx context.Context, accountID string, tl string, loadType paging.LoadType, key string) (*timeline.Page, error)
	loadMoreFn  func(ctx context.Context, accountID, tl, placeholderID string) error
	subscribeFn func(ctx context.Context, accountID, tl string) (<-chan timeline.Update, error)
}

func (m *mockTimelines) Load(ctx context.Context, accountID string, api timeline.API, tl string, loadType paging.LoadType, key string) (*timeline.Page, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, accountID, tl, loadType, key)
	}
	return &timeline.Page{}, nil
}

func (m *mockTimelines) LoadMore(ctx context.Context, accountID string, api timeline.API, tl, placeholderID string) error {
	if m.loadMoreFn != nil {
		return m.loadMoreFn(ctx, accountID, tl, placeholderID)
	}
	return nil
}

func (m *mockTimelines) Subscribe(ctx context.Context, accountID string, api timeline.API, tl string) (<-chan timeline.Update, error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, accountID, tl)
	}
	ch := make(chan timeline.Update)
	close(ch)
	return ch, nil
}

type mockNotifications struct {
	loadFn      func(ctx context.Context, accountID string, loadType paging.LoadType, key string) (*notification.Page, error)
	loadMoreFn  func(ctx context.Context, accountID, placeholderID string) error
	subscribeFn func(ctx context.Context, accountID string) <-chan notification.Update
}

func (m *mockNotifications) Load(ctx context.Context, accountID string, api notification.API, loadType paging.LoadType, key string) (*notification.Page, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, accountID, loadType, key)
	}
	return &notification.Page{}, nil
}

func (m *mockNotifications) LoadMore(ctx context.Context, accountID string, api notification.API, placeholderID string) error {
	if m.loadMoreFn != nil {
		return m.loadMoreFn(ctx, accountID, placeholderID)
	}
	return nil
}

func (m *mockNotifications) Subscribe(ctx context.Context, accountID string, api notification.API) <-chan notification.Update {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, accountID)
	}
	ch := make(chan notification.Update)
	close(ch)
	return ch
}

type mockStatusActions struct {
	setFn     func(ctx context.Context, accountID, statusID string, action mutation.StatusAction, value bool) (*model.Status, error)
	setViewFn func(ctx context.Context, accountID, statusID string, field repository.ViewStateField, value bool) error
	deleteFn  func(ctx context.Context, accountID, statusID string) error
}

func (m *mockStatusActions) Set(ctx context.Context, accountID string, api mutation.StatusAPI, statusID string, action mutation.StatusAction, value bool) (*model.Status, error) {
	if m.setFn != nil {
		return m.setFn(ctx, accountID, statusID, action, value)
	}
	return &model.Status{ServerID: statusID}, nil
}

func (m *mockStatusActions) SetViewState(ctx context.Context, accountID, statusID string, field repository.ViewStateField, value bool) error {
	if m.setViewFn != nil {
		return m.setViewFn(ctx, accountID, statusID, field, value)
	}
	return nil
}

func (m *mockStatusActions) Delete(ctx context.Context, accountID string, api mutation.StatusAPI, statusID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, accountID, statusID)
	}
	return nil
}

type mockEditHistory struct {
	fetchFn func(ctx context.Context, statusID string) (*editdiff.Result, error)
	loadFn  func(ctx context.Context, statusID string) <-chan editdiff.State
}

func (m *mockEditHistory) Fetch(ctx context.Context, api editdiff.API, statusID string) (*editdiff.Result, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, statusID)
	}
	return &editdiff.Result{}, nil
}

func (m *mockEditHistory) Load(ctx context.Context, api editdiff.API, statusID string) <-chan editdiff.State {
	if m.loadFn != nil {
		return m.loadFn(ctx, statusID)
	}
	ch := make(chan editdiff.State)
	close(ch)
	return ch
}

type mockAccountActions struct {
	setRelationshipFn func(ctx context.Context, accountID string, p mutation.SetRelationshipParams) (*model.Relationship, error)
	unfollowFn        func(ctx context.Context, accountID, targetID string) (*model.Relationship, error)
	setListMemberFn   func(ctx context.Context, accountID, listID, targetID string, member bool) error
}

func (m *mockAccountActions) SetRelationship(ctx context.Context, accountID string, api mutation.AccountAPI, p mutation.SetRelationshipParams) (*model.Relationship, error) {
	if m.setRelationshipFn != nil {
		return m.setRelationshipFn(ctx, accountID, p)
	}
	return &model.Relationship{TargetServerID: p.TargetID}, nil
}

func (m *mockAccountActions) Unfollow(ctx context.Context, accountID string, api mutation.AccountAPI, targetID string) (*model.Relationship, error) {
	if m.unfollowFn != nil {
		return m.unfollowFn(ctx, accountID, targetID)
	}
	return &model.Relationship{TargetServerID: targetID}, nil
}

func (m *mockAccountActions) SetListMember(ctx context.Context, accountID string, api mutation.AccountAPI, listID, targetID string, member bool) error {
	if m.setListMemberFn != nil {
		return m.setListMemberFn(ctx, accountID, listID, targetID, member)
	}
	return nil
}

type mockListings struct {
	scheduledFn func(ctx context.Context, accountID string, loadType paging.LoadType, key string) (*listing.Page[model.ScheduledStatus], error)
	deleteFn    func(ctx context.Context, accountID, id string) error
	requestsFn  func(ctx context.Context, accountID string, loadType paging.LoadType, key string) (*listing.Page[model.NotificationRequest], error)
	acceptFn    func(ctx context.Context, accountID, id string) error
	dismissFn   func(ctx context.Context, accountID, id string) error
	searchFn    func(ctx context.Context, accountID, query string, typ model.SearchType, loadType paging.LoadType, key string) (*listing.Page[model.SearchResult], error)
	reportFn    func(ctx context.Context, accountID, targetID string, loadType paging.LoadType, key string) (*listing.Page[timeline.StatusViewData], error)
}

func (m *mockListings) ScheduledStatuses(ctx context.Context, accountID string, api listing.API, loadType paging.LoadType, key string) (*listing.Page[model.ScheduledStatus], error) {
	if m.scheduledFn != nil {
		return m.scheduledFn(ctx, accountID, loadType, key)
	}
	return &listing.Page[model.ScheduledStatus]{}, nil
}

func (m *mockListings) DeleteScheduledStatus(ctx context.Context, accountID string, api listing.API, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, accountID, id)
	}
	return nil
}

func (m *mockListings) NotificationRequests(ctx context.Context, accountID string, api listing.API, loadType paging.LoadType, key string) (*listing.Page[model.NotificationRequest], error) {
	if m.requestsFn != nil {
		return m.requestsFn(ctx, accountID, loadType, key)
	}
	return &listing.Page[model.NotificationRequest]{}, nil
}

func (m *mockListings) AcceptNotificationRequest(ctx context.Context, accountID string, api listing.API, id string) error {
	if m.acceptFn != nil {
		return m.acceptFn(ctx, accountID, id)
	}
	return nil
}

func (m *mockListings) DismissNotificationRequest(ctx context.Context, accountID string, api listing.API, id string) error {
	if m.dismissFn != nil {
		return m.dismissFn(ctx, accountID, id)
	}
	return nil
}

func (m *mockListings) Search(ctx context.Context, accountID string, api listing.API, query string, typ model.SearchType, loadType paging.LoadType, key string) (*listing.Page[model.SearchResult], error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, accountID, query, typ, loadType, key)
	}
	return &listing.Page[model.SearchResult]{}, nil
}

func (m *mockListings) ReportStatuses(ctx context.Context, accountID string, api listing.API, targetID string, loadType paging.LoadType, key string) (*listing.Page[timeline.StatusViewData], error) {
	if m.reportFn != nil {
		return m.reportFn(ctx, accountID, targetID, loadType, key)
	}
	return &listing.Page[timeline.StatusViewData]{}, nil
}

type mockPreview struct {
	fetchFn func(ctx context.Context, target string) (*feedpreview.Preview, error)
}

func (m *mockPreview) Fetch(ctx context.Context, target string) (*feedpreview.Preview, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, target)
	}
	return &feedpreview.Preview{FeedURL: target}, nil
}

type mockHealth struct {
	err error
}

func (m *mockHealth) PingContext(ctx context.Context) error {
	return m.err
}

// --- テストヘルパー ---

// testDeps はすべてモックで埋めたRouterDepsを返す。
func testDeps() *RouterDeps {
	return &RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Sessions:          mockSessions{},
		CORSAllowedOrigin: "http://localhost:3000",
		HealthChecker:     &mockHealth{},
		MetricsHandler:    http.NotFoundHandler(),
		Accounts:          &mockAccounts{},
		Timelines:         &mockTimelines{},
		Notifications:     &mockNotifications{},
		StatusActions:     &mockStatusActions{},
		EditHistory:       &mockEditHistory{},
		AccountActions:    &mockAccountActions{},
		Listings:          &mockListings{},
		Preview:           &mockPreview{},
	}
}

var _ middleware.SessionOpener = mockSessions{}
