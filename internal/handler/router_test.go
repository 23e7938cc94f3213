package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/mastosync/internal/editdiff"
	"github.com/hitoshi/mastosync/internal/feedpreview"
	"github.com/hitoshi/mastosync/internal/listing"
	"github.com/hitoshi/mastosync/internal/middleware"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/mutation"
	"github.com/hitoshi/mastosync/internal/notification"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/repository"
	"github.com/hitoshi/mastosync/internal/timeline"
)

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func parseError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// --- ヘルスチェック ---

func TestRouter_Health(t *testing.T) {
	deps := testDeps()
	if w := do(NewRouter(deps), http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	deps.HealthChecker = &mockHealth{err: errors.New("disk I/O error")}
	if w := do(NewRouter(deps), http.MethodGet, "/health", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestRouter_SecurityHeadersAndRequestID(t *testing.T) {
	w := do(NewRouter(testDeps()), http.MethodGet, "/health", "")
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options が設定されていない")
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("X-Request-ID が設定されていない")
	}
}

// --- アカウント ---

func TestRouter_RegisterAccount(t *testing.T) {
	deps := testDeps()
	deps.Accounts = &mockAccounts{
		registerFn: func(ctx context.Context, domain, token string) (*model.Account, error) {
			if domain != "mastodon.example" || token != "tok" {
				t.Errorf("Register(%q, %q)", domain, token)
			}
			return &model.Account{ID: "acct-1", Domain: domain, AccessToken: token, Username: "alice"}, nil
		},
	}

	w := do(NewRouter(deps), http.MethodPost, "/api/accounts", `{"domain":"mastodon.example","access_token":"tok"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "tok") {
		t.Error("アクセストークンをレスポンスに含めてはいけない")
	}
	var got model.Account
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "acct-1" || got.Username != "alice" {
		t.Errorf("account = %+v", got)
	}
}

func TestRouter_RegisterAccount_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"不正なJSON", `{`, nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"トークン無効", `{"domain":"a.example","access_token":"x"}`, model.NewUnauthorizedError(), http.StatusUnauthorized, model.ErrCodeUnauthorized},
		{"インスタンスに接続できない", `{"domain":"a.example","access_token":"x"}`, model.NewNetworkError(errors.New("dial")), http.StatusBadGateway, model.ErrCodeNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			deps.Accounts = &mockAccounts{
				registerFn: func(ctx context.Context, domain, token string) (*model.Account, error) {
					return nil, tt.err
				},
			}
			w := do(NewRouter(deps), http.MethodPost, "/api/accounts", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := parseError(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestRouter_ListAccounts_EmptyIsArray(t *testing.T) {
	w := do(NewRouter(testDeps()), http.MethodGet, "/api/accounts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"accounts":[]}` {
		t.Errorf("body = %s", got)
	}
}

func TestRouter_RemoveAccount_ForgetsPagers(t *testing.T) {
	deps := testDeps()
	forgetter := &recordingForgetter{}
	deps.CacheForgetter = []CacheForgetter{forgetter}

	w := do(NewRouter(deps), http.MethodDelete, "/api/accounts/acct-9", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if len(forgetter.forgotten) != 1 || forgetter.forgotten[0] != "acct-9" {
		t.Errorf("forgotten = %v", forgetter.forgotten)
	}

	deps.Accounts = &mockAccounts{
		removeFn: func(ctx context.Context, accountID string) error {
			return model.NewAccountNotFoundError(accountID)
		},
	}
	if w := do(NewRouter(deps), http.MethodDelete, "/api/accounts/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// --- タイムライン・通知 ---

func TestRouter_LoadTimeline(t *testing.T) {
	deps := testDeps()
	deps.Timelines = &mockTimelines{
		loadFn: func(ctx context.Context, accountID, tl string, loadType paging.LoadType, key string) (*timeline.Page, error) {
			if accountID != "acct-1" || tl != "list:42" || loadType != paging.Append || key != "100" {
				t.Errorf("Load(%q, %q, %v, %q)", accountID, tl, loadType, key)
			}
			return &timeline.Page{NextKey: "90"}, nil
		},
	}

	w := do(NewRouter(deps), http.MethodGet, "/api/accounts/acct-1/timelines/list:42?load=append&key=100", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var page timeline.Page
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.NextKey != "90" {
		t.Errorf("next_key = %q, want 90", page.NextKey)
	}
}

func TestRouter_LoadTimeline_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		loadErr    error
		wantStatus int
		wantCode   string
	}{
		{"未知のアカウント", "/api/accounts/nope/timelines/home", nil, http.StatusNotFound, model.ErrCodeAccountNotFound},
		{"不正なload", "/api/accounts/acct-1/timelines/home?load=sideways", nil, http.StatusBadRequest, model.ErrCodeInvalidLoadType},
		{"リモート失敗は再試行可能", "/api/accounts/acct-1/timelines/home", model.NewHTTPError(503, ""), http.StatusBadGateway, model.ErrCodeHTTP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			deps.Timelines = &mockTimelines{
				loadFn: func(ctx context.Context, accountID, tl string, loadType paging.LoadType, key string) (*timeline.Page, error) {
					return nil, tt.loadErr
				},
			}
			w := do(NewRouter(deps), http.MethodGet, tt.path, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := parseError(t, w)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if tt.loadErr != nil && !body.Retryable {
				t.Error("5xxは再試行可能として返すべき")
			}
		})
	}
}

func TestRouter_LoadPlaceholders(t *testing.T) {
	deps := testDeps()
	var timelineCall, notificationCall string
	deps.Timelines = &mockTimelines{
		loadMoreFn: func(ctx context.Context, accountID, tl, placeholderID string) error {
			timelineCall = tl + "/" + placeholderID
			return nil
		},
	}
	deps.Notifications = &mockNotifications{
		loadMoreFn: func(ctx context.Context, accountID, placeholderID string) error {
			notificationCall = placeholderID
			return model.NewPlaceholderNotFoundError(placeholderID)
		},
	}
	router := NewRouter(deps)

	if w := do(router, http.MethodPost, "/api/accounts/acct-1/timelines/home/placeholders/99/load", ""); w.Code != http.StatusNoContent {
		t.Errorf("timeline status = %d, want 204", w.Code)
	}
	if timelineCall != "home/99" {
		t.Errorf("timeline call = %q", timelineCall)
	}
	if w := do(router, http.MethodPost, "/api/accounts/acct-1/notifications/placeholders/7/load", ""); w.Code != http.StatusNotFound {
		t.Errorf("notification status = %d, want 404", w.Code)
	}
	if notificationCall != "7" {
		t.Errorf("notification call = %q", notificationCall)
	}
}

func TestRouter_LoadNotifications_DefaultsToRefresh(t *testing.T) {
	deps := testDeps()
	called := false
	deps.Notifications = &mockNotifications{
		loadFn: func(ctx context.Context, accountID string, loadType paging.LoadType, key string) (*notification.Page, error) {
			called = true
			if loadType != paging.Refresh || key != "" {
				t.Errorf("Load(%v, %q)", loadType, key)
			}
			return &notification.Page{EndOfPaginationReached: true}, nil
		},
	}

	w := do(NewRouter(deps), http.MethodGet, "/api/accounts/acct-1/notifications", "")
	if w.Code != http.StatusOK || !called {
		t.Fatalf("status = %d, called = %v", w.Code, called)
	}
	if !strings.Contains(w.Body.String(), `"end_of_pagination_reached":true`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

// TestRouter_StreamTimeline は購読中の更新が1行ずつNDJSONで配信されることを検証する。
func TestRouter_StreamTimeline(t *testing.T) {
	deps := testDeps()
	deps.Timelines = &mockTimelines{
		subscribeFn: func(ctx context.Context, accountID, tl string) (<-chan timeline.Update, error) {
			ch := make(chan timeline.Update, 2)
			ch <- timeline.Update{Page: &timeline.Page{NextKey: "1"}}
			ch <- timeline.Update{Err: model.NewNetworkError(errors.New("reset"))}
			close(ch)
			return ch, nil
		},
	}

	w := do(NewRouter(deps), http.MethodGet, "/api/accounts/acct-1/timelines/home/stream", "")
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2: %q", len(lines), w.Body.String())
	}
	if !strings.Contains(lines[0], `"next_key":"1"`) {
		t.Errorf("line 1 = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"code":"NETWORK_ERROR"`) || !strings.Contains(lines[1], `"retryable":true`) {
		t.Errorf("line 2 = %s", lines[1])
	}
}

func TestRouter_StreamTimeline_InvalidTimeline(t *testing.T) {
	deps := testDeps()
	deps.Timelines = &mockTimelines{
		subscribeFn: func(ctx context.Context, accountID, tl string) (<-chan timeline.Update, error) {
			return nil, timeline.ValidateTimeline(tl)
		},
	}
	if w := do(NewRouter(deps), http.MethodGet, "/api/accounts/acct-1/timelines/public/stream", ""); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// --- 投稿操作 ---

func TestRouter_SetStatusFlag(t *testing.T) {
	deps := testDeps()
	deps.StatusActions = &mockStatusActions{
		setFn: func(ctx context.Context, accountID, statusID string, action mutation.StatusAction, value bool) (*model.Status, error) {
			if accountID != "acct-1" || statusID != "55" || action != mutation.ActionFavourite || !value {
				t.Errorf("Set(%q, %q, %q, %v)", accountID, statusID, action, value)
			}
			return &model.Status{ServerID: statusID, Favourited: true, FavouritesCount: 4}, nil
		},
	}

	w := do(NewRouter(deps), http.MethodPut, "/api/accounts/acct-1/statuses/55/favourite", `{"value":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var got model.Status
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Favourited || got.FavouritesCount != 4 {
		t.Errorf("status = %+v", got)
	}
}

func TestRouter_SetStatusFlag_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		setErr     error
		wantStatus int
		wantCode   string
	}{
		{"未知の操作", "/api/accounts/acct-1/statuses/1/explode", `{"value":true}`, nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"valueなし", "/api/accounts/acct-1/statuses/1/reblog", `{}`, nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"ロールバック", "/api/accounts/acct-1/statuses/1/bookmark", `{"value":true}`, model.NewMutationFailedError("bookmark", errors.New("503")), http.StatusBadGateway, model.ErrCodeMutationFailed},
		{"キャッシュにない投稿", "/api/accounts/acct-1/statuses/1/pin", `{"value":false}`, model.NewStatusNotFoundError("1"), http.StatusNotFound, model.ErrCodeStatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			deps.StatusActions = &mockStatusActions{
				setFn: func(ctx context.Context, accountID, statusID string, action mutation.StatusAction, value bool) (*model.Status, error) {
					return nil, tt.setErr
				},
			}
			w := do(NewRouter(deps), http.MethodPut, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := parseError(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestRouter_SetViewState(t *testing.T) {
	deps := testDeps()
	var gotField repository.ViewStateField
	deps.StatusActions = &mockStatusActions{
		setViewFn: func(ctx context.Context, accountID, statusID string, field repository.ViewStateField, value bool) error {
			gotField = field
			return nil
		},
	}
	router := NewRouter(deps)

	if w := do(router, http.MethodPut, "/api/accounts/acct-1/statuses/1/view", `{"field":"expanded","value":true}`); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if gotField != repository.ViewExpanded {
		t.Errorf("field = %q", gotField)
	}
	if w := do(router, http.MethodPut, "/api/accounts/acct-1/statuses/1/view", `{"field":"colour","value":true}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRouter_DeleteStatus(t *testing.T) {
	deps := testDeps()
	deleted := ""
	deps.StatusActions = &mockStatusActions{
		deleteFn: func(ctx context.Context, accountID, statusID string) error {
			deleted = statusID
			return nil
		},
	}
	if w := do(NewRouter(deps), http.MethodDelete, "/api/accounts/acct-1/statuses/77", ""); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if deleted != "77" {
		t.Errorf("deleted = %q", deleted)
	}
}

// TestRouter_EditHistory_Insufficient は編集履歴不足がネットワークエラーと区別されることを検証する。
func TestRouter_EditHistory_Insufficient(t *testing.T) {
	deps := testDeps()
	deps.EditHistory = &mockEditHistory{
		fetchFn: func(ctx context.Context, statusID string) (*editdiff.Result, error) {
			return nil, model.NewEditHistoryInsufficientError(1)
		},
	}
	w := do(NewRouter(deps), http.MethodGet, "/api/accounts/acct-1/statuses/1/edits", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if body := parseError(t, w); body.Code != model.ErrCodeEditHistoryInsufficient || body.Retryable {
		t.Errorf("body = %+v", body)
	}
}

func TestRouter_StreamEditHistory(t *testing.T) {
	deps := testDeps()
	deps.EditHistory = &mockEditHistory{
		loadFn: func(ctx context.Context, statusID string) <-chan editdiff.State {
			ch := make(chan editdiff.State, 2)
			ch <- editdiff.State{Kind: editdiff.StateLoading}
			ch <- editdiff.State{Kind: editdiff.StateSuccess, Result: &editdiff.Result{Diffed: true}}
			close(ch)
			return ch
		},
	}
	w := do(NewRouter(deps), http.MethodGet, "/api/accounts/acct-1/statuses/1/edits/stream", "")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", w.Body.String())
	}
	if !strings.Contains(lines[0], `"state":"loading"`) {
		t.Errorf("line 1 = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"state":"success"`) || !strings.Contains(lines[1], `"diffed":true`) {
		t.Errorf("line 2 = %s", lines[1])
	}
}

// --- アカウント操作 ---

func TestRouter_SetRelationship(t *testing.T) {
	deps := testDeps()
	var got mutation.SetRelationshipParams
	deps.AccountActions = &mockAccountActions{
		setRelationshipFn: func(ctx context.Context, accountID string, p mutation.SetRelationshipParams) (*model.Relationship, error) {
			got = p
			return &model.Relationship{TargetServerID: p.TargetID, Muting: true}, nil
		},
	}
	w := do(NewRouter(deps), http.MethodPut, "/api/accounts/acct-1/relationships/u9", `{"kind":"mute","value":true,"notifications":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	want := mutation.SetRelationshipParams{TargetID: "u9", Kind: mutation.RelationshipMute, Value: true, MuteNotifications: true}
	if got != want {
		t.Errorf("params = %+v, want %+v", got, want)
	}
	if !strings.Contains(w.Body.String(), `"muting":true`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRouter_UnfollowAndListMembers(t *testing.T) {
	deps := testDeps()
	unfollowed := ""
	var calls []string
	deps.AccountActions = &mockAccountActions{
		unfollowFn: func(ctx context.Context, accountID, targetID string) (*model.Relationship, error) {
			unfollowed = targetID
			return &model.Relationship{TargetServerID: targetID}, nil
		},
		setListMemberFn: func(ctx context.Context, accountID, listID, targetID string, member bool) error {
			if member {
				calls = append(calls, "add:"+listID+":"+targetID)
			} else {
				calls = append(calls, "remove:"+listID+":"+targetID)
			}
			return nil
		},
	}
	router := NewRouter(deps)

	if w := do(router, http.MethodPost, "/api/accounts/acct-1/relationships/u2/unfollow", ""); w.Code != http.StatusOK {
		t.Errorf("unfollow status = %d", w.Code)
	}
	if unfollowed != "u2" {
		t.Errorf("unfollowed = %q", unfollowed)
	}
	if w := do(router, http.MethodPut, "/api/accounts/acct-1/lists/L1/members/u3", ""); w.Code != http.StatusNoContent {
		t.Errorf("add status = %d", w.Code)
	}
	if w := do(router, http.MethodDelete, "/api/accounts/acct-1/lists/L1/members/u3", ""); w.Code != http.StatusNoContent {
		t.Errorf("remove status = %d", w.Code)
	}
	if strings.Join(calls, ",") != "add:L1:u3,remove:L1:u3" {
		t.Errorf("calls = %v", calls)
	}
}

// --- ネットワークのみの一覧 ---

func TestRouter_Search(t *testing.T) {
	deps := testDeps()
	deps.Listings = &mockListings{
		searchFn: func(ctx context.Context, accountID, query string, typ model.SearchType, loadType paging.LoadType, key string) (*listing.Page[model.SearchResult], error) {
			if query != "golang" || typ != model.SearchStatuses || loadType != paging.Append || key != "40" {
				t.Errorf("Search(%q, %q, %v, %q)", query, typ, loadType, key)
			}
			return &listing.Page[model.SearchResult]{NextKey: "80"}, nil
		},
	}
	w := do(NewRouter(deps), http.MethodGet, "/api/accounts/acct-1/search?q=golang&load=append&key=40", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"next_key":"80"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRouter_ScheduledStatuses(t *testing.T) {
	deps := testDeps()
	deletedID := ""
	deps.Listings = &mockListings{
		scheduledFn: func(ctx context.Context, accountID string, loadType paging.LoadType, key string) (*listing.Page[model.ScheduledStatus], error) {
			return &listing.Page[model.ScheduledStatus]{Items: []model.ScheduledStatus{{ID: "s1", ScheduledAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}}}, nil
		},
		deleteFn: func(ctx context.Context, accountID, id string) error {
			deletedID = id
			return nil
		},
	}
	router := NewRouter(deps)

	w := do(router, http.MethodGet, "/api/accounts/acct-1/scheduled_statuses", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"id":"s1"`) {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if w := do(router, http.MethodDelete, "/api/accounts/acct-1/scheduled_statuses/s1", ""); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	if deletedID != "s1" {
		t.Errorf("deleted = %q", deletedID)
	}
}

func TestRouter_NotificationRequests(t *testing.T) {
	deps := testDeps()
	var calls []string
	deps.Listings = &mockListings{
		acceptFn: func(ctx context.Context, accountID, id string) error {
			calls = append(calls, "accept:"+id)
			return nil
		},
		dismissFn: func(ctx context.Context, accountID, id string) error {
			calls = append(calls, "dismiss:"+id)
			return nil
		},
	}
	router := NewRouter(deps)

	if w := do(router, http.MethodGet, "/api/accounts/acct-1/notification_requests", ""); w.Code != http.StatusOK {
		t.Errorf("list status = %d", w.Code)
	}
	do(router, http.MethodPost, "/api/accounts/acct-1/notification_requests/r1/accept", "")
	do(router, http.MethodPost, "/api/accounts/acct-1/notification_requests/r2/dismiss", "")
	if strings.Join(calls, ",") != "accept:r1,dismiss:r2" {
		t.Errorf("calls = %v", calls)
	}
}

func TestRouter_ReportStatuses(t *testing.T) {
	deps := testDeps()
	deps.Listings = &mockListings{
		reportFn: func(ctx context.Context, accountID, targetID string, loadType paging.LoadType, key string) (*listing.Page[timeline.StatusViewData], error) {
			if targetID != "u5" || loadType != paging.Prepend || key != "300" {
				t.Errorf("ReportStatuses(%q, %v, %q)", targetID, loadType, key)
			}
			return &listing.Page[timeline.StatusViewData]{}, nil
		},
	}
	w := do(NewRouter(deps), http.MethodGet, "/api/accounts/acct-1/reports/u5/statuses?load=prepend&key=300", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// --- プレビュー ---

// TestRouter_Preview_RateLimitedPerHost は同じホストへのプレビューだけが制限されることを検証する。
func TestRouter_Preview_RateLimitedPerHost(t *testing.T) {
	deps := testDeps()
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{Rate: 0.001, Burst: 1, CleanupInterval: time.Hour})
	defer limiter.Stop()
	deps.PreviewLimiter = limiter
	router := NewRouter(deps)

	if w := do(router, http.MethodGet, "/api/preview?url=@alice@a.example", ""); w.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", w.Code)
	}
	w := do(router, http.MethodGet, "/api/preview?url=https://a.example/@bob", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", w.Code)
	}
	if body := parseError(t, w); body.Code != model.ErrCodeRateLimited || !body.Retryable {
		t.Errorf("body = %+v", body)
	}
	if w := do(router, http.MethodGet, "/api/preview?url=@alice@b.example", ""); w.Code != http.StatusOK {
		t.Errorf("other host status = %d, want 200", w.Code)
	}
}

func TestRouter_Preview_SSRFBlocked(t *testing.T) {
	deps := testDeps()
	deps.Preview = &mockPreview{
		fetchFn: func(ctx context.Context, target string) (*feedpreview.Preview, error) {
			return nil, model.NewSSRFBlockedError()
		},
	}
	w := do(NewRouter(deps), http.MethodGet, "/api/preview?url=https://127.0.0.1/@x", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPreviewHostKey(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"@alice@mastodon.example", "mastodon.example"},
		{"https://mastodon.example:8443/tags/go", "mastodon.example"},
		{"", ""},
		{"not a handle", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/preview", nil)
		q := r.URL.Query()
		q.Set("url", tt.target)
		r.URL.RawQuery = q.Encode()
		if got := previewHostKey(r); got != tt.want {
			t.Errorf("previewHostKey(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}
