package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/session"
)

// mockOpener はテスト用のセッションオープナー。
type mockOpener struct {
	openFn func(ctx context.Context, accountID string) (*session.Session, error)
}

func (m *mockOpener) Open(ctx context.Context, accountID string) (*session.Session, error) {
	return m.openFn(ctx, accountID)
}

func newChainRouter(logger *slog.Logger, opener SessionOpener, h http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(NewRequestIDMiddleware())
	r.Use(NewRecoveryMiddleware(logger))
	r.Use(NewLoggingMiddleware(logger))
	r.Use(NewSecurityHeadersMiddleware())
	r.Route("/api/accounts/{accountID}", func(r chi.Router) {
		r.Use(NewAccountMiddleware(opener))
		r.Get("/ping", h)
	})
	return r
}

// TestAccountMiddleware_ResolvesSession はURLのアカウントIDがセッションに解決されることを検証する。
func TestAccountMiddleware_ResolvesSession(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	opener := &mockOpener{openFn: func(ctx context.Context, accountID string) (*session.Session, error) {
		return &session.Session{Account: &model.Account{ID: accountID}}, nil
	}}

	var got string
	router := newChainRouter(logger, opener, func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if ok {
			got = sess.Account.ID
		}
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/accounts/acct-9/ping", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got != "acct-9" {
		t.Errorf("account = %q, want acct-9", got)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" || w.Header().Get("Cache-Control") != "no-store" {
		t.Error("セキュリティヘッダーが付与されるべき")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}
	if entry["account_id"] != "acct-9" {
		t.Errorf("log account_id = %v, want acct-9", entry["account_id"])
	}
}

func TestAccountMiddleware_UnknownAccountReturns404(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	opener := &mockOpener{openFn: func(ctx context.Context, accountID string) (*session.Session, error) {
		return nil, model.NewAccountNotFoundError(accountID)
	}}
	router := newChainRouter(logger, opener, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/accounts/nope/ping", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeAccountNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeAccountNotFound)
	}
}

// TestRecoveryMiddleware_ReturnsUnifiedError はpanicが統一フォーマットの500になることを検証する。
func TestRecoveryMiddleware_ReturnsUnifiedError(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	opener := &mockOpener{openFn: func(ctx context.Context, accountID string) (*session.Session, error) {
		return &session.Session{Account: &model.Account{ID: accountID}}, nil
	}}
	router := newChainRouter(logger, opener, func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/accounts/a/ping", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
}

// TestRateLimiter_LimitsPerKey はキーごとに独立して制限されることを検証する。
func TestRateLimiter_LimitsPerKey(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2, CleanupInterval: time.Hour})
	defer rl.Stop()

	handler := rl.Middleware("preview", func(r *http.Request) string {
		return r.URL.Query().Get("host")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(host string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/preview?host="+host, nil))
		return w
	}

	for i := 0; i < 2; i++ {
		if w := do("a.example"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}
	w := do("a.example")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After ヘッダーが必要")
	}
	if do("b.example").Code != http.StatusOK {
		t.Error("別のキーは制限されない")
	}
	if do("").Code != http.StatusOK {
		t.Error("キーが空なら制限しない")
	}
	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount = %d, want 2", rl.LimiterCount())
	}

	rl.cleanup(time.Now().Add(3 * time.Hour))
	if rl.LimiterCount() != 0 {
		t.Errorf("期限切れエントリは削除されるべき: %d", rl.LimiterCount())
	}
}
