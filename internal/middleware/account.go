package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/session"
)

type (
	sessionKey       struct{}
	accountHolderKey struct{}
)

// accountHolder はアクセスログへ渡すアカウントIDの保持先。
type accountHolder struct {
	accountID string
}

func withAccountHolder(ctx context.Context, h *accountHolder) context.Context {
	return context.WithValue(ctx, accountHolderKey{}, h)
}

// SessionOpener はアカウントIDからセッションを開く。
type SessionOpener interface {
	Open(ctx context.Context, accountID string) (*session.Session, error)
}

// NewAccountMiddleware はURLパラメータ {accountID} をセッションに解決してコンテキストに格納するミドルウェアを返す。
// アカウントが見つからない場合は404を返す。
func NewAccountMiddleware(opener SessionOpener) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID := chi.URLParam(r, "accountID")
			if accountID == "" {
				WriteError(w, model.NewAccountNotFoundError(accountID))
				return
			}

			sess, err := opener.Open(r.Context(), accountID)
			if err != nil {
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// SessionFromContext はコンテキストからセッションを取得する。
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*session.Session)
	return sess, ok && sess != nil
}

// WithSession はセッションをコンテキストに格納する。
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	if h, ok := ctx.Value(accountHolderKey{}).(*accountHolder); ok && sess != nil && sess.Account != nil {
		h.accountID = sess.Account.ID
	}
	return context.WithValue(ctx, sessionKey{}, sess)
}
