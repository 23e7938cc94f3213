// Package session はログイン中アカウントとAPIクライアントの組を管理する。
// 各操作はアクティブアカウントの暗黙の状態を参照せず、Session を明示的に受け取る。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/mastosync/internal/mastodon"
	"github.com/hitoshi/mastosync/internal/metrics"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/repository"
	"github.com/hitoshi/mastosync/internal/security"
)

// Session はログイン中アカウントとそのAPIクライアントの組。
type Session struct {
	Account *model.Account
	Client  *mastodon.Client
}

// Config はセッションマネージャーの設定。
type Config struct {
	HTTPClient  *http.Client
	RatePerSec  float64 // アカウントごとのAPI呼び出しレート。0以下なら制限しない
	Burst       int
	MaxBodySize int64
	Scheme      string // インスタンスへの接続スキーム。空なら https
	Sanitizer   security.ContentSanitizer
	Metrics     metrics.MetricsCollector
	Logger      *slog.Logger
}

// Manager はアカウントごとのAPIクライアントを生成・保持する。
type Manager struct {
	repo    repository.AccountRepository
	config  Config
	mu      sync.Mutex
	clients map[string]cachedClient
}

type cachedClient struct {
	token  string
	client *mastodon.Client
}

// NewManager は Manager を生成する。
func NewManager(repo repository.AccountRepository, cfg Config) *Manager {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Sanitizer == nil {
		cfg.Sanitizer = security.NewContentSanitizer()
	}
	return &Manager{
		repo:    repo,
		config:  cfg,
		clients: make(map[string]cachedClient),
	}
}

// Open はアカウントIDからセッションを開く。
// アカウントが存在しないか無効化されている場合は ACCOUNT_NOT_FOUND を返す。
func (m *Manager) Open(ctx context.Context, accountID string) (*Session, error) {
	account, err := m.repo.FindByID(ctx, accountID)
	if err != nil {
		return nil, model.NewCacheFailureError(err)
	}
	if account == nil || !account.IsActive {
		return nil, model.NewAccountNotFoundError(accountID)
	}
	return &Session{Account: account, Client: m.clientFor(account)}, nil
}

// clientFor はアカウントのクライアントを返す。トークンが変わっていれば作り直す。
func (m *Manager) clientFor(account *model.Account) *mastodon.Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.clients[account.ID]; ok && c.token == account.AccessToken {
		return c.client
	}
	client := m.newClient(account.Domain, account.AccessToken)
	m.clients[account.ID] = cachedClient{token: account.AccessToken, client: client}
	return client
}

func (m *Manager) newClient(domain, token string) *mastodon.Client {
	var limiter *rate.Limiter
	if m.config.RatePerSec > 0 {
		burst := m.config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(m.config.RatePerSec), burst)
	}
	return mastodon.NewClient(mastodon.ClientConfig{
		BaseURL:     m.config.Scheme + "://" + domain,
		AccessToken: token,
		HTTPClient:  m.config.HTTPClient,
		Limiter:     limiter,
		Logger:      m.config.Logger,
		Metrics:     m.config.Metrics,
		Sanitizer:   m.config.Sanitizer,
		MaxBodySize: m.config.MaxBodySize,
	})
}

// NormalizeDomain は入力されたインスタンス名をホスト名（必要ならポート付き）に正規化する。
// スキームや末尾のスラッシュは取り除き、パスを含む値は拒否する。
func NormalizeDomain(input string) (string, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimRight(s, "/")
	if s == "" {
		return "", model.NewInvalidRequestError("インスタンスのドメインを指定してください")
	}
	u, err := url.Parse("https://" + s)
	if err != nil || u.Host != s || u.Hostname() == "" {
		return "", model.NewInvalidRequestError("インスタンスのドメインが不正です: " + input)
	}
	return s, nil
}

// Register はアクセストークンを検証してアカウントを登録する。
// 同じインスタンスの同じユーザーが登録済みの場合はトークンとプロフィールを更新する。
func (m *Manager) Register(ctx context.Context, domain, token string) (*model.Account, error) {
	domain, err := NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, model.NewInvalidRequestError("アクセストークンを指定してください")
	}

	client := m.newClient(domain, token)
	me, err := client.VerifyCredentials(ctx)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		ID:              uuid.New().String(),
		Domain:          domain,
		AccessToken:     token,
		ServerAccountID: me.ServerID,
		Username:        me.Username,
		DisplayName:     me.DisplayName,
		AvatarURL:       me.AvatarURL,
		IsActive:        true,
	}
	if err := m.repo.Create(ctx, account); err != nil {
		return nil, model.NewCacheFailureError(fmt.Errorf("アカウントの登録に失敗しました: %w", err))
	}

	m.mu.Lock()
	m.clients[account.ID] = cachedClient{token: token, client: client}
	m.mu.Unlock()

	m.config.Logger.Info("アカウントを登録しました",
		slog.String("account_id", account.ID),
		slog.String("account", account.FullName()),
	)
	return account, nil
}

// List は登録済みアカウントを返す。
func (m *Manager) List(ctx context.Context) ([]*model.Account, error) {
	accounts, err := m.repo.List(ctx)
	if err != nil {
		return nil, model.NewCacheFailureError(err)
	}
	return accounts, nil
}

// Active は同期対象の有効なアカウントのセッションを返す。
func (m *Manager) Active(ctx context.Context) ([]*Session, error) {
	accounts, err := m.repo.ListActive(ctx)
	if err != nil {
		return nil, model.NewCacheFailureError(err)
	}
	sessions := make([]*Session, 0, len(accounts))
	for _, a := range accounts {
		sessions = append(sessions, &Session{Account: a, Client: m.clientFor(a)})
	}
	return sessions, nil
}

// MarkRefreshed は最終同期日時を記録する。
func (m *Manager) MarkRefreshed(ctx context.Context, accountID string, at time.Time) error {
	if err := m.repo.TouchRefreshed(ctx, accountID, at); err != nil {
		return model.NewCacheFailureError(err)
	}
	return nil
}

// Remove はアカウントとそのキャッシュを削除する。
func (m *Manager) Remove(ctx context.Context, accountID string) error {
	account, err := m.repo.FindByID(ctx, accountID)
	if err != nil {
		return model.NewCacheFailureError(err)
	}
	if account == nil {
		return model.NewAccountNotFoundError(accountID)
	}
	if err := m.repo.Delete(ctx, accountID); err != nil {
		return model.NewCacheFailureError(err)
	}

	m.mu.Lock()
	delete(m.clients, accountID)
	m.mu.Unlock()

	m.config.Logger.Info("アカウントを削除しました", slog.String("account_id", accountID))
	return nil
}
