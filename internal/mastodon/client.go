// Package mastodon はMastodon REST APIのクライアントを提供する。
// レスポンスはキャッシュ用のドメインモデルに変換し、投稿HTMLはこの時点でサニタイズする。
package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/hitoshi/mastosync/internal/metrics"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/security"
)

const (
	userAgent = "mastosync/1.0"
	// defaultMaxBodySize はレスポンスボディの既定の上限（5MB）。
	defaultMaxBodySize = 5 * 1024 * 1024
	// maxErrorMessageLen はエラーメッセージに含めるサーバー応答の最大長。
	maxErrorMessageLen = 200
)

// ClientConfig はクライアントの生成パラメータ。
type ClientConfig struct {
	BaseURL     string // 例: https://mastodon.example
	AccessToken string
	HTTPClient  *http.Client
	Limiter     *rate.Limiter // nil の場合は制限しない
	Logger      *slog.Logger
	Metrics     metrics.MetricsCollector
	Sanitizer   security.ContentSanitizer
	MaxBodySize int64
}

// Client は1つのログイン中アカウントに紐づくAPIクライアント。
// ゴルーチンセーフで、アカウントのセッションが存続する間使い回す。
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	sanitizer   security.ContentSanitizer
	maxBodySize int64
}

// NewClient は Client を生成する。未指定の依存は既定値で補う。
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.AccessToken,
		httpClient:  cfg.HTTPClient,
		limiter:     cfg.Limiter,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		sanitizer:   cfg.Sanitizer,
		maxBodySize: cfg.MaxBodySize,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	if c.sanitizer == nil {
		c.sanitizer = security.NewContentSanitizer()
	}
	if c.maxBodySize <= 0 {
		c.maxBodySize = defaultMaxBodySize
	}
	return c
}

// BaseURL はインスタンスのURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request は1回のAPI呼び出しを表す。
type request struct {
	method string
	path   string
	query  url.Values
	form   url.Values
}

// do はリクエストを送信し、成功時はボディを out にデコードして Link ヘッダーを返す。
// 失敗はすべて *model.APIError で返す。
func (c *Client) do(ctx context.Context, r request, out any) (Links, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Links{}, model.NewNetworkError(err)
		}
	}

	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.form != nil {
		body = strings.NewReader(r.form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
	if err != nil {
		return Links{}, model.NewNetworkError(fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if r.form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordAPILatency(time.Since(start))
	if err != nil {
		c.logger.Error("MastodonAPIの呼び出しに失敗しました",
			slog.String("method", r.method),
			slog.String("path", r.path),
			slog.String("error", err.Error()),
		)
		return Links{}, model.NewNetworkError(err)
	}
	defer resp.Body.Close()
	c.metrics.RecordAPIStatus(resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("path", r.path),
			slog.String("error", err.Error()),
		)
		return Links{}, model.NewNetworkError(fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err))
	}
	if int64(len(data)) > c.maxBodySize {
		return Links{}, model.NewMalformedResponseError(
			fmt.Errorf("レスポンスサイズが上限 %d バイトを超えています", c.maxBodySize))
	}

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case StatusOK:
	case StatusRateLimited:
		attrs := []any{slog.String("path", r.path)}
		if reset := RateLimitReset(resp.Header); !reset.IsZero() {
			attrs = append(attrs, slog.Time("reset_at", reset))
		}
		c.logger.Warn("MastodonAPIのレート制限に達しました", attrs...)
		return Links{}, model.NewHTTPError(resp.StatusCode, errorMessage(data))
	default:
		c.logger.Warn("MastodonAPIがエラーステータスを返しました",
			slog.String("method", r.method),
			slog.String("path", r.path),
			slog.Int("http_status", resp.StatusCode),
		)
		return Links{}, model.NewHTTPError(resp.StatusCode, errorMessage(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			c.logger.Error("MastodonAPIのレスポンスのパースに失敗しました",
				slog.String("path", r.path),
				slog.String("error", err.Error()),
			)
			return Links{}, model.NewMalformedResponseError(err)
		}
	}

	return ParseLinkHeader(strings.Join(resp.Header.Values("Link"), ",")), nil
}

// errorMessage はMastodonのエラーボディ {"error": "..."} からメッセージを取り出す。
func errorMessage(data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	if len(msg) > maxErrorMessageLen {
		cut := maxErrorMessageLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}

// PageParams はIDベースのページング条件。
type PageParams struct {
	MaxID   string
	MinID   string
	SinceID string
	Limit   int
}

// FromCursor は Link ヘッダーのカーソルから PageParams を作る。
func FromCursor(c Cursor, limit int) PageParams {
	return PageParams{MaxID: c.MaxID, MinID: c.MinID, SinceID: c.SinceID, Limit: limit}
}

// AppendParams は古い側へ読み進めるときの PageParams を返す。
// 前回のレスポンスの rel="next" カーソルがキャッシュ済みの最古IDより新しくなければそれを使い、
// そうでなければ最古IDを max_id にする。
func AppendParams(next Cursor, oldestID string, limit int) PageParams {
	if next.MaxID != "" && (oldestID == "" || model.CompareIDs(next.MaxID, oldestID) <= 0) {
		return FromCursor(next, limit)
	}
	return PageParams{MaxID: oldestID, Limit: limit}
}

func (p PageParams) values() url.Values {
	q := url.Values{}
	if p.MaxID != "" {
		q.Set("max_id", p.MaxID)
	}
	if p.MinID != "" {
		q.Set("min_id", p.MinID)
	}
	if p.SinceID != "" {
		q.Set("since_id", p.SinceID)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

// Page は1ページ分の結果と前後のカーソル。
type Page[T any] struct {
	Items []T
	Links Links
}
