package mastodon

import (
	"net/http"
	"time"
)

// StatusClass はHTTPステータスコードの分類。
type StatusClass int

const (
	// StatusOK は2xx。
	StatusOK StatusClass = iota
	// StatusAuth はトークンが無効（401/403）。アカウントの再ログインが必要。
	StatusAuth
	// StatusNotFound は対象が存在しない（404/410）。
	StatusNotFound
	// StatusRateLimited はレート制限（429）。
	StatusRateLimited
	// StatusServerError は再試行で回復しうるサーバーエラー（5xx）。
	StatusServerError
	// StatusClientError はそれ以外の4xx。再試行しても結果は変わらない。
	StatusClientError
)

// ClassifyHTTPStatus はHTTPステータスコードを分類する。
func ClassifyHTTPStatus(statusCode int) StatusClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusOK
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return StatusAuth
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return StatusNotFound
	case statusCode == http.StatusTooManyRequests:
		return StatusRateLimited
	case statusCode >= 500:
		return StatusServerError
	default:
		return StatusClientError
	}
}

// RateLimitReset は X-RateLimit-Reset ヘッダーの時刻を返す。
// ヘッダーが無いか解釈できない場合はゼロ値を返す。
func RateLimitReset(h http.Header) time.Time {
	v := h.Get("X-RateLimit-Reset")
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
