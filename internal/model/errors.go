// Package model はドメインモデルを定義する。
package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法、再試行可否を含む。
type APIError struct {
	Code      string // エラーコード
	Message   string // エラーメッセージ
	Category  string // カテゴリ: network, auth, validation, cache, data, system
	Action    string // ユーザー向け対処方法
	Retryable bool   // 再試行ボタンを表示してよいか
	Cause     error  // 原因となったエラー（ログ用、レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Cause
}

// 定義済みエラーコード
const (
	ErrCodeNetwork                 = "NETWORK_ERROR"
	ErrCodeHTTP                    = "HTTP_ERROR"
	ErrCodeMalformedResponse       = "MALFORMED_RESPONSE"
	ErrCodeRateLimited             = "RATE_LIMITED"
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeAccountNotFound         = "ACCOUNT_NOT_FOUND"
	ErrCodeStatusNotFound          = "STATUS_NOT_FOUND"
	ErrCodeCacheFailure            = "CACHE_FAILURE"
	ErrCodeEditHistoryInsufficient = "EDIT_HISTORY_INSUFFICIENT"
	ErrCodeMutationFailed          = "MUTATION_FAILED"
	ErrCodeInvalidLoadType         = "INVALID_LOAD_TYPE"
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeFeedPreviewFailed       = "FEED_PREVIEW_FAILED"
	ErrCodeSSRFBlocked             = "SSRF_BLOCKED"
	ErrCodePlaceholderNotFound     = "PLACEHOLDER_NOT_FOUND"
)

// NewNetworkError は通信失敗（タイムアウト、接続断など）のエラーを生成する。
func NewNetworkError(cause error) *APIError {
	return &APIError{
		Code:      ErrCodeNetwork,
		Message:   "サーバーとの通信に失敗しました。",
		Category:  "network",
		Action:    "接続を確認して再試行してください。",
		Retryable: true,
		Cause:     cause,
	}
}

// NewHTTPError はサーバーが異常ステータスを返した場合のエラーを生成する。
// 認証エラー・存在しないリソース・422（検証エラー）以外は再試行可能とする。
func NewHTTPError(statusCode int, body string) *APIError {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewUnauthorizedError()
	case http.StatusNotFound, http.StatusGone:
		return &APIError{
			Code:     ErrCodeStatusNotFound,
			Message:  "指定されたリソースがサーバーに存在しません。",
			Category: "data",
			Action:   "投稿が削除された可能性があります。",
		}
	case http.StatusTooManyRequests:
		return &APIError{
			Code:      ErrCodeRateLimited,
			Message:   "サーバーのレート制限に達しました。",
			Category:  "network",
			Action:    "しばらく待ってから再試行してください。",
			Retryable: true,
		}
	}
	return &APIError{
		Code:      ErrCodeHTTP,
		Message:   fmt.Sprintf("サーバーがステータス %d を返しました: %s", statusCode, body),
		Category:  "network",
		Action:    "しばらく待ってから再試行してください。",
		Retryable: statusCode != http.StatusUnprocessableEntity,
	}
}

// NewMalformedResponseError はレスポンスボディを解釈できない場合のエラーを生成する。
func NewMalformedResponseError(cause error) *APIError {
	return &APIError{
		Code:      ErrCodeMalformedResponse,
		Message:   "サーバーの応答を解析できませんでした。",
		Category:  "network",
		Action:    "再試行してください。",
		Retryable: true,
		Cause:     cause,
	}
}

// NewUnauthorizedError はアクセストークンが無効な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "アクセストークンが無効です。",
		Category: "auth",
		Action:   "アカウントを再登録してください。",
	}
}

// NewAccountNotFoundError はログイン済みアカウントが見つからない場合のエラーを生成する。
func NewAccountNotFoundError(accountID string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  fmt.Sprintf("指定されたアカウントが見つかりません: %s", accountID),
		Category: "auth",
		Action:   "アカウントを登録し直してください。",
	}
}

// NewStatusNotFoundError はキャッシュ内に投稿が見つからない場合のエラーを生成する。
func NewStatusNotFoundError(statusID string) *APIError {
	return &APIError{
		Code:     ErrCodeStatusNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", statusID),
		Category: "data",
		Action:   "タイムラインを更新してください。",
	}
}

// NewPlaceholderNotFoundError は読み込み対象のギャップが既に存在しない場合のエラーを生成する。
func NewPlaceholderNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodePlaceholderNotFound,
		Message:  fmt.Sprintf("指定された未取得区間が見つかりません: %s", id),
		Category: "data",
		Action:   "タイムラインを更新してください。",
	}
}

// NewCacheFailureError はローカルキャッシュの読み書きに失敗した場合のエラーを生成する。
func NewCacheFailureError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeCacheFailure,
		Message:  "ローカルキャッシュの操作に失敗しました。",
		Category: "cache",
		Action:   "アプリを再起動してください。",
		Cause:    cause,
	}
}

// NewEditHistoryInsufficientError は編集履歴が2件未満しか返されなかった場合のエラーを生成する。
// 通信エラーではなくサーバー側のデータ欠落を表す。
func NewEditHistoryInsufficientError(count int) *APIError {
	return &APIError{
		Code:     ErrCodeEditHistoryInsufficient,
		Message:  fmt.Sprintf("編集履歴が不完全です（%d件）。", count),
		Category: "data",
		Action:   "サーバー側の履歴が欠落しているため差分を表示できません。",
	}
}

// NewMutationFailedError は楽観的更新がサーバーに拒否された場合のエラーを生成する。
// 自動再試行は行わず、ユーザーが操作をやり直す。
func NewMutationFailedError(action string, cause error) *APIError {
	return &APIError{
		Code:      ErrCodeMutationFailed,
		Message:   fmt.Sprintf("操作に失敗したため元に戻しました: %s", action),
		Category:  "network",
		Action:    "もう一度操作してください。",
		Retryable: true,
		Cause:     cause,
	}
}

// NewInvalidLoadTypeError は不正なロード方向が指定された場合のエラーを生成する。
func NewInvalidLoadTypeError(loadType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLoadType,
		Message:  fmt.Sprintf("無効なロード方向です: %s", loadType),
		Category: "validation",
		Action:   "load には refresh、append、prepend のいずれかを指定してください。",
	}
}

// NewInvalidRequestError はリクエストの内容が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewFeedPreviewFailedError は外部フィードのプレビュー取得に失敗した場合のエラーを生成する。
func NewFeedPreviewFailedError(reason string) *APIError {
	return &APIError{
		Code:      ErrCodeFeedPreviewFailed,
		Message:   fmt.Sprintf("フィードの取得に失敗しました: %s", reason),
		Category:  "network",
		Action:    "URLを確認して再試行してください。",
		Retryable: true,
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているサーバーのURLを入力してください。",
	}
}

// IsRetryable はエラーが再試行可能なAPIErrorかどうかを返す。
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

// AsServiceError はサービス層から返すエラーを正規化する。
// APIError とコンテキストの終了はそのまま返し、それ以外はキャッシュ障害として扱う。
func AsServiceError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return NewCacheFailureError(err)
}
