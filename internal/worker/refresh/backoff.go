package refresh

import (
	"errors"
	"sync"
	"time"

	"github.com/hitoshi/mastosync/internal/model"
)

const (
	// initialBackoff は指数バックオフの初回遅延（30秒）。
	initialBackoff = 30 * time.Second
	// maxBackoff は指数バックオフの最大遅延（30分）。
	maxBackoff = 30 * time.Minute
)

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30秒、2倍ずつ増加、最大30分。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// backoffDelay はエラーの種類に応じた待ち時間を返す。
// 再試行しても結果が変わらないエラー（トークン無効など）は最大遅延まで待つ。
func backoffDelay(err error, consecutiveErrors int) time.Duration {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && !apiErr.Retryable {
		return maxBackoff
	}
	return CalculateBackoff(consecutiveErrors - 1)
}

// accountBackoff はアカウントごとの連続失敗回数と次回実行時刻。
type accountBackoff struct {
	consecutiveErrors int
	nextAt            time.Time
}

// backoffTable はアカウントごとのバックオフ状態を保持する。
type backoffTable struct {
	mu      sync.Mutex
	entries map[string]*accountBackoff
}

func newBackoffTable() *backoffTable {
	return &backoffTable{entries: make(map[string]*accountBackoff)}
}

// Due はアカウントが同期対象かを返す。
func (t *backoffTable) Due(accountID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[accountID]
	return !ok || !now.Before(e.nextAt)
}

// Failure は失敗を記録し、次回までの待ち時間を返す。
func (t *backoffTable) Failure(accountID string, now time.Time, err error) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[accountID]
	if !ok {
		e = &accountBackoff{}
		t.entries[accountID] = e
	}
	e.consecutiveErrors++
	delay := backoffDelay(err, e.consecutiveErrors)
	e.nextAt = now.Add(delay)
	return delay
}

// Success は成功を記録してバックオフ状態をリセットする。
func (t *backoffTable) Success(accountID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, accountID)
}
