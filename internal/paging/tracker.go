package paging

import (
	"context"
	"sync"
)

type trackerKey struct {
	accountID string
	table     string
}

// InvalidationTracker はアカウント・テーブル単位の世代番号を管理する。
// リポジトリはコミット後に Invalidate を呼び、キャッシュを読むソースは世代の変化で無効化を検知する。
type InvalidationTracker struct {
	mu          sync.Mutex
	generations map[trackerKey]uint64
	watchers    map[trackerKey]map[chan struct{}]struct{}
}

// NewInvalidationTracker はInvalidationTrackerを生成する。
func NewInvalidationTracker() *InvalidationTracker {
	return &InvalidationTracker{
		generations: make(map[trackerKey]uint64),
		watchers:    make(map[trackerKey]map[chan struct{}]struct{}),
	}
}

// Invalidate は世代番号を進め、監視中のチャネルに通知する。
func (t *InvalidationTracker) Invalidate(accountID, table string) {
	key := trackerKey{accountID, table}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.generations[key]++
	for ch := range t.watchers[key] {
		// 未読の通知が既にあれば合流させる
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Generation は指定テーブル群の世代番号の合計を返す。
// 合計値が変化していれば、いずれかのテーブルが変更されている。
func (t *InvalidationTracker) Generation(accountID string, tables ...string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sum uint64
	for _, table := range tables {
		sum += t.generations[trackerKey{accountID, table}]
	}
	return sum
}

// Watch は指定テーブル群のいずれかが変更されるたびに通知を受け取るチャネルを返す。
// 連続した変更は1回の通知にまとめられることがある。ctxが終了するとチャネルは閉じられる。
func (t *InvalidationTracker) Watch(ctx context.Context, accountID string, tables ...string) <-chan struct{} {
	ch := make(chan struct{}, 1)

	t.mu.Lock()
	for _, table := range tables {
		key := trackerKey{accountID, table}
		if t.watchers[key] == nil {
			t.watchers[key] = make(map[chan struct{}]struct{})
		}
		t.watchers[key][ch] = struct{}{}
	}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		for _, table := range tables {
			key := trackerKey{accountID, table}
			delete(t.watchers[key], ch)
			if len(t.watchers[key]) == 0 {
				delete(t.watchers, key)
			}
		}
		close(ch)
		t.mu.Unlock()
	}()

	return ch
}

// Snapshot は現在の世代番号を記録した Stamp を返す。
func (t *InvalidationTracker) Snapshot(accountID string, tables ...string) Stamp {
	return Stamp{
		tracker:    t,
		accountID:  accountID,
		tables:     tables,
		generation: t.Generation(accountID, tables...),
	}
}

// Stamp はある時点の世代番号。以降に変更があったかを判定する。
type Stamp struct {
	tracker    *InvalidationTracker
	accountID  string
	tables     []string
	generation uint64
}

// Stale は記録後に対象テーブルが変更されていれば true を返す。
func (s Stamp) Stale() bool {
	if s.tracker == nil {
		return false
	}
	return s.tracker.Generation(s.accountID, s.tables...) != s.generation
}
