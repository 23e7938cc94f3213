// Package mutation はユーザー操作をキャッシュへ即時に反映し、サーバーの応答で確定または取り消す。
package mutation

import (
	"sync"

	"github.com/google/uuid"
)

// State は1つの操作対象（行と操作の種類）の状態を表す。
type State string

const (
	StateIdle       State = "idle"
	StatePending    State = "pending"
	StateConfirmed  State = "confirmed"
	StateRolledBack State = "rolled_back"
)

// Key は操作対象を識別する。
type Key struct {
	AccountID string
	RowID     string
	Action    string
}

// Ticket は1回の操作要求。Complete に渡して結果を確定する。
type Ticket struct {
	ID     string
	Key    Key
	Target bool
}

type entry struct {
	durable  bool
	current  bool
	inflight int
}

// Tracker は操作対象ごとに確定済みの値と実行中の要求数を保持する。
// 同じ対象への要求はキューに入れず、それぞれがサーバーへ送られる。
// 最後に応答が届いた要求の結果が最終的な状態になる。
type Tracker struct {
	mu      sync.Mutex
	entries map[Key]*entry
}

// NewTracker は Tracker を生成する。
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[Key]*entry)}
}

// Begin は楽観的な値 target を記録し、チケットを返す。
// durable は実行中の要求が無い場合の現在値で、既に実行中の要求があれば無視される。
func (t *Tracker) Begin(key Key, durable, target bool) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		e = &entry{durable: durable}
		t.entries[key] = e
	}
	e.current = target
	e.inflight++
	return Ticket{ID: uuid.NewString(), Key: key, Target: target}
}

// Complete は要求の結果を反映し、キャッシュへ書き込むべき値と状態を返す。
// 成功した場合はその要求の値が確定値になり、失敗した場合は確定値へ戻す。
func (t *Tracker) Complete(ticket Ticket, failed bool) (bool, State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[ticket.Key]
	if !ok {
		// 対応する Begin が無い場合は要求の値をそのまま扱う
		if failed {
			return !ticket.Target, StateRolledBack
		}
		return ticket.Target, StateConfirmed
	}

	state := StateConfirmed
	if failed {
		state = StateRolledBack
		e.current = e.durable
	} else {
		e.durable = ticket.Target
		e.current = ticket.Target
	}

	e.inflight--
	value := e.current
	if e.inflight <= 0 {
		delete(t.entries, ticket.Key)
	}
	return value, state
}

// Pending は操作対象に実行中の要求があるかと、その楽観的な値を返す。
func (t *Tracker) Pending(key Key) (value bool, pending bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return false, false
	}
	return e.current, true
}
