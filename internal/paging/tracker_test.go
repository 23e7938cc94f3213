package paging

import (
	"context"
	"testing"
	"time"
)

func TestInvalidationTracker_GenerationAndStamp(t *testing.T) {
	tracker := NewInvalidationTracker()

	stamp := tracker.Snapshot("acct", "timeline_entries", "relationships")
	if stamp.Stale() {
		t.Fatal("変更前のStampはstaleであってはならない")
	}

	tracker.Invalidate("other", "timeline_entries")
	tracker.Invalidate("acct", "notifications")
	if stamp.Stale() {
		t.Error("別アカウント・別テーブルの変更でstaleになってはならない")
	}

	tracker.Invalidate("acct", "relationships")
	if !stamp.Stale() {
		t.Error("対象テーブルの変更でstaleになるべき")
	}
	if got := tracker.Generation("acct", "timeline_entries", "relationships"); got != 1 {
		t.Errorf("Generation = %d, want 1", got)
	}
}

func TestInvalidationTracker_Watch(t *testing.T) {
	tracker := NewInvalidationTracker()
	ctx, cancel := context.WithCancel(context.Background())

	ch := tracker.Watch(ctx, "acct", "notifications")

	// 連続した変更は1回の通知にまとめられる
	tracker.Invalidate("acct", "notifications")
	tracker.Invalidate("acct", "notifications")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("通知が届きませんでした")
	}
	select {
	case <-ch:
		t.Fatal("まとめられるべき通知が2回届きました")
	default:
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("キャンセル後は閉じられるべき")
		}
	case <-time.After(time.Second):
		t.Fatal("キャンセル後にチャネルが閉じられませんでした")
	}

	// 閉じた後の通知でpanicしないこと
	tracker.Invalidate("acct", "notifications")
}
