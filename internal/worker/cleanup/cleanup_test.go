package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/mastosync/internal/model"
)

// --- モック定義 ---

type mockAccounts struct {
	listFunc func(ctx context.Context) ([]*model.Account, error)
}

func (m *mockAccounts) List(ctx context.Context) ([]*model.Account, error) {
	return m.listFunc(ctx)
}

type mockTimelines struct {
	cleanupFunc func(ctx context.Context, accountID string, keep int) (int64, error)
}

func (m *mockTimelines) Cleanup(ctx context.Context, accountID string, keep int) (int64, error) {
	return m.cleanupFunc(ctx, accountID, keep)
}

type mockNotifications struct {
	cleanupFunc func(ctx context.Context, accountID string, olderThan time.Time) (int64, error)
}

func (m *mockNotifications) Cleanup(ctx context.Context, accountID string, olderThan time.Time) (int64, error) {
	return m.cleanupFunc(ctx, accountID, olderThan)
}

type recordingMetrics struct {
	deleted int64
}

func (m *recordingMetrics) RecordMediatorLoad(kind, loadType, result string) {}
func (m *recordingMetrics) RecordAPIStatus(statusCode int) {}
func (m *recordingMetrics) RecordAPILatency(duration time.Duration) {}
func (m *recordingMetrics) RecordRowsMerged(count int) {}
func (m *recordingMetrics) RecordMutation(action, result string) {}
func (m *recordingMetrics) RecordCleanupDeleted(count int64) { m.deleted += count }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func twoAccounts(ctx context.Context) ([]*model.Account, error) {
	return []*model.Account{{ID: "a1"}, {ID: "a2"}}, nil
}

func TestNewCleanupJob_Defaults(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockAccounts{}, &mockTimelines{}, &mockNotifications{}, nil, newTestLogger(&buf))

	if job.KeepEntries != 1000 {
		t.Errorf("KeepEntries = %d, want 1000", job.KeepEntries)
	}
	if job.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", job.RetentionDays)
	}
}

// TestCleanupJob_Run_CleansEveryAccount は全アカウントで保持件数と保持期間が適用されることを検証する。
func TestCleanupJob_Run_CleansEveryAccount(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

	var keeps []int
	var cutoffs []time.Time
	timelines := &mockTimelines{cleanupFunc: func(ctx context.Context, accountID string, keep int) (int64, error) {
		keeps = append(keeps, keep)
		return 5, nil
	}}
	notifications := &mockNotifications{cleanupFunc: func(ctx context.Context, accountID string, olderThan time.Time) (int64, error) {
		cutoffs = append(cutoffs, olderThan)
		return 2, nil
	}}
	m := &recordingMetrics{}

	job := NewCleanupJob(&mockAccounts{listFunc: twoAccounts}, timelines, notifications, m, newTestLogger(&buf))
	job.KeepEntries = 200
	job.RetentionDays = 7
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(keeps) != 2 || keeps[0] != 200 {
		t.Errorf("keeps = %v, want [200 200]", keeps)
	}
	wantCutoff := now.AddDate(0, 0, -7)
	if len(cutoffs) != 2 || !cutoffs[0].Equal(wantCutoff) {
		t.Errorf("cutoffs = %v, want %v", cutoffs, wantCutoff)
	}
	if m.deleted != 14 {
		t.Errorf("deleted = %d, want 14", m.deleted)
	}

	// 完了ログに削除件数が含まれる
	var entry map[string]any
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("ログのパースに失敗: %v", err)
	}
	if entry["deleted_count"] != float64(14) {
		t.Errorf("deleted_count = %v, want 14", entry["deleted_count"])
	}
}

// TestCleanupJob_Run_ContinuesAfterAccountFailure は1アカウントの失敗で他のアカウントが止まらないことを検証する。
func TestCleanupJob_Run_ContinuesAfterAccountFailure(t *testing.T) {
	var buf bytes.Buffer
	var cleaned []string
	timelines := &mockTimelines{cleanupFunc: func(ctx context.Context, accountID string, keep int) (int64, error) {
		if accountID == "a1" {
			return 0, errors.New("database is locked")
		}
		cleaned = append(cleaned, accountID)
		return 1, nil
	}}
	notifications := &mockNotifications{cleanupFunc: func(ctx context.Context, accountID string, olderThan time.Time) (int64, error) {
		return 0, nil
	}}

	job := NewCleanupJob(&mockAccounts{listFunc: twoAccounts}, timelines, notifications, nil, newTestLogger(&buf))
	err := job.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "database is locked") {
		t.Errorf("失敗したアカウントのエラーを返すべき: %v", err)
	}
	if len(cleaned) != 1 || cleaned[0] != "a2" {
		t.Errorf("cleaned = %v, want [a2]", cleaned)
	}
}

func TestCleanupJob_Run_ListError(t *testing.T) {
	var buf bytes.Buffer
	accounts := &mockAccounts{listFunc: func(ctx context.Context) ([]*model.Account, error) {
		return nil, errors.New("boom")
	}}
	job := NewCleanupJob(accounts, &mockTimelines{}, &mockNotifications{}, nil, newTestLogger(&buf))
	if err := job.Run(context.Background()); err == nil {
		t.Error("アカウント一覧の取得失敗はエラーを返すべき")
	}
}

// TestCleanupJob_Run_Idempotent は削除対象がなくてもエラーにならないことを検証する。
func TestCleanupJob_Run_Idempotent(t *testing.T) {
	var buf bytes.Buffer
	timelines := &mockTimelines{cleanupFunc: func(ctx context.Context, accountID string, keep int) (int64, error) { return 0, nil }}
	notifications := &mockNotifications{cleanupFunc: func(ctx context.Context, accountID string, olderThan time.Time) (int64, error) {
		return 0, nil
	}}
	job := NewCleanupJob(&mockAccounts{listFunc: twoAccounts}, timelines, notifications, nil, newTestLogger(&buf))

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run #%d returned error: %v", i+1, err)
		}
	}
}
