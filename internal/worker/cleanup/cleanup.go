// Package cleanup はキャッシュの自動削除ジョブを提供する。
// アカウントごとにタイムラインを最新N件に切り詰め、保持期間を超えた通知と
// どこからも参照されなくなった投稿・アカウントを日次バッチで削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/mastosync/internal/metrics"
	"github.com/hitoshi/mastosync/internal/model"
)

// AccountLister は削除対象のアカウントを列挙する。
type AccountLister interface {
	List(ctx context.Context) ([]*model.Account, error)
}

// TimelineCleaner はタイムラインの古いエントリを削除する。
type TimelineCleaner interface {
	Cleanup(ctx context.Context, accountID string, keep int) (int64, error)
}

// NotificationCleaner は古い通知を削除する。
type NotificationCleaner interface {
	Cleanup(ctx context.Context, accountID string, olderThan time.Time) (int64, error)
}

// CleanupJob はキャッシュの肥大化を防ぐ削除ジョブ。
// 冪等で、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	accounts      AccountLister
	timelines     TimelineCleaner
	notifications NotificationCleaner
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	KeepEntries   int // タイムラインごとに残すエントリ数（デフォルト: 1000）
	RetentionDays int // 通知の保持日数（デフォルト: 30）
	now           func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(
	accounts AccountLister,
	timelines TimelineCleaner,
	notifications NotificationCleaner,
	m metrics.MetricsCollector,
	logger *slog.Logger,
) *CleanupJob {
	if m == nil {
		m = metrics.Nop{}
	}
	return &CleanupJob{
		accounts:      accounts,
		timelines:     timelines,
		notifications: notifications,
		metrics:       m,
		logger:        logger,
		KeepEntries:   1000,
		RetentionDays: 30,
		now:           time.Now,
	}
}

// Start は指定間隔でジョブを実行する。コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Run は全アカウントのキャッシュを削除する。
// 1アカウントの失敗で残りのアカウントを止めず、失敗はまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	accounts, err := j.accounts.List(ctx)
	if err != nil {
		return fmt.Errorf("アカウント一覧の取得に失敗: %w", err)
	}

	cutoff := start.AddDate(0, 0, -j.RetentionDays)
	var (
		total int64
		errs  []error
	)
	for _, a := range accounts {
		n, err := j.cleanAccount(ctx, a.ID, cutoff)
		total += n
		if err != nil {
			j.logger.Error("アカウントのクリーンアップに失敗しました",
				slog.String("account_id", a.ID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	j.metrics.RecordCleanupDeleted(total)

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int("account_count", len(accounts)),
		slog.Int64("deleted_count", total),
		slog.Int("keep_entries", j.KeepEntries),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return errors.Join(errs...)
}

func (j *CleanupJob) cleanAccount(ctx context.Context, accountID string, cutoff time.Time) (int64, error) {
	entries, err := j.timelines.Cleanup(ctx, accountID, j.KeepEntries)
	if err != nil {
		return 0, fmt.Errorf("タイムラインのクリーンアップに失敗: %w", err)
	}
	notifications, err := j.notifications.Cleanup(ctx, accountID, cutoff)
	if err != nil {
		return entries, fmt.Errorf("通知のクリーンアップに失敗: %w", err)
	}
	return entries + notifications, nil
}
