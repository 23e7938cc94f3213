// Package refresh はログイン中アカウントのキャッシュをバックグラウンドで同期する。
// スケジューラと、失敗したアカウントのバックオフ戦略を含む。
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/notification"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/session"
	"github.com/hitoshi/mastosync/internal/timeline"
)

// AccountSource は同期対象のアカウントを提供する。
type AccountSource interface {
	Active(ctx context.Context) ([]*session.Session, error)
	MarkRefreshed(ctx context.Context, accountID string, at time.Time) error
}

// TimelineLoader はタイムラインの更新を実行する。
type TimelineLoader interface {
	Load(ctx context.Context, accountID string, api timeline.API, tl string, loadType paging.LoadType, key string) (*timeline.Page, error)
}

// NotificationRefresher は通知の更新を実行する。
type NotificationRefresher interface {
	Refresh(ctx context.Context, accountID string, api notification.API) error
}

// Scheduler はアカウントごとの同期のスケジューリングと並列制御を行う。
// 一定間隔のティッカーで有効なアカウントを取得し、
// semaphoreパターンで最大並列数を制御しながらホームタイムラインと通知を更新する。
type Scheduler struct {
	accounts       AccountSource
	timelines      TimelineLoader
	notifications  NotificationRefresher
	logger         *slog.Logger
	maxConcurrency int
	backoff        *backoffTable
	now            func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(
	accounts AccountSource,
	timelines TimelineLoader,
	notifications NotificationRefresher,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Scheduler{
		accounts:       accounts,
		timelines:      timelines,
		notifications:  notifications,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		backoff:        newBackoffTable(),
		now:            time.Now,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("同期サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は有効なアカウントを1回取得し、並列で同期を実行する。
// バックオフ中のアカウントはスキップする。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := s.now()

	sessions, err := s.accounts.Active(ctx)
	if err != nil {
		return err
	}

	due := make([]*session.Session, 0, len(sessions))
	for _, sess := range sessions {
		if s.backoff.Due(sess.Account.ID, start) {
			due = append(due, sess)
		}
	}
	if len(due) == 0 {
		s.logger.Info("同期対象のアカウントはありません",
			slog.Int("account_count", len(sessions)),
		)
		return nil
	}

	s.logger.Info("同期サイクルを開始します",
		slog.Int("account_count", len(due)),
		slog.Int("skipped", len(sessions)-len(due)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, sess := range due {
		wg.Add(1)
		sem <- struct{}{}

		go func(sess *session.Session) {
			defer wg.Done()
			defer func() { <-sem }()

			s.syncAccount(ctx, sess)
		}(sess)
	}

	wg.Wait()

	s.logger.Info("同期サイクルが完了しました",
		slog.Int("account_count", len(due)),
		slog.Float64("duration_ms", float64(s.now().Sub(start).Milliseconds())),
	)
	return nil
}

// syncAccount は1アカウントのホームタイムラインと通知を更新する。
// どちらかが失敗した場合はバックオフを適用する。
func (s *Scheduler) syncAccount(ctx context.Context, sess *session.Session) {
	accountID := sess.Account.ID

	_, timelineErr := s.timelines.Load(ctx, accountID, sess.Client, model.TimelineHome, paging.Refresh, "")
	notificationErr := s.notifications.Refresh(ctx, accountID, sess.Client)

	if err := errors.Join(timelineErr, notificationErr); err != nil {
		if ctx.Err() != nil {
			return
		}
		delay := s.backoff.Failure(accountID, s.now(), err)
		s.logger.Warn("アカウントの同期に失敗しました",
			slog.String("account_id", accountID),
			slog.Duration("retry_after", delay),
			slog.String("error", err.Error()),
		)
		return
	}

	s.backoff.Success(accountID)
	if err := s.accounts.MarkRefreshed(ctx, accountID, s.now()); err != nil {
		s.logger.Error("最終同期日時の更新に失敗しました",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	}
}
