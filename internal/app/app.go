package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/mastosync/internal/config"
	"github.com/hitoshi/mastosync/internal/database"
	"github.com/hitoshi/mastosync/internal/editdiff"
	"github.com/hitoshi/mastosync/internal/feedpreview"
	"github.com/hitoshi/mastosync/internal/handler"
	"github.com/hitoshi/mastosync/internal/listing"
	"github.com/hitoshi/mastosync/internal/logger"
	"github.com/hitoshi/mastosync/internal/metrics"
	"github.com/hitoshi/mastosync/internal/middleware"
	"github.com/hitoshi/mastosync/internal/mutation"
	"github.com/hitoshi/mastosync/internal/notification"
	"github.com/hitoshi/mastosync/internal/paging"
	"github.com/hitoshi/mastosync/internal/repository"
	"github.com/hitoshi/mastosync/internal/security"
	"github.com/hitoshi/mastosync/internal/session"
	"github.com/hitoshi/mastosync/internal/timeline"
	"github.com/hitoshi/mastosync/internal/worker/cleanup"
	"github.com/hitoshi/mastosync/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// 環境変数（と.envファイル）からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		writeUsage(w)
		return err
	}
	if cmd == CommandHelp {
		writeUsage(w)
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		addr := os.Getenv("SERVER_ADDR")
		if addr == "" {
			addr = "127.0.0.1:8765"
		}
		return runHealthcheck(addr)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("addr", cfg.ServerAddr),
		slog.String("database_path", cfg.DatabasePath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// components はserveとworkerで共有する依存関係一式。
type components struct {
	db       *sql.DB
	registry *prometheus.Registry
	metrics  *metrics.Collector
	tracker  *paging.InvalidationTracker

	accounts      *repository.SQLiteAccountRepo
	timelineRepo  *repository.SQLiteTimelineRepo
	notifRepo     *repository.SQLiteNotificationRepo
	sanitizer     *security.StatusSanitizer
	sessions      *session.Manager
	timelines     *timeline.Service
	notifications *notification.Service
}

// openComponents はキャッシュDBを開いてマイグレーションを適用し、
// リポジトリ・セッション・タイムライン系のサービスを組み立てる。
func openComponents(cfg *config.Config) (*components, error) {
	// 1. DB接続とマイグレーション
	if err := database.RunMigrations(cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. リポジトリの初期化。書き込みはトラッカー経由でページングソースを無効化する
	tracker := paging.NewInvalidationTracker()
	accountRepo := repository.NewSQLiteAccountRepo(db, tracker)
	timelineRepo := repository.NewSQLiteTimelineRepo(db, tracker)
	notifRepo := repository.NewSQLiteNotificationRepo(db, tracker)

	// 4. セッションとタイムライン系サービス
	sanitizer := security.NewContentSanitizer()
	sessions := session.NewManager(accountRepo, session.Config{
		HTTPClient:  &http.Client{Timeout: cfg.APITimeout},
		RatePerSec:  cfg.APIRatePerSec,
		Burst:       cfg.APIBurst,
		MaxBodySize: cfg.APIMaxBodySize,
		Sanitizer:   sanitizer,
		Metrics:     collector,
		Logger:      slog.Default(),
	})

	pagingCfg := paging.Config{PageSize: cfg.PageSize}
	viewCfg := timeline.ViewConfig{
		AlwaysShowSensitiveMedia: cfg.AlwaysShowSensitiveMedia,
		AlwaysOpenSpoiler:        cfg.AlwaysOpenSpoiler,
	}

	timelines := timeline.NewService(timelineRepo, tracker, timeline.ServiceConfig{
		Paging:  pagingCfg,
		View:    viewCfg,
		Metrics: collector,
		Logger:  slog.Default(),
	})
	notifications := notification.NewService(notifRepo, tracker, notification.ServiceConfig{
		Paging:       pagingCfg,
		ExcludeTypes: cfg.ExcludedNotificationTypes,
		View:         viewCfg,
		Metrics:      collector,
		Logger:       slog.Default(),
	})

	return &components{
		db:            db,
		registry:      reg,
		metrics:       collector,
		tracker:       tracker,
		accounts:      accountRepo,
		timelineRepo:  timelineRepo,
		notifRepo:     notifRepo,
		sanitizer:     sanitizer,
		sessions:      sessions,
		timelines:     timelines,
		notifications: notifications,
	}, nil
}

// startBackground は同期スケジューラとクリーンアップジョブをバックグラウンドで起動する。
// 返されるチャネルは両方のジョブが終了すると閉じられる。
func (c *components) startBackground(ctx context.Context, cfg *config.Config) <-chan struct{} {
	scheduler := refresh.NewScheduler(
		c.sessions, c.timelines, c.notifications, slog.Default(), cfg.SyncMaxConcurrent,
	)

	cleanupJob := cleanup.NewCleanupJob(c.sessions, c.timelineRepo, c.notifRepo, c.metrics, slog.Default())
	cleanupJob.KeepEntries = cfg.CleanupKeepEntries
	cleanupJob.RetentionDays = cfg.NotificationRetentionDays

	done := make(chan struct{})
	finished := make(chan struct{}, 2)
	go func() {
		scheduler.Start(ctx, cfg.SyncInterval)
		finished <- struct{}{}
	}()
	go func() {
		cleanupJob.Start(ctx, cfg.CleanupInterval)
		finished <- struct{}{}
	}()
	go func() {
		<-finished
		<-finished
		close(done)
	}()

	slog.Info("background sync started",
		slog.Duration("sync_interval", cfg.SyncInterval),
		slog.Int("max_concurrent", cfg.SyncMaxConcurrent),
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)
	return done
}

// runServe はループバックAPIサーバーモードで起動する。
// キャッシュの購読者が同期結果を受け取れるよう、同期ジョブも同じプロセスで動かす。
// コンテキストがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	c, err := openComponents(cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()

	// 1. 投稿・アカウント操作
	mutationTracker := mutation.NewTracker()
	statusActions := mutation.NewStatusActions(c.timelineRepo, mutationTracker, c.metrics, slog.Default())
	accountActions := mutation.NewAccountActions(mutation.AccountActionsConfig{
		Timelines:     c.timelineRepo,
		Notifications: c.notifRepo,
		Relationships: repository.NewSQLiteRelationshipRepo(c.db, c.tracker),
		Lists:         repository.NewSQLiteListMembershipRepo(c.db, c.tracker),
		Tracker:       mutationTracker,
		Metrics:       c.metrics,
		Logger:        slog.Default(),
	})

	// 2. ネットワークのみの一覧・編集履歴・リモートプレビュー
	listings := listing.NewService(c.tracker, listing.Config{
		Paging: paging.Config{PageSize: cfg.PageSize},
		View: timeline.ViewConfig{
			AlwaysShowSensitiveMedia: cfg.AlwaysShowSensitiveMedia,
			AlwaysOpenSpoiler:        cfg.AlwaysOpenSpoiler,
		},
		Logger: slog.Default(),
	})
	editHistory := editdiff.NewService(editdiff.NewRenderer(slog.Default()), cfg.CPUWorkers, slog.Default())
	ssrfGuard := security.NewSSRFGuard(cfg.FeedPreviewBlockPrivate)
	preview := feedpreview.NewService(ssrfGuard, c.sanitizer, slog.Default(), cfg.APITimeout, cfg.APIMaxBodySize)

	previewLimiter := middleware.NewRateLimiter(middleware.DefaultPreviewRateLimiterConfig())
	defer previewLimiter.Stop()

	// 3. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		Sessions:          c.sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		PreviewLimiter:    previewLimiter,
		HealthChecker:     c.db,
		MetricsHandler:    metrics.SetupMetricsRoute(c.registry),

		Accounts:       c.sessions,
		CacheForgetter: []handler.CacheForgetter{c.timelines, c.notifications},

		Timelines:     c.timelines,
		Notifications: c.notifications,

		StatusActions:  statusActions,
		EditHistory:    editHistory,
		AccountActions: accountActions,

		Listings: listings,
		Preview:  preview,
	}

	router := handler.NewRouter(deps)

	// 4. バックグラウンド同期
	bgCtx, cancelBackground := context.WithCancel(ctx)
	bgDone := c.startBackground(bgCtx, cfg)
	defer func() {
		cancelBackground()
		<-bgDone
	}()

	// 5. HTTPサーバーの起動。ストリーム応答があるためWriteTimeoutは設定しない
	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// APIサーバーを起動せずに同期スケジューラとクリーンアップジョブだけを実行する。
// コンテキストがキャンセルされるとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	c, err := openComponents(cfg)
	if err != nil {
		return err
	}
	defer c.db.Close()

	slog.Info("worker starting")

	<-c.startBackground(ctx, cfg)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_path", cfg.DatabasePath),
	)

	if err := database.RunMigrations(cfg.DatabasePath); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// 起動中のサーバーの /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(addr string) error {
	url := fmt.Sprintf("http://%s/health", addr)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
