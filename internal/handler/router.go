package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mastosync/internal/middleware"
)

// HealthChecker はヘルスチェックでキャッシュDBの疎通を確認する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Sessions          middleware.SessionOpener
	CORSAllowedOrigin string
	PreviewLimiter    *middleware.RateLimiter

	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// アカウント
	Accounts       AccountServiceInterface
	CacheForgetter []CacheForgetter

	// タイムライン・通知
	Timelines     TimelineServiceInterface
	Notifications NotificationServiceInterface

	// 投稿・アカウント操作
	StatusActions  StatusActionsInterface
	EditHistory    EditHistoryInterface
	AccountActions AccountActionsInterface

	// ネットワークのみの一覧
	Listings ListingServiceInterface

	// リモートフィードのプレビュー
	Preview PreviewServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS
//
// /api/accounts/{accountID} 以下はアカウントミドルウェアでセッションを解決する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	accountHandler := NewAccountHandler(deps.Accounts, deps.CacheForgetter...)
	timelineHandler := NewTimelineHandler(deps.Timelines, deps.Notifications)
	statusHandler := NewStatusHandler(deps.StatusActions, deps.EditHistory)
	relHandler := NewRelationshipHandler(deps.AccountActions)
	listingHandler := NewListingHandler(deps.Listings)
	previewHandler := NewPreviewHandler(deps.Preview)

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// フィードのプレビュー（取得先ホストごとのレート制限）
	if deps.PreviewLimiter != nil {
		r.With(deps.PreviewLimiter.Middleware("preview", previewHostKey)).Get("/api/preview", previewHandler.GetPreview)
	} else {
		r.Get("/api/preview", previewHandler.GetPreview)
	}

	r.Route("/api/accounts", func(r chi.Router) {
		r.Get("/", accountHandler.ListAccounts)
		r.Post("/", accountHandler.RegisterAccount)
		r.Delete("/{accountID}", accountHandler.RemoveAccount)

		// アカウントごとのルート
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAccountMiddleware(deps.Sessions))

			// タイムライン
			r.Route("/{accountID}/timelines/{timeline}", func(r chi.Router) {
				r.Get("/", timelineHandler.LoadTimeline)
				r.Get("/stream", timelineHandler.StreamTimeline)
				r.Post("/placeholders/{id}/load", timelineHandler.LoadTimelinePlaceholder)
			})

			// 通知
			r.Route("/{accountID}/notifications", func(r chi.Router) {
				r.Get("/", timelineHandler.LoadNotifications)
				r.Get("/stream", timelineHandler.StreamNotifications)
				r.Post("/placeholders/{id}/load", timelineHandler.LoadNotificationPlaceholder)
			})

			// 投稿
			r.Route("/{accountID}/statuses/{id}", func(r chi.Router) {
				r.Delete("/", statusHandler.DeleteStatus)
				r.Get("/edits", statusHandler.GetEditHistory)
				r.Get("/edits/stream", statusHandler.StreamEditHistory)
				r.Put("/view", statusHandler.SetViewState)
				r.Put("/{action}", statusHandler.SetStatusFlag)
			})

			// ミュート・ブロック・フォロー解除
			r.Route("/{accountID}/relationships/{targetID}", func(r chi.Router) {
				r.Put("/", relHandler.SetRelationship)
				r.Post("/unfollow", relHandler.Unfollow)
			})

			// リスト所属
			r.Put("/{accountID}/lists/{listID}/members/{targetID}", relHandler.AddListMember)
			r.Delete("/{accountID}/lists/{listID}/members/{targetID}", relHandler.RemoveListMember)

			// 予約投稿
			r.Get("/{accountID}/scheduled_statuses", listingHandler.ListScheduledStatuses)
			r.Delete("/{accountID}/scheduled_statuses/{id}", listingHandler.DeleteScheduledStatus)

			// 検索
			r.Get("/{accountID}/search", listingHandler.Search)

			// 通知リクエスト
			r.Route("/{accountID}/notification_requests", func(r chi.Router) {
				r.Get("/", listingHandler.ListNotificationRequests)
				r.Post("/{id}/accept", listingHandler.AcceptNotificationRequest)
				r.Post("/{id}/dismiss", listingHandler.DismissNotificationRequest)
			})

			// 通報用の投稿一覧
			r.Get("/{accountID}/reports/{targetID}/statuses", listingHandler.ListReportStatuses)
		})
	})

	return r
}

// healthHandler はヘルスチェックのハンドラーを返す。
// キャッシュDBに接続できない場合は503を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
