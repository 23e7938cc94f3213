package mutation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/mastosync/internal/metrics"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/repository"
)

// StatusAction は投稿に対するユーザー操作の種類。
type StatusAction string

const (
	ActionFavourite StatusAction = "favourite"
	ActionReblog    StatusAction = "reblog"
	ActionBookmark  StatusAction = "bookmark"
	ActionMute      StatusAction = "mute"
	ActionPin       StatusAction = "pin"
)

// ParseStatusAction は文字列を StatusAction に変換する。
func ParseStatusAction(s string) (StatusAction, error) {
	switch a := StatusAction(s); a {
	case ActionFavourite, ActionReblog, ActionBookmark, ActionMute, ActionPin:
		return a, nil
	default:
		return "", model.NewInvalidRequestError("未知の操作です: " + s)
	}
}

// ParseViewStateField は文字列を表示状態の列に変換する。
func ParseViewStateField(s string) (repository.ViewStateField, error) {
	switch f := repository.ViewStateField(s); f {
	case repository.ViewExpanded, repository.ViewContentShowing, repository.ViewContentCollapsed:
		return f, nil
	default:
		return "", model.NewInvalidRequestError("未知の表示状態です: " + s)
	}
}

// StatusAPI は投稿の操作に使うMastodon APIのサブセット。
type StatusAPI interface {
	Favourite(ctx context.Context, id string) (*model.TimelinePageItem, error)
	Unfavourite(ctx context.Context, id string) (*model.TimelinePageItem, error)
	Reblog(ctx context.Context, id string) (*model.TimelinePageItem, error)
	Unreblog(ctx context.Context, id string) (*model.TimelinePageItem, error)
	Bookmark(ctx context.Context, id string) (*model.TimelinePageItem, error)
	Unbookmark(ctx context.Context, id string) (*model.TimelinePageItem, error)
	MuteConversation(ctx context.Context, id string) (*model.TimelinePageItem, error)
	UnmuteConversation(ctx context.Context, id string) (*model.TimelinePageItem, error)
	Pin(ctx context.Context, id string) (*model.TimelinePageItem, error)
	Unpin(ctx context.Context, id string) (*model.TimelinePageItem, error)
	DeleteStatus(ctx context.Context, id string) error
}

// StatusActions は投稿への操作を楽観的に反映する。
type StatusActions struct {
	repo    repository.TimelineRepository
	tracker *Tracker
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewStatusActions は StatusActions を生成する。
func NewStatusActions(repo repository.TimelineRepository, tracker *Tracker, m metrics.MetricsCollector, logger *slog.Logger) *StatusActions {
	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusActions{repo: repo, tracker: tracker, metrics: m, logger: logger}
}

// flagOf は投稿の現在のフラグ値を返す。
func flagOf(s *model.Status, action StatusAction) bool {
	switch action {
	case ActionFavourite:
		return s.Favourited
	case ActionReblog:
		return s.Reblogged
	case ActionBookmark:
		return s.Bookmarked
	case ActionMute:
		return s.Muted
	default:
		return s.Pinned
	}
}

func (a *StatusActions) patch(ctx context.Context, accountID, statusID string, action StatusAction, value bool) error {
	switch action {
	case ActionFavourite:
		return a.repo.SetFavourited(ctx, accountID, statusID, value)
	case ActionReblog:
		return a.repo.SetReblogged(ctx, accountID, statusID, value)
	case ActionBookmark:
		return a.repo.SetBookmarked(ctx, accountID, statusID, value)
	case ActionMute:
		return a.repo.SetStatusMuted(ctx, accountID, statusID, value)
	default:
		return a.repo.SetPinned(ctx, accountID, statusID, value)
	}
}

func call(ctx context.Context, api StatusAPI, statusID string, action StatusAction, value bool) (*model.TimelinePageItem, error) {
	type pair struct {
		on, off func(context.Context, string) (*model.TimelinePageItem, error)
	}
	calls := map[StatusAction]pair{
		ActionFavourite: {api.Favourite, api.Unfavourite},
		ActionReblog:    {api.Reblog, api.Unreblog},
		ActionBookmark:  {api.Bookmark, api.Unbookmark},
		ActionMute:      {api.MuteConversation, api.UnmuteConversation},
		ActionPin:       {api.Pin, api.Unpin},
	}
	p := calls[action]
	if value {
		return p.on(ctx, statusID)
	}
	return p.off(ctx, statusID)
}

// Set は投稿のフラグを value に変更する。
// キャッシュの行を即座に書き換えてからAPIを呼び、成功すればサーバーの値で確定し、
// 失敗すれば元の値へ戻して再試行可能な MUTATION_FAILED を返す。
// 戻り値は操作後のキャッシュの投稿（キャッシュに無い投稿の場合はサーバーの応答）。
func (a *StatusActions) Set(ctx context.Context, accountID string, api StatusAPI, statusID string, action StatusAction, value bool) (*model.Status, error) {
	cached, err := a.repo.FindStatus(ctx, accountID, statusID)
	if err != nil {
		return nil, model.NewCacheFailureError(err)
	}

	key := Key{AccountID: accountID, RowID: statusID, Action: string(action)}
	durable := false
	if cached != nil {
		durable = flagOf(cached, action)
	}
	ticket := a.tracker.Begin(key, durable, value)

	if cached != nil {
		if err := a.patch(ctx, accountID, statusID, action, value); err != nil && !errors.Is(err, repository.ErrNotFound) {
			a.tracker.Complete(ticket, true)
			return nil, model.NewCacheFailureError(err)
		}
	}

	item, apiErr := call(ctx, api, statusID, action, value)
	final, state := a.tracker.Complete(ticket, apiErr != nil)

	// 呼び出し元がキャンセルしても確定・取り消しはキャッシュへ反映する
	wctx := context.WithoutCancel(ctx)
	if apiErr != nil {
		a.metrics.RecordMutation(string(action), "rolled_back")
		if cached != nil {
			if err := a.patch(wctx, accountID, statusID, action, final); err != nil && !errors.Is(err, repository.ErrNotFound) {
				a.logger.Error("操作の取り消しに失敗しました",
					slog.String("account_id", accountID),
					slog.String("status_id", statusID),
					slog.String("action", string(action)),
					slog.String("error", err.Error()),
				)
			}
		}
		a.logger.Warn("操作がサーバーで失敗したため取り消しました",
			slog.String("account_id", accountID),
			slog.String("status_id", statusID),
			slog.String("action", string(action)),
			slog.String("error", apiErr.Error()),
		)
		return nil, model.NewMutationFailedError(string(action), apiErr)
	}
	a.metrics.RecordMutation(string(action), string(state))

	if cached == nil {
		if item == nil {
			return nil, nil
		}
		return &item.Status, nil
	}
	if item != nil && item.Status.ServerID == statusID {
		// カウンタはサーバーの値で上書きし、フラグは最後に届いた応答の値にそろえる
		server := item.Status
		setFlag(&server, action, final)
		if err := a.repo.ApplyServerStatus(wctx, accountID, &server); err != nil {
			return nil, model.NewCacheFailureError(err)
		}
	} else if err := a.patch(wctx, accountID, statusID, action, final); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, model.NewCacheFailureError(err)
	}

	updated, err := a.repo.FindStatus(wctx, accountID, statusID)
	if err != nil {
		return nil, model.NewCacheFailureError(err)
	}
	return updated, nil
}

func setFlag(s *model.Status, action StatusAction, value bool) {
	switch action {
	case ActionFavourite:
		s.Favourited = value
	case ActionReblog:
		s.Reblogged = value
	case ActionBookmark:
		s.Bookmarked = value
	case ActionMute:
		s.Muted = value
	default:
		s.Pinned = value
	}
}

// SetViewState は投稿のローカル表示状態を更新する。サーバーへは送らない。
func (a *StatusActions) SetViewState(ctx context.Context, accountID, statusID string, field repository.ViewStateField, value bool) error {
	if err := a.repo.SetViewState(ctx, accountID, statusID, field, value); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewStatusNotFoundError(statusID)
		}
		return model.NewCacheFailureError(err)
	}
	return nil
}

// Delete はサーバー上の投稿を削除し、成功した場合はキャッシュから投稿と参照を削除する。
// サーバーに既に存在しない場合も削除済みとして扱う。
func (a *StatusActions) Delete(ctx context.Context, accountID string, api StatusAPI, statusID string) error {
	if err := api.DeleteStatus(ctx, statusID); err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeStatusNotFound {
			a.metrics.RecordMutation("delete", "rolled_back")
			return model.NewMutationFailedError("delete", err)
		}
	}
	if err := a.repo.DeleteStatus(context.WithoutCancel(ctx), accountID, statusID); err != nil {
		return model.NewCacheFailureError(err)
	}
	a.metrics.RecordMutation("delete", string(StateConfirmed))
	return nil
}
