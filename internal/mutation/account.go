package mutation

import (
	"context"
	"log/slog"

	"github.com/hitoshi/mastosync/internal/metrics"
	"github.com/hitoshi/mastosync/internal/model"
	"github.com/hitoshi/mastosync/internal/repository"
)

// AccountAPI はアカウント・リストの操作に使うMastodon APIのサブセット。
type AccountAPI interface {
	MuteAccount(ctx context.Context, id string, notifications bool) (*model.Relationship, error)
	UnmuteAccount(ctx context.Context, id string) (*model.Relationship, error)
	BlockAccount(ctx context.Context, id string) (*model.Relationship, error)
	UnblockAccount(ctx context.Context, id string) (*model.Relationship, error)
	Unfollow(ctx context.Context, id string) (*model.Relationship, error)
	AddToList(ctx context.Context, listID string, accountIDs ...string) error
	RemoveFromList(ctx context.Context, listID string, accountIDs ...string) error
}

// AccountActionsConfig は AccountActions の依存関係。
type AccountActionsConfig struct {
	Timelines     repository.TimelineRepository
	Notifications repository.NotificationRepository
	Relationships repository.RelationshipRepository
	Lists         repository.ListMembershipRepository
	Tracker       *Tracker
	Metrics       metrics.MetricsCollector
	Logger        *slog.Logger
}

// AccountActions はミュート・ブロック・フォロー解除・リスト所属の操作を楽観的に反映する。
type AccountActions struct {
	cfg AccountActionsConfig
}

// NewAccountActions は AccountActions を生成する。
func NewAccountActions(cfg AccountActionsConfig) *AccountActions {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracker == nil {
		cfg.Tracker = NewTracker()
	}
	return &AccountActions{cfg: cfg}
}

// RelationshipKind はミュートかブロックかを表す。
type RelationshipKind string

const (
	RelationshipMute  RelationshipKind = "mute"
	RelationshipBlock RelationshipKind = "block"
)

// SetRelationshipParams は SetRelationship の引数。
type SetRelationshipParams struct {
	TargetID string
	Kind     RelationshipKind
	Value    bool
	// MuteNotifications はミュート時に通知も非表示にするか。
	MuteNotifications bool
}

// SetRelationship は対象アカウントのミュートまたはブロックを切り替える。
// 関係をキャッシュへ即座に書き込むため、タイムラインからはすぐに見えなくなる。
// 成功した場合は対象のキャッシュ済みエントリを削除し、失敗した場合は関係を元に戻す。
func (a *AccountActions) SetRelationship(ctx context.Context, accountID string, api AccountAPI, p SetRelationshipParams) (*model.Relationship, error) {
	if p.TargetID == "" {
		return nil, model.NewInvalidRequestError("対象のアカウントが指定されていません")
	}
	if p.Kind != RelationshipMute && p.Kind != RelationshipBlock {
		return nil, model.NewInvalidRequestError("未知の関係です: " + string(p.Kind))
	}
	rels := a.cfg.Relationships

	current, err := rels.Find(ctx, accountID, p.TargetID)
	if err != nil {
		return nil, model.NewCacheFailureError(err)
	}
	durable := false
	if current != nil {
		durable = current.Muting
		if p.Kind == RelationshipBlock {
			durable = current.Blocking
		}
	}

	set := rels.SetMuting
	if p.Kind == RelationshipBlock {
		set = rels.SetBlocking
	}

	key := Key{AccountID: accountID, RowID: p.TargetID, Action: string(p.Kind)}
	ticket := a.cfg.Tracker.Begin(key, durable, p.Value)
	if err := set(ctx, accountID, p.TargetID, p.Value); err != nil {
		a.cfg.Tracker.Complete(ticket, true)
		return nil, model.NewCacheFailureError(err)
	}

	var (
		rel    *model.Relationship
		apiErr error
	)
	switch {
	case p.Kind == RelationshipMute && p.Value:
		rel, apiErr = api.MuteAccount(ctx, p.TargetID, p.MuteNotifications)
	case p.Kind == RelationshipMute:
		rel, apiErr = api.UnmuteAccount(ctx, p.TargetID)
	case p.Value:
		rel, apiErr = api.BlockAccount(ctx, p.TargetID)
	default:
		rel, apiErr = api.UnblockAccount(ctx, p.TargetID)
	}

	final, state := a.cfg.Tracker.Complete(ticket, apiErr != nil)
	wctx := context.WithoutCancel(ctx)
	if apiErr != nil {
		a.cfg.Metrics.RecordMutation(string(p.Kind), string(state))
		if err := set(wctx, accountID, p.TargetID, final); err != nil {
			a.cfg.Logger.Error("関係の取り消しに失敗しました",
				slog.String("account_id", accountID),
				slog.String("target_id", p.TargetID),
				slog.String("error", err.Error()),
			)
		}
		return nil, model.NewMutationFailedError(string(p.Kind), apiErr)
	}
	a.cfg.Metrics.RecordMutation(string(p.Kind), string(state))

	if err := set(wctx, accountID, p.TargetID, final); err != nil {
		return nil, model.NewCacheFailureError(err)
	}
	if final {
		a.purge(wctx, accountID, p.TargetID, p.Kind == RelationshipBlock || p.MuteNotifications)
	}

	if rel == nil {
		rel = &model.Relationship{TargetServerID: p.TargetID}
	}
	stored, err := rels.Find(wctx, accountID, p.TargetID)
	if err == nil && stored != nil {
		return stored, nil
	}
	return rel, nil
}

// purge は対象アカウントのキャッシュ済みエントリを削除する。
func (a *AccountActions) purge(ctx context.Context, accountID, targetID string, notifications bool) {
	removed, err := a.cfg.Timelines.DeleteByAuthor(ctx, accountID, "", targetID)
	if err != nil {
		a.cfg.Logger.Error("タイムラインからの削除に失敗しました",
			slog.String("account_id", accountID),
			slog.String("target_id", targetID),
			slog.String("error", err.Error()),
		)
	}
	if notifications {
		n, err := a.cfg.Notifications.DeleteByAccount(ctx, accountID, targetID)
		if err != nil {
			a.cfg.Logger.Error("通知からの削除に失敗しました",
				slog.String("account_id", accountID),
				slog.String("target_id", targetID),
				slog.String("error", err.Error()),
			)
		}
		removed += n
	}
	a.cfg.Logger.Info("アカウントのエントリをキャッシュから削除しました",
		slog.String("account_id", accountID),
		slog.String("target_id", targetID),
		slog.Int64("removed", removed),
	)
}

// Unfollow は対象アカウントのフォローを解除し、成功した場合はホームタイムラインからエントリを削除する。
func (a *AccountActions) Unfollow(ctx context.Context, accountID string, api AccountAPI, targetID string) (*model.Relationship, error) {
	if targetID == "" {
		return nil, model.NewInvalidRequestError("対象のアカウントが指定されていません")
	}
	rel, err := api.Unfollow(ctx, targetID)
	if err != nil {
		a.cfg.Metrics.RecordMutation("unfollow", string(StateRolledBack))
		return nil, model.NewMutationFailedError("unfollow", err)
	}
	a.cfg.Metrics.RecordMutation("unfollow", string(StateConfirmed))
	if _, err := a.cfg.Timelines.DeleteByAuthor(context.WithoutCancel(ctx), accountID, model.TimelineHome, targetID); err != nil {
		return nil, model.NewCacheFailureError(err)
	}
	return rel, nil
}

// SetListMember はリストへの所属を切り替える。所属はキャッシュへ即座に反映し、失敗した場合は元に戻す。
func (a *AccountActions) SetListMember(ctx context.Context, accountID string, api AccountAPI, listID, targetID string, member bool) error {
	if listID == "" || targetID == "" {
		return model.NewInvalidRequestError("リストと対象のアカウントを指定してください")
	}
	lists := a.cfg.Lists

	durable, err := lists.Contains(ctx, accountID, listID, targetID)
	if err != nil {
		return model.NewCacheFailureError(err)
	}
	apply := func(ctx context.Context, value bool) error {
		if value {
			return lists.Add(ctx, accountID, listID, targetID)
		}
		return lists.Remove(ctx, accountID, listID, targetID)
	}

	key := Key{AccountID: accountID, RowID: listID + ":" + targetID, Action: "list_member"}
	ticket := a.cfg.Tracker.Begin(key, durable, member)
	if err := apply(ctx, member); err != nil {
		a.cfg.Tracker.Complete(ticket, true)
		return model.NewCacheFailureError(err)
	}

	var apiErr error
	if member {
		apiErr = api.AddToList(ctx, listID, targetID)
	} else {
		apiErr = api.RemoveFromList(ctx, listID, targetID)
	}
	final, state := a.cfg.Tracker.Complete(ticket, apiErr != nil)
	a.cfg.Metrics.RecordMutation("list_member", string(state))

	if err := apply(context.WithoutCancel(ctx), final); err != nil {
		a.cfg.Logger.Error("リスト所属の反映に失敗しました",
			slog.String("account_id", accountID),
			slog.String("list_id", listID),
			slog.String("target_id", targetID),
			slog.String("error", err.Error()),
		)
		if apiErr == nil {
			return model.NewCacheFailureError(err)
		}
	}
	if apiErr != nil {
		return model.NewMutationFailedError("list_member", apiErr)
	}
	return nil
}
