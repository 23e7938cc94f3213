package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/mastosync/internal/model"
)

// timeline_accounts と statuses はタイムラインと通知の両方から参照されるため、
// 書き込みと読み取りの処理をここにまとめる。

var timelineAccountCols = []string{
	"server_id", "username", "acct", "display_name", "url", "avatar_url", "note", "bot", "emojis",
}

var statusCols = []string{
	"server_id", "url", "author_server_id", "in_reply_to_id", "in_reply_to_account_id",
	"content", "spoiler_text", "created_at", "edited_at",
	"reblogs_count", "favourites_count", "replies_count",
	"reblogged", "favourited", "bookmarked", "sensitive", "pinned", "muted",
	"attachments", "mentions", "tags", "poll", "card",
	"visibility", "language", "filtered",
	"expanded", "content_showing", "content_collapsed",
}

// viewStateCols はサーバーからの再取得で上書きしない列。
var viewStateCols = map[string]bool{
	"expanded":          true,
	"content_showing":   true,
	"content_collapsed": true,
}

// selectCols は alias を付けた列リストを返す。
func selectCols(alias string, cols []string) string {
	qualified := make([]string, len(cols))
	for i, c := range cols {
		qualified[i] = alias + "." + c
	}
	return strings.Join(qualified, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var upsertTimelineAccountSQL = func() string {
	sets := make([]string, 0, len(timelineAccountCols)-1)
	for _, c := range timelineAccountCols[1:] {
		sets = append(sets, c+" = excluded."+c)
	}
	return `INSERT INTO timeline_accounts (account_id, ` + strings.Join(timelineAccountCols, ", ") + `)
		VALUES (` + placeholders(len(timelineAccountCols)+1) + `)
		ON CONFLICT (account_id, server_id) DO UPDATE SET ` + strings.Join(sets, ", ")
}()

var upsertStatusSQL = func() string {
	sets := make([]string, 0, len(statusCols))
	for _, c := range statusCols[1:] {
		if viewStateCols[c] {
			continue
		}
		sets = append(sets, c+" = excluded."+c)
	}
	return `INSERT INTO statuses (account_id, ` + strings.Join(statusCols, ", ") + `)
		VALUES (` + placeholders(len(statusCols)+1) + `)
		ON CONFLICT (account_id, server_id) DO UPDATE SET ` + strings.Join(sets, ", ")
}()

// upsertTimelineAccount は投稿者・ブースト者のアカウントを保存する。
func upsertTimelineAccount(ctx context.Context, ex execer, accountID string, a *model.TimelineAccount) error {
	emojis, err := encodeJSON(a.Emojis)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, upsertTimelineAccountSQL,
		accountID, a.ServerID, a.Username, a.Acct, a.DisplayName, a.URL, a.AvatarURL,
		a.Note, boolToInt(a.Bot), emojis,
	)
	if err != nil {
		return fmt.Errorf("アカウント %s の保存に失敗しました: %w", a.ServerID, err)
	}
	return nil
}

// upsertStatus は投稿を保存する。既存行の表示状態は維持する。
func upsertStatus(ctx context.Context, ex execer, accountID string, s *model.Status) error {
	attachments, err := encodeJSON(s.Attachments)
	if err != nil {
		return err
	}
	mentions, err := encodeJSON(s.Mentions)
	if err != nil {
		return err
	}
	tags, err := encodeJSON(s.Tags)
	if err != nil {
		return err
	}
	filtered, err := encodeJSON(s.Filtered)
	if err != nil {
		return err
	}
	poll, err := encodeNullableJSON(s.Poll)
	if err != nil {
		return err
	}
	card, err := encodeNullableJSON(s.Card)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, upsertStatusSQL,
		accountID, s.ServerID, s.URL, s.AuthorServerID, s.InReplyToID, s.InReplyToAccountID,
		s.Content, s.SpoilerText, toMillis(s.CreatedAt), nullMillis(s.EditedAt),
		s.ReblogsCount, s.FavouritesCount, s.RepliesCount,
		boolToInt(s.Reblogged), boolToInt(s.Favourited), boolToInt(s.Bookmarked),
		boolToInt(s.Sensitive), boolToInt(s.Pinned), boolToInt(s.Muted),
		attachments, mentions, tags, poll, card,
		string(s.Visibility), s.Language, filtered,
		boolToInt(s.Expanded), boolToInt(s.ContentShowing), boolToInt(s.ContentCollapsed),
	)
	if err != nil {
		return fmt.Errorf("投稿 %s の保存に失敗しました: %w", s.ServerID, err)
	}
	return nil
}

// accountRow はLEFT JOINで欠損し得るアカウント列の読み取り先。
type accountRow struct {
	serverID, username, acct, displayName, url, avatarURL, note, emojis sql.NullString
	bot                                                                 sql.NullInt64
}

func (r *accountRow) dest() []any {
	return []any{
		&r.serverID, &r.username, &r.acct, &r.displayName, &r.url, &r.avatarURL,
		&r.note, &r.bot, &r.emojis,
	}
}

// toModel は行が存在しない（LEFT JOINで欠損した）場合にnilを返す。
func (r *accountRow) toModel() (*model.TimelineAccount, error) {
	if !r.serverID.Valid {
		return nil, nil
	}
	a := &model.TimelineAccount{
		ServerID:    r.serverID.String,
		Username:    nullStringValue(r.username),
		Acct:        nullStringValue(r.acct),
		DisplayName: nullStringValue(r.displayName),
		URL:         nullStringValue(r.url),
		AvatarURL:   nullStringValue(r.avatarURL),
		Note:        nullStringValue(r.note),
		Bot:         r.bot.Int64 != 0,
	}
	if err := decodeJSON(nullStringValue(r.emojis), &a.Emojis); err != nil {
		return nil, err
	}
	return a, nil
}

// statusRow はLEFT JOINで欠損し得る投稿列の読み取り先。
type statusRow struct {
	serverID, url, authorID, inReplyToID, inReplyToAccountID sql.NullString
	content, spoilerText                                     sql.NullString
	createdAt, editedAt                                      sql.NullInt64
	reblogsCount, favouritesCount, repliesCount              sql.NullInt64
	reblogged, favourited, bookmarked                        sql.NullInt64
	sensitive, pinned, muted                                 sql.NullInt64
	attachments, mentions, tags, poll, card                  sql.NullString
	visibility, language, filtered                           sql.NullString
	expanded, contentShowing, contentCollapsed               sql.NullInt64
}

func (r *statusRow) dest() []any {
	return []any{
		&r.serverID, &r.url, &r.authorID, &r.inReplyToID, &r.inReplyToAccountID,
		&r.content, &r.spoilerText, &r.createdAt, &r.editedAt,
		&r.reblogsCount, &r.favouritesCount, &r.repliesCount,
		&r.reblogged, &r.favourited, &r.bookmarked, &r.sensitive, &r.pinned, &r.muted,
		&r.attachments, &r.mentions, &r.tags, &r.poll, &r.card,
		&r.visibility, &r.language, &r.filtered,
		&r.expanded, &r.contentShowing, &r.contentCollapsed,
	}
}

func (r *statusRow) toModel() (*model.Status, error) {
	if !r.serverID.Valid {
		return nil, nil
	}
	s := &model.Status{
		ServerID:           r.serverID.String,
		URL:                nullStringValue(r.url),
		AuthorServerID:     nullStringValue(r.authorID),
		InReplyToID:        nullStringValue(r.inReplyToID),
		InReplyToAccountID: nullStringValue(r.inReplyToAccountID),
		Content:            nullStringValue(r.content),
		SpoilerText:        nullStringValue(r.spoilerText),
		CreatedAt:          fromMillis(r.createdAt.Int64),
		EditedAt:           nullTimeValue(r.editedAt),
		ReblogsCount:       int(r.reblogsCount.Int64),
		FavouritesCount:    int(r.favouritesCount.Int64),
		RepliesCount:       int(r.repliesCount.Int64),
		Reblogged:          r.reblogged.Int64 != 0,
		Favourited:         r.favourited.Int64 != 0,
		Bookmarked:         r.bookmarked.Int64 != 0,
		Sensitive:          r.sensitive.Int64 != 0,
		Pinned:             r.pinned.Int64 != 0,
		Muted:              r.muted.Int64 != 0,
		Visibility:         model.ParseVisibility(nullStringValue(r.visibility)),
		Language:           nullStringValue(r.language),
		Expanded:           r.expanded.Int64 != 0,
		ContentShowing:     r.contentShowing.Int64 != 0,
		ContentCollapsed:   r.contentCollapsed.Int64 != 0,
	}

	if err := decodeJSON(nullStringValue(r.attachments), &s.Attachments); err != nil {
		return nil, err
	}
	if err := decodeJSON(nullStringValue(r.mentions), &s.Mentions); err != nil {
		return nil, err
	}
	if err := decodeJSON(nullStringValue(r.tags), &s.Tags); err != nil {
		return nil, err
	}
	if err := decodeJSON(nullStringValue(r.filtered), &s.Filtered); err != nil {
		return nil, err
	}
	var err error
	if s.Poll, err = decodeNullableJSON[model.Poll](r.poll); err != nil {
		return nil, err
	}
	if s.Card, err = decodeNullableJSON[model.Card](r.card); err != nil {
		return nil, err
	}
	return s, nil
}

// notMutedOrBlocked は指定列のアカウントがミュートもブロックもされていないことを表す条件。
func notMutedOrBlocked(col string) string {
	return `NOT EXISTS (SELECT 1 FROM relationships r
		WHERE r.account_id = e.account_id AND r.target_server_id = ` + col + `
		  AND (r.muting = 1 OR r.blocking = 1))`
}
