// Package editdiff は投稿の編集履歴について、版ごとの差分をマークアップとして生成する。
package editdiff

import (
	"fmt"
	"html"
	"log/slog"
	"slices"

	"github.com/hitoshi/mastosync/internal/model"
)

// RenderedEdit は差分を付けた編集履歴の1版。
// Content と SpoilerText は1つ古い版との差分（最古の版は元の内容）。
type RenderedEdit struct {
	Edit        model.StatusEdit `json:"edit"`
	Content     string           `json:"content"`
	SpoilerText string           `json:"spoiler_text"`
}

// Result は編集履歴の描画結果。新しい版から順に並ぶ。
// Diffed が false の場合、いずれかの版を解析できなかったため差分を付けずに返している。
type Result struct {
	Edits  []RenderedEdit `json:"edits"`
	Diffed bool           `json:"diffed"`
}

// Renderer は編集履歴の差分を生成する。状態を持たず、並行して使用できる。
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer は Renderer を生成する。
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// Render は編集履歴を新しい順に並べ、各版を1つ古い版と比較した差分を返す。
// 版が2つ未満の場合は EDIT_HISTORY_INSUFFICIENT を返す。
func (r *Renderer) Render(edits []model.StatusEdit) (*Result, error) {
	if len(edits) < 2 {
		return nil, model.NewEditHistoryInsufficientError(len(edits))
	}

	sorted := slices.Clone(edits)
	slices.SortStableFunc(sorted, func(a, b model.StatusEdit) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	rendered, err := diffAll(sorted)
	if err != nil {
		r.logger.Warn("編集履歴の差分生成に失敗したため、差分なしで表示します",
			slog.Int("versions", len(sorted)),
			slog.String("error", err.Error()),
		)
		return &Result{Edits: plain(sorted), Diffed: false}, nil
	}
	return &Result{Edits: rendered, Diffed: true}, nil
}

func diffAll(sorted []model.StatusEdit) ([]RenderedEdit, error) {
	tokens := make([][]token, len(sorted))
	for i := range sorted {
		t, err := tokenize(sorted[i].Content)
		if err != nil {
			return nil, fmt.Errorf("版 %d: %w", i, err)
		}
		tokens[i] = t
	}

	out := make([]RenderedEdit, len(sorted))
	last := len(sorted) - 1
	for i := 0; i < last; i++ {
		content, err := diffTokens(tokens[i+1], tokens[i])
		if err != nil {
			return nil, fmt.Errorf("版 %d: %w", i, err)
		}
		spoiler, err := diffTokens(tokenizeText(sorted[i+1].SpoilerText), tokenizeText(sorted[i].SpoilerText))
		if err != nil {
			return nil, fmt.Errorf("版 %d: %w", i, err)
		}
		out[i] = RenderedEdit{Edit: sorted[i], Content: renderOps(content), SpoilerText: renderOps(spoiler)}
	}
	out[last] = RenderedEdit{
		Edit:        sorted[last],
		Content:     sorted[last].Content,
		SpoilerText: html.EscapeString(sorted[last].SpoilerText),
	}
	return out, nil
}

func plain(sorted []model.StatusEdit) []RenderedEdit {
	out := make([]RenderedEdit, len(sorted))
	for i := range sorted {
		out[i] = RenderedEdit{
			Edit:        sorted[i],
			Content:     sorted[i].Content,
			SpoilerText: html.EscapeString(sorted[i].SpoilerText),
		}
	}
	return out
}
