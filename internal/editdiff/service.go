package editdiff

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/hitoshi/mastosync/internal/model"
)

// StateKind は編集履歴の読み込み状態を表す。
type StateKind string

const (
	StateLoading StateKind = "loading"
	StateSuccess StateKind = "success"
	StateError   StateKind = "error"
)

// State は購読者に配信される読み込み状態。
type State struct {
	Kind   StateKind
	Result *Result
	Err    error
}

// API は編集履歴の取得に使うMastodon APIのサブセット。
type API interface {
	StatusEdits(ctx context.Context, id string) ([]model.StatusEdit, error)
}

// Service は編集履歴を取得し、差分の生成をCPU用のワーカー枠で実行する。
// 枠はHTTP通信とは別に管理され、同時に実行される差分生成の数を制限する。
type Service struct {
	renderer *Renderer
	cpu      chan struct{}
	logger   *slog.Logger
}

// NewService は Service を生成する。workers が0以下の場合はCPU数を使う。
func NewService(renderer *Renderer, workers int, logger *slog.Logger) *Service {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{renderer: renderer, cpu: make(chan struct{}, workers), logger: logger}
}

// Load は編集履歴を非同期に読み込む。
// 返すチャネルには Loading の後に Success か Error が1回だけ送られ、閉じられる。
// ctx が終了した場合、結果は破棄される。
func (s *Service) Load(ctx context.Context, api API, statusID string) <-chan State {
	out := make(chan State, 2)
	out <- State{Kind: StateLoading}

	go func() {
		defer close(out)
		result, err := s.Fetch(ctx, api, statusID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			out <- State{Kind: StateError, Err: err}
			return
		}
		out <- State{Kind: StateSuccess, Result: result}
	}()
	return out
}

// Fetch は編集履歴を取得して差分を生成する。
func (s *Service) Fetch(ctx context.Context, api API, statusID string) (*Result, error) {
	edits, err := api.StatusEdits(ctx, statusID)
	if err != nil {
		return nil, err
	}

	select {
	case s.cpu <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.cpu }()

	start := time.Now()
	result, err := s.renderer.Render(edits)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("編集履歴の差分を生成しました",
		slog.String("status_id", statusID),
		slog.Int("versions", len(result.Edits)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return result, nil
}
