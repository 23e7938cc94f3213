package paging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrInvalidated はソースの再生成を繰り返しても読み込みが完了しなかった場合に返される。
var ErrInvalidated = errors.New("paging: source invalidated repeatedly during load")

// 読み込み済みとして保持するページ数の上限
const maxRememberedPages = 5

// Config はPagerの設定。
type Config struct {
	PageSize          int // Append/Prependで読み込む件数
	InitialLoadSize   int // Refreshで読み込む件数。0の場合はPageSize
	MaxInvalidRetries int // 無効化時にソースを再生成して再試行する回数。0の場合は3
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 40
	}
	if c.InitialLoadSize <= 0 {
		c.InitialLoadSize = c.PageSize
	}
	if c.MaxInvalidRetries <= 0 {
		c.MaxInvalidRetries = 3
	}
	return c
}

// Loaded はPager.Loadの結果。
type Loaded[T any] struct {
	Page PageResult[T]
	// EndOfPaginationReached は要求方向にこれ以上データが無いことを表す。
	EndOfPaginationReached bool
}

// Snapshot は購読者に配信されるキャッシュの現在の内容。
type Snapshot[T any] struct {
	Items   []T
	PrevKey string
	NextKey string
	Err     error
}

// Pager はPagingSourceとRemoteMediatorを組み合わせてページを提供する。
// メディエーターの実行は1つのPagerにつき常に1つに直列化される。
type Pager[T any] struct {
	cfg       Config
	mediator  RemoteMediator[T]
	newSource func() PagingSource[T]
	logger    *slog.Logger

	mediatorMu sync.Mutex

	mu            sync.Mutex
	source        PagingSource[T]
	sourceVersion uint64
	state         PagingState[T]
}

// NewPager はPagerを生成する。
// mediatorがnilの場合はネットワークのみのソースとして動作する。
// newSourceはソースが無効化されるたびに呼び出される。
func NewPager[T any](cfg Config, mediator RemoteMediator[T], newSource func() PagingSource[T], logger *slog.Logger) *Pager[T] {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Pager[T]{
		cfg:       cfg,
		mediator:  mediator,
		newSource: newSource,
		logger:    logger,
		source:    newSource(),
		state:     PagingState[T]{AnchorPosition: -1, PageSize: cfg.PageSize},
	}
}

// Load は指定方向のページを読み込む。
// Refreshでは先にメディエーターで最新ページを取得する。Append/Prependではキャッシュが
// 要求件数に満たない場合のみメディエーターを呼び、キャッシュを読み直す。
// メディエーターが失敗した場合、キャッシュは変更されずエラーが返る。
func (p *Pager[T]) Load(ctx context.Context, loadType LoadType, key string) (*Loaded[T], error) {
	size := p.cfg.PageSize
	if loadType == Refresh {
		size = p.cfg.InitialLoadSize
	}
	params := LoadParams{Type: loadType, Key: key, LoadSize: size}

	var mediatorEnd bool
	if p.mediator != nil && loadType == Refresh {
		res, err := p.runMediator(ctx, Refresh)
		if err != nil {
			return nil, err
		}
		mediatorEnd = res.EndOfPaginationReached
	}

	page, err := p.loadFromSource(ctx, params)
	if err != nil {
		return nil, err
	}

	if p.mediator != nil && loadType != Refresh && len(page.Data) < size {
		res, err := p.runMediator(ctx, loadType)
		if err != nil {
			return nil, err
		}
		mediatorEnd = res.EndOfPaginationReached
		if !mediatorEnd {
			if page, err = p.loadFromSource(ctx, params); err != nil {
				return nil, err
			}
		}
	}

	end := directionKey(loadType, page) == ""
	if p.mediator != nil {
		end = end && mediatorEnd
	}

	p.remember(loadType, *page)
	return &Loaded[T]{Page: *page, EndOfPaginationReached: end}, nil
}

func directionKey[T any](loadType LoadType, page *PageResult[T]) string {
	if loadType == Prepend {
		return page.PrevKey
	}
	return page.NextKey
}

// RunExclusive はメディエーターと排他的に fn を実行する。
// プレースホルダーの読み込みなど、Pager外からキャッシュへマージする処理に使う。
func (p *Pager[T]) RunExclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	p.mediatorMu.Lock()
	defer p.mediatorMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func (p *Pager[T]) runMediator(ctx context.Context, loadType LoadType) (MediatorResult, error) {
	p.mediatorMu.Lock()
	defer p.mediatorMu.Unlock()

	if err := ctx.Err(); err != nil {
		return MediatorResult{}, err
	}
	return p.mediator.Load(ctx, loadType, p.State())
}

// loadFromSource はソースから読み込む。InvalidResult の場合はソースを再生成して再試行する。
func (p *Pager[T]) loadFromSource(ctx context.Context, params LoadParams) (*PageResult[T], error) {
	for attempt := 0; attempt <= p.cfg.MaxInvalidRetries; attempt++ {
		src, version := p.currentSource()

		switch r := src.Load(ctx, params).(type) {
		case PageResult[T]:
			return &r, nil
		case ErrorResult[T]:
			return nil, r.Err
		case InvalidResult[T]:
			p.logger.Debug("paging source invalidated, retrying",
				slog.String("load_type", params.Type.String()),
				slog.Int("attempt", attempt+1),
			)
			p.replaceSource(version)
		default:
			return nil, fmt.Errorf("paging: unexpected load result %T", r)
		}
	}
	return nil, ErrInvalidated
}

func (p *Pager[T]) currentSource() (PagingSource[T], uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source, p.sourceVersion
}

// replaceSource は version のソースがまだ現役であれば新しいソースに置き換える。
func (p *Pager[T]) replaceSource(version uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sourceVersion != version {
		return
	}
	p.source = p.newSource()
	p.sourceVersion++
}

// remember は読み込んだページを状態に反映する。アンカーは直近に読み込んだページの先頭。
func (p *Pager[T]) remember(loadType LoadType, page PageResult[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch loadType {
	case Refresh:
		p.state.Pages = []PageResult[T]{page}
		p.state.AnchorPosition = 0
	case Append:
		anchor := len(p.state.Items())
		p.state.Pages = append(p.state.Pages, page)
		if len(p.state.Pages) > maxRememberedPages {
			anchor -= len(p.state.Pages[0].Data)
			p.state.Pages = p.state.Pages[1:]
		}
		p.state.AnchorPosition = anchor
	case Prepend:
		p.state.Pages = append([]PageResult[T]{page}, p.state.Pages...)
		if len(p.state.Pages) > maxRememberedPages {
			p.state.Pages = p.state.Pages[:maxRememberedPages]
		}
		p.state.AnchorPosition = 0
	}
}

// State は現在の読み込み状態のコピーを返す。
func (p *Pager[T]) State() PagingState[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	pages := make([]PageResult[T], len(p.state.Pages))
	copy(pages, p.state.Pages)
	return PagingState[T]{Pages: pages, AnchorPosition: p.state.AnchorPosition, PageSize: p.state.PageSize}
}

func (p *Pager[T]) refreshKey() string {
	src, _ := p.currentSource()
	return src.RefreshKey(p.State())
}

// Subscribe はキャッシュの内容を購読する。
// 初回と、changes に通知が届くたびにアンカー位置からキャッシュを読み直して配信する。
// メディエーターは呼び出さない。ctxが終了するか changes が閉じられると返すチャネルは閉じられる。
func (p *Pager[T]) Subscribe(ctx context.Context, changes <-chan struct{}) <-chan Snapshot[T] {
	out := make(chan Snapshot[T], 1)

	go func() {
		defer close(out)

		emit := func() bool {
			params := LoadParams{Type: Refresh, Key: p.refreshKey(), LoadSize: p.cfg.InitialLoadSize}
			var snap Snapshot[T]
			page, err := p.loadFromSource(ctx, params)
			if err != nil {
				snap.Err = err
			} else {
				snap.Items, snap.PrevKey, snap.NextKey = page.Data, page.PrevKey, page.NextKey
				p.remember(Refresh, *page)
			}
			select {
			case out <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok || !emit() {
					return
				}
			}
		}
	}()

	return out
}
