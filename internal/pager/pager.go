// Package pager walks a message scope from newest to oldest, one page at a
// time, on behalf of a reader.
package pager

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/harryheman/slack-clone/internal/models"
)

const DefaultPageSize = 20

// State is what a reader can do next.
type State int

const (
	StateIdle State = iota
	StateLoadingFirstPage
	StateCanLoadMore
	StateLoadingMore
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingFirstPage:
		return "loading_first_page"
	case StateCanLoadMore:
		return "can_load_more"
	case StateLoadingMore:
		return "loading_more"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Fetcher returns one page of scope older than cursor. An empty cursor asks
// for the newest page.
type Fetcher interface {
	FetchMessages(ctx context.Context, scope models.Scope, cursor string, limit int) (*models.MessagePage, error)
}

// Pager accumulates pages of one scope. Pages are swapped in only after a
// fetch fully succeeds, so an abandoned or failed fetch leaves the loaded
// window untouched. When the server reports a smaller effective limit than
// the requested page size, the pager adopts it for every later fetch.
type Pager struct {
	fetcher  Fetcher
	scope    models.Scope
	pageSize int

	mu    sync.Mutex
	state State
	pages []models.MessagePage
	busy  bool
	gen   uint64
}

func New(fetcher Fetcher, scope models.Scope, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{fetcher: fetcher, scope: scope, pageSize: pageSize}
}

func (p *Pager) Scope() models.Scope { return p.scope }

// PageSize is the page size currently requested, after any server clamp.
func (p *Pager) PageSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pageSize
}

// effectiveSize narrows size to the limit the server applied to page.
func effectiveSize(size int, page *models.MessagePage) int {
	if page.Limit > 0 && page.Limit < size {
		return page.Limit
	}
	return size
}

// Load discards anything loaded and fetches the newest page. Fetches still
// in flight from before are dropped when they resolve.
func (p *Pager) Load(ctx context.Context) error {
	p.mu.Lock()
	prevState, prevPages := p.state, p.pages
	p.gen++
	gen := p.gen
	size := p.pageSize
	p.state = StateLoadingFirstPage
	p.busy = true
	p.mu.Unlock()

	page, err := p.fetcher.FetchMessages(ctx, p.scope, "", size)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return nil
	}
	p.busy = false
	if err != nil {
		p.state, p.pages = settled(prevState, prevPages), prevPages
		return err
	}
	p.pageSize = effectiveSize(p.pageSize, page)
	p.pages = []models.MessagePage{*page}
	p.state = stateAfter(page)
	return nil
}

// LoadMore fetches the next older page. It is a no-op unless the pager is
// in StateCanLoadMore.
func (p *Pager) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateCanLoadMore || p.busy {
		p.mu.Unlock()
		return nil
	}
	cursor := p.pages[len(p.pages)-1].NextCursor
	gen := p.gen
	size := p.pageSize
	p.state = StateLoadingMore
	p.busy = true
	p.mu.Unlock()

	page, err := p.fetcher.FetchMessages(ctx, p.scope, cursor, size)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return nil
	}
	p.busy = false
	if err != nil {
		p.state = StateCanLoadMore
		return err
	}
	p.pageSize = effectiveSize(p.pageSize, page)
	p.pages = append(p.pages, *page)
	p.state = stateAfter(page)
	return nil
}

// Refresh re-reads the loaded window from the newest page, fetching as many
// pages as are currently loaded, and swaps it in. Items that arrived since
// the window was loaded are prepended and Exhausted is re-evaluated against
// the fresh tail. It is a no-op while another fetch is running.
func (p *Pager) Refresh(ctx context.Context) error {
	p.mu.Lock()
	if p.busy || (p.state != StateCanLoadMore && p.state != StateExhausted) {
		p.mu.Unlock()
		return nil
	}
	n := len(p.pages)
	gen := p.gen
	size := p.pageSize
	p.busy = true
	p.mu.Unlock()

	fresh := make([]models.MessagePage, 0, n)
	cursor := ""
	var err error
	for len(fresh) < n {
		var page *models.MessagePage
		page, err = p.fetcher.FetchMessages(ctx, p.scope, cursor, size)
		if err != nil {
			break
		}
		size = effectiveSize(size, page)
		fresh = append(fresh, *page)
		if page.Exhausted {
			break
		}
		cursor = page.NextCursor
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return nil
	}
	p.busy = false
	if err != nil {
		return err
	}
	if size < p.pageSize {
		p.pageSize = size
	}
	p.pages = fresh
	p.state = stateAfter(&fresh[len(fresh)-1])
	return nil
}

// Watch refreshes on every tick of interval and whenever notify fires,
// calling onChange with the new results when they differ. notify may be
// nil. It returns when ctx is done.
func (p *Pager) Watch(ctx context.Context, interval time.Duration, notify <-chan struct{}, onChange func([]models.MessageView)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := p.Results()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-notify:
		}
		if err := p.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		current := p.Results()
		if !reflect.DeepEqual(current, last) {
			last = current
			onChange(current)
		}
	}
}

// settled maps a state captured mid-fetch to the state it falls back to
// once that fetch has been dropped.
func settled(s State, pages []models.MessagePage) State {
	if s != StateLoadingFirstPage && s != StateLoadingMore {
		return s
	}
	if len(pages) == 0 {
		return StateIdle
	}
	return stateAfter(&pages[len(pages)-1])
}

func stateAfter(page *models.MessagePage) State {
	if page.Exhausted {
		return StateExhausted
	}
	return StateCanLoadMore
}

// Results returns every loaded message, newest first.
func (p *Pager) Results() []models.MessageView {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.MessageView
	for _, page := range p.pages {
		out = append(out, page.Page...)
	}
	return out
}

func (p *Pager) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pager) CanLoadMore() bool   { return p.State() == StateCanLoadMore }
func (p *Pager) IsLoadingMore() bool { return p.State() == StateLoadingMore }
