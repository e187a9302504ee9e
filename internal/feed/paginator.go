package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when an index or id does not address a loaded item
var ErrNotFound = errors.New("feed item not found")

// LoadStatus describes what a load request did
type LoadStatus string

const (
	LoadLoaded           LoadStatus = "loaded"
	LoadSkippedInFlight  LoadStatus = "skipped_in_flight"
	LoadSkippedExhausted LoadStatus = "skipped_exhausted"
	LoadSkippedThrottled LoadStatus = "skipped_throttled"
	LoadSkippedDistance  LoadStatus = "skipped_distance"
	LoadDiscarded        LoadStatus = "discarded"
	LoadFailed           LoadStatus = "failed"
)

// PaginatorState is a copy of the paginator's state
type PaginatorState struct {
	Items     []models.FeedItem
	Cursor    Cursor
	Exhausted bool
	Fetching  bool
	Err       error
}

// Paginator accumulates a deduplicated, fetch-ordered item list.
// At most one fetch is in flight; the fetch itself runs without the lock held.
type Paginator struct {
	mu       sync.Mutex
	source   PageFetcher
	pageSize int
	keep     func(models.FeedItem) bool
	log      zerolog.Logger

	items     []models.FeedItem
	seen      map[string]struct{}
	cursor    Cursor
	exhausted bool
	fetching  bool
	lastErr   error
	mounted   bool
}

// PaginatorOption configures a Paginator
type PaginatorOption func(*Paginator)

// WithItemFilter drops fetched items for which keep returns false.
// Exhaustion is still judged on the raw page size.
func WithItemFilter(keep func(models.FeedItem) bool) PaginatorOption {
	return func(p *Paginator) {
		p.keep = keep
	}
}

// NewPaginator creates a mounted Paginator
func NewPaginator(source PageFetcher, pageSize int, log zerolog.Logger, opts ...PaginatorOption) *Paginator {
	if pageSize <= 0 {
		pageSize = 10
	}
	p := &Paginator{
		source:   source,
		pageSize: pageSize,
		log:      log.With().Str("component", "paginator").Logger(),
		seen:     make(map[string]struct{}),
		mounted:  true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PageSize is the requested page size
func (p *Paginator) PageSize() int {
	return p.pageSize
}

// LoadNext fetches the page after the current cursor and merges it
func (p *Paginator) LoadNext(ctx context.Context) (LoadStatus, error) {
	return p.load(ctx, false, nil)
}

// Refresh clears the list and cursor and fetches the first page again.
// It is skipped while another fetch is in flight.
func (p *Paginator) Refresh(ctx context.Context) (LoadStatus, error) {
	return p.load(ctx, true, nil)
}

// RefreshWithReset is Refresh with a hook that runs once the refresh owns
// the fetch slot and the list is cleared, before the fetch starts. The hook
// runs without the paginator lock and is skipped when the refresh is.
func (p *Paginator) RefreshWithReset(ctx context.Context, reset func()) (LoadStatus, error) {
	return p.load(ctx, true, reset)
}

func (p *Paginator) load(ctx context.Context, force bool, reset func()) (status LoadStatus, err error) {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return LoadDiscarded, nil
	}
	if p.fetching {
		p.mu.Unlock()
		return LoadSkippedInFlight, nil
	}
	if p.exhausted && !force {
		p.mu.Unlock()
		return LoadSkippedExhausted, nil
	}
	if force {
		p.items = nil
		p.seen = make(map[string]struct{})
		p.cursor = Cursor{}
		p.exhausted = false
	}
	cursor := p.cursor
	p.fetching = true
	p.mu.Unlock()

	// Released on every path, including a panicking fetcher.
	defer func() {
		p.mu.Lock()
		p.fetching = false
		p.mu.Unlock()
	}()

	if reset != nil {
		reset()
	}

	page, fetchErr := p.source.FetchPage(ctx, cursor, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.mounted {
		return LoadDiscarded, nil
	}
	if fetchErr != nil {
		p.lastErr = fetchErr
		p.log.Warn().Err(fetchErr).Bool("refresh", force).Msg("page fetch failed")
		return LoadFailed, fetchErr
	}

	added := p.merge(page.Items)
	if len(page.Items) > 0 {
		p.cursor = page.Cursor
	}
	p.exhausted = page.Exhausted
	p.lastErr = nil

	p.log.Debug().
		Int("fetched", len(page.Items)).
		Int("added", added).
		Int("total", len(p.items)).
		Bool("exhausted", p.exhausted).
		Msg("page merged")
	return LoadLoaded, nil
}

// merge appends items whose id is new, preserving fetch order. Caller holds mu.
func (p *Paginator) merge(items []models.FeedItem) int {
	added := 0
	for _, it := range items {
		if _, dup := p.seen[it.ID]; dup {
			continue
		}
		if p.keep != nil && !p.keep(it) {
			continue
		}
		p.seen[it.ID] = struct{}{}
		p.items = append(p.items, it)
		added++
	}
	return added
}

// Len is the number of loaded items
func (p *Paginator) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Item returns a copy of the item at index
func (p *Paginator) Item(index int) (models.FeedItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.items) {
		return models.FeedItem{}, ErrNotFound
	}
	return p.items[index], nil
}

// Update applies fn to the item at index in place
func (p *Paginator) Update(index int, fn func(*models.FeedItem)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.items) {
		return ErrNotFound
	}
	fn(&p.items[index])
	return nil
}

// UpdateByID applies fn to the item with id in place
func (p *Paginator) UpdateByID(id string, fn func(*models.FeedItem)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.items {
		if p.items[i].ID == id {
			fn(&p.items[i])
			return nil
		}
	}
	return ErrNotFound
}

// State returns a copy of the paginator state
func (p *Paginator) State() PaginatorState {
	p.mu.Lock()
	defer p.mu.Unlock()
	items := make([]models.FeedItem, len(p.items))
	copy(items, p.items)
	return PaginatorState{
		Items:     items,
		Cursor:    p.cursor,
		Exhausted: p.exhausted,
		Fetching:  p.fetching,
		Err:       p.lastErr,
	}
}

// Mounted reports whether results are still accepted
func (p *Paginator) Mounted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounted
}

// Close stops accepting results; fetches resolving later are discarded
func (p *Paginator) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mounted = false
}
