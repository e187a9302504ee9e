package feed

import (
	"context"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/anonto42/shunye-ott/backend/internal/repositories"
)

// Cursor marks the last item seen. The zero Cursor means "from the newest item".
// The id breaks ties between items created at the same instant.
type Cursor struct {
	createdAt time.Time
	id        string
}

// CursorAt builds a cursor positioned after the item (t, id)
func CursorAt(t time.Time, id string) Cursor {
	return Cursor{createdAt: t, id: id}
}

// IsZero reports whether the cursor points at the head of the feed
func (c Cursor) IsZero() bool {
	return c.createdAt.IsZero()
}

// Time is the creation marker the next page starts after
func (c Cursor) Time() time.Time {
	return c.createdAt
}

// ID is the id of the last item seen
func (c Cursor) ID() string {
	return c.id
}

// Page is one fetch result, newest first
type Page struct {
	Items     []models.FeedItem
	Cursor    Cursor
	Exhausted bool
}

// NewPage derives the cursor and exhaustion signal from a fetched item list
func NewPage(items []models.FeedItem, pageSize int) Page {
	page := Page{Items: items, Exhausted: len(items) < pageSize}
	if len(items) > 0 {
		last := items[len(items)-1]
		page.Cursor = CursorAt(last.CreatedAt, last.ID)
	}
	return page
}

// PageFetcher fetches one page older than cursor
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor Cursor, pageSize int) (Page, error)
}

// LikeWriter persists like counter changes
type LikeWriter interface {
	Increment(ctx context.Context, collection, id, field string, delta int64) error
}

// Source reads pages of one kind from a document-store collection
type Source struct {
	store      repositories.DocumentStore
	collection string
	kind       models.Kind
	orderBy    string
	filters    []repositories.Filter
}

// NewSource creates a Source ordered by orderBy descending
func NewSource(store repositories.DocumentStore, collection string, kind models.Kind, orderBy string, filters ...repositories.Filter) *Source {
	return &Source{
		store:      store,
		collection: collection,
		kind:       kind,
		orderBy:    orderBy,
		filters:    filters,
	}
}

// Collection is the backing collection name
func (s *Source) Collection() string {
	return s.collection
}

// Kind is the kind of items the source yields
func (s *Source) Kind() models.Kind {
	return s.kind
}

// FetchPage queries the next page after cursor
func (s *Source) FetchPage(ctx context.Context, cursor Cursor, pageSize int) (Page, error) {
	items, err := s.store.QueryCollection(ctx, repositories.Query{
		Collection: s.collection,
		Kind:       s.kind,
		Filters:    s.filters,
		OrderBy:    s.orderBy,
		Descending: true,
		After:      cursor.Time(),
		AfterID:    cursor.ID(),
		Limit:      pageSize,
	})
	if err != nil {
		return Page{}, err
	}
	return NewPage(items, pageSize), nil
}

// Increment forwards like counter updates to the store
func (s *Source) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.store.Increment(ctx, collection, id, field, delta)
}
