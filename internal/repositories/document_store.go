package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/models"
)

// ErrDocumentNotFound is returned when an increment targets a missing document
var ErrDocumentNotFound = errors.New("document not found")

// Filter is an equality/comparison constraint on one field
type Filter struct {
	Field string
	Op    string // "==", "!=", ">", ">=", "<", "<="
	Value interface{}
}

// Query describes one page request against a collection.
// Results are ordered by OrderBy, ties broken by document id in the same
// direction. A non-zero After starts strictly after the (After, AfterID) pair.
type Query struct {
	Collection string
	Kind       models.Kind
	Filters    []Filter
	OrderBy    string
	Descending bool
	After      time.Time
	AfterID    string
	Limit      int
}

// follows reports whether an item at (t, id) comes strictly after the query bound
func (q Query) follows(t time.Time, id string) bool {
	if q.Descending {
		return t.Before(q.After) || (t.Equal(q.After) && id < q.AfterID)
	}
	return t.After(q.After) || (t.Equal(q.After) && id > q.AfterID)
}

// DocumentStore is the document-store contract the feeds depend on
type DocumentStore interface {
	QueryCollection(ctx context.Context, q Query) ([]models.FeedItem, error)
	Increment(ctx context.Context, collection, id, field string, delta int64) error
}
