package repositories

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/shunye-ott/backend/internal/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements DocumentStore for Cloud Firestore
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new FirestoreStore
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

var _ DocumentStore = (*FirestoreStore)(nil)

// QueryCollection runs an ordered, cursor-bounded, limited query
func (s *FirestoreStore) QueryCollection(ctx context.Context, q Query) ([]models.FeedItem, error) {
	query := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		query = query.Where(f.Field, f.Op, f.Value)
	}

	dir := firestore.Asc
	if q.Descending {
		dir = firestore.Desc
	}
	query = query.OrderBy(q.OrderBy, dir).OrderBy(firestore.DocumentID, dir)
	if !q.After.IsZero() {
		query = query.StartAfter(q.After, q.AfterID)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	items := make([]models.FeedItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, DecodeItem(q.Kind, doc.Ref.ID, doc.Data()))
	}
	return items, nil
}

// Increment atomically adds delta to a numeric field of a document
func (s *FirestoreStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, []firestore.Update{
		{Path: field, Value: firestore.Increment(delta)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("increment %s/%s.%s: %w", collection, id, field, err)
	}
	return nil
}
