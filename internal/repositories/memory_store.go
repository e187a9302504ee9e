package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/anonto42/shunye-ott/backend/internal/models"
)

// MemoryStore is an in-process DocumentStore used for local development and tests.
// Documents are always ordered by their decoded creation time, then id.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]memoryDoc
}

type memoryDoc struct {
	id     string
	fields map[string]interface{}
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]memoryDoc)}
}

var _ DocumentStore = (*MemoryStore)(nil)

// LoadMemoryStore reads a JSON seed file shaped {"collection": [{"id": "...", ...}]}
func LoadMemoryStore(path string) (*MemoryStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed map[string][]map[string]interface{}
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	store := NewMemoryStore()
	for collection, docs := range seed {
		for _, doc := range docs {
			id, _ := doc["id"].(string)
			delete(doc, "id")
			store.Put(collection, id, doc)
		}
	}
	return store, nil
}

// Put inserts or replaces a document
func (s *MemoryStore) Put(collection, id string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	for i := range docs {
		if docs[i].id == id {
			docs[i].fields = fields
			return
		}
	}
	s.collections[collection] = append(docs, memoryDoc{id: id, fields: fields})
}

// QueryCollection applies equality filters, the cursor bound and the limit
func (s *MemoryStore) QueryCollection(ctx context.Context, q Query) ([]models.FeedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.FeedItem, 0)
	for _, doc := range s.collections[q.Collection] {
		if !matches(doc.fields, q.Filters) {
			continue
		}
		items = append(items, DecodeItem(q.Kind, doc.id, doc.fields))
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if q.Descending {
			a, b = b, a
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if !q.After.IsZero() {
		start := len(items)
		for i, it := range items {
			if q.follows(it.CreatedAt, it.ID) {
				start = i
				break
			}
		}
		items = items[start:]
	}

	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

// Increment adds delta to a numeric field
func (s *MemoryStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.collections[collection] {
		doc := &s.collections[collection][i]
		if doc.id != id {
			continue
		}
		doc.fields[field] = intField(doc.fields, []string{field}) + delta
		return nil
	}
	return ErrDocumentNotFound
}

func matches(fields map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		v := fields[f.Field]
		equal := fmt.Sprint(v) == fmt.Sprint(f.Value)
		switch f.Op {
		case "==":
			if !equal {
				return false
			}
		case "!=":
			if equal {
				return false
			}
		}
	}
	return true
}
