package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/shunye-ott/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var mongoOps = map[string]string{
	"==": "$eq",
	"!=": "$ne",
	">":  "$gt",
	">=": "$gte",
	"<":  "$lt",
	"<=": "$lte",
}

// MongoStore implements DocumentStore for MongoDB
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore creates a new MongoStore
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

var _ DocumentStore = (*MongoStore)(nil)

// QueryCollection retrieves one page sorted by the order field
func (s *MongoStore) QueryCollection(ctx context.Context, q Query) ([]models.FeedItem, error) {
	filter := bson.M{}
	for _, f := range q.Filters {
		op, ok := mongoOps[f.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		filter[f.Field] = bson.M{op: f.Value}
	}

	sort := 1
	if q.Descending {
		sort = -1
	}
	if !q.After.IsZero() {
		bound := "$gt"
		if q.Descending {
			bound = "$lt"
		}
		// Start strictly after (After, AfterID) in sort order.
		filter["$or"] = bson.A{
			bson.M{q.OrderBy: bson.M{bound: q.After}},
			bson.M{q.OrderBy: q.After, "_id": bson.M{bound: documentKey(q.AfterID)}},
		}
	}

	findOptions := options.Find().SetSort(bson.D{
		{Key: q.OrderBy, Value: sort},
		{Key: "_id", Value: sort},
	})
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(q.Collection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", q.Collection, err)
	}

	items := make([]models.FeedItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, DecodeItem(q.Kind, documentID(doc["_id"]), doc))
	}
	return items, nil
}

// Increment adds delta to a numeric field of a document
func (s *MongoStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": documentKey(id)}, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return fmt.Errorf("increment %s/%s.%s: %w", collection, id, field, err)
	}
	if res.MatchedCount == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// documentKey turns an id string back into the stored _id value
func documentKey(id string) interface{} {
	if objID, err := primitive.ObjectIDFromHex(id); err == nil {
		return objID
	}
	return id
}

func documentID(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
