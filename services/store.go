package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNoDocument is returned by a Store when nothing matches the filter.
var ErrNoDocument = mongo.ErrNoDocuments

// Store is the persistence surface the factory works against.
type Store[T any] interface {
	Insert(ctx context.Context, doc *T) error
	FindOne(ctx context.Context, filter bson.M) (*T, error)
	Find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*T, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
	Update(ctx context.Context, filter bson.M, update bson.M) (bool, error)
	Delete(ctx context.Context, filter bson.M) (bool, error)
	DeleteMany(ctx context.Context, filter bson.M) (int64, error)
}

// MongoStore backs a Store with a MongoDB collection.
type MongoStore[T any] struct {
	collection *mongo.Collection
}

func NewMongoStore[T any](collection *mongo.Collection) *MongoStore[T] {
	return &MongoStore[T]{collection: collection}
}

func (s *MongoStore[T]) Collection() *mongo.Collection {
	return s.collection
}

func (s *MongoStore[T]) Insert(ctx context.Context, doc *T) error {
	_, err := s.collection.InsertOne(ctx, doc)
	return err
}

func (s *MongoStore[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	var doc T
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *MongoStore[T]) Find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*T, error) {
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []*T{}
	for cursor.Next(ctx) {
		var doc T
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, cursor.Err()
}

func (s *MongoStore[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.collection.CountDocuments(ctx, filter)
}

func (s *MongoStore[T]) Update(ctx context.Context, filter bson.M, update bson.M) (bool, error) {
	res, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore[T]) Delete(ctx context.Context, filter bson.M) (bool, error) {
	res, err := s.collection.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore[T]) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// IsDuplicateKey reports a unique index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

func isNoDocument(err error) bool {
	return errors.Is(err, ErrNoDocument)
}

// mergeFilters combines filters; a key present in more than one filter is
// combined with $and so an access filter can never be overridden by callers.
func mergeFilters(filters ...bson.M) bson.M {
	values := map[string][]any{}
	var keys []string
	for _, f := range filters {
		for k, v := range f {
			if _, seen := values[k]; !seen {
				keys = append(keys, k)
			}
			values[k] = append(values[k], v)
		}
	}

	out := bson.M{}
	var and []bson.M
	for _, k := range keys {
		if len(values[k]) == 1 {
			out[k] = values[k][0]
			continue
		}
		for _, v := range values[k] {
			and = append(and, bson.M{k: v})
		}
	}
	if len(and) > 0 {
		out["$and"] = and
	}
	return out
}
