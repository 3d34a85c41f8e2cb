package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dontidros/natours-project/logger"
)

const (
	ToursCollection    = "tours"
	UsersCollection    = "users"
	ReviewsCollection  = "reviews"
	BookingsCollection = "bookings"
)

// Indexes lists the indexes each collection needs, by collection name.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		ToursCollection: {
			{Keys: bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}}},
			{Keys: bson.D{{Key: "slug", Value: 1}}},
			{Keys: bson.D{{Key: "startLocation", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ReviewsCollection: {
			{Keys: bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		BookingsCollection: {
			{Keys: bson.D{{Key: "user", Value: 1}}},
			{Keys: bson.D{{Key: "stripeSessionId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		},
	}
}

// EnsureIndexes creates missing indexes; existing ones are left alone.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for name, list := range Indexes() {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, list); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", name, err)
		}
		logger.Info("indexes ensured", "collection", name, "count", len(list))
	}
	return nil
}
