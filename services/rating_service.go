package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dontidros/natours-project/logger"
	"github.com/dontidros/natours-project/models"
)

// RatingStats is the aggregate of all reviews of one tour.
type RatingStats struct {
	Quantity int     `bson:"nRating"`
	Average  float64 `bson:"avgRating"`
}

// RatingSource computes review statistics for a tour; nil means no reviews.
type RatingSource interface {
	RatingStats(ctx context.Context, tourID primitive.ObjectID) (*RatingStats, error)
}

// MongoRatingSource groups the reviews collection with an aggregation pipeline.
type MongoRatingSource struct {
	aggregate AggregateFunc
}

func NewMongoRatingSource(reviews *mongo.Collection) *MongoRatingSource {
	return &MongoRatingSource{aggregate: CollectionAggregate(reviews)}
}

func ratingPipeline(tourID primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "tour", Value: tourID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tour"},
			{Key: "nRating", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
		}}},
	}
}

func (s *MongoRatingSource) RatingStats(ctx context.Context, tourID primitive.ObjectID) (*RatingStats, error) {
	var stats []RatingStats
	if err := s.aggregate(ctx, ratingPipeline(tourID), &stats); err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, nil
	}
	return &stats[0], nil
}

// RatingAggregator keeps a tour's ratingsAverage and ratingsQuantity in step
// with its committed reviews.
type RatingAggregator struct {
	source RatingSource
	tours  Store[models.Tour]
}

func NewRatingAggregator(source RatingSource, tours Store[models.Tour]) *RatingAggregator {
	return &RatingAggregator{source: source, tours: tours}
}

// Recalculate recomputes and stores the statistics of one tour. A tour
// without reviews is reset to the defaults.
func (a *RatingAggregator) Recalculate(ctx context.Context, tourID primitive.ObjectID) error {
	stats, err := a.source.RatingStats(ctx, tourID)
	if err != nil {
		return fmt.Errorf("aggregating ratings of tour %s: %w", tourID.Hex(), err)
	}
	quantity, average := 0, models.DefaultRatingsAverage
	if stats != nil && stats.Quantity > 0 {
		quantity, average = stats.Quantity, models.RoundRating(stats.Average)
	}
	_, err = a.tours.Update(ctx, bson.M{"_id": tourID}, bson.M{"$set": bson.M{
		"ratingsQuantity": quantity,
		"ratingsAverage":  average,
	}})
	if err != nil {
		return fmt.Errorf("storing ratings of tour %s: %w", tourID.Hex(), err)
	}
	logger.DebugContext(ctx, "tour ratings recalculated", "tour", tourID.Hex(), "quantity", quantity, "average", average)
	return nil
}

// AfterCreate is the document effect registered for new reviews.
func (a *RatingAggregator) AfterCreate(ctx context.Context, review *models.Review) error {
	return a.Recalculate(ctx, review.Tour.ID)
}

// AfterMutate is the mutation effect registered for review updates and
// deletes. The tour comes from the document captured before the write, since
// a deleted review can no longer be read.
func (a *RatingAggregator) AfterMutate(ctx context.Context, before, after *models.Review) error {
	if err := a.Recalculate(ctx, before.Tour.ID); err != nil {
		return err
	}
	if after != nil && after.Tour.ID != before.Tour.ID {
		return a.Recalculate(ctx, after.Tour.ID)
	}
	return nil
}
