package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/utils/errors"
)

const (
	earthRadiusMiles = 3963.2
	earthRadiusKm    = 6378.1

	metersToMiles = 0.000621371
	metersToKm    = 0.001
)

// TourDistance is one row of the distances report.
type TourDistance struct {
	ID       primitive.ObjectID `json:"id" bson:"_id"`
	Name     string             `json:"name" bson:"name"`
	Distance float64            `json:"distance" bson:"distance"`
}

type TourStats struct {
	Difficulty string  `json:"_id" bson:"_id"`
	NumTours   int     `json:"numTours" bson:"numTours"`
	NumRatings int     `json:"numRatings" bson:"numRatings"`
	AvgRating  float64 `json:"avgRating" bson:"avgRating"`
	AvgPrice   float64 `json:"avgPrice" bson:"avgPrice"`
	MinPrice   float64 `json:"minPrice" bson:"minPrice"`
	MaxPrice   float64 `json:"maxPrice" bson:"maxPrice"`
}

type MonthlyPlan struct {
	Month         int      `json:"month" bson:"month"`
	NumTourStarts int      `json:"numTourStarts" bson:"numTourStarts"`
	Tours         []string `json:"tours" bson:"tours"`
}

// AggregateFunc runs a pipeline and decodes every result into out.
type AggregateFunc func(ctx context.Context, pipeline mongo.Pipeline, out any) error

// CollectionAggregate adapts a collection to an AggregateFunc.
func CollectionAggregate(c *mongo.Collection) AggregateFunc {
	return func(ctx context.Context, pipeline mongo.Pipeline, out any) error {
		cursor, err := c.Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		return cursor.All(ctx, out)
	}
}

// TourService implements the geospatial and reporting queries on tours.
type TourService struct {
	tours     *TourFactory
	aggregate AggregateFunc
}

func NewTourService(tours *TourFactory, aggregate AggregateFunc) *TourService {
	return &TourService{tours: tours, aggregate: aggregate}
}

// GeoQuery is a parsed center point and unit.
type GeoQuery struct {
	Lat, Lng float64
	Unit     string
}

// ParseGeoQuery parses "lat,lng" and a unit. "mi" and "ml" mean miles; any
// other unit is kilometres.
func ParseGeoQuery(latlng, unit string) (GeoQuery, error) {
	parts := strings.Split(latlng, ",")
	if len(parts) != 2 {
		return GeoQuery{}, errors.Validation("Please provide latitude and longitude in the format lat,lng.")
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return GeoQuery{}, errors.Validation("Please provide latitude and longitude in the format lat,lng.")
	}
	if unit != "mi" && unit != "ml" {
		unit = "km"
	}
	return GeoQuery{Lat: lat, Lng: lng, Unit: unit}, nil
}

func (g GeoQuery) miles() bool {
	return g.Unit != "km"
}

// Radius converts a distance into radians on the earth's surface.
func (g GeoQuery) Radius(distance float64) float64 {
	if g.miles() {
		return distance / earthRadiusMiles
	}
	return distance / earthRadiusKm
}

// Multiplier converts $geoNear meters into the query unit.
func (g GeoQuery) Multiplier() float64 {
	if g.miles() {
		return metersToMiles
	}
	return metersToKm
}

// ToursWithin lists tours starting within distance of the center.
func (s *TourService) ToursWithin(ctx context.Context, distance string, g GeoQuery) ([]*models.Tour, error) {
	d, err := strconv.ParseFloat(distance, 64)
	if err != nil || d < 0 {
		return nil, errors.Validation(fmt.Sprintf("Invalid distance: %s", distance))
	}
	filter := bson.M{"startLocation": bson.M{"$geoWithin": bson.M{
		"$centerSphere": bson.A{bson.A{g.Lng, g.Lat}, g.Radius(d)},
	}}}
	res, err := s.tours.GetAll(ctx, QueryFeatures{Page: 1}, filter)
	if err != nil {
		return nil, err
	}
	return res.Docs, nil
}

// Distances reports the distance from the center to every tour's start.
func (s *TourService) Distances(ctx context.Context, g GeoQuery) ([]TourDistance, error) {
	out := []TourDistance{}
	if err := s.aggregate(ctx, distancesPipeline(g), &out); err != nil {
		return nil, storeError(err)
	}
	return out, nil
}

func (s *TourService) Stats(ctx context.Context) ([]TourStats, error) {
	out := []TourStats{}
	if err := s.aggregate(ctx, statsPipeline(), &out); err != nil {
		return nil, storeError(err)
	}
	return out, nil
}

func (s *TourService) MonthlyPlan(ctx context.Context, year string) ([]MonthlyPlan, error) {
	y, err := strconv.Atoi(year)
	if err != nil || y < 1 || y > 9999 {
		return nil, errors.Validation(fmt.Sprintf("Invalid year: %s", year))
	}
	out := []MonthlyPlan{}
	if err := s.aggregate(ctx, monthlyPlanPipeline(y), &out); err != nil {
		return nil, storeError(err)
	}
	return out, nil
}

// BySlug returns a visible tour with guides and reviews populated.
func (s *TourService) BySlug(ctx context.Context, slug string, populate ...Populator[models.Tour]) (*models.Tour, error) {
	tour, err := s.tours.FindOne(ctx, bson.M{"slug": slug}, populate...)
	if err != nil {
		if errors.StatusOf(err) == http.StatusNotFound {
			return nil, errors.NotFound("There is no tour with that name.")
		}
		return nil, err
	}
	return tour, nil
}

// Pipelines hide secret tours themselves; $geoNear must stay the first stage.
func distancesPipeline(g GeoQuery) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.D{
				{Key: "type", Value: "Point"},
				{Key: "coordinates", Value: bson.A{g.Lng, g.Lat}},
			}},
			{Key: "distanceField", Value: "distance"},
			{Key: "distanceMultiplier", Value: g.Multiplier()},
			{Key: "query", Value: VisibleTours},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "distance", Value: 1},
			{Key: "name", Value: 1},
		}}},
	}
}

func statsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: VisibleTours}},
		{{Key: "$match", Value: bson.D{{Key: "ratingsAverage", Value: bson.D{{Key: "$gte", Value: 4.5}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$toUpper", Value: "$difficulty"}}},
			{Key: "numTours", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "numRatings", Value: bson.D{{Key: "$sum", Value: "$ratingsQuantity"}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$ratingsAverage"}}},
			{Key: "avgPrice", Value: bson.D{{Key: "$avg", Value: "$price"}}},
			{Key: "minPrice", Value: bson.D{{Key: "$min", Value: "$price"}}},
			{Key: "maxPrice", Value: bson.D{{Key: "$max", Value: "$price"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "avgPrice", Value: 1}}}},
	}
}

func monthlyPlanPipeline(year int) mongo.Pipeline {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return mongo.Pipeline{
		{{Key: "$match", Value: VisibleTours}},
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.D{{Key: "startDates", Value: bson.D{
			{Key: "$gte", Value: from},
			{Key: "$lte", Value: to},
		}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$month", Value: "$startDates"}}},
			{Key: "numTourStarts", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "tours", Value: bson.D{{Key: "$push", Value: "$name"}}},
		}}},
		{{Key: "$addFields", Value: bson.D{{Key: "month", Value: "$_id"}}}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}}}},
		{{Key: "$limit", Value: 12}},
	}
}
