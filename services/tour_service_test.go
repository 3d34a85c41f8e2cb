package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/utils/errors"
)

func TestParseGeoQuery(t *testing.T) {
	tests := []struct {
		name    string
		latlng  string
		unit    string
		wantErr bool
	}{
		{"miles", "34.111745,-118.113491", "mi", false},
		{"ml alias", "34.1,-118.1", "ml", false},
		{"km", "34.1,-118.1", "km", false},
		{"missing lng", "34.1", "mi", true},
		{"not numbers", "a,b", "mi", true},
		{"out of range", "95,10", "km", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGeoQuery(tt.latlng, tt.unit)
			if tt.wantErr {
				assert.Equal(t, http.StatusBadRequest, errors.StatusOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGeoQueryUnits(t *testing.T) {
	mi, err := ParseGeoQuery("34.1,-118.1", "mi")
	require.NoError(t, err)
	km, err := ParseGeoQuery("34.1,-118.1", "km")
	require.NoError(t, err)

	assert.InDelta(t, 250/3963.2, mi.Radius(250), 1e-12)
	assert.InDelta(t, 250/6378.1, km.Radius(250), 1e-12)
	assert.Equal(t, 0.000621371, mi.Multiplier())
	assert.Equal(t, 0.001, km.Multiplier())
	assert.Equal(t, -118.1, mi.Lng)

	other, err := ParseGeoQuery("34.1,-118.1", "yards")
	require.NoError(t, err)
	assert.Equal(t, "km", other.Unit)
	assert.Equal(t, km.Radius(250), other.Radius(250))
}

func TestToursWithin(t *testing.T) {
	ctx := context.Background()
	tc := newTestCatalog()
	svc := NewTourService(tc.Tours, nil)

	near := sampleTour("The Forest Hiker", 397)
	near.StartLocation = &models.Location{Coordinates: []float64{-116.214531, 51.417611}, Address: "Banff, CAN"}
	_, err := tc.Tours.CreateOne(ctx, near)
	require.NoError(t, err)
	far := sampleTour("The Sea Explorer", 497)
	far.StartLocation = &models.Location{Coordinates: []float64{-80.185942, 25.774772}, Address: "Miami, USA"}
	_, err = tc.Tours.CreateOne(ctx, far)
	require.NoError(t, err)
	_, err = tc.Tours.CreateOne(ctx, sampleTour("The Nowhere Tour", 100))
	require.NoError(t, err)

	// Calgary.
	g, err := ParseGeoQuery("51.0447,-114.0719", "mi")
	require.NoError(t, err)

	tours, err := svc.ToursWithin(ctx, "200", g)
	require.NoError(t, err)
	require.Len(t, tours, 1)
	assert.Equal(t, "The Forest Hiker", tours[0].Name)

	tours, err = svc.ToursWithin(ctx, "5000", g)
	require.NoError(t, err)
	assert.Len(t, tours, 2)

	_, err = svc.ToursWithin(ctx, "far", g)
	assert.Equal(t, http.StatusBadRequest, errors.StatusOf(err))
}

type capturedAggregate struct {
	pipeline mongo.Pipeline
	err      error
}

func (c *capturedAggregate) run(_ context.Context, pipeline mongo.Pipeline, _ any) error {
	c.pipeline = pipeline
	return c.err
}

func TestDistancesPipeline(t *testing.T) {
	agg := &capturedAggregate{}
	svc := NewTourService(nil, agg.run)
	g, err := ParseGeoQuery("34.1,-118.1", "km")
	require.NoError(t, err)

	out, err := svc.Distances(context.Background(), g)
	require.NoError(t, err)
	assert.NotNil(t, out)

	require.Len(t, agg.pipeline, 2)
	first := agg.pipeline[0][0]
	assert.Equal(t, "$geoNear", first.Key)
	geoNear := first.Value.(bson.D).Map()
	assert.Equal(t, 0.001, geoNear["distanceMultiplier"])
	assert.Equal(t, VisibleTours, geoNear["query"])
	assert.Equal(t, bson.A{-118.1, 34.1}, geoNear["near"].(bson.D).Map()["coordinates"])
}

func TestMonthlyPlanValidatesYear(t *testing.T) {
	agg := &capturedAggregate{}
	svc := NewTourService(nil, agg.run)

	_, err := svc.MonthlyPlan(context.Background(), "twenty")
	assert.Equal(t, http.StatusBadRequest, errors.StatusOf(err))
	assert.Nil(t, agg.pipeline)

	_, err = svc.MonthlyPlan(context.Background(), "2021")
	require.NoError(t, err)
	assert.Equal(t, "$match", agg.pipeline[0][0].Key, "secret tours are excluded first")
	last := agg.pipeline[len(agg.pipeline)-1][0]
	assert.Equal(t, "$limit", last.Key)
	assert.Equal(t, 12, last.Value)
}

func TestStatsAggregateFailure(t *testing.T) {
	svc := NewTourService(nil, (&capturedAggregate{err: assert.AnError}).run)

	_, err := svc.Stats(context.Background())
	assert.Equal(t, http.StatusInternalServerError, errors.StatusOf(err))
}

func TestBySlug(t *testing.T) {
	ctx := context.Background()
	tc := newTestCatalog()
	svc := NewTourService(tc.Tours, nil)

	_, err := tc.Tours.CreateOne(ctx, sampleTour("The Forest Hiker", 397))
	require.NoError(t, err)

	tour, err := svc.BySlug(ctx, "the-forest-hiker", tc.TourReviews())
	require.NoError(t, err)
	assert.Equal(t, "The Forest Hiker", tour.Name)

	_, err = svc.BySlug(ctx, "nope")
	assert.EqualError(t, err, "NOT_FOUND: There is no tour with that name.")
}
