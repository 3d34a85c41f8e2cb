package services

import (
	"context"
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseQueryOperatorsAndReservedKeys(t *testing.T) {
	values, err := url.ParseQuery("price[gte]=500&price[lt]=1000&difficulty=easy&sort=-ratingsAverage,price&limit=5&fields=name,price&page=2")
	require.NoError(t, err)

	q := ParseQuery(values)

	assert.Equal(t, bson.M{
		"price":      bson.M{"$gte": 500.0, "$lt": 1000.0},
		"difficulty": "easy",
	}, q.Filter)
	assert.Equal(t, bson.D{
		{Key: "ratingsAverage", Value: -1},
		{Key: "price", Value: 1},
		{Key: "_id", Value: 1},
	}, q.Sort)
	assert.Equal(t, bson.M{"name": 1, "price": 1}, q.Projection)
	assert.Equal(t, []string{"name", "price"}, q.Fields)
	assert.Equal(t, int64(5), q.Limit)
	assert.Equal(t, int64(5), q.Skip())
}

func TestParseQueryDefaults(t *testing.T) {
	q := ParseQuery(url.Values{})

	assert.Empty(t, q.Filter)
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}, q.Sort)
	assert.Equal(t, bson.M{"__v": 0}, q.Projection)
	assert.Equal(t, int64(DefaultPage), q.Page)
	assert.Equal(t, int64(DefaultLimit), q.Limit)
	assert.Equal(t, int64(0), q.Skip())
}

func TestParseQueryIgnoresBadPagination(t *testing.T) {
	q := ParseQuery(url.Values{"page": {"-3"}, "limit": {"abc"}})
	assert.Equal(t, int64(1), q.Page)
	assert.Equal(t, int64(100), q.Limit)
}

func TestSkipSaturatesOnHugePages(t *testing.T) {
	q := ParseQuery(url.Values{"page": {"92233720368547759"}, "limit": {"1000"}})
	assert.Equal(t, int64(math.MaxInt64), q.Skip())

	q = ParseQuery(url.Values{"page": {"3"}, "limit": {"10"}})
	assert.Equal(t, int64(20), q.Skip())

	tc := newTestCatalog()
	_, err := tc.Tours.CreateOne(context.Background(), sampleTour("The Forest Hiker", 397))
	require.NoError(t, err)
	list, err := tc.Tours.GetAll(context.Background(), ParseQuery(url.Values{"page": {"9223372036854775807"}, "limit": {"2"}}), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, list.Results)
	assert.Empty(t, list.Docs)
}

func TestParseQueryDuplicatesBecomeIn(t *testing.T) {
	q := ParseQuery(url.Values{"duration": {"5", "9"}})
	assert.Equal(t, bson.M{"$in": bson.A{5.0, 9.0}}, q.Filter["duration"])
}

func TestParseQueryDropsOperatorInjection(t *testing.T) {
	q := ParseQuery(url.Values{
		"$where":       {"sleep(1000)"},
		"price[$ne]":   {"1"},
		"price[gte]":   {"10"},
		"name[$regex]": {".*"},
	})
	assert.Equal(t, bson.M{"price": bson.M{"$gte": 10.0}}, q.Filter)
}

func TestCastValue(t *testing.T) {
	id := primitive.NewObjectID()
	assert.Equal(t, id, castValue(id.Hex()))
	assert.Equal(t, 4.5, castValue("4.5"))
	assert.Equal(t, true, castValue("true"))
	assert.Equal(t, "easy", castValue("easy"))
	// "1" is a number, not a bool.
	assert.Equal(t, 1.0, castValue("1"))
}

func TestSortKeepsExplicitID(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "_id", Value: -1}}, parseSort("-_id"))
}

func TestMergeFiltersKeepsAccessFilter(t *testing.T) {
	base := bson.M{"secretTour": bson.M{"$ne": true}}
	user := bson.M{"secretTour": true, "price": 10.0}

	got := mergeFilters(base, user)

	assert.Equal(t, 10.0, got["price"])
	assert.NotContains(t, got, "secretTour")
	assert.ElementsMatch(t, []bson.M{
		{"secretTour": bson.M{"$ne": true}},
		{"secretTour": true},
	}, got["$and"])
}
