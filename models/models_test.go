package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dontidros/natours-project/utils/errors"
)

func forestHiker() *Tour {
	return &Tour{
		Name:         "The Forest Hiker",
		Duration:     5,
		MaxGroupSize: 10,
		Difficulty:   DifficultyEasy,
		Price:        397,
		Summary:      "Breathtaking hike through the Canadian Banff National Park",
		ImageCover:   "tour-1-cover.jpg",
	}
}

func TestTourPrepareDefaults(t *testing.T) {
	tour := forestHiker()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tour.Prepare(now)

	assert.Equal(t, "the-forest-hiker", tour.Slug)
	assert.Equal(t, DefaultRatingsAverage, tour.RatingsAverage)
	assert.Equal(t, 0, tour.RatingsQuantity)
	assert.Equal(t, now, tour.CreatedAt)
	assert.NoError(t, tour.Validate())
}

func TestTourRatingIsRounded(t *testing.T) {
	tour := forestHiker()
	tour.RatingsAverage = 4.666666
	tour.Prepare(time.Now())
	assert.Equal(t, 4.7, tour.RatingsAverage)
}

func TestTourDiscountMustBeBelowPrice(t *testing.T) {
	tour := forestHiker()
	tour.PriceDiscount = 400
	tour.Prepare(time.Now())

	err := tour.Validate()
	require.Error(t, err)
	apiErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeValidation, apiErr.Code)
	assert.Contains(t, apiErr.Message, "Discount price")

	tour.PriceDiscount = 300
	assert.NoError(t, tour.Validate())
}

func TestTourValidationMessages(t *testing.T) {
	tour := &Tour{Name: "short", Difficulty: "extreme", RatingsAverage: 6}
	err := tour.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "name must have at least 10 characters")
	assert.Contains(t, msg, "difficulty is either easy, medium, difficult")
	assert.Contains(t, msg, "ratingsAverage must be at most 5")
	assert.Contains(t, msg, "summary is required")
}

func TestTourRequiresSummaryAndCover(t *testing.T) {
	tour := &Tour{Name: "The Forest Hiker", Duration: 5, MaxGroupSize: 10, Difficulty: DifficultyEasy, Price: 397}
	tour.Prepare(time.Now())
	err := tour.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary is required")
	assert.Contains(t, err.Error(), "imageCover is required")

	tour.Summary = "Breathtaking hike through the Canadian Banff National Park"
	tour.ImageCover = "tour-1-cover.jpg"
	assert.NoError(t, tour.Validate())
}

func TestTourStartLocationMustBeAPoint(t *testing.T) {
	tour := forestHiker()
	tour.StartLocation = &Location{Coordinates: []float64{-116.214531}}
	tour.Prepare(time.Now())
	assert.Error(t, tour.Validate())

	tour.StartLocation.Coordinates = []float64{-116.214531, 51.417611}
	assert.NoError(t, tour.Validate())
	assert.Equal(t, "Point", tour.StartLocation.Type)
}

func TestTourJSONHasDurationWeeks(t *testing.T) {
	tour := forestHiker()
	tour.Duration = 14
	data, err := json.Marshal(tour)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 2.0, out["durationWeeks"])
	assert.Equal(t, "The Forest Hiker", out["name"])
}

func TestUserPrepareAndHiddenFields(t *testing.T) {
	u := &User{Name: " Jonas ", Email: "Jonas@Example.COM", Password: "hash"}
	u.Prepare(time.Now())

	assert.Equal(t, "jonas@example.com", u.Email)
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, DefaultPhoto, u.Photo)
	assert.True(t, u.IsActive())
	assert.NoError(t, u.Validate())

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hash")
	assert.NotContains(t, string(data), "active")
}

func TestUserValidation(t *testing.T) {
	u := &User{Name: "x", Email: "not-an-email", Password: "hash", Role: "owner"}
	err := u.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please provide a valid email")
	assert.Contains(t, err.Error(), "role is either")
}

func TestChangedPasswordAfter(t *testing.T) {
	changed := time.Now().Add(-time.Hour)
	u := &User{PasswordChangedAt: &changed}
	assert.True(t, u.ChangedPasswordAfter(changed.Add(-time.Minute)))
	assert.False(t, u.ChangedPasswordAfter(changed.Add(time.Minute)))
	assert.False(t, (&User{}).ChangedPasswordAfter(time.Now()))
}

func TestReviewRequiresRefsAndRange(t *testing.T) {
	r := &Review{Review: "Great", Rating: 6}
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Review must belong to a tour")
	assert.Contains(t, err.Error(), "Review must belong to a user")
	assert.Contains(t, err.Error(), "rating must be at most 5")
}

func TestRefRoundTrips(t *testing.T) {
	id := primitive.NewObjectID()
	review := Review{Review: "ok", Rating: 4, Tour: NewRef(id)}

	raw, err := bson.Marshal(review)
	require.NoError(t, err)
	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, id, doc["tour"])
	assert.Nil(t, doc["user"])

	var back Review
	require.NoError(t, bson.Unmarshal(raw, &back))
	assert.Equal(t, id, back.Tour.ID)
	assert.True(t, back.User.IsZero())

	js, err := json.Marshal(back)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"tour":"`+id.Hex()+`"`)
	assert.Contains(t, string(js), `"user":null`)

	var fromJSON Review
	require.NoError(t, json.Unmarshal([]byte(`{"tour":"`+id.Hex()+`"}`), &fromJSON))
	assert.Equal(t, id, fromJSON.Tour.ID)
}

func TestPopulatedRefSerializesDocument(t *testing.T) {
	ref := Ref{ID: primitive.NewObjectID(), Doc: UserSummary{Name: "Leo", Photo: "leo.jpg"}}
	js, err := json.Marshal(ref)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"name":"Leo"`)
}
