package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultRatingsAverage = 4.5

	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

type Tour struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name            string             `json:"name" bson:"name" validate:"required,min=10,max=40"`
	Slug            string             `json:"slug" bson:"slug"`
	Duration        float64            `json:"duration" bson:"duration" validate:"required,gt=0"`
	MaxGroupSize    int                `json:"maxGroupSize" bson:"maxGroupSize" validate:"required,gt=0"`
	Difficulty      string             `json:"difficulty" bson:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64            `json:"ratingsAverage" bson:"ratingsAverage" validate:"min=1,max=5"`
	RatingsQuantity int                `json:"ratingsQuantity" bson:"ratingsQuantity" validate:"gte=0"`
	Price           float64            `json:"price" bson:"price" validate:"required,gt=0"`
	PriceDiscount   float64            `json:"priceDiscount,omitempty" bson:"priceDiscount,omitempty" validate:"omitempty,ltfield=Price"`
	Summary         string             `json:"summary" bson:"summary" validate:"required"`
	Description     string             `json:"description,omitempty" bson:"description,omitempty"`
	ImageCover      string             `json:"imageCover" bson:"imageCover" validate:"required"`
	Images          []string           `json:"images" bson:"images"`
	CreatedAt       time.Time          `json:"createdAt" bson:"createdAt"`
	StartDates      []time.Time        `json:"startDates" bson:"startDates"`
	SecretTour      bool               `json:"secretTour" bson:"secretTour"`
	StartLocation   *Location          `json:"startLocation,omitempty" bson:"startLocation,omitempty"`
	Locations       []Location         `json:"locations" bson:"locations"`
	Guides          []Ref              `json:"guides" bson:"guides"`

	// Reviews is populated on demand and never stored.
	Reviews []*Review `json:"reviews,omitempty" bson:"-"`
}

func (t *Tour) GetID() primitive.ObjectID   { return t.ID }
func (t *Tour) SetID(id primitive.ObjectID) { t.ID = id }

func (t *Tour) Prepare(now time.Time) {
	t.Slug = slug.Make(t.Name)
	if t.RatingsAverage == 0 {
		t.RatingsAverage = DefaultRatingsAverage
	}
	t.RatingsAverage = RoundRating(t.RatingsAverage)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.Images == nil {
		t.Images = []string{}
	}
	if t.StartDates == nil {
		t.StartDates = []time.Time{}
	}
	if t.Guides == nil {
		t.Guides = []Ref{}
	}
	if t.StartLocation != nil {
		t.StartLocation.prepare()
	}
	for i := range t.Locations {
		t.Locations[i].prepare()
	}
}

func (t *Tour) Validate() error {
	var extra []string
	if t.StartLocation != nil && (len(t.StartLocation.Coordinates) != 2 || !t.StartLocation.valid()) {
		extra = append(extra, "startLocation must be a valid GeoJSON point")
	}
	for _, l := range t.Locations {
		if !l.valid() {
			extra = append(extra, "locations must be valid GeoJSON points")
			break
		}
	}
	return validateStruct(t, extra...)
}

// DurationWeeks is exposed as a virtual field in JSON output.
func (t Tour) DurationWeeks() float64 {
	return t.Duration / 7
}

func (t Tour) MarshalJSON() ([]byte, error) {
	type tourJSON Tour
	return json.Marshal(struct {
		tourJSON
		DurationWeeks float64 `json:"durationWeeks"`
	}{tourJSON(t), t.DurationWeeks()})
}

// RoundRating quantizes a rating average to one decimal.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}
