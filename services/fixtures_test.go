package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/services/memstore"
)

// memRatings computes review statistics straight from the review store.
type memRatings struct {
	reviews *memstore.Store[models.Review]
}

func (r memRatings) RatingStats(_ context.Context, tourID primitive.ObjectID) (*RatingStats, error) {
	n, avg := memstore.TourRatings(r.reviews, tourID)
	if n == 0 {
		return nil, nil
	}
	return &RatingStats{Quantity: n, Average: avg}, nil
}

type testCatalog struct {
	*Catalog
	tours    *memstore.Store[models.Tour]
	users    *memstore.Store[models.User]
	reviews  *memstore.Store[models.Review]
	bookings *memstore.Store[models.Booking]
}

func newTestCatalog() *testCatalog {
	tc := &testCatalog{
		tours:    memstore.New[models.Tour]([]string{"name"}),
		users:    memstore.New[models.User]([]string{"email"}),
		reviews:  memstore.New[models.Review]([]string{"tour", "user"}),
		bookings: memstore.New[models.Booking]([]string{"stripeSessionId"}),
	}
	tc.Catalog = NewCatalog(tc.tours, tc.users, tc.reviews, tc.bookings, memRatings{reviews: tc.reviews})
	return tc
}

func sampleTour(name string, price float64) *models.Tour {
	return &models.Tour{
		Name:         name,
		Duration:     5,
		MaxGroupSize: 25,
		Difficulty:   models.DifficultyEasy,
		Price:        price,
		Summary:      "Breathtaking hike through the Canadian Banff National Park",
		ImageCover:   "tour-1-cover.jpg",
	}
}

func sampleUser(name, email string) *models.User {
	return &models.User{Name: name, Email: email, Password: "$2a$12$hash"}
}
