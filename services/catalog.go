package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dontidros/natours-project/models"
)

// Access filters applied to every query of their entity.
var (
	VisibleTours = bson.M{"secretTour": bson.M{"$ne": true}}
	ActiveUsers  = bson.M{"active": bson.M{"$ne": false}}
)

type (
	TourFactory    = Factory[models.Tour, *models.Tour]
	UserFactory    = Factory[models.User, *models.User]
	ReviewFactory  = Factory[models.Review, *models.Review]
	BookingFactory = Factory[models.Booking, *models.Booking]
)

// Catalog wires the four entity factories with their access filters,
// populators and write effects.
type Catalog struct {
	Tours    *TourFactory
	Users    *UserFactory
	Reviews  *ReviewFactory
	Bookings *BookingFactory
	Ratings  *RatingAggregator
}

func NewCatalog(tours Store[models.Tour], users Store[models.User], reviews Store[models.Review], bookings Store[models.Booking], ratings RatingSource) *Catalog {
	aggregator := NewRatingAggregator(ratings, tours)

	c := &Catalog{Ratings: aggregator}
	c.Users = NewFactory[models.User, *models.User](users, FactoryOptions[models.User]{
		Name:       "user",
		Filter:     ActiveUsers,
		SoftDelete: bson.M{"$set": bson.M{"active": false}},
	})
	c.Reviews = NewFactory[models.Review, *models.Review](reviews, FactoryOptions[models.Review]{
		Name:        "review",
		Populate:    []Populator[models.Review]{PopulateReviewAuthors(users)},
		AfterCreate: []DocumentEffect[models.Review]{aggregator.AfterCreate},
		AfterMutate: []MutationEffect[models.Review]{aggregator.AfterMutate},
	})
	c.Tours = NewFactory[models.Tour, *models.Tour](tours, FactoryOptions[models.Tour]{
		Name:     "tour",
		Filter:   VisibleTours,
		Populate: []Populator[models.Tour]{PopulateGuides(users)},
	})
	c.Bookings = NewFactory[models.Booking, *models.Booking](bookings, FactoryOptions[models.Booking]{
		Name:     "booking",
		Populate: []Populator[models.Booking]{PopulateBookings(users, tours)},
	})
	return c
}

// TourReviews populates the reviews of each tour, authors included.
func (c *Catalog) TourReviews() Populator[models.Tour] {
	return func(ctx context.Context, tours []*models.Tour) error {
		for _, t := range tours {
			res, err := c.Reviews.GetAll(ctx, QueryFeatures{
				Sort:  bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}},
				Page:  1,
				Limit: 0,
			}, bson.M{"tour": t.ID})
			if err != nil {
				return err
			}
			t.Reviews = res.Docs
		}
		return nil
	}
}

// PopulateGuides replaces guide ids by the active guide documents.
func PopulateGuides(users Store[models.User]) Populator[models.Tour] {
	return func(ctx context.Context, tours []*models.Tour) error {
		var ids []primitive.ObjectID
		for _, t := range tours {
			for _, g := range t.Guides {
				ids = append(ids, g.ID)
			}
		}
		byID, err := usersByID(ctx, users, ids)
		if err != nil {
			return err
		}
		for _, t := range tours {
			for i, g := range t.Guides {
				if u, ok := byID[g.ID]; ok {
					t.Guides[i].Doc = u
				}
			}
		}
		return nil
	}
}

// PopulateReviewAuthors exposes name and photo of each review author.
func PopulateReviewAuthors(users Store[models.User]) Populator[models.Review] {
	return func(ctx context.Context, reviews []*models.Review) error {
		ids := make([]primitive.ObjectID, 0, len(reviews))
		for _, r := range reviews {
			ids = append(ids, r.User.ID)
		}
		byID, err := usersByID(ctx, users, ids)
		if err != nil {
			return err
		}
		for _, r := range reviews {
			if u, ok := byID[r.User.ID]; ok {
				r.User.Doc = u.Summary()
			}
		}
		return nil
	}
}

// PopulateBookings expands the buyer and the tour name of each booking.
func PopulateBookings(users Store[models.User], tours Store[models.Tour]) Populator[models.Booking] {
	return func(ctx context.Context, bookings []*models.Booking) error {
		userIDs := make([]primitive.ObjectID, 0, len(bookings))
		tourIDs := make([]primitive.ObjectID, 0, len(bookings))
		for _, b := range bookings {
			userIDs = append(userIDs, b.User.ID)
			tourIDs = append(tourIDs, b.Tour.ID)
		}
		byUser, err := usersByID(ctx, users, userIDs)
		if err != nil {
			return err
		}
		found, err := tours.Find(ctx, bson.M{"_id": bson.M{"$in": tourIDs}}, options.Find())
		if err != nil {
			return err
		}
		byTour := make(map[primitive.ObjectID]*models.Tour, len(found))
		for _, t := range found {
			byTour[t.ID] = t
		}
		for _, b := range bookings {
			if u, ok := byUser[b.User.ID]; ok {
				b.User.Doc = u.Summary()
			}
			if t, ok := byTour[b.Tour.ID]; ok {
				b.Tour.Doc = map[string]any{"id": t.ID, "name": t.Name}
			}
		}
		return nil
	}
}

func usersByID(ctx context.Context, users Store[models.User], ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	byID := map[primitive.ObjectID]*models.User{}
	if len(ids) == 0 {
		return byID, nil
	}
	found, err := users.Find(ctx, mergeFilters(ActiveUsers, bson.M{"_id": bson.M{"$in": ids}}), options.Find())
	if err != nil {
		return nil, err
	}
	for _, u := range found {
		byID[u.ID] = u
	}
	return byID, nil
}
