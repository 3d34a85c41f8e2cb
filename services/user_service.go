package services

import (
	"context"
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/utils/errors"
)

// UpdateMeInput lists the only fields users may change about themselves.
type UpdateMeInput struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Photo string  `json:"photo,omitempty"`
}

// UserService holds the self-service operations of logged-in users.
type UserService struct {
	catalog *Catalog
}

func NewUserService(catalog *Catalog) *UserService {
	return &UserService{catalog: catalog}
}

// RejectPasswordFields fails when a profile update tries to change the password.
func RejectPasswordFields(body map[string]json.RawMessage) error {
	if _, ok := body["password"]; ok {
		return errors.Validation("This route is not for password updates. Please use /updateMyPassword.")
	}
	if _, ok := body["passwordConfirm"]; ok {
		return errors.Validation("This route is not for password updates. Please use /updateMyPassword.")
	}
	return nil
}

// UpdateMe applies a filtered profile update through the factory so the
// merged user is validated like any other write.
func (s *UserService) UpdateMe(ctx context.Context, userID primitive.ObjectID, in UpdateMeInput) (*models.User, error) {
	patch, err := json.Marshal(in)
	if err != nil {
		return nil, errors.ErrInvalidInput
	}
	return s.catalog.Users.UpdateOne(ctx, userID.Hex(), patch)
}

// DeleteMe deactivates the account; it disappears from every user query.
func (s *UserService) DeleteMe(ctx context.Context, userID primitive.ObjectID) error {
	return s.catalog.Users.DeleteOne(ctx, userID.Hex())
}

// MyTours lists the tours the user has booked.
func (s *UserService) MyTours(ctx context.Context, userID primitive.ObjectID) ([]*models.Tour, error) {
	bookings, err := s.catalog.Bookings.Store().Find(ctx, bson.M{"user": userID}, options.Find())
	if err != nil {
		return nil, storeError(err)
	}
	ids := make([]primitive.ObjectID, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.Tour.ID)
	}
	if len(ids) == 0 {
		return []*models.Tour{}, nil
	}
	res, err := s.catalog.Tours.GetAll(ctx, QueryFeatures{
		Sort: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}},
		Page: 1,
	}, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return res.Docs, nil
}
