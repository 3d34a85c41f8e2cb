package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/dontidros/natours-project/middleware"
	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/services"
)

// NewReviewHandler serves /reviews and /tours/{tourId}/reviews. On the
// nested route the list is scoped to the tour and new reviews default to it;
// the author defaults to the logged-in user.
func NewReviewHandler(catalog *services.Catalog) *Resource[models.Review, *models.Review] {
	res := NewResource(catalog.Reviews)
	res.Scope = func(r *http.Request) (bson.M, error) {
		tourID, ok := mux.Vars(r)["tourId"]
		if !ok {
			return nil, nil
		}
		id, err := services.ParseID(tourID)
		if err != nil {
			return nil, err
		}
		return bson.M{"tour": id}, nil
	}
	res.Fill = func(r *http.Request, review *models.Review) error {
		if tourID, ok := mux.Vars(r)["tourId"]; ok && review.Tour.IsZero() {
			id, err := services.ParseID(tourID)
			if err != nil {
				return err
			}
			review.Tour = models.NewRef(id)
		}
		if user := middleware.CurrentUser(r); user != nil && review.User.IsZero() {
			review.User = models.NewRef(user.ID)
		}
		return nil
	}
	return res
}
