package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Review    string             `json:"review" bson:"review" validate:"required"`
	Rating    float64            `json:"rating" bson:"rating" validate:"required,min=1,max=5"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	Tour      Ref                `json:"tour" bson:"tour"`
	User      Ref                `json:"user" bson:"user"`
}

func (r *Review) GetID() primitive.ObjectID   { return r.ID }
func (r *Review) SetID(id primitive.ObjectID) { r.ID = id }

func (r *Review) Prepare(now time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
}

func (r *Review) Validate() error {
	var extra []string
	if r.Tour.IsZero() {
		extra = append(extra, "Review must belong to a tour")
	}
	if r.User.IsZero() {
		extra = append(extra, "Review must belong to a user")
	}
	return validateStruct(r, extra...)
}
