package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Booking struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Tour      Ref                `json:"tour" bson:"tour"`
	User      Ref                `json:"user" bson:"user"`
	Price     float64            `json:"price" bson:"price" validate:"required,gt=0"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	Paid      *bool              `json:"paid" bson:"paid"`
	// StripeSessionID keys bookings created from checkout webhooks.
	StripeSessionID string `json:"stripeSessionId,omitempty" bson:"stripeSessionId,omitempty"`
}

func (b *Booking) GetID() primitive.ObjectID   { return b.ID }
func (b *Booking) SetID(id primitive.ObjectID) { b.ID = id }

func (b *Booking) Prepare(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.Paid == nil {
		paid := true
		b.Paid = &paid
	}
}

func (b *Booking) Validate() error {
	var extra []string
	if b.Tour.IsZero() {
		extra = append(extra, "Booking must belong to a tour")
	}
	if b.User.IsZero() {
		extra = append(extra, "Booking must belong to a user")
	}
	return validateStruct(b, extra...)
}
