package services

import (
	"context"
	"encoding/json"
	"math"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/dontidros/natours-project/events"
	"github.com/dontidros/natours-project/logger"
	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/utils/errors"
)

const checkoutCompleted = "checkout.session.completed"

// CheckoutSessions is the part of the Stripe client the booking flow uses.
type CheckoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type BookingService struct {
	catalog       *Catalog
	sessions      CheckoutSessions
	webhookSecret string
	events        events.Publisher
}

func NewBookingService(catalog *Catalog, sessions CheckoutSessions, webhookSecret string, pub events.Publisher) *BookingService {
	return &BookingService{
		catalog:       catalog,
		sessions:      sessions,
		webhookSecret: webhookSecret,
		events:        pub,
	}
}

// CheckoutSession opens a hosted Stripe checkout for one tour. baseURL is
// the public origin used for redirects and product images.
func (s *BookingService) CheckoutSession(ctx context.Context, tourID string, user *models.User, baseURL string) (*stripe.CheckoutSession, error) {
	tour, err := s.catalog.Tours.GetOne(ctx, tourID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(baseURL + "/my-tours?alert=booking"),
		CancelURL:          stripe.String(baseURL + "/tour/" + tour.Slug),
		CustomerEmail:      stripe.String(user.Email),
		ClientReferenceID:  stripe.String(tour.ID.Hex()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(int64(math.Round(tour.Price * 100))),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(tour.Name + " Tour"),
					Description: stripe.String(tour.Summary),
					Images:      stripe.StringSlice([]string{baseURL + "/img/tours/" + tour.ImageCover}),
				},
			},
		}},
	}
	params.Context = ctx

	session, err := s.sessions.New(params)
	if err != nil {
		logger.ErrorContext(ctx, "stripe checkout session failed", "tour", tour.ID.Hex(), "error", err)
		return nil, errors.External("Could not create checkout session", err)
	}
	return session, nil
}

// HandleWebhook verifies a Stripe event and books the tour of a completed
// checkout. Other event types are acknowledged and ignored. A session that
// was already booked returns the existing booking.
func (s *BookingService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*models.Booking, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, errors.NewAPIError(errors.CodeValidation, "Webhook error: "+err.Error(), http.StatusBadRequest)
	}
	if event.Type != checkoutCompleted {
		logger.DebugContext(ctx, "stripe event ignored", "type", event.Type)
		return nil, nil
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, errors.NewAPIError(errors.CodeValidation, "Webhook error: malformed checkout session", http.StatusBadRequest)
	}
	return s.bookFromSession(ctx, &session)
}

func (s *BookingService) bookFromSession(ctx context.Context, session *stripe.CheckoutSession) (*models.Booking, error) {
	if existing, err := s.catalog.Bookings.Store().FindOne(ctx, bson.M{"stripeSessionId": session.ID}); err == nil {
		logger.InfoContext(ctx, "checkout session already booked", "session", session.ID)
		return existing, nil
	} else if !isNoDocument(err) {
		return nil, storeError(err)
	}

	tourID, err := ParseID(session.ClientReferenceID)
	if err != nil {
		return nil, err
	}
	email := session.CustomerEmail
	if email == "" && session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}
	user, err := s.catalog.Users.FindOne(ctx, bson.M{"email": email})
	if err != nil {
		if errors.StatusOf(err) == http.StatusNotFound {
			return nil, errors.NotFound("No user found with that email")
		}
		return nil, err
	}

	booking, err := s.catalog.Bookings.CreateOne(ctx, &models.Booking{
		Tour:            models.NewRef(tourID),
		User:            models.NewRef(user.ID),
		Price:           float64(session.AmountTotal) / 100,
		StripeSessionID: session.ID,
	})
	if err != nil {
		if apiErr, ok := errors.As(err); ok && apiErr.Code == errors.CodeDuplicateField {
			// Concurrent delivery of the same event won the insert.
			return s.catalog.Bookings.Store().FindOne(ctx, bson.M{"stripeSessionId": session.ID})
		}
		return nil, err
	}

	if err := s.events.Publish(ctx, events.BookingCreated, events.BookingCreatedEvent{
		BookingID:       booking.ID.Hex(),
		TourID:          tourID.Hex(),
		UserID:          user.ID.Hex(),
		UserEmail:       user.Email,
		Price:           booking.Price,
		StripeSessionID: session.ID,
		CreatedAt:       booking.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "publish booking event failed", "booking", booking.ID.Hex(), "error", err)
	}
	logger.InfoContext(ctx, "booking created from checkout", "booking", booking.ID.Hex(), "session", session.ID)
	return booking, nil
}
