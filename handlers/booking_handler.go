package handlers

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dontidros/natours-project/middleware"
	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/services"
	"github.com/dontidros/natours-project/utils/errors"
)

// MaxWebhookBytes bounds Stripe event payloads.
const MaxWebhookBytes = 64 << 10

type BookingHandler struct {
	*Resource[models.Booking, *models.Booking]
	bookings *services.BookingService
}

func NewBookingHandler(catalog *services.Catalog, bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{Resource: NewResource(catalog.Bookings), bookings: bookings}
}

// CheckoutSession returns the Stripe session the client redirects to.
func (h *BookingHandler) CheckoutSession(w http.ResponseWriter, r *http.Request) error {
	session, err := h.bookings.CheckoutSession(r.Context(), mux.Vars(r)["tourId"], middleware.CurrentUser(r), baseURL(r))
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "session": session})
	return nil
}

// Webhook verifies and applies a Stripe event. It needs the raw body.
func (h *BookingHandler) Webhook(w http.ResponseWriter, r *http.Request) error {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBytes))
	if err != nil {
		return errors.External("Webhook error: could not read body", err)
	}
	if _, err := h.bookings.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
	return nil
}
