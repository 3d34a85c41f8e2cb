package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dontidros/natours-project/logger"
)

const (
	BookingCreated = "booking.created"
	UserSignedUp   = "user.signed_up"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

type BookingCreatedEvent struct {
	BookingID       string    `json:"booking_id"`
	TourID          string    `json:"tour_id"`
	UserID          string    `json:"user_id"`
	UserEmail       string    `json:"user_email"`
	Price           float64   `json:"price"`
	StripeSessionID string    `json:"stripe_session_id"`
	CreatedAt       time.Time `json:"created_at"`
}

type UserSignedUpEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NATSPublisher publishes JSON-encoded events to a NATS server.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("natours"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (n *NATSPublisher) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))
	return n.conn.Publish(subject, payload)
}

func (n *NATSPublisher) Close() error {
	n.conn.Close()
	return nil
}

// recorderCap bounds how many events a Recorder keeps.
const recorderCap = 256

// Recorder keeps the most recent published events in memory. It is used when
// no NATS URL is configured.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

type Recorded struct {
	Subject string
	Data    any
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(ctx context.Context, subject string, data any) error {
	logger.DebugContext(ctx, "event recorded", "subject", subject)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Recorded{Subject: subject, Data: data})
	if len(r.Events) > recorderCap {
		r.Events = r.Events[len(r.Events)-recorderCap:]
	}
	return nil
}

func (r *Recorder) Close() error {
	return nil
}

func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Subject)
	}
	return out
}
