package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/dontidros/natours-project/config"
	"github.com/dontidros/natours-project/events"
	"github.com/dontidros/natours-project/mailer"
	"github.com/dontidros/natours-project/middleware"
	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/services"
	"github.com/dontidros/natours-project/services/memstore"
	"github.com/dontidros/natours-project/views"
)

const testPassword = "pass1234"

type memRatings struct {
	reviews *memstore.Store[models.Review]
}

func (r memRatings) RatingStats(_ context.Context, tourID primitive.ObjectID) (*services.RatingStats, error) {
	n, avg := memstore.TourRatings(r.reviews, tourID)
	if n == 0 {
		return nil, nil
	}
	return &services.RatingStats{Quantity: n, Average: avg}, nil
}

type fakeSessions struct{}

func (fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

type server struct {
	handler  http.Handler
	catalog  *services.Catalog
	auth     *services.AuthService
	mail     *mailer.DevMailer
	tours    *memstore.Store[models.Tour]
	users    *memstore.Store[models.User]
	reviews  *memstore.Store[models.Review]
	bookings *memstore.Store[models.Booking]
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{
		mail:     mailer.NewDevMailer(),
		tours:    memstore.New[models.Tour]([]string{"name"}),
		users:    memstore.New[models.User]([]string{"email"}),
		reviews:  memstore.New[models.Review]([]string{"tour", "user"}),
		bookings: memstore.New[models.Booking]([]string{"stripeSessionId"}),
	}
	s.catalog = services.NewCatalog(s.tours, s.users, s.reviews, s.bookings, memRatings{reviews: s.reviews})

	cfg := &config.Config{
		Env: "production",
		Auth: config.AuthConfig{
			JWTSecret:        "handler-test-secret",
			JWTExpiresIn:     time.Hour,
			CookieExpiresIn:  time.Hour,
			ResetTokenExpiry: 10 * time.Minute,
		},
		Server:    config.ServerConfig{AllowedOrigins: []string{"*"}},
		PublicDir: t.TempDir(),
	}
	recorder := events.NewRecorder()
	s.auth = services.NewAuthService(s.catalog.Users, cfg.Auth, s.mail, recorder)

	renderer, err := views.New()
	require.NoError(t, err)

	s.handler = NewRouter(Deps{
		Config:   cfg,
		Catalog:  s.catalog,
		Auth:     s.auth,
		Users:    services.NewUserService(s.catalog),
		Tours:    services.NewTourService(s.catalog.Tours, nil),
		Bookings: services.NewBookingService(s.catalog, fakeSessions{}, "whsec_test", recorder),
		Images:   services.NewImageService(t.TempDir()),
		Views:    renderer,
		Errors:   middleware.NewErrorHandler(false, renderer, nil),
	})
	return s
}

// user stores an account whose password is testPassword and returns it with
// a signed token.
func (s *server) user(t *testing.T, name, email, role string) (*models.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := s.catalog.Users.CreateOne(context.Background(), &models.User{
		Name:     name,
		Email:    email,
		Role:     role,
		Password: string(hash),
	})
	require.NoError(t, err)
	token, err := s.auth.SignToken(user.ID)
	require.NoError(t, err)
	return user, token
}

func (s *server) tour(t *testing.T, name string, price float64) *models.Tour {
	t.Helper()
	tour, err := s.catalog.Tours.CreateOne(context.Background(), &models.Tour{
		Name:         name,
		Duration:     5,
		MaxGroupSize: 25,
		Difficulty:   models.DifficultyEasy,
		Price:        price,
		Summary:      "Breathtaking hike through the Canadian Banff National Park",
		Description:  "First paragraph.\nSecond paragraph.",
		ImageCover:   "tour-1-cover.jpg",
		StartDates:   []time.Time{time.Date(2026, 4, 25, 9, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	return tour
}

type request struct {
	method string
	target string
	body   string
	token  string
	cookie string
	header map[string]string
}

func (s *server) do(req request) *httptest.ResponseRecorder {
	var body io.Reader
	if req.body != "" {
		body = strings.NewReader(req.body)
	}
	r := httptest.NewRequest(req.method, req.target, body)
	if req.body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.cookie != "" {
		r.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: req.cookie})
	}
	for k, v := range req.header {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, r)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// dataOf returns body.data.<key>.
func dataOf(t *testing.T, rec *httptest.ResponseRecorder, key string) any {
	t.Helper()
	body := decode(t, rec)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return data[key]
}
