package handlers

import (
	"net/http"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/dontidros/natours-project/config"
	"github.com/dontidros/natours-project/middleware"
	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/services"
	"github.com/dontidros/natours-project/views"
)

// Deps is everything the router hands out to handlers.
type Deps struct {
	Config   *config.Config
	Catalog  *services.Catalog
	Auth     *services.AuthService
	Users    *services.UserService
	Tours    *services.TourService
	Bookings *services.BookingService
	Images   *services.ImageService
	Views    *views.Renderer
	Errors   *middleware.ErrorHandler
	// Limiter is optional; without it /api is not rate limited.
	Limiter *middleware.RateLimiter
}

type chain []func(http.Handler) http.Handler

func (c chain) then(h http.Handler) http.Handler {
	for i := len(c) - 1; i >= 0; i-- {
		h = c[i](h)
	}
	return h
}

// NewRouter wires the API, the rendered pages and the global middleware.
func NewRouter(d Deps) http.Handler {
	eh := d.Errors
	h := func(fn middleware.AppHandler) http.Handler { return eh.Handle(fn) }
	auth := middleware.NewAuth(d.Auth, eh)
	protect := auth.Protect
	staff := chain{protect, auth.RestrictTo(models.RoleAdmin, models.RoleLeadGuide)}
	admin := chain{protect, auth.RestrictTo(models.RoleAdmin)}

	tours := NewTourHandler(d.Catalog, d.Tours, d.Images)
	users := NewUserHandler(d.Catalog, d.Users, d.Images)
	reviews := NewReviewHandler(d.Catalog)
	bookings := NewBookingHandler(d.Catalog, d.Bookings)
	authH := NewAuthHandler(d.Auth, d.Config.Auth)
	pages := NewViewHandler(d.Catalog, d.Tours, d.Users, d.Views)

	root := mux.NewRouter()
	root.NotFoundHandler = eh.NotFound()

	// The webhook must see the body exactly as Stripe signed it.
	root.Handle("/webhook-checkout", eh.HandleAPI(bookings.Webhook)).Methods(http.MethodPost)
	root.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	static := http.FileServer(http.Dir(d.Config.PublicDir))
	for _, prefix := range []string{"/img/", "/css/", "/js/"} {
		root.PathPrefix(prefix).Handler(static)
	}

	app := root.NewRoute().Subrouter()
	app.Use(
		middleware.BodyLimit(middleware.MaxBodyBytes),
		middleware.NewSanitizer(eh).Middleware,
		middleware.ParameterPollution(middleware.ParameterWhitelist),
	)

	// pages
	loggedIn := chain{views.Alerts, auth.IsLoggedIn}
	app.Handle("/", loggedIn.then(h(pages.Overview))).Methods(http.MethodGet)
	app.Handle("/tour/{slug}", loggedIn.then(h(pages.Tour))).Methods(http.MethodGet)
	app.Handle("/login", loggedIn.then(h(pages.Login))).Methods(http.MethodGet)
	app.Handle("/signup", loggedIn.then(h(pages.Signup))).Methods(http.MethodGet)
	app.Handle("/me", protect(h(pages.Account))).Methods(http.MethodGet)
	app.Handle("/my-tours", protect(h(pages.MyTours))).Methods(http.MethodGet)
	app.Handle("/submit-user-data", protect(h(pages.SubmitUserData))).Methods(http.MethodPost)

	api := app.PathPrefix("/api/v1").Subrouter()

	// tours
	t := api.PathPrefix("/tours").Subrouter()
	t.Handle("/top-5-cheap", AliasTopTours(h(tours.GetAll))).Methods(http.MethodGet)
	t.Handle("/tour-stats", h(tours.Stats)).Methods(http.MethodGet)
	t.Handle("/monthly-plan/{year}", chain{protect, auth.RestrictTo(models.RoleAdmin, models.RoleLeadGuide, models.RoleGuide)}.
		then(h(tours.MonthlyPlan))).Methods(http.MethodGet)
	t.Handle("/tours-within/{distance}/center/{latlng}/unit/{unit}", h(tours.Within)).Methods(http.MethodGet)
	t.Handle("/distances/{latlng}/unit/{unit}", h(tours.Distances)).Methods(http.MethodGet)
	t.Handle("/{tourId}/reviews", protect(h(reviews.GetAll))).Methods(http.MethodGet)
	t.Handle("/{tourId}/reviews", chain{protect, auth.RestrictTo(models.RoleUser)}.then(h(reviews.Create))).Methods(http.MethodPost)
	t.Handle("", h(tours.GetAll)).Methods(http.MethodGet)
	t.Handle("", staff.then(h(tours.Create))).Methods(http.MethodPost)
	t.Handle("/{id}", h(tours.GetOne)).Methods(http.MethodGet)
	t.Handle("/{id}", staff.then(h(tours.Update))).Methods(http.MethodPatch)
	t.Handle("/{id}", staff.then(h(tours.Delete))).Methods(http.MethodDelete)

	// users
	u := api.PathPrefix("/users").Subrouter()
	u.Handle("/signup", h(authH.Signup)).Methods(http.MethodPost)
	u.Handle("/login", h(authH.Login)).Methods(http.MethodPost)
	u.Handle("/logout", h(authH.Logout)).Methods(http.MethodGet)
	u.Handle("/forgotPassword", h(authH.ForgotPassword)).Methods(http.MethodPost)
	u.Handle("/resetPassword/{token}", h(authH.ResetPassword)).Methods(http.MethodPatch)
	u.Handle("/updateMyPassword", protect(h(authH.UpdatePassword))).Methods(http.MethodPatch)
	u.Handle("/me", protect(h(users.Me))).Methods(http.MethodGet)
	u.Handle("/updateMe", protect(h(users.UpdateMe))).Methods(http.MethodPatch)
	u.Handle("/deleteMe", protect(h(users.DeleteMe))).Methods(http.MethodDelete)
	u.Handle("", admin.then(h(users.GetAll))).Methods(http.MethodGet)
	u.Handle("", admin.then(h(users.Create))).Methods(http.MethodPost)
	u.Handle("/{id}", admin.then(h(users.GetOne))).Methods(http.MethodGet)
	u.Handle("/{id}", admin.then(h(users.Update))).Methods(http.MethodPatch)
	u.Handle("/{id}", admin.then(h(users.Delete))).Methods(http.MethodDelete)

	// reviews
	rv := api.PathPrefix("/reviews").Subrouter()
	rv.Handle("", protect(h(reviews.GetAll))).Methods(http.MethodGet)
	rv.Handle("", chain{protect, auth.RestrictTo(models.RoleUser)}.then(h(reviews.Create))).Methods(http.MethodPost)
	rv.Handle("/{id}", protect(h(reviews.GetOne))).Methods(http.MethodGet)
	authors := chain{protect, auth.RestrictTo(models.RoleUser, models.RoleAdmin)}
	rv.Handle("/{id}", authors.then(h(reviews.Update))).Methods(http.MethodPatch)
	rv.Handle("/{id}", authors.then(h(reviews.Delete))).Methods(http.MethodDelete)

	// bookings
	b := api.PathPrefix("/bookings").Subrouter()
	b.Handle("/checkout-session/{tourId}", protect(h(bookings.CheckoutSession))).Methods(http.MethodGet)
	b.Handle("", staff.then(h(bookings.GetAll))).Methods(http.MethodGet)
	b.Handle("", staff.then(h(bookings.Create))).Methods(http.MethodPost)
	b.Handle("/{id}", staff.then(h(bookings.GetOne))).Methods(http.MethodGet)
	b.Handle("/{id}", staff.then(h(bookings.Update))).Methods(http.MethodPatch)
	b.Handle("/{id}", staff.then(h(bookings.Delete))).Methods(http.MethodDelete)

	// mux only runs Use middleware on matched routes, so the global stack
	// wraps the router itself.
	global := chain{
		gorillahandlers.CompressHandler,
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logging,
		eh.Recover,
		middleware.SecurityHeaders,
		middleware.CORS(d.Config.Server.AllowedOrigins),
	}
	if d.Limiter != nil {
		global = append(global, d.Limiter.Middleware())
	}
	return global.then(root)
}
