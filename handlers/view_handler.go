package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/dontidros/natours-project/middleware"
	"github.com/dontidros/natours-project/services"
	"github.com/dontidros/natours-project/utils/errors"
	"github.com/dontidros/natours-project/views"
)

// ViewHandler serves the server-rendered pages.
type ViewHandler struct {
	catalog *services.Catalog
	tours   *services.TourService
	users   *services.UserService
	views   *views.Renderer
}

func NewViewHandler(catalog *services.Catalog, tours *services.TourService, users *services.UserService, renderer *views.Renderer) *ViewHandler {
	return &ViewHandler{catalog: catalog, tours: tours, users: users, views: renderer}
}

func (h *ViewHandler) Overview(w http.ResponseWriter, r *http.Request) error {
	list, err := h.catalog.Tours.GetAll(r.Context(), services.QueryFeatures{
		Sort: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}},
		Page: 1,
	}, nil)
	if err != nil {
		return err
	}
	return h.views.Render(w, r, http.StatusOK, views.Overview, views.Data{Title: "All Tours", Tours: list.Docs})
}

func (h *ViewHandler) Tour(w http.ResponseWriter, r *http.Request) error {
	tour, err := h.tours.BySlug(r.Context(), mux.Vars(r)["slug"], h.catalog.TourReviews())
	if err != nil {
		return err
	}
	return h.views.Render(w, r, http.StatusOK, views.Tour, views.Data{Title: tour.Name + " Tour", Tour: tour})
}

func (h *ViewHandler) Login(w http.ResponseWriter, r *http.Request) error {
	return h.views.Render(w, r, http.StatusOK, views.Login, views.Data{Title: "Log into your account"})
}

func (h *ViewHandler) Signup(w http.ResponseWriter, r *http.Request) error {
	return h.views.Render(w, r, http.StatusOK, views.Signup, views.Data{Title: "Sign up for new account"})
}

func (h *ViewHandler) Account(w http.ResponseWriter, r *http.Request) error {
	return h.views.Render(w, r, http.StatusOK, views.Account, views.Data{Title: "Your account"})
}

// MyTours lists the booked tours on the overview layout.
func (h *ViewHandler) MyTours(w http.ResponseWriter, r *http.Request) error {
	tours, err := h.users.MyTours(r.Context(), middleware.CurrentUser(r).ID)
	if err != nil {
		return err
	}
	return h.views.Render(w, r, http.StatusOK, views.Overview, views.Data{Title: "My Tours", Tours: tours})
}

// SubmitUserData handles the plain form post of the account page.
func (h *ViewHandler) SubmitUserData(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return errors.NewAPIError(errors.CodeInvalidInput, "Invalid form data", http.StatusBadRequest, err.Error())
	}
	name, email := r.PostFormValue("name"), r.PostFormValue("email")
	updated, err := h.users.UpdateMe(r.Context(), middleware.CurrentUser(r).ID, services.UpdateMeInput{Name: &name, Email: &email})
	if err != nil {
		return err
	}
	return h.views.Render(w, r, http.StatusOK, views.Account, views.Data{Title: "Your account", User: updated})
}
