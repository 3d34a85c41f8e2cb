package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dontidros/natours-project/middleware"
	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/services"
	"github.com/dontidros/natours-project/utils/errors"
)

type TourHandler struct {
	*Resource[models.Tour, *models.Tour]
	tours  *services.TourService
	images *services.ImageService
}

func NewTourHandler(catalog *services.Catalog, tours *services.TourService, images *services.ImageService) *TourHandler {
	res := NewResource(catalog.Tours)
	res.Populate = []services.Populator[models.Tour]{catalog.TourReviews()}
	return &TourHandler{Resource: res, tours: tours, images: images}
}

// AliasTopTours presets the query of the five best and cheapest tours.
func AliasTopTours(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		q.Set("limit", "5")
		q.Set("sort", "-ratingsAverage,price")
		q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
		r.URL.RawQuery = q.Encode()
		next.ServeHTTP(w, r)
	})
}

func (h *TourHandler) Stats(w http.ResponseWriter, r *http.Request) error {
	stats, err := h.tours.Stats(r.Context())
	if err != nil {
		return err
	}
	writeData(w, http.StatusOK, "stats", stats)
	return nil
}

func (h *TourHandler) MonthlyPlan(w http.ResponseWriter, r *http.Request) error {
	plan, err := h.tours.MonthlyPlan(r.Context(), mux.Vars(r)["year"])
	if err != nil {
		return err
	}
	writeData(w, http.StatusOK, "plan", plan)
	return nil
}

// Within handles /tours-within/{distance}/center/{latlng}/unit/{unit}.
func (h *TourHandler) Within(w http.ResponseWriter, r *http.Request) error {
	vars := mux.Vars(r)
	g, err := services.ParseGeoQuery(vars["latlng"], vars["unit"])
	if err != nil {
		return err
	}
	tours, err := h.tours.ToursWithin(r.Context(), vars["distance"], g)
	if err != nil {
		return err
	}
	writeList(w, len(tours), tours)
	return nil
}

// Distances handles /distances/{latlng}/unit/{unit}.
func (h *TourHandler) Distances(w http.ResponseWriter, r *http.Request) error {
	vars := mux.Vars(r)
	g, err := services.ParseGeoQuery(vars["latlng"], vars["unit"])
	if err != nil {
		return err
	}
	distances, err := h.tours.Distances(r.Context(), g)
	if err != nil {
		return err
	}
	writeData(w, http.StatusOK, "data", distances)
	return nil
}

// Update accepts a JSON patch, or a multipart form whose imageCover and
// images files are resized and stored before the patch is applied.
func (h *TourHandler) Update(w http.ResponseWriter, r *http.Request) error {
	if !isMultipart(r) {
		return h.Resource.Update(w, r)
	}
	if _, err := services.ParseID(mux.Vars(r)["id"]); err != nil {
		return err
	}
	if err := r.ParseMultipartForm(middleware.MaxUploadBytes); err != nil {
		return errors.NewAPIError(errors.CodeInvalidInput, "Invalid multipart form", http.StatusBadRequest, err.Error())
	}
	form := r.MultipartForm
	if len(form.File["imageCover"]) > 1 {
		return errors.Validation("Only one cover image can be uploaded")
	}

	var cover io.Reader
	if files := form.File["imageCover"]; len(files) == 1 {
		f, err := openUpload(files[0])
		if err != nil {
			return err
		}
		defer f.Close()
		cover = f
	}
	var images []io.Reader
	if len(form.File["images"]) > services.MaxTourImages {
		return errors.Validation("A tour can have at most 3 images")
	}
	for _, fh := range form.File["images"] {
		f, err := openUpload(fh)
		if err != nil {
			return err
		}
		defer f.Close()
		images = append(images, f)
	}

	patch := formPatch[models.Tour](form.Value)
	if cover != nil || len(images) > 0 {
		coverName, names, err := h.images.ResizeTourImages(mux.Vars(r)["id"], cover, images)
		if err != nil {
			return err
		}
		if coverName != "" {
			patch["imageCover"] = coverName
		}
		if len(names) > 0 {
			patch["images"] = names
		}
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	return h.update(w, r, raw)
}

func isMultipart(r *http.Request) bool {
	return mediaTypeOf(r) == "multipart/form-data"
}

func openUpload(fh *multipart.FileHeader) (multipart.File, error) {
	if ct := fh.Header.Get("Content-Type"); ct != "" && !services.IsImage(ct) {
		return nil, services.ErrNotAnImage
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.NewAPIError(errors.CodeInvalidInput, "Could not read upload", http.StatusBadRequest, err.Error())
	}
	return f, nil
}
