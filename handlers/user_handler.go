package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dontidros/natours-project/middleware"
	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/services"
	"github.com/dontidros/natours-project/utils/errors"
)

type UserHandler struct {
	*Resource[models.User, *models.User]
	users  *services.UserService
	images *services.ImageService
}

func NewUserHandler(catalog *services.Catalog, users *services.UserService, images *services.ImageService) *UserHandler {
	return &UserHandler{Resource: NewResource(catalog.Users), users: users, images: images}
}

// Me serves the logged-in user through GetOne.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) error {
	r = mux.SetURLVars(r, map[string]string{"id": middleware.CurrentUser(r).ID.Hex()})
	return h.GetOne(w, r)
}

// UpdateMe changes name, email and photo. It takes JSON or a multipart form
// with an optional photo file.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) error {
	user := middleware.CurrentUser(r)
	var in services.UpdateMeInput

	if isMultipart(r) {
		if err := r.ParseMultipartForm(middleware.MaxUploadBytes); err != nil {
			return errors.NewAPIError(errors.CodeInvalidInput, "Invalid multipart form", http.StatusBadRequest, err.Error())
		}
		fields := map[string]json.RawMessage{}
		for k := range r.MultipartForm.Value {
			fields[k] = nil
		}
		if err := services.RejectPasswordFields(fields); err != nil {
			return err
		}
		if v, ok := r.MultipartForm.Value["name"]; ok && len(v) > 0 {
			in.Name = &v[0]
		}
		if v, ok := r.MultipartForm.Value["email"]; ok && len(v) > 0 {
			in.Email = &v[0]
		}
		if files := r.MultipartForm.File["photo"]; len(files) > 0 {
			f, err := openUpload(files[0])
			if err != nil {
				return err
			}
			defer f.Close()
			name, err := h.images.ResizeUserPhoto(user.ID.Hex(), f)
			if err != nil {
				return err
			}
			in.Photo = name
		}
	} else {
		body, err := readBody(r)
		if err != nil {
			return err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return errors.NewAPIError(errors.CodeInvalidInput, "Invalid request data", http.StatusBadRequest, err.Error())
		}
		if err := services.RejectPasswordFields(fields); err != nil {
			return err
		}
		if err := json.Unmarshal(body, &in); err != nil {
			return errors.NewAPIError(errors.CodeInvalidInput, "Invalid request data", http.StatusBadRequest, err.Error())
		}
		// photo only changes through an upload
		in.Photo = ""
	}

	updated, err := h.users.UpdateMe(r.Context(), user.ID, in)
	if err != nil {
		return err
	}
	writeData(w, http.StatusOK, "user", updated)
	return nil
}

func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) error {
	if err := h.users.DeleteMe(r.Context(), middleware.CurrentUser(r).ID); err != nil {
		return err
	}
	writeNoContent(w)
	return nil
}

// Create is not offered; accounts come from signup.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) error {
	middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"status":  "error",
		"message": "This route is not defined! Please use /signup instead",
	})
	return nil
}
