package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/services"
)

// Resource exposes a factory as the five CRUD endpoints.
type Resource[T any, PT interface {
	*T
	models.Entity
}] struct {
	factory *services.Factory[T, PT]

	// Scope derives a route-level filter, e.g. the parent tour of nested reviews.
	Scope func(r *http.Request) (bson.M, error)
	// Fill completes a decoded document before it is created.
	Fill func(r *http.Request, doc *T) error
	// Populate runs on GetOne in addition to the entity's own populators.
	Populate []services.Populator[T]
}

func NewResource[T any, PT interface {
	*T
	models.Entity
}](factory *services.Factory[T, PT]) *Resource[T, PT] {
	return &Resource[T, PT]{factory: factory}
}

func (res *Resource[T, PT]) GetAll(w http.ResponseWriter, r *http.Request) error {
	var scope bson.M
	if res.Scope != nil {
		var err error
		if scope, err = res.Scope(r); err != nil {
			return err
		}
	}
	list, err := res.factory.GetAll(r.Context(), services.ParseQuery(r.URL.Query()), scope)
	if err != nil {
		return err
	}
	if len(list.Fields) > 0 {
		shaped, err := selectFields(list.Docs, list.Fields)
		if err != nil {
			return err
		}
		writeList(w, list.Results, shaped)
		return nil
	}
	writeList(w, list.Results, list.Docs)
	return nil
}

func (res *Resource[T, PT]) GetOne(w http.ResponseWriter, r *http.Request) error {
	doc, err := res.factory.GetOne(r.Context(), mux.Vars(r)["id"], res.Populate...)
	if err != nil {
		return err
	}
	writeData(w, http.StatusOK, "data", doc)
	return nil
}

func (res *Resource[T, PT]) Create(w http.ResponseWriter, r *http.Request) error {
	doc := new(T)
	if err := decodeJSON(r, doc); err != nil {
		return err
	}
	if res.Fill != nil {
		if err := res.Fill(r, doc); err != nil {
			return err
		}
	}
	created, err := res.factory.CreateOne(r.Context(), doc)
	if err != nil {
		return err
	}
	writeData(w, http.StatusCreated, "data", created)
	return nil
}

func (res *Resource[T, PT]) Update(w http.ResponseWriter, r *http.Request) error {
	patch, err := readBody(r)
	if err != nil {
		return err
	}
	return res.update(w, r, patch)
}

func (res *Resource[T, PT]) update(w http.ResponseWriter, r *http.Request, patch []byte) error {
	doc, err := res.factory.UpdateOne(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		return err
	}
	writeData(w, http.StatusOK, "data", doc)
	return nil
}

func (res *Resource[T, PT]) Delete(w http.ResponseWriter, r *http.Request) error {
	if err := res.factory.DeleteOne(r.Context(), mux.Vars(r)["id"]); err != nil {
		return err
	}
	writeNoContent(w)
	return nil
}
