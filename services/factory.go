package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dontidros/natours-project/logger"
	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/utils/errors"
)

// DocumentEffect runs after a document has been persisted.
type DocumentEffect[T any] func(ctx context.Context, doc *T) error

// MutationEffect runs after an update or delete has been persisted. before is
// the document captured prior to the write; after is nil for deletes.
type MutationEffect[T any] func(ctx context.Context, before, after *T) error

// Populator expands references on documents that have been read.
type Populator[T any] func(ctx context.Context, docs []*T) error

// FactoryOptions configures the per-entity stages of the factory pipeline.
type FactoryOptions[T any] struct {
	// Name is used in not-found messages ("No tour found with that ID").
	Name string
	// Filter is merged into every query, e.g. hiding secret tours.
	Filter bson.M
	// Populate runs on every read.
	Populate []Populator[T]
	// SoftDelete, when set, is applied as an update instead of removing the document.
	SoftDelete bson.M
	AfterCreate []DocumentEffect[T]
	AfterMutate []MutationEffect[T]
}

// Factory implements create/read/update/delete/list for one entity type.
type Factory[T any, PT interface {
	*T
	models.Entity
}] struct {
	store Store[T]
	opts  FactoryOptions[T]
	now   func() time.Time
}

func NewFactory[T any, PT interface {
	*T
	models.Entity
}](store Store[T], opts FactoryOptions[T]) *Factory[T, PT] {
	if opts.Name == "" {
		opts.Name = "document"
	}
	return &Factory[T, PT]{store: store, opts: opts, now: time.Now}
}

func (f *Factory[T, PT]) Store() Store[T] {
	return f.store
}

// ListResult is the outcome of GetAll.
type ListResult[T any] struct {
	Results int
	Docs    []*T
	Fields  []string
}

func (f *Factory[T, PT]) CreateOne(ctx context.Context, doc *T) (*T, error) {
	p := PT(doc)
	if p.GetID().IsZero() {
		p.SetID(primitive.NewObjectID())
	}
	p.Prepare(f.now())
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := f.store.Insert(ctx, doc); err != nil {
		return nil, storeError(err)
	}
	for _, effect := range f.opts.AfterCreate {
		if err := effect(ctx, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (f *Factory[T, PT]) GetOne(ctx context.Context, id string, populate ...Populator[T]) (*T, error) {
	doc, err := f.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := f.populate(ctx, []*T{doc}, populate); err != nil {
		return nil, err
	}
	return doc, nil
}

// FindOne returns the first document matching filter, with the access filter applied.
func (f *Factory[T, PT]) FindOne(ctx context.Context, filter bson.M, populate ...Populator[T]) (*T, error) {
	doc, err := f.store.FindOne(ctx, mergeFilters(f.opts.Filter, filter))
	if err != nil {
		if isNoDocument(err) {
			return nil, f.notFound()
		}
		return nil, storeError(err)
	}
	if err := f.populate(ctx, []*T{doc}, populate); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetAll lists documents; implicit is a route-level filter such as a parent id.
// An empty or over-paged result is not an error.
func (f *Factory[T, PT]) GetAll(ctx context.Context, q QueryFeatures, implicit bson.M) (*ListResult[T], error) {
	filter := mergeFilters(f.opts.Filter, implicit, q.Filter)
	docs, err := f.store.Find(ctx, filter, q.FindOptions())
	if err != nil {
		return nil, storeError(err)
	}
	if len(q.Fields) == 0 {
		if err := f.populate(ctx, docs, nil); err != nil {
			return nil, err
		}
	}
	return &ListResult[T]{Results: len(docs), Docs: docs, Fields: q.Fields}, nil
}

// UpdateOne applies a JSON patch onto the stored document and re-validates
// the merged result. Only the fields that differ from the document read are
// written; fields changed by others in the meantime are left alone.
func (f *Factory[T, PT]) UpdateOne(ctx context.Context, id string, patch []byte) (*T, error) {
	before, err := f.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	after, err := clone(before)
	if err != nil {
		return nil, err
	}
	if len(patch) > 0 {
		if err := json.Unmarshal(patch, after); err != nil {
			return nil, errors.Validation(fmt.Sprintf("Invalid input data. %v", err))
		}
	}
	p := PT(after)
	p.SetID(PT(before).GetID())
	p.Prepare(f.now())
	if err := p.Validate(); err != nil {
		return nil, err
	}

	update, err := changes(before, after)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"_id": p.GetID()}
	if len(update) > 0 {
		matched, err := f.store.Update(ctx, filter, update)
		if err != nil {
			return nil, storeError(err)
		}
		if !matched {
			return nil, f.notFound()
		}
	}
	current, err := f.store.FindOne(ctx, filter)
	if err != nil {
		if isNoDocument(err) {
			return nil, f.notFound()
		}
		return nil, storeError(err)
	}
	for _, effect := range f.opts.AfterMutate {
		if err := effect(ctx, before, current); err != nil {
			return nil, err
		}
	}
	if err := f.populate(ctx, []*T{current}, nil); err != nil {
		return nil, err
	}
	return current, nil
}

// DeleteOne removes a document, or marks it inactive when soft delete is configured.
func (f *Factory[T, PT]) DeleteOne(ctx context.Context, id string) error {
	before, err := f.findByID(ctx, id)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": PT(before).GetID()}

	var ok bool
	if f.opts.SoftDelete != nil {
		ok, err = f.store.Update(ctx, filter, f.opts.SoftDelete)
	} else {
		ok, err = f.store.Delete(ctx, filter)
	}
	if err != nil {
		return storeError(err)
	}
	if !ok {
		return f.notFound()
	}
	for _, effect := range f.opts.AfterMutate {
		if err := effect(ctx, before, nil); err != nil {
			return err
		}
	}
	return nil
}

func (f *Factory[T, PT]) findByID(ctx context.Context, id string) (*T, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	doc, err := f.store.FindOne(ctx, mergeFilters(f.opts.Filter, bson.M{"_id": oid}))
	if err != nil {
		if isNoDocument(err) {
			return nil, f.notFound()
		}
		return nil, storeError(err)
	}
	return doc, nil
}

func (f *Factory[T, PT]) populate(ctx context.Context, docs []*T, extra []Populator[T]) error {
	if len(docs) == 0 {
		return nil
	}
	for _, p := range append(append([]Populator[T]{}, f.opts.Populate...), extra...) {
		if err := p(ctx, docs); err != nil {
			return err
		}
	}
	return nil
}

func (f *Factory[T, PT]) notFound() error {
	return errors.NotFound(fmt.Sprintf("No %s found with that ID", f.opts.Name))
}

// ParseID converts a path id into an ObjectID.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errors.Validation(fmt.Sprintf("Invalid _id: %s", id))
	}
	return oid, nil
}

func clone[T any](doc *T) (*T, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out T
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// changes builds the $set/$unset update that turns before into after,
// comparing top-level fields in their stored form.
func changes[T any](before, after *T) (bson.M, error) {
	was, err := toDocument(before)
	if err != nil {
		return nil, err
	}
	now, err := toDocument(after)
	if err != nil {
		return nil, err
	}
	set, unset := bson.M{}, bson.M{}
	for k, v := range now {
		if k == "_id" {
			continue
		}
		if old, ok := was[k]; !ok || !reflect.DeepEqual(old, v) {
			set[k] = v
		}
	}
	for k := range was {
		if _, ok := now[k]; !ok && k != "_id" {
			unset[k] = ""
		}
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update, nil
}

func toDocument(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func storeError(err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	if IsDuplicateKey(err) {
		return errors.NewAPIError(errors.CodeDuplicateField, "Duplicate field value. Please use another value!", http.StatusBadRequest, err.Error())
	}
	logger.Error("store operation failed", "error", err)
	return errors.Wrap(err, "DB_ERROR", "Database operation failed", http.StatusInternalServerError)
}
