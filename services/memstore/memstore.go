// Package memstore is an in-memory implementation of services.Store used by
// package tests that need the factories without a MongoDB server.
package memstore

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dontidros/natours-project/models"
)

// Store understands the subset of the query language the services emit:
// equality, $ne/$gt/$gte/$lt/$lte/$in, $and, $geoWithin, $set and $unset
// updates, sort, skip and limit.
type Store[T any] struct {
	mu     sync.Mutex
	Docs   []bson.M
	unique [][]string
	// FailNext, when set, is returned by the next call.
	FailNext error
}

// New returns an empty store; each unique entry is a compound unique key.
func New[T any](unique ...[]string) *Store[T] {
	return &Store[T]{unique: unique}
}

func (s *Store[T]) Insert(_ context.Context, doc *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	m, err := toM(doc)
	if err != nil {
		return err
	}
	if err := s.checkUnique(m, -1); err != nil {
		return err
	}
	s.Docs = append(s.Docs, m)
	return nil
}

func (s *Store[T]) FindOne(_ context.Context, filter bson.M) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	for _, m := range s.Docs {
		if matches(m, filter) {
			return fromM[T](m)
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (s *Store[T]) Find(_ context.Context, filter bson.M, opts *options.FindOptions) ([]*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	var found []bson.M
	for _, m := range s.Docs {
		if matches(m, filter) {
			found = append(found, m)
		}
	}
	if opts != nil {
		if keys, ok := opts.Sort.(bson.D); ok && len(keys) > 0 {
			sort.SliceStable(found, func(i, j int) bool {
				for _, k := range keys {
					c := compare(found[i][k.Key], found[j][k.Key])
					if c == 0 {
						continue
					}
					if dir, _ := k.Value.(int); dir < 0 {
						return c > 0
					}
					return c < 0
				}
				return false
			})
		}
		if opts.Skip != nil {
			skip := int(*opts.Skip)
			if skip > len(found) {
				skip = len(found)
			}
			found = found[skip:]
		}
		if opts.Limit != nil && *opts.Limit > 0 && int(*opts.Limit) < len(found) {
			found = found[:*opts.Limit]
		}
	}
	docs := []*T{}
	for _, m := range found {
		doc, err := fromM[T](m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store[T]) Count(_ context.Context, filter bson.M) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.Docs {
		if matches(m, filter) {
			n++
		}
	}
	return n, nil
}

func (s *Store[T]) Update(_ context.Context, filter bson.M, update bson.M) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return false, err
	}
	for i, m := range s.Docs {
		if !matches(m, filter) {
			continue
		}
		next := bson.M{}
		for k, v := range m {
			next[k] = v
		}
		set, _ := update["$set"].(bson.M)
		for k, v := range set {
			next[k] = v
		}
		unset, _ := update["$unset"].(bson.M)
		for k := range unset {
			delete(next, k)
		}
		if err := s.checkUnique(next, i); err != nil {
			return false, err
		}
		s.Docs[i] = next
		return true, nil
	}
	return false, nil
}

func (s *Store[T]) Delete(_ context.Context, filter bson.M) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return false, err
	}
	for i, m := range s.Docs {
		if matches(m, filter) {
			s.Docs = append(s.Docs[:i], s.Docs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store[T]) DeleteMany(_ context.Context, filter bson.M) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.Docs[:0]
	var n int64
	for _, m := range s.Docs {
		if matches(m, filter) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	s.Docs = kept
	return n, nil
}

// Raw returns the stored form of the document with the given id.
func (s *Store[T]) Raw(id primitive.ObjectID) bson.M {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.Docs {
		if m["_id"] == id {
			return m
		}
	}
	return nil
}

func (s *Store[T]) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

func (s *Store[T]) checkUnique(m bson.M, skip int) error {
	for _, fields := range s.unique {
		for i, other := range s.Docs {
			if i == skip {
				continue
			}
			same := true
			for _, f := range fields {
				if m[f] == nil || compare(m[f], other[f]) != 0 {
					same = false
					break
				}
			}
			if same {
				return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
					Code:    11000,
					Message: fmt.Sprintf("E11000 duplicate key error index: %s", strings.Join(fields, "_")),
				}}}
			}
		}
	}
	return nil
}

func toM(doc any) (bson.M, error) {
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

func fromM[T any](m bson.M) (*T, error) {
	raw, err := bson.Marshal(m)
	if err != nil {
		return nil, err
	}
	var doc T
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func matches(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		if key == "$and" {
			for _, sub := range cond.([]bson.M) {
				if !matches(doc, sub) {
					return false
				}
			}
			continue
		}
		if !matchField(doc[key], cond) {
			return false
		}
	}
	return true
}

func matchField(value, cond any) bool {
	ops, ok := cond.(bson.M)
	if !ok || !isOperatorDoc(ops) {
		return equal(value, cond)
	}
	for op, arg := range ops {
		switch op {
		case "$eq":
			if !equal(value, arg) {
				return false
			}
		case "$ne":
			if equal(value, arg) {
				return false
			}
		case "$in":
			in := false
			rv := reflect.ValueOf(arg)
			for i := 0; i < rv.Len(); i++ {
				if equal(value, rv.Index(i).Interface()) {
					in = true
					break
				}
			}
			if !in {
				return false
			}
		case "$gt", "$gte", "$lt", "$lte":
			if value == nil {
				return false
			}
			c := compare(value, arg)
			if (op == "$gt" && c <= 0) || (op == "$gte" && c < 0) ||
				(op == "$lt" && c >= 0) || (op == "$lte" && c > 0) {
				return false
			}
		case "$geoWithin":
			if !withinSphere(value, arg.(bson.M)["$centerSphere"].(bson.A)) {
				return false
			}
		default:
			panic("memstore: unsupported operator " + op)
		}
	}
	return true
}

func isOperatorDoc(m bson.M) bool {
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return len(m) > 0
}

// equal follows the array semantics of the server: a scalar matches an
// array that contains it.
func equal(value, want any) bool {
	if arr, ok := value.(bson.A); ok {
		if _, wantArr := want.(bson.A); !wantArr {
			for _, v := range arr {
				if equal(v, want) {
					return true
				}
			}
			return false
		}
	}
	if value == nil || want == nil {
		return value == nil && want == nil
	}
	return compare(value, want) == 0
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case time.Time:
		return primitive.NewDateTimeFromTime(n)
	case *time.Time:
		if n == nil {
			return nil
		}
		return primitive.NewDateTimeFromTime(*n)
	}
	return v
}

// compare orders two values of the same kind; values of different kinds
// compare by their formatted form, which is enough for the tests.
func compare(a, b any) int {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case primitive.ObjectID:
		if y, ok := b.(primitive.ObjectID); ok {
			return strings.Compare(x.Hex(), y.Hex())
		}
	case primitive.DateTime:
		if y, ok := b.(primitive.DateTime); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case bool:
		if y, ok := b.(bool); ok {
			if x == y {
				return 0
			}
			if !x {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// withinSphere evaluates $centerSphere against a stored GeoJSON point.
func withinSphere(value any, sphere bson.A) bool {
	var coords bson.A
	switch p := value.(type) {
	case bson.M:
		coords, _ = p["coordinates"].(bson.A)
	case bson.D:
		coords, _ = p.Map()["coordinates"].(bson.A)
	}
	if len(coords) != 2 {
		return false
	}
	center := sphere[0].(bson.A)
	lng1, lat1 := toRad(center[0]), toRad(center[1])
	lng2, lat2 := toRad(coords[0]), toRad(coords[1])
	h := math.Pow(math.Sin((lat2-lat1)/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin((lng2-lng1)/2), 2)
	return 2*math.Asin(math.Sqrt(h)) <= sphere[1].(float64)
}

func toRad(v any) float64 {
	return normalize(v).(float64) * math.Pi / 180
}

// TourRatings counts and averages the stored reviews of a tour.
func TourRatings(reviews *Store[models.Review], tourID primitive.ObjectID) (int, float64) {
	reviews.mu.Lock()
	defer reviews.mu.Unlock()
	var sum float64
	var n int
	for _, m := range reviews.Docs {
		if equal(m["tour"], tourID) {
			sum += normalize(m["rating"]).(float64)
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return n, sum / float64(n)
}
