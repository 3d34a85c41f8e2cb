package services

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
	DefaultSort  = "-createdAt"
)

// reservedQueryKeys never become filters.
var reservedQueryKeys = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

var operatorKey = regexp.MustCompile(`^([A-Za-z0-9_.]+)\[(gte|gt|lte|lt)\]$`)

var fieldName = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.]*$`)

// QueryFeatures is a list request translated for the store: filter, sort,
// projection and pagination, applied in that order.
type QueryFeatures struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.M
	Fields     []string
	Page       int64
	Limit      int64
}

// ParseQuery builds QueryFeatures from a request query string.
func ParseQuery(values url.Values) QueryFeatures {
	q := QueryFeatures{
		Filter: parseFilter(values),
		Sort:   parseSort(values.Get("sort")),
		Page:   positiveInt(values.Get("page"), DefaultPage),
		Limit:  positiveInt(values.Get("limit"), DefaultLimit),
	}
	q.Fields = splitList(values.Get("fields"))
	if len(q.Fields) > 0 {
		q.Projection = bson.M{}
		for _, f := range q.Fields {
			q.Projection[f] = 1
		}
	} else {
		q.Projection = bson.M{"__v": 0}
	}
	return q
}

// Skip saturates at math.MaxInt64, so a page number too large to multiply out
// still lands past the last document.
func (q QueryFeatures) Skip() int64 {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt64/q.Limit {
		return math.MaxInt64
	}
	return (q.Page - 1) * q.Limit
}

// FindOptions renders sort, projection and pagination for the driver.
func (q QueryFeatures) FindOptions() *options.FindOptions {
	return options.Find().
		SetSort(q.Sort).
		SetProjection(q.Projection).
		SetSkip(q.Skip()).
		SetLimit(q.Limit)
}

func parseFilter(values url.Values) bson.M {
	filter := bson.M{}
	for key, raw := range values {
		if reservedQueryKeys[key] || len(raw) == 0 {
			continue
		}
		if m := operatorKey.FindStringSubmatch(key); m != nil {
			field, op := m[1], "$"+m[2]
			cond, _ := filter[field].(bson.M)
			if cond == nil {
				cond = bson.M{}
			}
			cond[op] = castValue(raw[len(raw)-1])
			filter[field] = cond
			continue
		}
		if !fieldName.MatchString(key) {
			continue
		}
		if len(raw) > 1 {
			in := make(bson.A, 0, len(raw))
			for _, v := range raw {
				in = append(in, castValue(v))
			}
			filter[key] = bson.M{"$in": in}
			continue
		}
		filter[key] = castValue(raw[0])
	}
	return filter
}

func parseSort(raw string) bson.D {
	fields := splitList(raw)
	if len(fields) == 0 {
		fields = []string{DefaultSort}
	}
	sort := bson.D{}
	hasID := false
	for _, f := range fields {
		dir := 1
		if strings.HasPrefix(f, "-") {
			dir = -1
			f = strings.TrimPrefix(f, "-")
		}
		if !fieldName.MatchString(f) {
			continue
		}
		if f == "_id" {
			hasID = true
		}
		sort = append(sort, bson.E{Key: f, Value: dir})
	}
	// Equal sort keys would otherwise page nondeterministically.
	if !hasID {
		sort = append(sort, bson.E{Key: "_id", Value: 1})
	}
	return sort
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func positiveInt(raw string, fallback int64) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// castValue gives query-string values the type a schema-aware store expects.
func castValue(raw string) any {
	if len(raw) == 24 {
		if id, err := primitive.ObjectIDFromHex(raw); err == nil {
			return id
		}
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	return raw
}
