package middleware

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/dontidros/natours-project/utils/errors"
)

// MaxBodyBytes caps JSON and form bodies. Multipart uploads are not capped here.
const MaxBodyBytes = 10 << 10

// MaxUploadBytes is the memory budget of a parsed multipart form; larger
// files spill to disk.
const MaxUploadBytes = 32 << 20

// ParameterWhitelist lists query keys that may repeat; every other repeated
// key keeps its last value.
var ParameterWhitelist = []string{"duration", "ratingsQuantity", "ratingsAverage", "maxGroupSize", "difficulty", "price"}

var ErrBodyTooLarge = errors.NewAPIError("PAYLOAD_TOO_LARGE", "Request body too large", http.StatusRequestEntityTooLarge)

const contentSecurityPolicy = "default-src 'self' https:; " +
	"script-src 'self' https://js.stripe.com https://api.mapbox.com https://cdnjs.cloudflare.com; " +
	"style-src 'self' https: 'unsafe-inline'; " +
	"img-src 'self' data: blob: https:; " +
	"worker-src blob:; " +
	"connect-src 'self' https://api.mapbox.com https://events.mapbox.com https://api.stripe.com; " +
	"frame-src https://js.stripe.com https://checkout.stripe.com; " +
	"object-src 'none'; base-uri 'self'; form-action 'self'"

// SecurityHeaders sets the usual hardening headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-DNS-Prefetch-Control", "off")
		h.Set("X-Download-Options", "noopen")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")
		h.Set("X-XSS-Protection", "0")
		next.ServeHTTP(w, r)
	})
}

// BodyLimit caps JSON and urlencoded bodies at limit bytes.
func BodyLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch mediaType(r) {
			case "application/json", "application/x-www-form-urlencoded":
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Sanitizer strips operator keys ("$..." and dotted paths) from query
// strings and bodies (JSON, urlencoded and multipart text fields) and removes
// markup from body strings. Password fields
// are left untouched.
type Sanitizer struct {
	policy *bluemonday.Policy
	errors *ErrorHandler
}

func NewSanitizer(eh *ErrorHandler) *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy(), errors: eh}
}

func (s *Sanitizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.URL.RawQuery = s.cleanValues(r.URL.Query()).Encode()

		switch mediaType(r) {
		case "application/json":
			body, err := io.ReadAll(r.Body)
			if err != nil {
				s.errors.Write(w, r, readError(err))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(s.cleanJSON(body)))
		case "application/x-www-form-urlencoded":
			if err := r.ParseForm(); err != nil {
				s.errors.Write(w, r, readError(err))
				return
			}
			r.PostForm = s.cleanValues(r.PostForm)
		case "multipart/form-data":
			if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
				s.errors.Write(w, r, errors.NewAPIError(errors.CodeInvalidInput, "Invalid multipart form", http.StatusBadRequest, err.Error()))
				return
			}
			s.cleanValues(r.MultipartForm.Value)
			s.cleanValues(r.PostForm)
			s.cleanValues(r.Form)
		}
		next.ServeHTTP(w, r)
	})
}

// cleanJSON returns body unchanged when it is not valid JSON so the handler
// reports the decoding error itself.
func (s *Sanitizer) cleanJSON(body []byte) []byte {
	if len(bytes.TrimSpace(body)) == 0 {
		return body
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return body
	}
	out, err := json.Marshal(s.clean("", v))
	if err != nil {
		return body
	}
	return out
}

func (s *Sanitizer) clean(key string, v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if unsafeKey(k) {
				delete(t, k)
				continue
			}
			t[k] = s.clean(k, child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = s.clean(key, child)
		}
		return t
	case string:
		return s.cleanString(key, t)
	default:
		return v
	}
}

func (s *Sanitizer) cleanValues(values url.Values) url.Values {
	for k, vs := range values {
		if unsafeKey(k) {
			delete(values, k)
			continue
		}
		for i, v := range vs {
			vs[i] = s.cleanString(k, v)
		}
	}
	return values
}

func (s *Sanitizer) cleanString(key, v string) string {
	if strings.HasPrefix(key, "password") || !strings.ContainsAny(v, "<>") {
		return v
	}
	return s.policy.Sanitize(v)
}

func unsafeKey(k string) bool {
	return strings.HasPrefix(k, "$") || strings.Contains(k, ".")
}

// ParameterPollution collapses repeated query keys to their last value unless
// the key (or its bracketed base, as in price[gte]) is whitelisted.
func ParameterPollution(whitelist []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			changed := false
			for k, vs := range q {
				base, _, _ := strings.Cut(k, "[")
				if len(vs) > 1 && !slices.Contains(whitelist, base) {
					q[k] = vs[len(vs)-1:]
					changed = true
				}
			}
			if changed {
				r.URL.RawQuery = q.Encode()
			}
			next.ServeHTTP(w, r)
		})
	}
}

func mediaType(r *http.Request) string {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt
}

func readError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return ErrBodyTooLarge
	}
	return errors.NewAPIError(errors.CodeInvalidInput, "Could not read request body", http.StatusBadRequest, err.Error())
}
