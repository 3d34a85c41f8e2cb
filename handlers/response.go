package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/dontidros/natours-project/middleware"
	"github.com/dontidros/natours-project/utils/errors"
)

type envelope struct {
	Status  string `json:"status"`
	Results *int   `json:"results,omitempty"`
	Data    any    `json:"data"`
}

// writeData sends {status: "success", data: {key: v}}.
func writeData(w http.ResponseWriter, status int, key string, v any) {
	middleware.WriteJSON(w, status, envelope{Status: "success", Data: map[string]any{key: v}})
}

// writeList sends {status: "success", results: n, data: {data: docs}}.
func writeList(w http.ResponseWriter, n int, docs any) {
	middleware.WriteJSON(w, http.StatusOK, envelope{Status: "success", Results: &n, Data: map[string]any{"data": docs}})
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewAPIError(errors.CodeInvalidInput, "Invalid request data", http.StatusBadRequest, err.Error())
	}
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, middleware.ErrBodyTooLarge
		}
		return nil, errors.NewAPIError(errors.CodeInvalidInput, "Could not read request body", http.StatusBadRequest, err.Error())
	}
	if len(body) == 0 {
		return []byte("{}"), nil
	}
	return body, nil
}

// selectFields reduces each document's JSON form to the selected fields.
func selectFields[T any](docs []*T, fields []string) ([]map[string]json.RawMessage, error) {
	out := make([]map[string]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		var all map[string]json.RawMessage
		if err := json.Unmarshal(raw, &all); err != nil {
			return nil, err
		}
		picked := make(map[string]json.RawMessage, len(fields))
		for _, f := range fields {
			if v, ok := all[f]; ok {
				picked[f] = v
			}
		}
		out = append(out, picked)
	}
	return out, nil
}

func mediaTypeOf(r *http.Request) string {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt
}

// formPatch turns multipart text fields into a JSON patch for T. Each value
// is typed after the JSON field of T it fills; values that do not parse stay
// strings so decoding the patch reports them.
func formPatch[T any](values map[string][]string) map[string]any {
	fields := jsonFields(reflect.TypeOf((*T)(nil)).Elem())
	patch := map[string]any{}
	for k, vs := range values {
		if len(vs) == 0 {
			continue
		}
		typ, ok := fields[k]
		if !ok {
			patch[k] = vs[0]
			continue
		}
		patch[k] = typedFormValue(typ, vs)
	}
	return patch
}

func jsonFields(t reflect.Type) map[string]reflect.Type {
	out := map[string]reflect.Type{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		out[name] = f.Type
	}
	return out
}

func typedFormValue(t reflect.Type, vs []string) any {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	v := vs[0]
	switch t.Kind() {
	case reflect.String:
		return v
	case reflect.Bool:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		return v
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		return v
	case reflect.Slice:
		if t.Elem().Kind() == reflect.String {
			return vs
		}
	}
	// structured fields (locations, dates) may be sent as JSON text
	if json.Valid([]byte(v)) {
		return json.RawMessage(v)
	}
	return v
}
