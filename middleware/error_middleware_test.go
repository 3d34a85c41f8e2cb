package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dontidros/natours-project/utils/errors"
)

type fakePage struct {
	status  int
	message string
}

func (p *fakePage) RenderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	p.status, p.message = status, message
	w.WriteHeader(status)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func failing(err error) AppHandler {
	return func(w http.ResponseWriter, r *http.Request) error { return err }
}

func TestErrorHandlerClientErrors(t *testing.T) {
	eh := NewErrorHandler(false, nil, nil)

	rec := serve(eh.Handle(failing(errors.NotFound("No tour found with that ID"))), http.MethodGet, "/api/v1/tours/1")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "fail", body["status"])
	assert.Equal(t, "No tour found with that ID", body["message"])
	assert.NotContains(t, body, "code")
}

func TestErrorHandlerHidesInternalErrorsInProduction(t *testing.T) {
	eh := NewErrorHandler(false, nil, nil)

	rec := serve(eh.Handle(failing(fmt.Errorf("connection refused"))), http.MethodGet, "/api/v1/tours")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Something went very wrong!", body["message"])
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestErrorHandlerDevelopmentDetails(t *testing.T) {
	eh := NewErrorHandler(true, nil, nil)

	rec := serve(eh.Handle(failing(fmt.Errorf("connection refused"))), http.MethodGet, "/api/v1/tours")

	body := decodeBody(t, rec)
	assert.Equal(t, errors.CodeInternal, body["code"])
	assert.Equal(t, "connection refused", body["details"])
}

func TestErrorHandlerRendersPagesOutsideAPI(t *testing.T) {
	page := &fakePage{}
	eh := NewErrorHandler(false, page, nil)

	rec := serve(eh.Handle(failing(errors.NotFound("There is no tour with that name."))), http.MethodGet, "/tour/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "There is no tour with that name.", page.message)

	serve(eh.Handle(failing(fmt.Errorf("boom"))), http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, page.status)
	assert.Equal(t, "Please try again later.", page.message)
}

func TestRecoverReportsPanics(t *testing.T) {
	fatal := make(chan any, 1)
	eh := NewErrorHandler(false, nil, fatal)
	h := eh.Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map")
	}))

	rec := serve(h, http.MethodGet, "/api/v1/tours")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	select {
	case v := <-fatal:
		assert.Equal(t, "nil map", v)
	default:
		t.Fatal("panic was not reported")
	}
}

func TestNotFoundRoute(t *testing.T) {
	eh := NewErrorHandler(false, nil, nil)

	rec := serve(eh.NotFound(), http.MethodGet, "/api/v1/nothing?x=1")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Can't find /api/v1/nothing?x=1 on this server", decodeBody(t, rec)["message"])
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "fail", StatusText(http.StatusBadRequest))
	assert.Equal(t, "fail", StatusText(http.StatusTooManyRequests))
	assert.Equal(t, "error", StatusText(http.StatusInternalServerError))
}
