package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/dontidros/natours-project/logger"
	"github.com/dontidros/natours-project/utils/errors"
)

// AppHandler is an HTTP handler that reports failures by returning them.
type AppHandler func(w http.ResponseWriter, r *http.Request) error

// ErrorPage renders errors for browser (non-API) requests.
type ErrorPage interface {
	RenderError(w http.ResponseWriter, r *http.Request, status int, message string)
}

// ErrorHandler turns handler errors and panics into responses.
type ErrorHandler struct {
	Dev   bool
	Page  ErrorPage
	Fatal chan<- any
}

func NewErrorHandler(dev bool, page ErrorPage, fatal chan<- any) *ErrorHandler {
	return &ErrorHandler{Dev: dev, Page: page, Fatal: fatal}
}

type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Handle adapts an AppHandler to http.Handler.
func (h *ErrorHandler) Handle(fn AppHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.Write(w, r, err)
		}
	})
}

// HandleAPI is Handle for endpoints outside /api that still answer in JSON.
func (h *ErrorHandler) HandleAPI(fn AppHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.writeJSON(w, h.classify(r, err))
		}
	})
}

// Write sends err as JSON for API paths and as the error page otherwise.
func (h *ErrorHandler) Write(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := h.classify(r, err)
	if !IsAPI(r) && h.Page != nil {
		message := apiErr.Message
		if !h.Dev && !apiErr.Operational() {
			message = "Please try again later."
		}
		h.Page.RenderError(w, r, apiErr.Status, message)
		return
	}
	h.writeJSON(w, apiErr)
}

func (h *ErrorHandler) classify(r *http.Request, err error) *errors.APIError {
	apiErr, ok := errors.As(err)
	if !ok {
		apiErr = errors.Wrap(err, errors.CodeInternal, errors.ErrInternal.Message, http.StatusInternalServerError)
	}
	if apiErr.Operational() {
		logger.DebugContext(r.Context(), "request failed", "code", apiErr.Code, "status", apiErr.Status, "message", apiErr.Message)
	} else {
		logger.ErrorContext(r.Context(), "request error", "code", apiErr.Code, "message", apiErr.Message, "details", apiErr.Details)
	}
	return apiErr
}

func (h *ErrorHandler) writeJSON(w http.ResponseWriter, apiErr *errors.APIError) {
	body := errorBody{Status: StatusText(apiErr.Status), Message: apiErr.Message}
	switch {
	case h.Dev:
		body.Code = apiErr.Code
		body.Details = apiErr.Details
	case !apiErr.Operational():
		body.Message = errors.ErrInternal.Message
	}
	WriteJSON(w, apiErr.Status, body)
}

// Recover answers a panicking request with 500 and reports the panic on Fatal.
func (h *ErrorHandler) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.ErrorContext(r.Context(), "panic recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			h.Write(w, r, errors.Wrap(fmt.Errorf("panic: %v", rec), errors.CodeInternal, errors.ErrInternal.Message, http.StatusInternalServerError))
			if h.Fatal != nil {
				select {
				case h.Fatal <- rec:
				default:
				}
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// NotFound answers routes that matched nothing.
func (h *ErrorHandler) NotFound() http.Handler {
	return h.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return errors.NotFound(fmt.Sprintf("Can't find %s on this server", r.URL.RequestURI()))
	})
}

// StatusText is "fail" for client errors and "error" for server errors.
func StatusText(status int) string {
	if status >= 400 && status < 500 {
		return "fail"
	}
	return "error"
}

func IsAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
