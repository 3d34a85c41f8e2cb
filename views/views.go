// Package views renders the server-side pages from embedded templates.
package views

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dontidros/natours-project/logger"
	"github.com/dontidros/natours-project/middleware"
	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/utils/errors"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// Page names.
const (
	Overview = "overview"
	Tour     = "tour"
	Login    = "login"
	Signup   = "signup"
	Account  = "account"
	Error    = "error"
)

// Data is what every page template receives.
type Data struct {
	Title   string
	User    *models.User
	Alert   string
	Tours   []*models.Tour
	Tour    *models.Tour
	Message string

	MapboxToken string
}

type Renderer struct {
	pages map[string]*template.Template
	// MapboxToken is handed to the tour map script.
	MapboxToken string
}

func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"firstName":  firstName,
		"month":      func(t time.Time) string { return t.Format("January 2006") },
		"locations":  locationsJSON,
		"stars":      stars,
		"add":        func(a, b int) int { return a + b },
		"paragraphs": paragraphs,
	}
	r := &Renderer{pages: map[string]*template.Template{}}
	for _, page := range []string{Overview, Tour, Login, Signup, Account, Error} {
		t, err := template.New("base").Funcs(funcs).ParseFS(templateFS, "templates/base.gohtml", "templates/"+page+".gohtml")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", page, err)
		}
		r.pages[page] = t
	}
	return r, nil
}

// Render writes page with data. The logged-in user and the pending alert are
// taken from the request unless data sets them.
func (v *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page string, data Data) error {
	t, ok := v.pages[page]
	if !ok {
		return errors.NewAPIError(errors.CodeInternal, "Unknown page "+page, http.StatusInternalServerError)
	}
	if data.User == nil {
		data.User = middleware.CurrentUser(r)
	}
	if data.Alert == "" {
		data.Alert = alertFrom(r.Context())
	}
	data.MapboxToken = v.MapboxToken
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "Failed to render page", http.StatusInternalServerError)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderError implements middleware.ErrorPage.
func (v *Renderer) RenderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	err := v.Render(w, r, status, Error, Data{Title: "Something went wrong!", Message: message})
	if err != nil {
		logger.ErrorContext(r.Context(), "rendering error page failed", "error", err)
		http.Error(w, message, status)
	}
}

type alertKey struct{}

// Alerts turns ?alert=booking into a banner on the rendered page.
func Alerts(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alert") == "booking" {
			msg := "Your booking was successful, please check your email for a confirmation"
			r = r.WithContext(context.WithValue(r.Context(), alertKey{}, msg))
		}
		next.ServeHTTP(w, r)
	})
}

func alertFrom(ctx context.Context) string {
	msg, _ := ctx.Value(alertKey{}).(string)
	return msg
}

func firstName(name string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(name), " ")
	return first
}

// locationsJSON feeds the map script through a data attribute.
func locationsJSON(t *models.Tour) string {
	if len(t.Locations) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(t.Locations)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stars reports, for each of the five stars, whether it is filled.
func stars(rating float64) []bool {
	out := make([]bool, 5)
	for i := range out {
		out[i] = rating >= float64(i+1)
	}
	return out
}
