package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/dontidros/natours-project/logger"
	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/utils/errors"
)

// CookieName is the cookie carrying the JWT for browser sessions.
const CookieName = "jwt"

type ctxKey string

const ctxUser ctxKey = "user"

// TokenVerifier resolves a JWT to the user it was issued for.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*models.User, error)
}

type Auth struct {
	verifier TokenVerifier
	errors   *ErrorHandler
}

func NewAuth(verifier TokenVerifier, eh *ErrorHandler) *Auth {
	return &Auth{verifier: verifier, errors: eh}
}

// Protect rejects requests without a valid token from a Bearer header or
// the jwt cookie.
func (a *Auth) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFrom(r)
		if token == "" {
			a.errors.Write(w, r, errors.ErrUnauthorized)
			return
		}
		user, err := a.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			a.errors.Write(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// IsLoggedIn attaches the cookie's user when there is a valid one and never
// fails. Used by rendered pages.
func (a *Auth) IsLoggedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
			if user, err := a.verifier.VerifyToken(r.Context(), c.Value); err == nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RestrictTo must run after Protect.
func (a *Auth) RestrictTo(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r)
			if user == nil {
				a.errors.Write(w, r, errors.ErrUnauthorized)
				return
			}
			if !slices.Contains(roles, user.Role) {
				a.errors.Write(w, r, errors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithUser(ctx context.Context, user *models.User) context.Context {
	ctx = context.WithValue(ctx, ctxUser, user)
	return context.WithValue(ctx, logger.UserIDKey, user.ID.Hex())
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(ctxUser).(*models.User)
	return user
}

func tokenFrom(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "loggedout" {
		return c.Value
	}
	return ""
}
