package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dontidros/natours-project/config"
	"github.com/dontidros/natours-project/middleware"
	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/services"
)

const loggedOut = "loggedout"

type AuthHandler struct {
	auth *services.AuthService
	cfg  config.AuthConfig
}

func NewAuthHandler(auth *services.AuthService, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{auth: auth, cfg: cfg}
}

type tokenResponse struct {
	Status string `json:"status"`
	Token  string `json:"token"`
	Data   any    `json:"data,omitempty"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) error {
	var input services.SignupInput
	if err := decodeJSON(r, &input); err != nil {
		return err
	}
	user, token, err := h.auth.Signup(r.Context(), input, baseURL(r)+"/me")
	if err != nil {
		return err
	}
	h.sendToken(w, r, http.StatusCreated, user, token)
	return nil
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &input); err != nil {
		return err
	}
	user, token, err := h.auth.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		return err
	}
	h.sendToken(w, r, http.StatusOK, user, token)
	return nil
}

// Logout overwrites the session cookie with a short-lived placeholder.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    loggedOut,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
	})
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
	return nil
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) error {
	var input struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &input); err != nil {
		return err
	}
	resetURL := func(token string) string {
		return fmt.Sprintf("%s/api/v1/users/resetPassword/%s", baseURL(r), token)
	}
	if err := h.auth.ForgotPassword(r.Context(), input.Email, resetURL); err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Token sent to email!"})
	return nil
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) error {
	var input struct {
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	if err := decodeJSON(r, &input); err != nil {
		return err
	}
	user, token, err := h.auth.ResetPassword(r.Context(), mux.Vars(r)["token"], input.Password, input.PasswordConfirm)
	if err != nil {
		return err
	}
	h.sendToken(w, r, http.StatusOK, user, token)
	return nil
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) error {
	var input struct {
		PasswordCurrent string `json:"passwordCurrent"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	if err := decodeJSON(r, &input); err != nil {
		return err
	}
	user, token, err := h.auth.UpdatePassword(r.Context(), middleware.CurrentUser(r).ID,
		input.PasswordCurrent, input.Password, input.PasswordConfirm)
	if err != nil {
		return err
	}
	h.sendToken(w, r, http.StatusOK, user, token)
	return nil
}

// sendToken sets the jwt cookie and returns the token with the user.
func (h *AuthHandler) sendToken(w http.ResponseWriter, r *http.Request, status int, user *models.User, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.cfg.CookieExpiresIn),
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
	middleware.WriteJSON(w, status, tokenResponse{
		Status: "success",
		Token:  token,
		Data:   map[string]any{"user": user},
	})
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

// baseURL is the scheme and host the client used to reach us.
func baseURL(r *http.Request) string {
	scheme := "http"
	if isSecure(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
