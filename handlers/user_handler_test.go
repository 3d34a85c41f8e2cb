package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dontidros/natours-project/models"
)

func TestUpdateMe(t *testing.T) {
	s := newServer(t)
	_, token := s.user(t, "Laura Wilson", "laura@example.com", models.RoleUser)

	rec := s.do(request{method: http.MethodPatch, target: "/api/v1/users/updateMe", token: token, body: `{"password": "hijack123"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "This route is not for password updates. Please use /updateMyPassword.", decode(t, rec)["message"])

	rec = s.do(request{method: http.MethodPatch, target: "/api/v1/users/updateMe", token: token,
		body: `{"name": "Laura Smith", "role": "admin", "photo": "evil.jpg"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := dataOf(t, rec, "user").(map[string]any)
	assert.Equal(t, "Laura Smith", user["name"])
	assert.Equal(t, models.RoleUser, user["role"])
	assert.Equal(t, models.DefaultPhoto, user["photo"])
}

func TestDeleteMeHidesAccount(t *testing.T) {
	s := newServer(t)
	_, token := s.user(t, "Laura Wilson", "laura@example.com", models.RoleUser)
	_, adminToken := s.user(t, "Admin", "admin@example.com", models.RoleAdmin)

	rec := s.do(request{method: http.MethodDelete, target: "/api/v1/users/deleteMe", token: token})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(request{method: http.MethodGet, target: "/api/v1/users", token: adminToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["results"])

	rec = s.do(request{method: http.MethodGet, target: "/api/v1/users/me", token: token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserAdminRoutes(t *testing.T) {
	s := newServer(t)
	_, token := s.user(t, "Laura Wilson", "laura@example.com", models.RoleUser)
	_, adminToken := s.user(t, "Admin", "admin@example.com", models.RoleAdmin)

	rec := s.do(request{method: http.MethodGet, target: "/api/v1/users", token: token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(request{method: http.MethodPost, target: "/api/v1/users", token: adminToken, body: `{"name": "X"}`})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "This route is not defined! Please use /signup instead", body["message"])
}
