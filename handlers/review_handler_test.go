package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dontidros/natours-project/models"
)

func TestNestedReviews(t *testing.T) {
	s := newServer(t)
	user, token := s.user(t, "Laura Wilson", "laura@example.com", models.RoleUser)
	forest := s.tour(t, "The Forest Hiker", 397)
	sea := s.tour(t, "The Sea Explorer", 497)

	rec := s.do(request{method: http.MethodPost, target: "/api/v1/tours/" + forest.ID.Hex() + "/reviews", token: token,
		body: `{"review": "Amazing trip!", "rating": 4}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	review := dataOf(t, rec, "data").(map[string]any)
	assert.Equal(t, forest.ID.Hex(), review["tour"])
	assert.Equal(t, user.ID.Hex(), review["user"])

	rec = s.do(request{method: http.MethodPost, target: "/api/v1/tours/" + forest.ID.Hex() + "/reviews", token: token,
		body: `{"review": "Again!", "rating": 5}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(request{method: http.MethodPost, target: "/api/v1/reviews", token: token,
		body: `{"review": "Wet but fun", "rating": 3, "tour": "` + sea.ID.Hex() + `"}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(request{method: http.MethodGet, target: "/api/v1/tours/" + forest.ID.Hex() + "/reviews", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["results"])

	rec = s.do(request{method: http.MethodGet, target: "/api/v1/reviews", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decode(t, rec)["results"])

	rec = s.do(request{method: http.MethodGet, target: "/api/v1/tours/" + forest.ID.Hex()})
	require.Equal(t, http.StatusOK, rec.Code)
	tour := dataOf(t, rec, "data").(map[string]any)
	assert.Equal(t, 4.0, tour["ratingsAverage"])
	assert.Equal(t, 1.0, tour["ratingsQuantity"])
	assert.Len(t, tour["reviews"], 1)
}

func TestReviewsRequireUserRole(t *testing.T) {
	s := newServer(t)
	_, guideToken := s.user(t, "Steve Guide", "guide@example.com", models.RoleGuide)
	forest := s.tour(t, "The Forest Hiker", 397)

	rec := s.do(request{method: http.MethodGet, target: "/api/v1/reviews"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(request{method: http.MethodPost, target: "/api/v1/tours/" + forest.ID.Hex() + "/reviews", token: guideToken,
		body: `{"review": "Nice", "rating": 4}`})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
