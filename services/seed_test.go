package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	seedTours = `[{
		"_id": "5c88fa8cf4afda39709c2955",
		"name": "The Sea Explorer",
		"duration": 7,
		"maxGroupSize": 15,
		"difficulty": "medium",
		"ratingsAverage": 4.8,
		"ratingsQuantity": 9,
		"price": 497,
		"summary": "Exploring the jaw-dropping US east coast by foot and by boat",
		"imageCover": "tour-2-cover.jpg",
		"guides": ["5c8a22c62f8fb814b56fa18b"],
		"startLocation": {"type": "Point", "coordinates": [-80.185942, 25.774772], "address": "Miami, USA"}
	}]`
	seedUsers = `[
		{"_id": "5c8a22c62f8fb814b56fa18b", "name": "Miyah Myles", "email": "miyah@example.com", "role": "lead-guide", "password": "$2a$12$Q0grHjH9PXc6SxivC8m12.2mZJ9BbKcgFpwSG4Y1ZEII8HJVzWeyS"},
		{"_id": "5c8a1dfa2f8fb814b56fa181", "name": "Lourdes Browning", "email": "loulou@example.com", "role": "user", "password": "$2a$12$Q0grHjH9PXc6SxivC8m12.2mZJ9BbKcgFpwSG4Y1ZEII8HJVzWeyS"}
	]`
	seedReviews = `[{
		"_id": "5c8a355b14eb5c17645c9109",
		"review": "Cras mollis nisi parturient mi nec aliquet suspendisse",
		"rating": 4,
		"tour": "5c88fa8cf4afda39709c2955",
		"user": "5c8a1dfa2f8fb814b56fa181"
	}]`
)

func writeSeed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"tours.json":   seedTours,
		"users.json":   seedUsers,
		"reviews.json": seedReviews,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestSeederImportAndDelete(t *testing.T) {
	ctx := context.Background()
	tc := newTestCatalog()
	seeder := NewSeeder(tc.Catalog, writeSeed(t))

	require.NoError(t, seeder.Import(ctx))

	tour, err := tc.Tours.GetOne(ctx, "5c88fa8cf4afda39709c2955")
	require.NoError(t, err)
	assert.Equal(t, "the-sea-explorer", tour.Slug)
	assert.Equal(t, 1, tour.RatingsQuantity, "ratings follow the imported reviews")
	assert.Equal(t, 4.0, tour.RatingsAverage)
	require.Len(t, tour.Guides, 1)
	assert.NotNil(t, tour.Guides[0].Doc)

	user, err := tc.Users.GetOne(ctx, "5c8a1dfa2f8fb814b56fa181")
	require.NoError(t, err)
	assert.NotEmpty(t, user.Password)

	require.NoError(t, seeder.Delete(ctx))
	assert.Empty(t, tc.tours.Docs)
	assert.Empty(t, tc.users.Docs)
	assert.Empty(t, tc.reviews.Docs)
}

func TestSeederMissingFile(t *testing.T) {
	seeder := NewSeeder(newTestCatalog().Catalog, t.TempDir())
	assert.Error(t, seeder.Import(context.Background()))
}
