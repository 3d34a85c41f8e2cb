package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/dontidros/natours-project/logger"
	"github.com/dontidros/natours-project/models"
)

// Seeder loads and wipes the development data set.
type Seeder struct {
	catalog *Catalog
	dir     string
}

func NewSeeder(catalog *Catalog, dir string) *Seeder {
	return &Seeder{catalog: catalog, dir: dir}
}

// Import inserts tours, users and reviews from dir and recomputes every
// tour's ratings. User passwords in the data set are already hashed.
func (s *Seeder) Import(ctx context.Context) error {
	tours, _, err := readSeed[models.Tour](filepath.Join(s.dir, "tours.json"))
	if err != nil {
		return err
	}
	users, rawUsers, err := readSeed[models.User](filepath.Join(s.dir, "users.json"))
	if err != nil {
		return err
	}
	for i, u := range users {
		if pw, ok := rawUsers[i]["password"]; ok {
			if err := json.Unmarshal(pw, &u.Password); err != nil {
				return fmt.Errorf("decoding password of %q: %w", u.Email, err)
			}
		}
	}
	reviews, _, err := readSeed[models.Review](filepath.Join(s.dir, "reviews.json"))
	if err != nil {
		return err
	}

	for _, t := range tours {
		if _, err := s.catalog.Tours.CreateOne(ctx, t); err != nil {
			return fmt.Errorf("importing tour %q: %w", t.Name, err)
		}
	}
	for _, u := range users {
		if _, err := s.catalog.Users.CreateOne(ctx, u); err != nil {
			return fmt.Errorf("importing user %q: %w", u.Email, err)
		}
	}
	for _, r := range reviews {
		if _, err := s.catalog.Reviews.CreateOne(ctx, r); err != nil {
			return fmt.Errorf("importing review %s: %w", r.ID.Hex(), err)
		}
	}
	for _, t := range tours {
		if err := s.catalog.Ratings.Recalculate(ctx, t.ID); err != nil {
			return err
		}
	}
	logger.Info("data imported", "tours", len(tours), "users", len(users), "reviews", len(reviews))
	return nil
}

// Delete removes every tour, user, review and booking.
func (s *Seeder) Delete(ctx context.Context) error {
	n, err := s.catalog.Bookings.Store().DeleteMany(ctx, bson.M{})
	if err != nil {
		return err
	}
	r, err := s.catalog.Reviews.Store().DeleteMany(ctx, bson.M{})
	if err != nil {
		return err
	}
	u, err := s.catalog.Users.Store().DeleteMany(ctx, bson.M{})
	if err != nil {
		return err
	}
	t, err := s.catalog.Tours.Store().DeleteMany(ctx, bson.M{})
	if err != nil {
		return err
	}
	logger.Info("data deleted", "tours", t, "users", u, "reviews", r, "bookings", n)
	return nil
}

// readSeed decodes a JSON array, accepting "_id" as an alias of "id". The
// raw items are returned too, for fields that are hidden from JSON.
func readSeed[T any](path string) ([]*T, []map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	out := make([]*T, 0, len(items))
	for _, item := range items {
		if id, ok := item["_id"]; ok {
			item["id"] = id
			delete(item, "_id")
		}
		buf, err := json.Marshal(item)
		if err != nil {
			return nil, nil, err
		}
		var doc T
		if err := json.Unmarshal(buf, &doc); err != nil {
			return nil, nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		out = append(out, &doc)
	}
	return out, items, nil
}
