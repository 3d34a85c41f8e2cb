package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestIndexesDeclareUniqueConstraints(t *testing.T) {
	idx := Indexes()

	unique := map[string][]bson.D{}
	for coll, list := range idx {
		for _, m := range list {
			if m.Options != nil && m.Options.Unique != nil && *m.Options.Unique {
				unique[coll] = append(unique[coll], m.Keys.(bson.D))
			}
		}
	}

	assert.Equal(t, []bson.D{{{Key: "name", Value: 1}}}, unique[ToursCollection])
	assert.Equal(t, []bson.D{{{Key: "email", Value: 1}}}, unique[UsersCollection])
	assert.Equal(t, []bson.D{{{Key: "tour", Value: 1}, {Key: "user", Value: 1}}}, unique[ReviewsCollection])
	require.Len(t, unique[BookingsCollection], 1)

	var geo bool
	for _, m := range idx[ToursCollection] {
		if m.Keys.(bson.D)[0].Value == "2dsphere" {
			geo = true
		}
	}
	assert.True(t, geo, "startLocation needs a 2dsphere index for $geoNear")
}
