package models

import (
	"bytes"
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ref is a reference to a document in another collection. It is stored as a
// bare ObjectID and serialized either as the id or, once populated, as the
// referenced document.
type Ref struct {
	ID  primitive.ObjectID
	Doc any
}

func NewRef(id primitive.ObjectID) Ref {
	return Ref{ID: id}
}

func (r Ref) IsZero() bool {
	return r.ID.IsZero()
}

func (r Ref) Hex() string {
	return r.ID.Hex()
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Doc != nil {
		return json.Marshal(r.Doc)
	}
	if r.ID.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID.Hex())
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	r.Doc = nil
	if bytes.Equal(data, []byte("null")) {
		r.ID = primitive.NilObjectID
		return nil
	}
	var hex string
	if err := json.Unmarshal(data, &hex); err != nil {
		return err
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

func (r Ref) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if r.ID.IsZero() {
		return bsontype.Null, nil, nil
	}
	return bson.MarshalValue(r.ID)
}

func (r *Ref) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	r.Doc = nil
	if t == bsontype.Null || t == bsontype.Undefined {
		r.ID = primitive.NilObjectID
		return nil
	}
	return bson.RawValue{Type: t, Value: data}.Unmarshal(&r.ID)
}
