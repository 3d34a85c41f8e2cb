package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"

	DefaultPhoto = "default.jpg"
)

// User passwords, reset tokens and the active flag never leave the server.
type User struct {
	ID                   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name                 string             `json:"name" bson:"name" validate:"required"`
	Email                string             `json:"email" bson:"email" validate:"required,email"`
	Photo                string             `json:"photo" bson:"photo"`
	Role                 string             `json:"role" bson:"role" validate:"oneof=user guide lead-guide admin"`
	Password             string             `json:"-" bson:"password" validate:"required"`
	PasswordChangedAt    *time.Time         `json:"-" bson:"passwordChangedAt,omitempty"`
	PasswordResetToken   string             `json:"-" bson:"passwordResetToken,omitempty"`
	PasswordResetExpires *time.Time         `json:"-" bson:"passwordResetExpires,omitempty"`
	Active               *bool              `json:"-" bson:"active,omitempty"`
}

func (u *User) GetID() primitive.ObjectID   { return u.ID }
func (u *User) SetID(id primitive.ObjectID) { u.ID = id }

func (u *User) Prepare(time.Time) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Name = strings.TrimSpace(u.Name)
	if u.Photo == "" {
		u.Photo = DefaultPhoto
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Active == nil {
		active := true
		u.Active = &active
	}
}

func (u *User) Validate() error {
	return validateStruct(u)
}

func (u *User) IsActive() bool {
	return u.Active == nil || *u.Active
}

// ChangedPasswordAfter reports whether the password was changed after a token
// issued at iat.
func (u *User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat.Unix() < u.PasswordChangedAt.Unix()
}

// UserSummary is what a populated review author exposes.
type UserSummary struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Photo string             `json:"photo"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Photo: u.Photo}
}
