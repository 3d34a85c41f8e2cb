package models

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dontidros/natours-project/utils/errors"
)

// Entity is what the generic CRUD factory needs from a persisted type.
type Entity interface {
	GetID() primitive.ObjectID
	SetID(primitive.ObjectID)
	// Prepare applies defaults and derived fields before every write.
	Prepare(now time.Time)
	// Validate checks the document as it is about to be written.
	Validate() error
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and joins every violation into one
// ValidationError, mirroring "Invalid input data. a. b".
func validateStruct(s any, extra ...string) error {
	var msgs []string
	if err := validate.Struct(s); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
	}
	msgs = append(msgs, extra...)
	if len(msgs) == 0 {
		return nil
	}
	return errors.Validation("Invalid input data. " + strings.Join(msgs, ". "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s is either %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return "Please provide a valid email"
	case "ltfield":
		return fmt.Sprintf("Discount price (%v) should be below the regular price", fe.Value())
	case "gt", "gte":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", field)
}
