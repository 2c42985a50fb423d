package dashboard

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is user input the dashboard refuses before any write.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StudentInput is the "add student" form.
type StudentInput struct {
	Name          string `json:"name" validate:"required,max=120"`
	Age           *int   `json:"age" validate:"omitempty,gte=0,lte=120"`
	Grade         string `json:"grade" validate:"omitempty,max=16"`
	Village       string `json:"village" validate:"max=120"`
	Contact       string `json:"contact" validate:"max=40"`
	School        string `json:"school" validate:"max=120"`
	LearningStyle string `json:"learning_style" validate:"omitempty,oneof=visual auditory kinesthetic reading"`
}

func (in *StudentInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Village = strings.TrimSpace(in.Village)
	in.Contact = strings.TrimSpace(in.Contact)
	in.School = strings.TrimSpace(in.School)
	in.Grade = strings.TrimSpace(in.Grade)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage turns validator output into one line a user can act on.
func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	switch {
	case fe.Field() == "name" && fe.Tag() == "required":
		return &ValidationError{Message: "Please enter student name"}
	case fe.Tag() == "oneof":
		return &ValidationError{Message: fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())}
	default:
		return &ValidationError{Message: fmt.Sprintf("invalid %s", fe.Field())}
	}
}
