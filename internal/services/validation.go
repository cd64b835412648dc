package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError carries a message fit for an API client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

var fieldMessages = map[string]string{
	"Title.required":       "Please add a title",
	"Title.max":            "Title cannot be more than 100 characters",
	"Category.required":    "Please add a category",
	"Amount.required":      "Please add an amount",
	"Amount.gt":            "Amount must be greater than 0",
	"PaymentMode.required": "Please add a payment mode",
	"PaymentMode.oneof":    "Payment mode must be one of Cash, Online, Card, Other",
	"Notes.max":            "Notes cannot be more than 500 characters",
	"Email.required":       "Please provide an email address",
	"Email.email":          "Please provide a valid email",
	"Code.required":        "Please provide email and OTP",
}

// validateStruct runs the struct tags and joins the messages of every
// failing field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.StructField()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
		}
		msgs = append(msgs, msg)
	}
	return &ValidationError{Message: strings.Join(msgs, ", ")}
}
