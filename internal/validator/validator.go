package validator

import (
	"github.com/go-playground/validator/v10"

	ierr "github.com/psiflow/psiflow/internal/errors"
)

var validate = validator.New()

// ValidateRequest runs struct-tag validation on a request DTO and converts
// failures into the standard validation error shape.
func ValidateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		details := map[string]any{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		return ierr.WithError(err).
			WithHint("Request validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
