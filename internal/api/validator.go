package api

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/yakoovad/hackathon-registration/internal/service"
)

type requestValidator struct {
	validate *validator.Validate
}

func NewValidator() *requestValidator {
	return &requestValidator{validate: validator.New()}
}

// Validate adapts go-playground/validator to echo, folding field-level
// violations into the service error so clients see which fields failed.
func (v *requestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !asValidationErrors(err, &fieldErrs) {
		return service.NewError(service.ErrorCodeValidation, "request validation failed")
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}

	return service.NewError(service.ErrorCodeValidation,
		"invalid fields: "+strings.Join(fields, ", ")).
		WithDetail("fields", fields)
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	if ve, ok := err.(validator.ValidationErrors); ok {
		*target = ve
		return true
	}
	return false
}
