package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"herway/routing"
)

type ValidationService struct {
	validator *validator.Validate
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

var phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)

func NewValidationService() *ValidationService {
	v := validator.New()

	v.RegisterValidation("phone", validatePhone)
	v.RegisterValidation("coordinate", validateCoordinate)
	v.RegisterValidation("transport_mode", validateTransportMode)

	return &ValidationService{
		validator: v,
	}
}

func (vs *ValidationService) ValidateStruct(s interface{}) []ValidationError {
	var validationErrors []ValidationError

	err := vs.validator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []ValidationError{{Message: err.Error()}}
	}

	for _, fe := range fieldErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fmt.Sprintf("%v", fe.Value()),
			Message: vs.getErrorMessage(fe),
		})
	}
	return validationErrors
}

// Validate is ValidateStruct folded into a single ServiceError.
func (vs *ValidationService) Validate(s interface{}) error {
	if errs := vs.ValidateStruct(s); len(errs) > 0 {
		return NewValidationError(errs)
	}
	return nil
}

func (vs *ValidationService) getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email format"
	case "phone":
		return "Invalid phone number format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "latitude", "longitude", "coordinate":
		return "Invalid coordinate value"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "transport_mode":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.Join(routing.TransportModes, ", "))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func validatePhone(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

func validateCoordinate(fl validator.FieldLevel) bool {
	coord := fl.Field().Float()
	fieldName := strings.ToLower(fl.FieldName())

	if strings.Contains(fieldName, "lat") {
		return coord >= -90 && coord <= 90
	}
	if strings.Contains(fieldName, "lon") || strings.Contains(fieldName, "lng") {
		return coord >= -180 && coord <= 180
	}
	return true
}

func validateTransportMode(fl validator.FieldLevel) bool {
	mode := fl.Field().String()
	for _, m := range routing.TransportModes {
		if m == mode {
			return true
		}
	}
	return false
}
