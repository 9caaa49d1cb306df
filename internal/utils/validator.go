// internal/utils/validator.go
package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Handles are shown as @username in share pages and mentions, so they stay
// URL safe.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,30}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	if err := v.RegisterValidation("username", validateUsername); err != nil {
		panic(err)
	}
	return v
}

// jsonFieldName reports fields by their JSON name so errors match the
// request body the client sent.
func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return strings.ToLower(field.Name)
	}
	return name
}

// decimalValue lets numeric tags such as gt=0 apply to money fields.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateUsername(fl validator.FieldLevel) bool {
	username := fl.Field().String()
	return usernamePattern.MatchString(username) &&
		!strings.HasPrefix(username, ".") &&
		!strings.HasSuffix(username, ".")
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		out = append(out, ValidationError{
			Field:   e.Field(),
			Tag:     e.Tag(),
			Message: validationMessage(e),
		})
	}
	return out
}

func validationMessage(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Invalid email format"
	case "min", "max":
		bound := "at least"
		if e.Tag() == "max" {
			bound = "at most"
		}
		if e.Kind() == reflect.Slice {
			return field + " must have " + bound + " " + e.Param() + " items"
		}
		return field + " must be " + bound + " " + e.Param() + " characters"
	case "gt", "gte":
		return field + " must be greater than " + e.Param()
	case "oneof":
		return field + " must be one of " + e.Param()
	case "username":
		return "Username must be 3-30 characters of letters, numbers, underscores or dots"
	case "url":
		return field + " must be a valid URL"
	default:
		return field + " is invalid"
	}
}
