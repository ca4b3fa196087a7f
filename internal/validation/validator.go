// Package validation wraps a shared go-playground validator with the
// catalog's custom rules (ciudad, tipo, telefono) and flattens failures
// into one RequestValidationError.
package validation

import (
	"errors"
	"fmt"
	"real-estate-catalog/internal/slug"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule on one field
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// RequestValidationError collects every field that failed
type RequestValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *RequestValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validación fallida"
	}
	messages := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		messages[i] = f.Message
	}
	return strings.Join(messages, "; ")
}

// Get returns the shared validator
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()

		// report JSON names so messages match the request body
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		_ = validate.RegisterValidation("ciudad", func(fl validator.FieldLevel) bool {
			_, ok := slug.NormalizeCity(fl.Field().String())
			return ok
		})
		_ = validate.RegisterValidation("tipo", func(fl validator.FieldLevel) bool {
			_, ok := slug.NormalizeType(fl.Field().String())
			return ok
		})
		_ = validate.RegisterValidation("telefono", func(fl validator.FieldLevel) bool {
			return validPhone(fl.Field().String())
		})
	})
	return validate
}

// Struct validates s. It returns nil or a *RequestValidationError.
func Struct(s interface{}) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{Fields: []FieldError{{Field: "body", Tag: "invalid", Message: err.Error()}}}
	}

	out := &RequestValidationError{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe),
		}
	}
	return out
}

var messages = map[string]string{
	"required": "%s es obligatorio",
	"url":      "%s debe ser una URL válida",
	"ciudad":   "%s no es una ciudad atendida",
	"tipo":     "%s no es un tipo de inmueble conocido",
	"telefono": "%s debe ser un teléfono válido",
	"uuid":     "%s debe ser un identificador válido",
}

var messagesWithParam = map[string]string{
	"oneof": "%s debe ser uno de: %s",
	"gte":   "%s debe ser mayor o igual a %s",
	"lte":   "%s debe ser menor o igual a %s",
	"min":   "%s debe tener al menos %s",
	"max":   "%s debe tener como máximo %s",
}

func translate(fe validator.FieldError) string {
	if tmpl, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field())
	}
	if tmpl, ok := messagesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s no cumple la regla %s", fe.Field(), fe.Tag())
}

// validPhone accepts 7 to 15 digits with optional "+", spaces, dashes and parentheses
func validPhone(s string) bool {
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}
