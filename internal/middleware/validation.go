package middleware

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var errorMessages = map[string]string{
	"required": "Field is required",
	"oneof":    "Value is not allowed",
	"min":      "Value is too short",
	"max":      "Value is too long",
	"uuid":     "Invalid identifier",
}

var registerOnce sync.Once

// RegisterValidation makes gin's validator report json field names and
// treat uuid.Nil as missing for required uuid fields.
func RegisterValidation() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if id, ok := field.Interface().(uuid.UUID); ok && id != uuid.Nil {
				return id.String()
			}
			return ""
		}, uuid.UUID{})
	})
}

func validationErrors(errs validator.ValidationErrors) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		msg := errorMessages[e.Tag()]
		if msg == "" {
			msg = e.Error()
		}
		out = append(out, ValidationError{Field: e.Field(), Message: msg})
	}
	return out
}
