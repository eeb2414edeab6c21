package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// FieldError describes one failed validation rule on a request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// DecodeJSON reads a single JSON document from the request body into dst and
// runs struct validation on it.
func DecodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return BadRequest("request body is empty", err)
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return NewAppError("PAYLOAD_TOO_LARGE", "request entity too large", http.StatusRequestEntityTooLarge, err)
		}
		return BadRequest("invalid payload", err)
	}
	return ValidateStruct(dst)
}

// ValidateStruct applies validator tags on v.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return BadRequest("invalid payload", err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return NewAppError("VALIDATION_FAILED", "request validation failed", http.StatusUnprocessableEntity, err).WithDetails(fields)
}
