// Package httpx holds the JSON response and error conventions shared by every
// REST handler.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
)

// MaxBodyBytes bounds request bodies read by DecodeJSON.
const MaxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorBody is the error envelope. Details is omitted unless set.
type ErrorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON encodes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string, details any) {
	WriteJSON(w, status, ErrorBody{Error: msg, Details: details})
}

// DecodeJSON reads a bounded JSON body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body: %w", types.ErrBadRequest)
		}
		return fmt.Errorf("decode body: %v: %w", err, types.ErrBadRequest)
	}
	return nil
}

// ValidationError carries per-field messages for a 400 response.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return types.ErrBadRequest }

// Validate runs struct tag validation and converts failures into a ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

// ValidateVar validates a single value against a tag, reporting it under field.
func ValidateVar(field string, value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Fields: map[string]string{field: describe(verrs[0])}}
		}
		return &ValidationError{Fields: map[string]string{field: err.Error()}}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a valid UUID"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

// InvalidUserID is the single message for both unknown and unusable user
// references, so callers cannot probe which ids exist.
const InvalidUserID = "Invalid user ID"

// WriteServiceError maps an error from a service call onto the response
// taxonomy. invalidMsg is the endpoint's message for malformed input.
func WriteServiceError(w http.ResponseWriter, logger *slog.Logger, err error, invalidMsg string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		WriteError(w, http.StatusBadRequest, invalidMsg, verr.Fields)
	case errors.Is(err, types.ErrNotFound):
		WriteError(w, http.StatusBadRequest, InvalidUserID, nil)
	case errors.Is(err, types.ErrAccountNotDeleted):
		WriteError(w, http.StatusBadRequest, "Account is not deleted", nil)
	case errors.Is(err, types.ErrBadRequest):
		WriteError(w, http.StatusBadRequest, invalidMsg, err.Error())
	case errors.Is(err, types.ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, "Unauthorized", nil)
	case errors.Is(err, types.ErrForbidden):
		WriteError(w, http.StatusForbidden, "Forbidden", nil)
	default:
		logger.Error("request failed", slog.Any("error", err))
		WriteError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}
