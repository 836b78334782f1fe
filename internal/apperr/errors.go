// Package apperr holds the error values shared across layers.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrGone          = errors.New("gone")
)

// InvalidFormatError reports an import or snapshot payload that does not
// have the expected shape. Nothing is applied when it is returned.
type InvalidFormatError struct {
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return "invalid format: " + e.Reason
}

// InvalidFormat builds an *InvalidFormatError.
func InvalidFormat(format string, args ...any) error {
	return &InvalidFormatError{Reason: fmt.Sprintf(format, args...)}
}

// FieldError is one violated field constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every violated field of an input.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FromValidation converts an ozzo-validation error into ValidationErrors,
// sorted by field. Errors that are not field maps are returned unchanged.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(verrs))
	for field, fe := range verrs {
		if fe == nil {
			continue
		}
		out = append(out, FieldError{Field: field, Message: fe.Error()})
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
