package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports missing or malformed caller input. The HTTP layer
// maps it to a rejected request; it never indicates a store failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
