package analytics

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStorageUnavailable marks failures of the underlying store. Callers may
// retry; nothing in this package does.
var ErrStorageUnavailable = errors.New("analytics storage unavailable")

// ValidationError rejects a submission before anything is persisted.
type ValidationError struct {
	Missing []string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func missingFieldsError(fields []string) *ValidationError {
	return &ValidationError{
		Missing: fields,
		Message: "Missing required fields: " + strings.Join(fields, ", "),
	}
}

func invalidKindError() *ValidationError {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return &ValidationError{
		Message: "Invalid event type. Must be one of: " + strings.Join(names, ", "),
	}
}

// FilterError reports malformed query input for stats or event listing.
type FilterError struct {
	Param   string
	Message string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Message)
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
