package store

import (
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// NotFoundError indicates a point lookup matched no row.
type NotFoundError struct {
	// Entity is "user", "credential", or "log".
	Entity string

	// Key describes the lookup key, for logging only.
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// ValidationError indicates a field exceeded its length ceiling or was
// otherwise rejected before any storage was touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConstraintError indicates a uniqueness or foreign-key violation
// reported by the storage engine.
type ConstraintError struct {
	Entity string
	Cause  error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s constraint violation: %v", e.Entity, e.Cause)
}

func (e *ConstraintError) Unwrap() error { return e.Cause }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConstraint reports whether err is a ConstraintError.
func IsConstraint(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// mapConstraint converts sqlite constraint violations into typed errors;
// everything else passes through unchanged.
func mapConstraint(entity string, err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return &ConstraintError{Entity: entity, Cause: err}
	}
	return err
}

// maxLen validates a field-length ceiling.
func maxLen(field, value string, limit int) error {
	if len(value) > limit {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("exceeds %d characters", limit),
		}
	}
	return nil
}

// maxLenPtr validates an optional field's length ceiling.
func maxLenPtr(field string, value *string, limit int) error {
	if value == nil {
		return nil
	}
	return maxLen(field, *value, limit)
}
