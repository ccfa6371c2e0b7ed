package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is returned when Postgres rejects a value's representation.
var ErrInvalidInput = errors.New("invalid input")

// DuplicateError reports a unique index violation on a single field.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Field)
}

// Unique index names mapped to the field they protect.
var uniqueFields = map[string]string{
	"users_username_active_idx": "username",
	"users_email_active_idx":    "email",
	"users_mobile_active_idx":   "mobile",
	"users_user_code_key":       "user_code",
	"profiles_user_id_key":      "user_id",
}

const (
	pqUniqueViolation       = "23505"
	pqInvalidTextRepresent  = "22P02"
	pqStringDataRightTrunc  = "22001"
	pqCheckConstraintFailed = "23514"
)

// translate maps driver errors onto store errors. Unknown errors are
// returned unchanged.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		if field, ok := uniqueFields[pqErr.Constraint]; ok {
			return &DuplicateError{Field: field}
		}
		return &DuplicateError{Field: pqErr.Constraint}
	case pqInvalidTextRepresent, pqStringDataRightTrunc, pqCheckConstraintFailed:
		return fmt.Errorf("%w: %s", ErrInvalidInput, pqErr.Message)
	}
	return err
}
