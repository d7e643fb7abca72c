package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates an insert collided with an existing record.
	ErrConflict = errors.New("repository: conflict")
)

// DuplicateError carries the field whose uniqueness constraint was violated.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("repository: duplicate %s", e.Field)
}

// Is lets errors.Is(err, ErrConflict) match any duplicate error.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrConflict
}
