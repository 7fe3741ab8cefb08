package subject

import (
	"errors"
	"fmt"

	"entity-persister/core/value"

	"github.com/google/uuid"
)

// ErrConflictingOperation matches every *ConflictingOperationError.
var ErrConflictingOperation = errors.New("conflicting operation")

// Conflict names the pair of mutually exclusive operations a subject was
// scheduled for.
type Conflict string

const (
	ConflictInsertRemove Conflict = "insert-vs-remove"
	ConflictUpdateRemove Conflict = "update-vs-remove"
	ConflictInsertUpdate Conflict = "insert-vs-update"
)

// ConflictingOperationError reports a subject scheduled for more than one of
// insert, update and remove.
type ConflictingOperationError struct {
	Entity     string
	Identifier value.Value
	SubjectID  uuid.UUID
	Conflict   Conflict
}

func (e *ConflictingOperationError) Error() string {
	switch e.Conflict {
	case ConflictInsertRemove:
		return fmt.Sprintf("%s %s: cannot be inserted and removed in the same unit of work", e.Entity, e.Identifier)
	case ConflictUpdateRemove:
		return fmt.Sprintf("%s %s: cannot be updated and removed in the same unit of work; persist and remove the object in separate operations", e.Entity, e.Identifier)
	case ConflictInsertUpdate:
		return fmt.Sprintf("%s %s: cannot be inserted and updated in the same unit of work", e.Entity, e.Identifier)
	default:
		return fmt.Sprintf("%s %s: conflicting operations (%s)", e.Entity, e.Identifier, e.Conflict)
	}
}

func (e *ConflictingOperationError) Is(target error) bool {
	return target == ErrConflictingOperation
}

// UnresolvedEntityAccessError is the panic value raised when a subject's
// desired or database entity is read without having been set.
type UnresolvedEntityAccessError struct {
	Entity string
	Side   string
}

func (e *UnresolvedEntityAccessError) Error() string {
	return fmt.Sprintf("subject %s: %s entity was never set", e.Entity, e.Side)
}
