package task

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the store wraps exactly one of these,
// so callers can branch with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("task not found")
	ErrCyclicHierarchy = errors.New("cyclic hierarchy")
	ErrBoundary        = errors.New("sequence boundary")
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Field string // Field that failed validation
	Err   error  // Underlying error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports an operation on an unknown id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// CyclicHierarchyError reports a parent assignment that would make a task
// its own ancestor.
type CyclicHierarchyError struct {
	TaskID   string
	ParentID string
}

func (e *CyclicHierarchyError) Error() string {
	if e.TaskID == e.ParentID {
		return fmt.Sprintf("%s: task %q cannot be its own parent", ErrCyclicHierarchy, e.TaskID)
	}
	return fmt.Sprintf("%s: task %q is an ancestor of %q", ErrCyclicHierarchy, e.TaskID, e.ParentID)
}

func (e *CyclicHierarchyError) Unwrap() error { return ErrCyclicHierarchy }

// Direction names a move within a sibling group.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// BoundaryError reports a move past the first or last sibling.
type BoundaryError struct {
	TaskID    string
	Direction Direction
}

func (e *BoundaryError) Error() string {
	edge := "first"
	if e.Direction == DirectionDown {
		edge = "last"
	}
	return fmt.Sprintf("%s: task %q is already %s among its siblings", ErrBoundary, e.TaskID, edge)
}

func (e *BoundaryError) Unwrap() error { return ErrBoundary }
