// Package coreerr provides the structured error types shared by every
// component of the knowledge core.
//
// The package defines five error kinds that callers can rely on to
// distinguish failure modes without inspecting error strings:
// validation, not-found, conflict, invalid-state, and storage.
// It integrates with Go's standard errors package for error wrapping
// and unwrapping.
package coreerr

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for common core error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrCapsuleNotFound indicates the requested capsule does not exist in the store.
	ErrCapsuleNotFound = errors.New("capsule not found")

	// ErrNodeNotFound indicates the requested graph node does not exist in the index.
	ErrNodeNotFound = errors.New("node not found")

	// ErrRelationshipNotFound indicates no matching relationship exists between the endpoints.
	ErrRelationshipNotFound = errors.New("relationship not found")

	// ErrVersionMismatch indicates an optimistic-concurrency failure: the caller's
	// expected version does not match the capsule's current version. The caller
	// should re-read and retry; the core never retries internally.
	ErrVersionMismatch = errors.New("version mismatch")

	// ErrCapsuleArchived indicates a disallowed mutation of an archived capsule.
	ErrCapsuleArchived = errors.New("capsule is archived")

	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error kinds categorize errors by their type.
const (
	// KindValidation represents malformed input: out-of-range scores,
	// empty required fields, unknown enum values.
	KindValidation = "validation"

	// KindNotFound represents errors where an entity was not found by id.
	KindNotFound = "not_found"

	// KindConflict represents version mismatches and duplicate-creation races.
	KindConflict = "conflict"

	// KindInvalidState represents mutations disallowed by the entity's
	// current lifecycle state.
	KindInvalidState = "invalid_state"

	// KindStorage represents persistence collaborator I/O failures.
	// Storage errors are surfaced unchanged, never swallowed.
	KindStorage = "storage"
)

// Error is a structured error type that wraps underlying errors with
// additional context about the operation that failed and the category of error.
//
// Error implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
//
// Example usage:
//
//	err := &coreerr.Error{
//		Op:   "Store.Update",
//		Kind: coreerr.KindConflict,
//		Err:  coreerr.ErrVersionMismatch,
//	}
type Error struct {
	// Op is the operation that failed (e.g., "Store.Create", "Index.FindPath").
	Op string

	// Kind categorizes the error (e.g., KindNotFound, KindValidation).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	// This can include entity ids, versions, or other debugging information.
	Context map[string]any
}

// Error implements the error interface, returning a formatted error message
// that includes the operation, kind, and underlying error.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("knowledge: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("knowledge: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("knowledge: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and errors.As()
// to work correctly with wrapped errors.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error matching for Error, allowing comparison based on
// the underlying error or on another Error's kind.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	// Check if target is an Error with matching Kind
	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	// Delegate to underlying error
	return errors.Is(e.Err, target)
}

// WithContext returns a new Error with the provided context added.
// This is useful for attaching entity ids and versions to errors.
//
// Example:
//
//	err := coreerr.NewConflictError("Store.Update", coreerr.ErrVersionMismatch).
//		WithContext(map[string]any{"id": id, "expected": 3, "current": 5})
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	if newErr.Context == nil {
		newErr.Context = make(map[string]any)
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// NewValidationError creates a new Error with KindValidation.
func NewValidationError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindValidation,
		Err:  err,
	}
}

// NewNotFoundError creates a new Error with KindNotFound.
func NewNotFoundError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindNotFound,
		Err:  err,
	}
}

// NewConflictError creates a new Error with KindConflict.
func NewConflictError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindConflict,
		Err:  err,
	}
}

// NewInvalidStateError creates a new Error with KindInvalidState.
func NewInvalidStateError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindInvalidState,
		Err:  err,
	}
}

// NewStorageError creates a new Error with KindStorage.
func NewStorageError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Kind: KindStorage,
		Err:  err,
	}
}

// KindOf returns the kind of err if it is (or wraps) a coreerr.Error,
// or the empty string otherwise.
func KindOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is (or wraps) a coreerr.Error of the given kind.
func IsKind(err error, kind string) bool {
	return KindOf(err) == kind
}

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. This is intended for use in defer statements to ensure
// cleanup errors are not silently ignored.
//
// The name parameter should describe the resource being closed (e.g.,
// "redis backend", "etcd client"). If logger is nil, slog.Default() is used.
//
// Example usage:
//
//	defer coreerr.CloseWithLog(backend, logger, "persistence backend")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
