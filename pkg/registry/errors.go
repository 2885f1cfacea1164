// Package registry implements the record versioning and multi-provenance
// merge engine: snapshot decisions, owner and non-owner reconciliation,
// the assertion ledger, and the update orchestration around them.
package registry

import (
	"errors"
	"fmt"
)

// Kind classifies a registry failure so transport layers can map each one
// to a distinct response code.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindForbidden        Kind = "forbidden"
	KindConflict         Kind = "conflict"
	KindValidationFailed Kind = "validation_failed"
	KindUnchanged        Kind = "unchanged"
	KindStoreUnavailable Kind = "store_unavailable"
)

// Error is a registry failure with a machine-readable kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// NotFound reports a missing record or version.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports an ownership or tombstone violation.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a duplicate creation or version-key collision.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// ValidationFailed reports a malformed input body.
func ValidationFailed(format string, args ...any) *Error {
	return &Error{Kind: KindValidationFailed, Message: fmt.Sprintf(format, args...)}
}

// Unchanged signals a no-op update. Not a failure; callers use it to skip
// change notification.
func Unchanged(identifier string) *Error {
	return &Error{Kind: KindUnchanged, Message: fmt.Sprintf("record %s is unchanged", identifier)}
}

// StoreUnavailable wraps a transient backing-store failure.
func StoreUnavailable(err error, format string, args ...any) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain. Unknown errors are reported
// as store failures, the only non-deterministic class.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreUnavailable
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
