// Package sonarerr defines the error kinds shared by every component of the
// engine. Collaborators (the RPC surface, the OpenSubsonic adapter) map a
// Kind to their own wire status code; core code never returns a bare error
// for a condition a caller needs to branch on.
package sonarerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error the way spec §7 names them. Kind values are
// stable and may be compared with ==.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindInvalidArgument  Kind = "invalid_argument"
	KindInvalidID        Kind = "invalid_id"
	KindConflict         Kind = "conflict"
	KindUnauthenticated  Kind = "unauthenticated"
	KindPermissionDenied Kind = "permission_denied"
	KindUnsupportedMime  Kind = "unsupported_mime"
	KindIO               Kind = "io_error"
	KindHashMismatch     Kind = "hash_mismatch"
	KindProvider         Kind = "provider_error"
	KindInternal         Kind = "internal"
)

// Error is the concrete error type returned by every engine operation that
// can fail in a way callers should branch on. Message is safe to show to a
// client; cause (accessible only via Unwrap/logging) may carry detail that
// must not leak (blob keys, sha256 hex, filesystem paths).
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind, carrying cause for logging but
// never for the user-facing Message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// NotFound reports that entity with the given id does not exist.
func NotFound(entity, id string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s %q not found", entity, id))
}

// InvalidArgument reports a malformed request field.
func InvalidArgument(field, reason string) *Error {
	return New(KindInvalidArgument, fmt.Sprintf("%s: %s", field, reason))
}

// InvalidID reports an opaque ID that does not belong to expectedNamespace.
func InvalidID(expectedNamespace string) *Error {
	return New(KindInvalidID, fmt.Sprintf("expected an id in namespace %q", expectedNamespace))
}

// Conflict reports a state conflict: a unique violation or a delete with
// dependents still attached.
func Conflict(reason string) *Error {
	return New(KindConflict, reason)
}

// Unauthenticated reports a missing or expired session token.
func Unauthenticated() *Error {
	return New(KindUnauthenticated, "authentication required")
}

// PermissionDenied reports an authenticated but unauthorized caller.
func PermissionDenied(operation string) *Error {
	return New(KindPermissionDenied, fmt.Sprintf("%s requires admin privileges", operation))
}

// UnsupportedMime reports an image/audio payload whose mime type is not
// recognized by the relevant service.
func UnsupportedMime(mime string) *Error {
	return New(KindUnsupportedMime, fmt.Sprintf("unsupported mime type %q", mime))
}

// IO wraps a filesystem or blob-store fault.
func IO(message string, cause error) *Error {
	return Wrap(KindIO, message, cause)
}

// HashMismatch reports that a blob's contents did not hash to the expected
// sha256 on read-back verification.
func HashMismatch() *Error {
	return New(KindHashMismatch, "blob content hash mismatch")
}

// Provider reports that an external metadata/scrobble provider failed.
func Provider(name, reason string) *Error {
	return New(KindProvider, fmt.Sprintf("provider %q: %s", name, reason))
}

// Internal wraps an error that has no externally meaningful kind.
func Internal(cause error) *Error {
	return Wrap(KindInternal, "internal error", cause)
}

// As reports whether err is (or wraps) a *Error, returning it if so.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is a *Error, else KindInternal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
