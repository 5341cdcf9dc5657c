// Package errors provides common domain error types for the meetsync pipeline.
//
// This package defines sentinel errors for run-level fault classes (auth,
// persistence) and per-meeting fault classes (parse, duplicate key), plus a
// typed UpstreamError carrying the HTTP status of a failed upstream call.
// Using typed errors enables consistent handling with errors.Is() checks.
//
// Usage:
//
//	import mserrors "github.com/otherjamesbrown/meetsync/pkg/errors"
//
//	// Return a domain error
//	return nil, mserrors.ErrAuth
//
//	// Check for domain errors
//	if mserrors.IsAuth(err) {
//	    // abort the run, nothing downstream can succeed
//	}
package errors

import (
	"errors"
	"fmt"
)

// Domain errors - sentinel errors for pipeline fault classes.
var (
	// ErrAuth indicates credential exchange failed or the upstream rejected a
	// freshly acquired token. Fatal for the whole run.
	ErrAuth = errors.New("authentication failed")

	// ErrParse indicates a malformed transcript or summary payload.
	// Caught per meeting; never fatal for the run.
	ErrParse = errors.New("parse error")

	// ErrPersistence indicates the state file could not be written.
	// Fatal: continuing would allow duplicate processing on the next run.
	ErrPersistence = errors.New("persistence error")

	// ErrDuplicateKey indicates an attempt to record a meeting UUID that is
	// already in the processed set. This is an internal invariant violation,
	// not a recoverable condition.
	ErrDuplicateKey = errors.New("duplicate key")
)

// UpstreamError describes a non-2xx response from the upstream API after the
// fetch engine's own retry policy has been exhausted.
type UpstreamError struct {
	// Status is the HTTP status code of the final response.
	Status int

	// Retryable reports whether the failure class was transient (5xx, 429,
	// network-level). Non-retryable failures are client errors (4xx).
	Retryable bool

	// Op names the upstream operation that failed (e.g. "list recordings").
	Op string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("upstream %s: %s error (status %d)", e.Op, kind, e.Status)
}

// NewUpstreamError creates an UpstreamError for the given operation and status.
func NewUpstreamError(op string, status int, retryable bool) *UpstreamError {
	return &UpstreamError{Op: op, Status: status, Retryable: retryable}
}

// IsAuth reports whether any error in err's chain is ErrAuth.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsParse reports whether any error in err's chain is ErrParse.
func IsParse(err error) bool {
	return errors.Is(err, ErrParse)
}

// IsPersistence reports whether any error in err's chain is ErrPersistence.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsDuplicateKey reports whether any error in err's chain is ErrDuplicateKey.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// AsUpstream reports whether err's chain contains an UpstreamError, returning
// it when present.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// IsRetryable reports whether err is an UpstreamError in the retryable class.
func IsRetryable(err error) bool {
	ue, ok := AsUpstream(err)
	return ok && ue.Retryable
}
