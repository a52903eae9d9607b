// Package service implements the template and response lifecycle on
// top of the repositories. Every operation loads current state,
// consults the access engine, then performs a single write; failures
// are reported through the typed errors below and never swallowed.
package service

import (
	"errors"
	"fmt"
)

// Typed failures surfaced to the HTTP layer. Handlers map them to
// status codes with errors.Is / errors.As switches.
var (
	// ErrUnauthenticated: the operation requires a signed-in caller.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden: the access engine denied the operation. Wrapped
	// with the deny reason.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound: the entity id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a write lost against conflicting state, e.g. a
	// shareable-link token collision that survived a retry.
	ErrConflict = errors.New("conflict")
	// ErrUpstream: the persistence collaborator failed. The original
	// cause is wrapped; no retries happen at this layer.
	ErrUpstream = errors.New("upstream unavailable")
)

// ValidationError reports a structural invariant violation such as a
// missing title, a choice question without options, or a missing
// required answer.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

func upstream(err error) error {
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
