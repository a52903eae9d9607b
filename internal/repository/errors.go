// Package repository defines error types that are reused across
// multiple repositories. These sentinel values allow higher layers
// such as the services to distinguish between different failure
// scenarios. For example, ErrForbidden indicates that the current
// user is not authorized to perform an operation on a resource owned
// by someone else, while ErrConflict signals that an operation
// cannot proceed due to conflicting state (e.g. minting a shareable
// link token that collides with an existing one).
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because
// of conflicting state, such as a unique key collision on the
// shareable link column. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrTemplateNotFound is returned when a template id or share link
// does not resolve to a row.
var ErrTemplateNotFound = errors.New("template not found")
