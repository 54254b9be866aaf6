// Package apperr defines error values that are reused across the platform
// packages. These sentinel values allow higher layers such as handlers to
// distinguish between failure scenarios without inspecting messages. For
// example, ErrForbidden indicates that the caller is authenticated but may
// not act on a resource, while ErrRestrictedRole signals that a role can
// only be granted by an administrator.
package apperr

import (
	"errors"
	"strings"
)

// ErrUnauthenticated is returned when no verified caller identity is
// available. Handlers translate this into an HTTP 401 response.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrForbidden is returned when the caller lacks the required role or
// attempts to act on another identity's resource. Handlers should
// translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is returned for malformed or missing request values.
var ErrInvalidInput = errors.New("invalid input")

// ErrInvalidRole is returned when a role name is not present in the
// role registry at all.
var ErrInvalidRole = errors.New("unknown role")

// ErrTransitionNotAllowed is returned when the requested role is not one
// of the allowed next roles for the caller's current role. It is usually
// wrapped in a *TransitionError that lists the alternatives.
var ErrTransitionNotAllowed = errors.New("role transition not allowed")

// ErrRestrictedRole is returned when the requested role requires an
// administrative grant and can never be self-assigned.
var ErrRestrictedRole = errors.New("role requires administrative approval")

// TransitionError carries the allowed alternatives for a rejected role
// change so that clients can render them.
type TransitionError struct {
	From    string
	To      string
	Allowed []string
}

func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return "cannot change role from " + e.From + " to " + e.To + ": no transitions available"
	}
	return "cannot change role from " + e.From + " to " + e.To + ": allowed roles are " + strings.Join(e.Allowed, ", ")
}

func (e *TransitionError) Unwrap() error { return ErrTransitionNotAllowed }
