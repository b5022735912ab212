package models

import "errors"

// The three failure kinds every operation in the system can surface.
// Engines wrap them with context ("lease not found", "only the sender can
// delete a message") and the API layer maps the kind to an HTTP status
// with errors.Is, so the wrapping never hides the kind.
var (
	// ErrNotFound: a referenced user, property, lease or message does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument: malformed or semantically illegal input, e.g.
	// messaging yourself, or approving a lease that already left PENDING.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrForbidden: the caller lacks the required relationship to the
	// resource. This is a relationship check, never a role check — "are
	// you the sender/recipient/tenant/landlord of THIS record".
	ErrForbidden = errors.New("forbidden")
)
