package shipwreck

import (
	"errors"

	"github.com/stephenwright/shipwreck/lib/codec"
)

// Sentinel errors for client operations. Both signal programmer
// mistakes and are returned synchronously, before any request is
// attempted.
var (
	// ErrInvalidHref is returned when an href is empty, unparseable, or
	// relative with no base URI configured.
	ErrInvalidHref = codec.ErrInvalidHref

	// ErrNoAction is returned when Submit is called without an action.
	ErrNoAction = codec.ErrNoAction
)

// IsInvalidHref checks if err is an invalid-href error.
func IsInvalidHref(err error) bool {
	return errors.Is(err, ErrInvalidHref)
}

// IsNoAction checks if err is a missing-action error.
func IsNoAction(err error) bool {
	return errors.Is(err, ErrNoAction)
}
