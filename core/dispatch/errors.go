package dispatch

import (
	"errors"

	"github.com/kilianp07/cad/core/assignment"
	"github.com/kilianp07/cad/core/store"
	"github.com/kilianp07/cad/core/whitelist"
)

// ErrInvalidTransition is returned for status changes the core refuses, such
// as unknown status ids or situation codes used as unit statuses.
var ErrInvalidTransition = errors.New("invalid transition")

var errUnitsChanged = errors.New("assigned units changed concurrently")

// IsNotFound reports whether err means a unit, call, department or status is
// absent or currently ineligible.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// IsInvalidTransition reports whether err rejects the requested change itself.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, assignment.ErrCallEnded) ||
		errors.Is(err, assignment.ErrUnitOffDuty) ||
		errors.Is(err, whitelist.ErrNotWhitelistable)
}

func reason(err error) string {
	switch {
	case IsInvalidTransition(err):
		return "invalid_transition"
	case IsNotFound(err):
		return "not_found"
	default:
		return "internal"
	}
}
