package authz

import (
	"fmt"

	"github.com/fabtrack/fabtrack/internal/shared"
)

const adminOverride = shared.CapAdminOverride

// Target describes the guarded action.
type Target struct {
	// Action is a human readable label used in error messages, e.g. "order PED-0000001 to ACCEPTED".
	Action string
	// Capability required for the action. Empty means no capability check.
	Capability string
	// CreatorID is the user that created the aggregate.
	CreatorID int64
	// Assignees are the workforce members bound to the aggregate.
	Assignees []*int64
}

// Authorize returns nil when actor may perform target, or an error wrapping
// shared.ErrForbidden / shared.ErrUnauthenticated with the reason.
//
// The capability check and the assignment check are independent and both must pass.
// Administrators bypass both.
func Authorize(actor Actor, target Target) error {
	if actor.UserID <= 0 {
		return fmt.Errorf("%w: no actor for %s", shared.ErrUnauthenticated, target.Action)
	}
	if actor.IsAdmin() {
		return nil
	}
	if target.Capability != "" && !actor.Has(target.Capability) {
		return fmt.Errorf("%w: capability %s required for %s", shared.ErrForbidden, target.Capability, target.Action)
	}
	if actor.IsCommercial() && target.CreatorID != 0 && target.CreatorID != actor.UserID {
		return fmt.Errorf("%w: only the creator may perform %s", shared.ErrForbidden, target.Action)
	}
	if actor.IsWorkforce() && !actor.AssignedTo(target.Assignees...) {
		return fmt.Errorf("%w: actor is not assigned to %s", shared.ErrForbidden, target.Action)
	}
	return nil
}

// RequireCapability checks a single capability with the admin bypass, without the
// creator or assignment guards.
func RequireCapability(actor Actor, capability, action string) error {
	if actor.UserID <= 0 {
		return fmt.Errorf("%w: no actor for %s", shared.ErrUnauthenticated, action)
	}
	if actor.IsAdmin() || actor.Has(capability) {
		return nil
	}
	return fmt.Errorf("%w: capability %s required for %s", shared.ErrForbidden, capability, action)
}
