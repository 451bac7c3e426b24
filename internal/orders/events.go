package orders

import (
	"context"

	"github.com/fabtrack/fabtrack/internal/directory"
)

// Event describes a change assignees may need to hear about.
type Event struct {
	OrderID int64
	Code    string
	// Version is the order version after the change.
	Version int
	From    Status
	To      Status
	ActorID int64
	Note    string
	// Recipients are workforce member ids keyed by the relation they hold on the order.
	Recipients map[directory.MemberKind]int64
}

// Notifier delivers order events. Implementations must not block the caller on
// delivery and report their own failures; nothing is returned to the service.
type Notifier interface {
	OrderChanged(ctx context.Context, ev Event)
}

// TransitionObserver records transition outcomes.
type TransitionObserver interface {
	TransitionAttempted(aggregate, target, outcome string)
}

// Transition outcomes reported to the observer.
const (
	OutcomeApplied   = "applied"
	OutcomeInvalid   = "invalid"
	OutcomeForbidden = "forbidden"
	OutcomeConflict  = "conflict"
	OutcomeError     = "error"
)

type nopNotifier struct{}

func (nopNotifier) OrderChanged(context.Context, Event) {}

type nopObserver struct{}

func (nopObserver) TransitionAttempted(string, string, string) {}

func recipientsFor(o Order, kinds []directory.MemberKind) map[directory.MemberKind]int64 {
	out := make(map[directory.MemberKind]int64, len(kinds))
	for _, kind := range kinds {
		switch kind {
		case directory.KindFabricator:
			if o.FabricatorID != nil {
				out[kind] = *o.FabricatorID
			}
		case directory.KindInstaller:
			if o.InstallerID != nil {
				out[kind] = *o.InstallerID
			}
		}
	}
	return out
}
