package orders

import (
	"github.com/fabtrack/fabtrack/internal/directory"
	"github.com/fabtrack/fabtrack/internal/shared"
)

// Status represents the lifecycle of a service order.
type Status string

const (
	StatusSubmitted      Status = "SUBMITTED"
	StatusAccepted       Status = "ACCEPTED"
	StatusInFabrication  Status = "IN_FABRICATION"
	StatusReadyToInstall Status = "READY_TO_INSTALL"
	StatusInstalled      Status = "INSTALLED"
	StatusCompleted      Status = "COMPLETED"
	StatusRejected       Status = "REJECTED"
	StatusCancelled      Status = "CANCELLED"
)

// AllStatuses in workflow order.
var AllStatuses = []Status{
	StatusSubmitted,
	StatusAccepted,
	StatusInFabrication,
	StatusReadyToInstall,
	StatusInstalled,
	StatusCompleted,
	StatusRejected,
	StatusCancelled,
}

// DeletableStatuses are the states in which an order may be hard deleted.
var DeletableStatuses = []Status{StatusSubmitted, StatusRejected, StatusCancelled}

var transitions = map[Status][]Status{
	StatusSubmitted:      {StatusAccepted, StatusRejected},
	StatusAccepted:       {StatusInFabrication, StatusCancelled},
	StatusInFabrication:  {StatusReadyToInstall, StatusCancelled},
	StatusReadyToInstall: {StatusInstalled, StatusCancelled},
	StatusInstalled:      {StatusCompleted},
}

var requiredCapability = map[Status]string{
	StatusAccepted:       shared.CapOrderApprove,
	StatusInFabrication:  shared.CapOrderStartFabrication,
	StatusReadyToInstall: shared.CapOrderMarkReady,
	StatusInstalled:      shared.CapOrderMarkInstalled,
	StatusCompleted:      shared.CapOrderComplete,
	StatusRejected:       shared.CapOrderReject,
	StatusCancelled:      shared.CapOrderCancel,
}

// notifyOn lists which assignee hears about a status change.
var notifyOn = map[Status][]directory.MemberKind{
	StatusInFabrication:  {directory.KindFabricator},
	StatusCancelled:      {directory.KindFabricator},
	StatusReadyToInstall: {directory.KindInstaller},
	StatusInstalled:      {directory.KindInstaller},
	StatusCompleted:      {directory.KindInstaller},
}

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// AllowedTargets returns the states reachable from s in one step.
func (s Status) AllowedTargets() []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// CanTransitionTo checks the transition table.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// CanEdit reports whether header and lines may still change.
func (s Status) CanEdit() bool {
	return !s.IsTerminal()
}

// CanDelete reports whether a hard delete is allowed.
func (s Status) CanDelete() bool {
	for _, st := range DeletableStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// RequiredCapability returns the capability needed to move into s.
func (s Status) RequiredCapability() string {
	return requiredCapability[s]
}

// NotifyKinds returns which assignees are told when an order enters s.
func (s Status) NotifyKinds() []directory.MemberKind {
	return notifyOn[s]
}
