package quotations

import "github.com/fabtrack/fabtrack/internal/shared"

// Status represents the lifecycle of a quotation.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// AllStatuses in workflow order.
var AllStatuses = []Status{StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusCancelled}

var transitions = map[Status][]Status{
	StatusDraft: {StatusSent, StatusAccepted, StatusCancelled},
	StatusSent:  {StatusAccepted, StatusRejected},
}

var requiredCapability = map[Status]string{
	StatusSent:      shared.CapQuotationSend,
	StatusAccepted:  shared.CapQuotationApprove,
	StatusRejected:  shared.CapQuotationReject,
	StatusCancelled: shared.CapQuotationCancel,
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

// CanTransitionTo checks the transition table.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// CanEdit reports whether groups and items may change.
func (s Status) CanEdit() bool {
	return s == StatusDraft || s == StatusSent
}

// RequiredCapability returns the capability needed to move into s.
func (s Status) RequiredCapability() string {
	return requiredCapability[s]
}
