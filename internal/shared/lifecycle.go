package shared

import "time"

// Lifecycle is embedded into aggregate roots. Active=false is a soft delete.
type Lifecycle struct {
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewLifecycle returns an active lifecycle stamped at now.
func NewLifecycle(now time.Time) Lifecycle {
	now = now.UTC()
	return Lifecycle{Active: true, CreatedAt: now, UpdatedAt: now}
}

// Touch bumps UpdatedAt.
func (l *Lifecycle) Touch(now time.Time) {
	l.UpdatedAt = now.UTC()
}

// Archive soft-deletes the owning aggregate.
func (l *Lifecycle) Archive(now time.Time) {
	l.Active = false
	l.Touch(now)
}

// Restore reactivates a soft-deleted aggregate.
func (l *Lifecycle) Restore(now time.Time) {
	l.Active = true
	l.Touch(now)
}
