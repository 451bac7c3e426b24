// Package authz decides whether an actor may move an aggregate to a target state.
//
// Authorization is a pure function of the actor and the target; actors are resolved
// fresh for every request by a Provider and passed explicitly into services.
package authz

import (
	"strings"
)

// RoleClass groups roles by how the assignment guard treats them.
type RoleClass string

const (
	RoleAdmin      RoleClass = "ADMIN"
	RoleCommercial RoleClass = "COMMERCIAL"
	RoleWorkforce  RoleClass = "WORKFORCE"
	RoleSupervisor RoleClass = "SUPERVISOR"
)

// Actor is the calling user as seen by the engine.
type Actor struct {
	UserID       int64
	Roles        []RoleClass
	Capabilities []string
	// WorkforceID is set when the user is bound to a workforce member.
	WorkforceID *int64
}

// NewActor normalises capabilities to lower case without duplicates.
func NewActor(userID int64, roles []RoleClass, capabilities []string, workforceID *int64) Actor {
	return Actor{
		UserID:       userID,
		Roles:        roles,
		Capabilities: normalizeCapabilities(capabilities),
		WorkforceID:  workforceID,
	}
}

// Has reports whether the actor holds capability.
func (a Actor) Has(capability string) bool {
	capability = strings.ToLower(strings.TrimSpace(capability))
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// HasAny reports whether the actor holds at least one of the capabilities.
func (a Actor) HasAny(capabilities ...string) bool {
	for _, c := range capabilities {
		if a.Has(c) {
			return true
		}
	}
	return false
}

// HasRole reports role class membership.
func (a Actor) HasRole(role RoleClass) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor bypasses per-state and assignment checks.
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin) || a.Has(adminOverride)
}

// IsWorkforce reports whether the actor acts as a fabricator or installer.
func (a Actor) IsWorkforce() bool {
	return a.HasRole(RoleWorkforce)
}

// IsCommercial reports whether the actor is a sales agent.
func (a Actor) IsCommercial() bool {
	return a.HasRole(RoleCommercial)
}

// AssignedTo reports whether the actor's workforce identity is one of ids.
func (a Actor) AssignedTo(ids ...*int64) bool {
	if a.WorkforceID == nil {
		return false
	}
	for _, id := range ids {
		if id != nil && *id == *a.WorkforceID {
			return true
		}
	}
	return false
}

func normalizeCapabilities(caps []string) []string {
	unique := make(map[string]struct{}, len(caps))
	normalized := make([]string, 0, len(caps))
	for _, c := range caps {
		c = strings.TrimSpace(strings.ToLower(c))
		if c == "" {
			continue
		}
		if _, ok := unique[c]; ok {
			continue
		}
		unique[c] = struct{}{}
		normalized = append(normalized, c)
	}
	return normalized
}
