// Package orders tracks service orders from submission through fabrication and installation.
package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fabtrack/fabtrack/internal/shared"
)

// FabricPosition is how the fabric roll faces.
type FabricPosition string

const (
	FabricNormal   FabricPosition = "NORMAL"
	FabricInverted FabricPosition = "INVERTED"
)

// ControlSide is where the operating chain or motor sits.
type ControlSide string

const (
	ControlLeft  ControlSide = "LEFT"
	ControlRight ControlSide = "RIGHT"
	ControlBoth  ControlSide = "BOTH"
)

// Drive is how the blind is operated.
type Drive string

const (
	DriveManual    Drive = "MANUAL"
	DriveMotorized Drive = "MOTORIZED"
)

// Order is the aggregate root of a service order.
type Order struct {
	ID           int64      `json:"id"`
	Code         string     `json:"code"`
	Status       Status     `json:"status"`
	CustomerID   int64      `json:"customer_id"`
	FabricatorID *int64     `json:"fabricator_id,omitempty"`
	InstallerID  *int64     `json:"installer_id,omitempty"`
	Requester    string     `json:"requester"`
	Supervisor   string     `json:"supervisor"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Notes        string     `json:"notes"`
	CreatedBy    int64      `json:"created_by"`
	IssuedAt     time.Time  `json:"issued_at"`
	Version      int        `json:"version"`
	shared.Lifecycle
	Lines []Line `json:"lines,omitempty"`
}

// Line is one window or opening to fabricate. LineNo is 1-based and unique per order.
type Line struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"order_id"`
	LineNo         int             `json:"line_no"`
	Environment    string          `json:"environment"`
	Model          string          `json:"model"`
	Fabric         string          `json:"fabric"`
	Width          decimal.Decimal `json:"width"`
	Height         decimal.Decimal `json:"height"`
	Pieces         int             `json:"pieces"`
	FabricPosition FabricPosition  `json:"fabric_position"`
	ControlSide    ControlSide     `json:"control_side"`
	Drive          Drive           `json:"drive"`
	Notes          string          `json:"notes"`
}

// Assignees returns the workforce members bound to the order.
func (o Order) Assignees() []*int64 {
	return []*int64{o.FabricatorID, o.InstallerID}
}

// Stats counts visible orders per status.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}

// Scope restricts listings to what an actor may see.
type Scope struct {
	All         bool
	CreatorID   *int64
	WorkforceID *int64
}

// ListFilter narrows order listings.
type ListFilter struct {
	Scope      Scope
	Status     *Status
	CustomerID *int64
	Active     *bool
	Page       shared.Page
}

// Includes reports whether o falls inside the scope.
func (s Scope) Includes(o Order) bool {
	if s.All {
		return true
	}
	if s.CreatorID != nil && o.CreatedBy == *s.CreatorID {
		return true
	}
	if s.WorkforceID != nil {
		for _, id := range o.Assignees() {
			if id != nil && *id == *s.WorkforceID {
				return true
			}
		}
	}
	return false
}
