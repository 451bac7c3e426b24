package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the payload for a new order.
type CreateOrderRequest struct {
	CustomerID   int64         `json:"customer_id" validate:"required,gt=0"`
	FabricatorID *int64        `json:"fabricator_id,omitempty" validate:"omitempty,gt=0"`
	InstallerID  *int64        `json:"installer_id,omitempty" validate:"omitempty,gt=0"`
	Requester    string        `json:"requester" validate:"max=200"`
	Supervisor   string        `json:"supervisor" validate:"max=200"`
	StartDate    *time.Time    `json:"start_date,omitempty"`
	EndDate      *time.Time    `json:"end_date,omitempty"`
	Notes        string        `json:"notes" validate:"max=4000"`
	Lines        []LineRequest `json:"lines" validate:"dive"`
}

// LineRequest describes one order line.
type LineRequest struct {
	Environment    string          `json:"environment" validate:"required,max=120"`
	Model          string          `json:"model" validate:"max=120"`
	Fabric         string          `json:"fabric" validate:"max=120"`
	Width          decimal.Decimal `json:"width"`
	Height         decimal.Decimal `json:"height"`
	Pieces         int             `json:"pieces" validate:"gte=0"`
	FabricPosition FabricPosition  `json:"fabric_position" validate:"omitempty,oneof=NORMAL INVERTED"`
	ControlSide    ControlSide     `json:"control_side" validate:"omitempty,oneof=LEFT RIGHT BOTH"`
	Drive          Drive           `json:"drive" validate:"omitempty,oneof=MANUAL MOTORIZED"`
	Notes          string          `json:"notes" validate:"max=2000"`
}

// UpdateOrderRequest carries optional header changes. Nil fields are untouched.
type UpdateOrderRequest struct {
	CustomerID   *int64     `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	FabricatorID *int64     `json:"fabricator_id,omitempty" validate:"omitempty,gt=0"`
	InstallerID  *int64     `json:"installer_id,omitempty" validate:"omitempty,gt=0"`
	Requester    *string    `json:"requester,omitempty" validate:"omitempty,max=200"`
	Supervisor   *string    `json:"supervisor,omitempty" validate:"omitempty,max=200"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Notes        *string    `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// IsEmpty reports whether the request changes nothing.
func (r UpdateOrderRequest) IsEmpty() bool {
	return r.CustomerID == nil && r.FabricatorID == nil && r.InstallerID == nil &&
		r.Requester == nil && r.Supervisor == nil && r.StartDate == nil &&
		r.EndDate == nil && r.Notes == nil
}

// TransitionRequest moves an order to Status.
type TransitionRequest struct {
	Status Status `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=1000"`
}
