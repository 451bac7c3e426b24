package quotations

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuotationRequest is the full payload for creating or replacing a quotation.
// On update, groups and items carrying an ID are revised, those without are created
// and existing ones left out are deleted.
type QuotationRequest struct {
	CustomerID    int64           `json:"customer_id" validate:"required,gt=0"`
	SalespersonID *int64          `json:"salesperson_id,omitempty" validate:"omitempty,gt=0"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
	Notes         string          `json:"notes" validate:"max=4000"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	Groups        []GroupRequest  `json:"groups" validate:"dive"`
}

// GroupRequest describes one group. Display order follows the slice order.
type GroupRequest struct {
	ID    *int64        `json:"id,omitempty" validate:"omitempty,gt=0"`
	Name  string        `json:"name" validate:"required,max=120"`
	Items []ItemRequest `json:"items" validate:"dive"`
}

// ItemRequest describes one item. The unit price always comes from the catalog.
type ItemRequest struct {
	ID          *int64              `json:"id,omitempty" validate:"omitempty,gt=0"`
	ProductID   int64               `json:"product_id" validate:"required,gt=0"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Width       decimal.NullDecimal `json:"width"`
	Height      decimal.NullDecimal `json:"height"`
	DiscountPct decimal.Decimal     `json:"discount_pct"`
	Attributes  map[string]string   `json:"attributes,omitempty" validate:"max=32"`
}

// CloneRequest optionally retargets the copy to another customer.
type CloneRequest struct {
	CustomerID *int64 `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
}

// TransitionRequest moves a quotation to Status.
type TransitionRequest struct {
	Status Status `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=1000"`
}
