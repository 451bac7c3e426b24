// Package quotations manages priced quotations made of groups of catalog items.
package quotations

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fabtrack/fabtrack/internal/shared"
)

// Quotation is the aggregate root. Totals are derived from the items and only
// written by the recalculation step.
type Quotation struct {
	ID            int64           `json:"id"`
	Code          string          `json:"code"`
	Status        Status          `json:"status"`
	CustomerID    int64           `json:"customer_id"`
	SalespersonID *int64          `json:"salesperson_id,omitempty"`
	IssuedAt      time.Time       `json:"issued_at"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
	Notes         string          `json:"notes"`
	NetSubtotal   decimal.Decimal `json:"net_subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	CreatedBy     int64           `json:"created_by"`
	Version       int             `json:"version"`
	shared.Lifecycle
	Groups []Group `json:"groups,omitempty"`
}

// Group is a named section of a quotation, e.g. one room.
type Group struct {
	ID           int64  `json:"id"`
	QuotationID  int64  `json:"quotation_id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
	Items        []Item `json:"items"`
}

// Subtotal sums the line totals of the group.
func (g Group) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range g.Items {
		total = total.Add(it.LineTotal)
	}
	return total
}

// Item is a priced line. UnitPrice, ProductName and AreaPriced are snapshots taken
// from the catalog when the item was created and never refreshed.
type Item struct {
	ID          int64               `json:"id"`
	GroupID     int64               `json:"group_id"`
	ItemNo      int                 `json:"item_no"`
	ProductID   int64               `json:"product_id"`
	ProductName string              `json:"product_name"`
	AreaPriced  bool                `json:"area_priced"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Width       decimal.NullDecimal `json:"width"`
	Height      decimal.NullDecimal `json:"height"`
	UnitPrice   decimal.Decimal     `json:"unit_price"`
	DiscountPct decimal.Decimal     `json:"discount_pct"`
	Attributes  map[string]string   `json:"attributes"`
	LineTotal   decimal.Decimal     `json:"line_total"`
	Description string              `json:"description"`
}

// FindGroup returns the group with id or nil.
func (q *Quotation) FindGroup(id int64) *Group {
	for i := range q.Groups {
		if q.Groups[i].ID == id {
			return &q.Groups[i]
		}
	}
	return nil
}

// FindItem returns the item with id and its group, or nils.
func (q *Quotation) FindItem(id int64) (*Group, *Item) {
	for i := range q.Groups {
		for j := range q.Groups[i].Items {
			if q.Groups[i].Items[j].ID == id {
				return &q.Groups[i], &q.Groups[i].Items[j]
			}
		}
	}
	return nil, nil
}

// ItemCount counts items across groups.
func (q *Quotation) ItemCount() int {
	n := 0
	for _, g := range q.Groups {
		n += len(g.Items)
	}
	return n
}

// Scope restricts listings to what an actor may see.
type Scope struct {
	All           bool
	CreatorID     *int64
	SalespersonID *int64
}

// Includes reports whether q falls inside the scope.
func (s Scope) Includes(q Quotation) bool {
	if s.All {
		return true
	}
	if s.CreatorID != nil && q.CreatedBy == *s.CreatorID {
		return true
	}
	return s.SalespersonID != nil && q.SalespersonID != nil && *q.SalespersonID == *s.SalespersonID
}

// ListFilter narrows quotation listings.
type ListFilter struct {
	Scope      Scope
	Status     *Status
	CustomerID *int64
	Active     *bool
	Page       shared.Page
}
