package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unit is the measure a product is sold by.
type Unit string

const (
	UnitSquareMeter Unit = "M2"
	UnitLinearMeter Unit = "ML"
	UnitPiece       Unit = "UN"
	UnitGallon      Unit = "GL"
)

// Product is the subset of the catalog the pricing engine needs.
type Product struct {
	ID                 int64           `json:"id"`
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	Type               string          `json:"type"`
	Unit               Unit            `json:"unit"`
	BasePrice          decimal.Decimal `json:"base_price"`
	RequiresDimensions bool            `json:"requires_dimensions"`
	Active             bool            `json:"active"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// AreaPriced reports whether line totals scale with width × height.
func (p Product) AreaPriced() bool {
	return p.RequiresDimensions && p.Unit == UnitSquareMeter
}
