package quotations

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fabtrack/fabtrack/internal/catalog"
)

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// AreaFactor is width × height for area priced items and 1 otherwise.
func AreaFactor(areaPriced bool, width, height decimal.NullDecimal) (decimal.Decimal, error) {
	if !areaPriced {
		return decimal.NewFromInt(1), nil
	}
	if !width.Valid || !height.Valid {
		return decimal.Zero, ErrMissingDimensions
	}
	return width.Decimal.Mul(height.Decimal), nil
}

// LineTotal computes unitPrice × quantity × areaFactor × (1 − discountPct/100), rounded to cents.
func LineTotal(unitPrice, quantity, areaFactor, discountPct decimal.Decimal) decimal.Decimal {
	gross := unitPrice.Mul(quantity).Mul(areaFactor)
	return gross.Mul(hundred.Sub(discountPct)).Div(hundred).Round(moneyPlaces)
}

// Describe renders the product name followed by the attributes in key order.
func Describe(productName string, attrs map[string]string) string {
	if len(attrs) == 0 {
		return productName
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+": "+attrs[k])
	}
	return productName + " - " + strings.Join(pairs, ", ")
}

// GrandTotal subtracts the header discount from the net subtotal.
func GrandTotal(netSubtotal, discountTotal decimal.Decimal) (decimal.Decimal, error) {
	if discountTotal.IsNegative() {
		return decimal.Zero, ErrNegativeDiscount
	}
	if discountTotal.GreaterThan(netSubtotal) {
		return decimal.Zero, ErrDiscountTooLarge
	}
	return netSubtotal.Sub(discountTotal), nil
}

// validateItemInput checks the caller supplied parts of an item.
func validateItemInput(req ItemRequest) error {
	if !req.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if req.DiscountPct.IsNegative() || req.DiscountPct.GreaterThan(hundred) {
		return ErrInvalidDiscount
	}
	if (req.Width.Valid && !req.Width.Decimal.IsPositive()) || (req.Height.Valid && !req.Height.Decimal.IsPositive()) {
		return ErrInvalidDimension
	}
	return nil
}

// NewItem snapshots the product price and name into a priced item.
func NewItem(p catalog.Product, req ItemRequest) (Item, error) {
	if !p.Active {
		return Item{}, ErrInactiveProduct
	}
	if err := validateItemInput(req); err != nil {
		return Item{}, err
	}
	it := Item{
		ProductID:   p.ID,
		ProductName: p.Name,
		AreaPriced:  p.AreaPriced(),
		UnitPrice:   p.BasePrice,
	}
	if err := it.apply(req); err != nil {
		return Item{}, err
	}
	return it, nil
}

// Revise applies new quantities, dimensions, discount and attributes while keeping the
// price snapshot.
func (it *Item) Revise(req ItemRequest) error {
	if req.ProductID != it.ProductID {
		return ErrProductChanged
	}
	if err := validateItemInput(req); err != nil {
		return err
	}
	return it.apply(req)
}

func (it *Item) apply(req ItemRequest) error {
	factor, err := AreaFactor(it.AreaPriced, req.Width, req.Height)
	if err != nil {
		return err
	}
	it.Quantity = req.Quantity
	it.Width = req.Width
	it.Height = req.Height
	it.DiscountPct = req.DiscountPct
	it.Attributes = copyAttributes(req.Attributes)
	it.LineTotal = LineTotal(it.UnitPrice, it.Quantity, factor, it.DiscountPct)
	it.Description = Describe(it.ProductName, it.Attributes)
	return nil
}

func copyAttributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}
