package quotations

import (
	"fmt"

	"github.com/fabtrack/fabtrack/internal/shared"
)

// Domain errors for quotations.
var (
	ErrInvalidStatus     = fmt.Errorf("%w: unknown quotation status", shared.ErrValidation)
	ErrInvalidQuantity   = fmt.Errorf("%w: quantity must be greater than zero", shared.ErrValidation)
	ErrInvalidDiscount   = fmt.Errorf("%w: discount percentage must be between 0 and 100", shared.ErrValidation)
	ErrInvalidDimension  = fmt.Errorf("%w: width and height must be greater than zero", shared.ErrValidation)
	ErrMissingDimensions = fmt.Errorf("%w: product is priced by area and needs width and height", shared.ErrValidation)
	ErrInactiveProduct   = fmt.Errorf("%w: product is inactive", shared.ErrValidation)
	ErrProductChanged    = fmt.Errorf("%w: an existing item cannot change product", shared.ErrValidation)
	ErrForeignGroup      = fmt.Errorf("%w: group does not belong to the quotation", shared.ErrValidation)
	ErrForeignItem       = fmt.Errorf("%w: item does not belong to the group", shared.ErrValidation)
	ErrDuplicateGroup    = fmt.Errorf("%w: group listed more than once", shared.ErrValidation)
	ErrDuplicateItem     = fmt.Errorf("%w: item listed more than once", shared.ErrValidation)
	ErrDiscountTooLarge  = fmt.Errorf("%w: discount total exceeds the net subtotal", shared.ErrValidation)
	ErrNegativeDiscount  = fmt.Errorf("%w: discount total must not be negative", shared.ErrValidation)
	ErrEmptyGroupName    = fmt.Errorf("%w: group name is required", shared.ErrValidation)
	ErrGroupNotFound     = fmt.Errorf("%w: quotation group", shared.ErrNotFound)
	ErrItemNotFound      = fmt.Errorf("%w: quotation item", shared.ErrNotFound)

	ErrCannotEdit    = fmt.Errorf("%w: quotation can only change while DRAFT or SENT", shared.ErrConflict)
	ErrCannotArchive = fmt.Errorf("%w: only quotations in a final status can be archived", shared.ErrConflict)
	ErrStatusChanged = fmt.Errorf("%w: quotation status changed concurrently", shared.ErrConflict)
)
