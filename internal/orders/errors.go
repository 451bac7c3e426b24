package orders

import (
	"fmt"

	"github.com/fabtrack/fabtrack/internal/shared"
)

// Domain errors for service orders.
var (
	// Validation errors.
	ErrInvalidStatus    = fmt.Errorf("%w: unknown order status", shared.ErrValidation)
	ErrInvalidDates     = fmt.Errorf("%w: end date must not precede start date", shared.ErrValidation)
	ErrInvalidDimension = fmt.Errorf("%w: width and height must be greater than zero", shared.ErrValidation)
	ErrInvalidPieces    = fmt.Errorf("%w: pieces must be greater than zero", shared.ErrValidation)
	ErrEnvironmentEmpty = fmt.Errorf("%w: environment is required", shared.ErrValidation)
	ErrLineNotFound     = fmt.Errorf("%w: order line", shared.ErrNotFound)

	// Status errors.
	ErrCannotEdit    = fmt.Errorf("%w: order cannot be edited in its current status", shared.ErrConflict)
	ErrCannotDelete  = fmt.Errorf("%w: order can only be deleted while SUBMITTED, REJECTED or CANCELLED", shared.ErrConflict)
	ErrCannotArchive = fmt.Errorf("%w: only orders in a final status can be archived", shared.ErrConflict)
	ErrStatusChanged = fmt.Errorf("%w: order status changed concurrently", shared.ErrConflict)
)
