package orders

import (
	"fmt"
	"strings"
	"time"
)

// ValidateCreateRequest validates create request.
func ValidateCreateRequest(req CreateOrderRequest) error {
	if err := validateDates(req.StartDate, req.EndDate); err != nil {
		return err
	}
	for i, line := range req.Lines {
		if err := ValidateLine(line); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// ValidateLine checks a single line request.
func ValidateLine(line LineRequest) error {
	if strings.TrimSpace(line.Environment) == "" {
		return ErrEnvironmentEmpty
	}
	if !line.Width.IsPositive() || !line.Height.IsPositive() {
		return ErrInvalidDimension
	}
	if line.Pieces < 0 {
		return ErrInvalidPieces
	}
	return nil
}

// ValidateUpdateRequest validates update request against the current dates.
func ValidateUpdateRequest(req UpdateOrderRequest, current Order) error {
	start, end := current.StartDate, current.EndDate
	if req.StartDate != nil {
		start = req.StartDate
	}
	if req.EndDate != nil {
		end = req.EndDate
	}
	return validateDates(start, end)
}

func validateDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return ErrInvalidDates
	}
	return nil
}

// lineFromRequest applies defaults for omitted enum fields.
func lineFromRequest(req LineRequest) Line {
	line := Line{
		Environment:    strings.TrimSpace(req.Environment),
		Model:          strings.TrimSpace(req.Model),
		Fabric:         strings.TrimSpace(req.Fabric),
		Width:          req.Width,
		Height:         req.Height,
		Pieces:         req.Pieces,
		FabricPosition: req.FabricPosition,
		ControlSide:    req.ControlSide,
		Drive:          req.Drive,
		Notes:          req.Notes,
	}
	if line.Pieces == 0 {
		line.Pieces = 1
	}
	if line.FabricPosition == "" {
		line.FabricPosition = FabricNormal
	}
	if line.ControlSide == "" {
		line.ControlSide = ControlRight
	}
	if line.Drive == "" {
		line.Drive = DriveManual
	}
	return line
}
