package orders

import (
	"perfume-store/internal/apperrors"
	"perfume-store/internal/inventory"
	"perfume-store/internal/models"
)

func validStatus(status models.OrderStatus) bool {
	for _, known := range models.OrderStatuses {
		if status == known {
			return true
		}
	}
	return false
}

// ParseStatus accepts exactly one of the five order statuses.
func ParseStatus(raw string) (models.OrderStatus, error) {
	status := models.OrderStatus(raw)
	if !validStatus(status) {
		return "", apperrors.Newf(apperrors.CodeInvalidStatus, "invalid status %q", raw).
			WithDetails(map[string]any{"allowed": models.OrderStatuses})
	}
	return status, nil
}

// Transition is the single authority on status changes and the stock
// adjustment each one implies. Moving into cancelled releases stock, moving
// out of it reserves stock again, and from == to is a no-op.
func Transition(from, to models.OrderStatus) (inventory.StockEffect, error) {
	if !validStatus(to) {
		return inventory.StockNone, apperrors.Newf(apperrors.CodeInvalidStatus, "invalid status %q", to)
	}
	if from == to {
		return inventory.StockNone, nil
	}

	switch {
	case to == models.StatusCancelled:
		return inventory.StockRelease, nil
	case from == models.StatusCancelled:
		return inventory.StockReserve, nil
	default:
		return inventory.StockNone, nil
	}
}

// CanSelfCancel reports whether a customer may still cancel the order.
func CanSelfCancel(from models.OrderStatus) bool {
	return from == models.StatusPending || from == models.StatusProcessing
}
