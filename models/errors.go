package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrCannotCancelWithReceipts is returned when cancelling an order that already
// has finished-good receipts posted against it.
var ErrCannotCancelWithReceipts = errors.New("order has finished-good receipts and cannot be cancelled")

// ValidationError reports malformed input. It never leaves side effects behind.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError aborts the whole enclosing transaction: a debit may
// never drive quantity-on-hand below zero.
type InsufficientStockError struct {
	ItemId    int
	ItemName  string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %s, available %s",
		e.ItemName, e.Requested.String(), e.Available.String())
}

// InvalidOrderStateError reports an action forbidden by the order's current status.
type InvalidOrderStateError struct {
	OrderId int
	Status  ProductionOrderStatus
	Action  string
}

func (e *InvalidOrderStateError) Error() string {
	return fmt.Sprintf("order %d is %s; cannot %s", e.OrderId, e.Status, e.Action)
}

// NoConversionPathError reports a unit pair with neither a direct nor an
// inverse conversion factor configured.
type NoConversionPathError struct {
	FromUnitId int
	ToUnitId   int
}

func (e *NoConversionPathError) Error() string {
	return fmt.Sprintf("no conversion path from unit %d to unit %d", e.FromUnitId, e.ToUnitId)
}

// MaterialShortageError rejects order creation, naming every short material.
type MaterialShortageError struct {
	Shortages []MaterialRequirement
}

func (e *MaterialShortageError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s short by %s", s.ItemName, s.Shortage.String()))
	}
	return "insufficient stock for plan: " + strings.Join(parts, "; ")
}
