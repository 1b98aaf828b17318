// Package services defines the business logic for the catalog, carts,
// checkout, the express purchase flow, and conversation handling. This file
// centralizes common service-level error values and the structured error
// types that carry context back to the rule engine or the model.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages, tool results, or HTTP status codes
// is performed at the tools/handler layer.
package services

import (
	"errors"
	"fmt"
)

// Catalog and cart errors.
var (
	// ErrProductNotFound indicates that no product matches the requested
	// SKU or ID for this bot.
	ErrProductNotFound = errors.New("product not found")

	// ErrDuplicateSKU is returned when a product is created with a SKU the
	// bot already uses.
	ErrDuplicateSKU = errors.New("sku already exists")

	// ErrInvalidProduct is returned when a product payload fails basic
	// validation (blank SKU or name, negative price or stock).
	ErrInvalidProduct = errors.New("invalid product")

	// ErrCartNotFound indicates that no open cart exists for the chat.
	ErrCartNotFound = errors.New("no open cart")

	// ErrCartEmpty is returned when checkout is attempted on a cart with
	// no items.
	ErrCartEmpty = errors.New("cart is empty")

	// ErrCartLocked is returned when a mutation targets a cart that has
	// already been checked out.
	ErrCartLocked = errors.New("cart is locked")

	// ErrInvalidQty is returned for quantities that are zero, negative,
	// or above the per-call cap.
	ErrInvalidQty = errors.New("invalid quantity")

	// ErrNotConfirmed is returned when checkout is submitted without the
	// explicit confirm flag.
	ErrNotConfirmed = errors.New("checkout not confirmed")

	// ErrSaleNotFound indicates that the requested sale does not exist
	// for this bot.
	ErrSaleNotFound = errors.New("sale not found")

	// ErrIllegalTransition is returned when a sale status change is not
	// permitted from the current state.
	ErrIllegalTransition = errors.New("illegal sale status transition")

	// ErrEmptyPrompt is returned when an inbound message is blank.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when an inbound message exceeds the maximum
	// configured length limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrChatNotFound indicates that the requested chat does not exist.
	ErrChatNotFound = errors.New("chat not found")
)

// StockError reports that a requested quantity cannot be served. Available
// carries the stock observed at decision time so the caller can re-prompt
// with a useful number.
type StockError struct {
	SKU       string
	Requested int
	Available int
}

// Error implements the error interface.
func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
}

// CheckoutIncompleteError lists the required checkout fields that are still
// unset ("payment", "shipping", "contact"), in that order.
type CheckoutIncompleteError struct {
	Missing []string
}

// Error implements the error interface.
func (e *CheckoutIncompleteError) Error() string {
	return fmt.Sprintf("checkout incomplete: missing %v", e.Missing)
}

// MethodNotAllowedError reports that a payment or shipping method is not in
// the bot's configured set; Allowed carries the valid names for client
// disambiguation.
type MethodNotAllowedError struct {
	Kind    string // "payment" or "shipping"
	Method  string
	Allowed []string
}

// Error implements the error interface.
func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("%s method %q not allowed (allowed: %v)", e.Kind, e.Method, e.Allowed)
}
