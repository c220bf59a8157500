package orders

import "errors"

// Domain errors for orders.
var (
	ErrOrderNotFound = errors.New("order not found")

	// Status machine errors.
	ErrInvalidTransition = errors.New("invalid status transition")

	// Aggregate errors.
	ErrInvalidItem        = errors.New("invalid order item")
	ErrItemNotFound       = errors.New("item not in order")
	ErrNotEditable        = errors.New("order cannot be edited in current status")
	ErrPolicyWindowClosed = errors.New("change window has closed")
	ErrEmptyOrder         = errors.New("order has no items")
	ErrInactiveOrder      = errors.New("order is no longer active")
	ErrInvalidDetails     = errors.New("invalid delivery details")

	// Pricing errors.
	ErrDeliveryUnavailable = errors.New("delivery unavailable for this pincode")

	// ErrExternalIDAlreadySet reports a lost race on a set-once external id.
	ErrExternalIDAlreadySet = errors.New("external id already set")
)
