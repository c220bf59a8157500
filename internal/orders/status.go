// Package orders holds the order aggregate, its status machine and the cart/placement service.
package orders

import "fmt"

// Status is the business status of an order.
type Status string

const (
	StatusPending        Status = "pending"          // Cart, editable
	StatusOrderPlaced    Status = "order_placed"     // Delivery details finalised
	StatusVendorAccepted Status = "vendor_accepted"  // Vendor took the order, quote unlocked
	StatusPaymentDone    Status = "payment_done"     // Payment reconciled, sales order unlocked
	StatusOrderConfirmed Status = "order_confirmed"  // Ready for dispatch planning
	StatusTruckLoading   Status = "truck_loading"    // Loading at warehouse
	StatusInTransit      Status = "in_transit"       // Left the warehouse, invoice unlocked
	StatusShipped        Status = "shipped"          // Handed to carrier
	StatusOutForDelivery Status = "out_for_delivery" // Last mile, invoice unlocked
	StatusDelivered      Status = "delivered"        // Terminal
	StatusCancelled      Status = "cancelled"        // Terminal
)

var statusRank = map[Status]int{
	StatusPending:        0,
	StatusOrderPlaced:    1,
	StatusVendorAccepted: 2,
	StatusPaymentDone:    3,
	StatusOrderConfirmed: 4,
	StatusTruckLoading:   5,
	StatusInTransit:      6,
	StatusShipped:        7,
	StatusOutForDelivery: 8,
	StatusDelivered:      9,
	StatusCancelled:      10,
}

// AllStatuses lists the enumeration in pipeline order.
var AllStatuses = []Status{
	StatusPending,
	StatusOrderPlaced,
	StatusVendorAccepted,
	StatusPaymentDone,
	StatusOrderConfirmed,
	StatusTruckLoading,
	StatusInTransit,
	StatusShipped,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// ParseStatus converts raw input into a known status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, raw)
	}
	return s, nil
}

// IsValid checks if the status is part of the enumeration.
func (s Status) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank returns the pipeline position, or -1 for unknown statuses.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// CanEditCart reports whether items may still be added or removed.
func (s Status) CanEditCart() bool {
	return s == StatusPending
}

// CanChangeDelivery reports whether address and expected date may be edited.
func (s Status) CanChangeDelivery() bool {
	switch s {
	case StatusOrderPlaced, StatusVendorAccepted, StatusPaymentDone:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further business progress is expected.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}
