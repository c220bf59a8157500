// Package delivery tracks the physical delivery of an order, independently of the order's business status.
package delivery

import (
	"errors"
	"fmt"
	"time"
)

// ============================================================================
// DELIVERY STATUS
// ============================================================================

// Status represents the lifecycle of a delivery record
type Status string

const (
	StatusScheduled  Status = "scheduled"  // Planned, driver details editable
	StatusDispatched Status = "dispatched" // Left the warehouse
	StatusInTransit  Status = "in_transit" // On the road
	StatusDelivered  Status = "delivered"  // Customer received goods
	StatusFailed     Status = "failed"     // Attempt failed, can be re-dispatched
	StatusCancelled  Status = "cancelled"  // Cancelled delivery
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusDispatched, StatusInTransit, StatusDelivered, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanEdit checks if driver, vehicle and tracking details may change
func (s Status) CanEdit() bool {
	return s == StatusScheduled || s == StatusDispatched
}

// CanDispatch checks if the delivery can leave the warehouse
func (s Status) CanDispatch() bool {
	return s == StatusScheduled || s == StatusFailed
}

// CanMarkInTransit checks if the delivery can be marked on the road
func (s Status) CanMarkInTransit() bool {
	return s == StatusDispatched
}

// CanDeliver checks if the delivery can be completed
func (s Status) CanDeliver() bool {
	return s == StatusDispatched || s == StatusInTransit
}

// CanFail checks if a delivery attempt can be marked failed
func (s Status) CanFail() bool {
	return s == StatusDispatched || s == StatusInTransit
}

// CanCancel checks if the delivery can be cancelled
func (s Status) CanCancel() bool {
	return s == StatusScheduled || s == StatusDispatched
}

// ============================================================================
// ERRORS
// ============================================================================

var (
	ErrNotFound       = errors.New("delivery record not found")
	ErrAlreadyExists  = errors.New("delivery already scheduled for this order")
	ErrCannotDispatch = errors.New("delivery cannot be dispatched in current status")
	ErrCannotTransit  = errors.New("delivery cannot be marked in transit in current status")
	ErrCannotDeliver  = errors.New("delivery cannot be completed in current status")
	ErrCannotFail     = errors.New("delivery cannot be marked failed in current status")
	ErrCannotCancel   = errors.New("delivery cannot be cancelled in current status")
	ErrCannotEdit     = errors.New("delivery details cannot be edited in current status")
)

// ============================================================================
// DELIVERY RECORD ENTITY
// ============================================================================

// Record is the single delivery of an order, keyed by lead id
type Record struct {
	ID             int64      `json:"id"`
	LeadID         string     `json:"lead_id"`
	WarehouseID    int64      `json:"warehouse_id"`
	Status         Status     `json:"status"`
	ScheduledDate  time.Time  `json:"scheduled_date"`
	DriverName     *string    `json:"driver_name,omitempty"`
	DriverPhone    *string    `json:"driver_phone,omitempty"`
	VehicleNumber  *string    `json:"vehicle_number,omitempty"`
	TrackingNumber *string    `json:"tracking_number,omitempty"`
	Attempts       int        `json:"attempts"`
	DispatchedAt   *time.Time `json:"dispatched_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	ReceivedBy     *string    `json:"received_by,omitempty"`
	FailureReason  *string    `json:"failure_reason,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Assignment carries optional driver, vehicle and tracking edits
type Assignment struct {
	DriverName     *string `json:"driver_name,omitempty" validate:"omitempty,max=200"`
	DriverPhone    *string `json:"driver_phone,omitempty" validate:"omitempty,max=20"`
	VehicleNumber  *string `json:"vehicle_number,omitempty" validate:"omitempty,max=50"`
	TrackingNumber *string `json:"tracking_number,omitempty" validate:"omitempty,max=100"`
}

// Assign applies non-nil assignment fields while details are editable
func (r *Record) Assign(a Assignment, now time.Time) error {
	if !r.Status.CanEdit() {
		return fmt.Errorf("%w: %s", ErrCannotEdit, r.Status)
	}
	if a.DriverName != nil {
		r.DriverName = a.DriverName
	}
	if a.DriverPhone != nil {
		r.DriverPhone = a.DriverPhone
	}
	if a.VehicleNumber != nil {
		r.VehicleNumber = a.VehicleNumber
	}
	if a.TrackingNumber != nil {
		r.TrackingNumber = a.TrackingNumber
	}
	r.UpdatedAt = now
	return nil
}

// Dispatch moves a scheduled or failed delivery onto the road
func (r *Record) Dispatch(now time.Time) error {
	if !r.Status.CanDispatch() {
		return fmt.Errorf("%w: %s", ErrCannotDispatch, r.Status)
	}
	r.Status = StatusDispatched
	r.Attempts++
	r.DispatchedAt = &now
	r.FailureReason = nil
	r.UpdatedAt = now
	return nil
}

// MarkInTransit records that the vehicle is on the way
func (r *Record) MarkInTransit(now time.Time) error {
	if !r.Status.CanMarkInTransit() {
		return fmt.Errorf("%w: %s", ErrCannotTransit, r.Status)
	}
	r.Status = StatusInTransit
	r.UpdatedAt = now
	return nil
}

// Deliver completes the delivery
func (r *Record) Deliver(receivedBy string, now time.Time) error {
	if !r.Status.CanDeliver() {
		return fmt.Errorf("%w: %s", ErrCannotDeliver, r.Status)
	}
	r.Status = StatusDelivered
	r.DeliveredAt = &now
	if receivedBy != "" {
		r.ReceivedBy = &receivedBy
	}
	r.UpdatedAt = now
	return nil
}

// Fail records a failed attempt
func (r *Record) Fail(reason string, now time.Time) error {
	if !r.Status.CanFail() {
		return fmt.Errorf("%w: %s", ErrCannotFail, r.Status)
	}
	r.Status = StatusFailed
	r.FailureReason = &reason
	r.UpdatedAt = now
	return nil
}

// Cancel stops a delivery that has not reached the customer
func (r *Record) Cancel(reason string, now time.Time) error {
	if !r.Status.CanCancel() {
		return fmt.Errorf("%w: %s", ErrCannotCancel, r.Status)
	}
	r.Status = StatusCancelled
	if reason != "" {
		r.Notes = &reason
	}
	r.UpdatedAt = now
	return nil
}

// ============================================================================
// REQUEST DTOs
// ============================================================================

// ScheduleRequest represents request to schedule the delivery of an order
type ScheduleRequest struct {
	LeadID        string    `json:"lead_id" validate:"required,max=40"`
	WarehouseID   int64     `json:"warehouse_id" validate:"required,gt=0"`
	ScheduledDate time.Time `json:"scheduled_date" validate:"required"`
	Notes         *string   `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Assignment
}

// DeliverRequest represents request to complete the delivery
type DeliverRequest struct {
	ReceivedBy string `json:"received_by" validate:"max=200"`
}

// ReasonRequest carries the reason for a failure or cancellation
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}
