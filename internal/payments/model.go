// Package payments reconciles customer payments and refunds against orders.
package payments

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a payment record.
type Status string

const (
	StatusPending           Status = "pending"
	StatusProcessing        Status = "processing"
	StatusSuccessful        Status = "successful"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// IsValid checks if the status is part of the enumeration.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSuccessful, StatusFailed,
		StatusCancelled, StatusRefunded, StatusPartiallyRefunded:
		return true
	}
	return false
}

// CanRecord reports whether a new amount may still be recorded against the record.
func (s Status) CanRecord() bool {
	return s == StatusPending || s == StatusProcessing || s == StatusFailed
}

// CanRefund reports whether money was received and not fully returned.
func (s Status) CanRefund() bool {
	return s == StatusSuccessful || s == StatusPartiallyRefunded
}

// IsSettled reports whether funds were received at some point.
func (s Status) IsSettled() bool {
	return s == StatusSuccessful || s == StatusRefunded || s == StatusPartiallyRefunded
}

// Type tells full settlements from advances.
type Type string

const (
	TypeFull    Type = "full"
	TypeAdvance Type = "advance"
	TypeBalance Type = "balance"
)

// Mode is how the customer paid.
type Mode string

const (
	ModeUPI          Mode = "upi"
	ModeCard         Mode = "card"
	ModeNetBanking   Mode = "netbanking"
	ModeBankTransfer Mode = "bank_transfer"
	ModeCash         Mode = "cash"
	ModeCheque       Mode = "cheque"
)

var (
	ErrNotFound             = errors.New("payment record not found")
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")
	ErrInvalidRefund        = errors.New("invalid refund amount")
	ErrInvalidState         = errors.New("payment is not in a valid state for this operation")
)

// Record is the payment ledger entry for one order, keyed by invoice number.
type Record struct {
	ID            int64      `json:"id"`
	InvoiceNumber string     `json:"invoice_number"`
	LeadID        string     `json:"lead_id"`
	PaymentType   Type       `json:"payment_type"`
	PaymentMode   Mode       `json:"payment_mode"`
	Status        Status     `json:"status"`
	OrderAmount   float64    `json:"order_amount"`
	PaidAmount    float64    `json:"paid_amount"`
	RefundAmount  float64    `json:"refund_amount"`
	TransactionID string     `json:"transaction_id"`
	Reference     string     `json:"reference,omitempty"`
	UTRNumber     *string    `json:"utr_number,omitempty"`
	PaymentDate   *time.Time `json:"payment_date,omitempty"`
	RefundReason  string     `json:"refund_reason,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
