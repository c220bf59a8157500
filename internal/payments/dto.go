package payments

import "time"

// RecordPaymentRequest captures a payment against an order's invoice number.
type RecordPaymentRequest struct {
	InvoiceNumber string  `json:"invoice_number" validate:"required,max=40"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	Mode          Mode    `json:"mode" validate:"required,oneof=upi card netbanking bank_transfer cash cheque"`
	Type          Type    `json:"type" validate:"omitempty,oneof=full advance balance"`
	Reference     string  `json:"reference,omitempty" validate:"max=100"`
}

// MarkSuccessfulRequest confirms the funds arrived.
type MarkSuccessfulRequest struct {
	UTRNumber string     `json:"utr_number,omitempty" validate:"max=50"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	Actor     string     `json:"actor" validate:"required"`
}

// MarkFailedRequest records a failed collection.
type MarkFailedRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// RefundRequest returns money to the customer.
type RefundRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Reason string  `json:"reason" validate:"required,max=500"`
}
