// Package documents creates the quote, sales order and invoice for an order in
// the accounting system, at most once per order and kind.
package documents

import (
	"errors"
	"fmt"

	"github.com/bulkmart/fulfillment/internal/accounting"
	"github.com/bulkmart/fulfillment/internal/orders"
)

var (
	ErrExternalFailure  = errors.New("external collaborator failure")
	ErrDocumentNotReady = errors.New("document not ready")
	ErrUnknownKind      = errors.New("unknown document kind")
)

// MissingPrerequisiteError reports that a document cannot be created before another one exists.
type MissingPrerequisiteError struct {
	Kind    orders.DocumentKind
	Missing orders.DocumentKind
}

func (e *MissingPrerequisiteError) Error() string {
	return fmt.Sprintf("%s requires %s to exist first", e.Kind, e.Missing)
}

// Result describes the outcome of one Sync call.
type Result struct {
	Kind       orders.DocumentKind `json:"kind"`
	ExternalID string              `json:"external_id,omitempty"`
	Created    bool                `json:"created"`
	Skipped    bool                `json:"skipped"`
}

// State is the user-facing readiness of a document.
type State string

const (
	StateReady    State = "ready"
	StatePending  State = "pending"
	StateFailed   State = "failed"
	StateNotReady State = "not_ready"
)

// DocStatus reports whether a document exists and, if not, what the sync queue is doing about it.
type DocStatus struct {
	LeadID     string              `json:"lead_id"`
	Kind       orders.DocumentKind `json:"kind"`
	State      State               `json:"state"`
	ExternalID string              `json:"external_id,omitempty"`
	Attempts   int                 `json:"attempts,omitempty"`
	LastError  *string             `json:"last_error,omitempty"`
}

// Prerequisite returns a MissingPrerequisiteError when kind cannot be created yet.
func Prerequisite(order *orders.Order, kind orders.DocumentKind) error {
	if kind == orders.KindSalesOrder && !order.External.Has(orders.KindQuote) {
		return &MissingPrerequisiteError{Kind: kind, Missing: orders.KindQuote}
	}
	return nil
}

func docType(kind orders.DocumentKind) (accounting.DocType, error) {
	switch kind {
	case orders.KindQuote:
		return accounting.DocEstimate, nil
	case orders.KindSalesOrder:
		return accounting.DocSalesOrder, nil
	case orders.KindInvoice:
		return accounting.DocInvoice, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
