package accounting

import (
	"errors"
	"fmt"
)

// DocType selects the books endpoint for a sales document.
type DocType string

const (
	DocEstimate   DocType = "estimates"
	DocSalesOrder DocType = "salesorders"
	DocInvoice    DocType = "invoices"
)

// responseKey names the JSON object holding the created record.
func (d DocType) responseKey() string {
	switch d {
	case DocEstimate:
		return "estimate"
	case DocSalesOrder:
		return "salesorder"
	case DocInvoice:
		return "invoice"
	default:
		return ""
	}
}

func (d DocType) idField() string {
	return d.responseKey() + "_id"
}

// ErrRemote wraps every failure reported by the books API.
var ErrRemote = errors.New("accounting: remote call failed")

// APIError carries the provider's error payload.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("accounting: status %d code %d: %s", e.Status, e.Code, e.Message)
}

// Unwrap lets callers match ErrRemote.
func (e *APIError) Unwrap() error { return ErrRemote }

// Contact is a customer record in the books system.
type Contact struct {
	Name    string `json:"contact_name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"-"`
	Pincode string `json:"-"`
}

// LineItem is one row on a sales document. ItemID links a catalogue item; when
// empty the row is free text described by Name and Description.
type LineItem struct {
	ItemID      string  `json:"item_id,omitempty"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
}

// Document is the create payload shared by estimates, sales orders and invoices.
type Document struct {
	CustomerID      string     `json:"customer_id"`
	ReferenceNumber string     `json:"reference_number"`
	Date            string     `json:"date"`
	LineItems       []LineItem `json:"line_items"`
	Discount        float64    `json:"discount,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}
