package orders

import "time"

// Category groups items and prefixes lead ids.
type Category string

const (
	CategoryCement  Category = "cement"
	CategorySteel   Category = "steel"
	CategoryMixer   Category = "mixer"
	CategoryGeneral Category = "general"
)

// DocumentKind names an external accounting record tracked on the order.
type DocumentKind string

const (
	KindQuote      DocumentKind = "quote"
	KindSalesOrder DocumentKind = "sales_order"
	KindInvoice    DocumentKind = "invoice"
	KindPayment    DocumentKind = "payment"
)

// IsDocument reports whether the kind is produced by document synchronisation.
func (k DocumentKind) IsDocument() bool {
	return k == KindQuote || k == KindSalesOrder || k == KindInvoice
}

// ParseDocumentKind validates a synchronisable document kind.
func ParseDocumentKind(raw string) (DocumentKind, bool) {
	k := DocumentKind(raw)
	return k, k.IsDocument()
}

// ExternalRefs holds identifiers returned by the accounting system. Each is set at most once.
type ExternalRefs struct {
	QuoteID      *string `json:"quote_id,omitempty"`
	SalesOrderID *string `json:"sales_order_id,omitempty"`
	InvoiceID    *string `json:"invoice_id,omitempty"`
	PaymentID    *string `json:"payment_id,omitempty"`
}

// Get returns the stored id for kind, or nil.
func (r ExternalRefs) Get(kind DocumentKind) *string {
	switch kind {
	case KindQuote:
		return r.QuoteID
	case KindSalesOrder:
		return r.SalesOrderID
	case KindInvoice:
		return r.InvoiceID
	case KindPayment:
		return r.PaymentID
	default:
		return nil
	}
}

// Has reports whether a non-empty id is stored for kind.
func (r ExternalRefs) Has(kind DocumentKind) bool {
	id := r.Get(kind)
	return id != nil && *id != ""
}

func (r *ExternalRefs) set(kind DocumentKind, id string) {
	switch kind {
	case KindQuote:
		r.QuoteID = &id
	case KindSalesOrder:
		r.SalesOrderID = &id
	case KindInvoice:
		r.InvoiceID = &id
	case KindPayment:
		r.PaymentID = &id
	}
}

// Order is the aggregate root for a customer's marketplace order.
type Order struct {
	ID                   int64         `json:"id"`
	LeadID               string        `json:"lead_id"`
	InvoiceNumber        string        `json:"invoice_number"`
	Category             Category      `json:"category"`
	CustomerID           int64         `json:"customer_id"`
	VendorID             *int64        `json:"vendor_id,omitempty"`
	Items                []Item        `json:"items"`
	TotalQuantity        float64       `json:"total_quantity"`
	TotalAmount          float64       `json:"total_amount"`
	DeliveryCharge       float64       `json:"delivery_charge"`
	PromoDiscount        float64       `json:"promo_discount"`
	Status               Status        `json:"status"`
	DeliveryAddress      string        `json:"delivery_address"`
	DeliveryPincode      string        `json:"delivery_pincode"`
	DeliveryExpectedDate *time.Time    `json:"delivery_expected_date,omitempty"`
	ContactName          string        `json:"contact_name"`
	ContactPhone         string        `json:"contact_phone"`
	ContactEmail         string        `json:"contact_email"`
	AddressChanges       []ChangeLog   `json:"address_changes,omitempty"`
	DateChanges          []ChangeLog   `json:"date_changes,omitempty"`
	External             ExternalRefs  `json:"external"`
	IsActive             bool          `json:"is_active"`
	PlacedAt             *time.Time    `json:"placed_at,omitempty"`
	History              []StatusEvent `json:"history,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// Item is a line in the order. LineTotal is always derived from Quantity and UnitPrice.
type Item struct {
	ItemRef        string  `json:"item_ref"`
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	LineTotal      float64 `json:"line_total"`
	WarehouseID    int64   `json:"warehouse_id,omitempty"`
	DeliveryCharge float64 `json:"delivery_charge"`
	ExternalItemID *string `json:"external_item_id,omitempty"`
}

// ChangeField names the delivery field an audit entry refers to.
type ChangeField string

const (
	FieldAddress      ChangeField = "delivery_address"
	FieldExpectedDate ChangeField = "delivery_expected_date"
)

// ChangeLog is an append-only record of a delivery detail edit.
type ChangeLog struct {
	Field     ChangeField `json:"field"`
	OldValue  string      `json:"old_value"`
	NewValue  string      `json:"new_value"`
	ChangedBy string      `json:"changed_by"`
	Reason    string      `json:"reason"`
	At        time.Time   `json:"at"`
}

// StatusEvent is an immutable record of one status transition.
type StatusEvent struct {
	LeadID        string    `json:"lead_id"`
	InvoiceNumber string    `json:"invoice_number"`
	VendorID      *int64    `json:"vendor_id,omitempty"`
	From          Status    `json:"from"`
	Status        Status    `json:"status"`
	ChangedBy     string    `json:"changed_by"`
	Remarks       string    `json:"remarks"`
	At            time.Time `json:"at"`
}

// DeliveryDetails are captured when the customer finalises the order.
type DeliveryDetails struct {
	Address       string
	Pincode       string
	ExpectedDate  time.Time
	ContactName   string
	ContactPhone  string
	ContactEmail  string
	VendorID      *int64
	PromoDiscount float64
}
