package documents

import (
	"fmt"
	"strings"
	"time"

	"github.com/bulkmart/fulfillment/internal/accounting"
	"github.com/bulkmart/fulfillment/internal/orders"
	"github.com/bulkmart/fulfillment/internal/payments"
)

const deliveryLineName = "Delivery charge"

// lineItems maps order items to document rows. Linked catalogue items are
// referenced by id; anything else becomes a free-text row.
func lineItems(order *orders.Order) []accounting.LineItem {
	lines := make([]accounting.LineItem, 0, len(order.Items)+1)
	for _, it := range order.Items {
		line := accounting.LineItem{Quantity: it.Quantity, Rate: it.UnitPrice}
		if it.ExternalItemID != nil && *it.ExternalItemID != "" {
			line.ItemID = *it.ExternalItemID
		} else {
			line.Name = it.ItemRef
			line.Description = it.Description
			if line.Description == "" {
				line.Description = it.ItemRef
			}
		}
		lines = append(lines, line)
	}
	if order.DeliveryCharge > 0 {
		lines = append(lines, accounting.LineItem{
			Name:     deliveryLineName,
			Quantity: 1,
			Rate:     order.DeliveryCharge,
		})
	}
	return lines
}

// buildDocument assembles the create payload. payment may be nil.
func buildDocument(order *orders.Order, customerID string, kind orders.DocumentKind, payment *payments.Record, now time.Time) accounting.Document {
	doc := accounting.Document{
		CustomerID:      customerID,
		ReferenceNumber: order.LeadID,
		Date:            now.Format(time.DateOnly),
		LineItems:       lineItems(order),
		Discount:        order.PromoDiscount,
	}

	var notes []string
	if order.VendorID != nil && kind != orders.KindQuote {
		notes = append(notes, fmt.Sprintf("Vendor: %d", *order.VendorID))
	}
	if kind == orders.KindInvoice && payment != nil {
		notes = append(notes, fmt.Sprintf("Payment %s via %s, paid %.2f of %.2f",
			payment.TransactionID, payment.PaymentMode, payment.PaidAmount, payment.OrderAmount))
		if payment.UTRNumber != nil {
			notes = append(notes, "UTR: "+*payment.UTRNumber)
		}
	}
	if order.DeliveryAddress != "" {
		notes = append(notes, fmt.Sprintf("Deliver to: %s - %s", order.DeliveryAddress, order.DeliveryPincode))
	}
	doc.Notes = strings.Join(notes, "\n")
	return doc
}
