package documents

import (
	"bytes"
	"html/template"

	"github.com/bulkmart/fulfillment/internal/orders"
)

var summaryTemplate = template.Must(template.New("summary").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}} {{.Order.LeadID}}</title>
<style>body{font-family:sans-serif;font-size:12px}table{width:100%;border-collapse:collapse}td,th{border:1px solid #999;padding:4px}td.n{text-align:right}</style>
</head><body>
<h2>{{.Title}}</h2>
<p>Reference {{.Order.LeadID}} &middot; Document {{.ExternalID}} &middot; Invoice no. {{.Order.InvoiceNumber}}</p>
<p>{{.Order.ContactName}}<br>{{.Order.DeliveryAddress}} - {{.Order.DeliveryPincode}}</p>
<table>
<tr><th>Item</th><th>Qty</th><th>Rate</th><th>Amount</th></tr>
{{range .Order.Items}}<tr><td>{{if .Description}}{{.Description}}{{else}}{{.ItemRef}}{{end}}</td><td class="n">{{.Quantity}}</td><td class="n">{{printf "%.2f" .UnitPrice}}</td><td class="n">{{printf "%.2f" .LineTotal}}</td></tr>
{{end}}<tr><td colspan="3">Delivery charge</td><td class="n">{{printf "%.2f" .Order.DeliveryCharge}}</td></tr>
{{if .Order.PromoDiscount}}<tr><td colspan="3">Discount</td><td class="n">-{{printf "%.2f" .Order.PromoDiscount}}</td></tr>
{{end}}<tr><th colspan="3">Total</th><th class="n">{{printf "%.2f" .Order.TotalAmount}}</th></tr>
</table>
</body></html>`))

var summaryTitles = map[orders.DocumentKind]string{
	orders.KindQuote:      "Quotation",
	orders.KindSalesOrder: "Sales Order",
	orders.KindInvoice:    "Tax Invoice",
}

// renderSummary produces the HTML body of a locally rendered document.
func renderSummary(order *orders.Order, kind orders.DocumentKind, externalID string) (string, error) {
	var buf bytes.Buffer
	err := summaryTemplate.Execute(&buf, struct {
		Title      string
		ExternalID string
		Order      *orders.Order
	}{summaryTitles[kind], externalID, order})
	return buf.String(), err
}
