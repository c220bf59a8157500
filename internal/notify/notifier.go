package notify

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/bulkmart/fulfillment/internal/documents"
	"github.com/bulkmart/fulfillment/internal/orders"
)

// Queue hands mails to the background sender.
type Queue interface {
	EnqueueMail(ctx context.Context, mail Mail) error
}

// Notifier turns domain events into queued mails.
type Notifier struct {
	queue   Queue
	printer *message.Printer
}

// NewNotifier builds a notifier formatting amounts for locale (for example "en-IN").
// An unparsable locale falls back to English.
func NewNotifier(queue Queue, locale string) *Notifier {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Notifier{queue: queue, printer: message.NewPrinter(tag)}
}

var kindTitles = map[orders.DocumentKind]string{
	orders.KindQuote:      "quotation",
	orders.KindSalesOrder: "sales order",
	orders.KindInvoice:    "invoice",
}

// SendDocumentLink queues a mail pointing the customer at a document PDF.
func (n *Notifier) SendDocumentLink(ctx context.Context, notice documents.Notice) error {
	mail := n.DocumentMail(notice)
	if err := mail.Validate(); err != nil {
		return err
	}
	return n.queue.EnqueueMail(ctx, mail)
}

// DocumentMail renders the document notice.
func (n *Notifier) DocumentMail(notice documents.Notice) Mail {
	title := kindTitles[notice.Kind]
	if title == "" {
		title = string(notice.Kind)
	}
	name := strings.TrimSpace(notice.Name)
	if name == "" {
		name = "Customer"
	}
	var body strings.Builder
	fmt.Fprintf(&body, "Dear %s,\n\n", name)
	fmt.Fprintf(&body, "Your %s for order %s is ready.\n", title, notice.LeadID)
	if notice.Amount > 0 {
		body.WriteString(n.printer.Sprintf("Order amount: INR %.2f\n", notice.Amount))
	}
	fmt.Fprintf(&body, "\nDownload it here: %s\n", notice.Link)
	return Mail{
		To:      notice.Email,
		Subject: fmt.Sprintf("Your %s for order %s", title, notice.LeadID),
		Body:    body.String(),
	}
}
