package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bulkmart/fulfillment/internal/accounting"
	"github.com/bulkmart/fulfillment/internal/customers"
	"github.com/bulkmart/fulfillment/internal/orders"
	"github.com/bulkmart/fulfillment/internal/outbox"
	"github.com/bulkmart/fulfillment/internal/payments"
)

// DefaultCallTimeout bounds each call to the accounting system.
const DefaultCallTimeout = 20 * time.Second

// Accounting is the external books system. accounting.Client implements it.
type Accounting interface {
	EnsureCustomer(ctx context.Context, contact accounting.Contact) (string, error)
	CreateQuote(ctx context.Context, doc accounting.Document) (string, error)
	CreateSalesOrder(ctx context.Context, doc accounting.Document) (string, error)
	CreateInvoice(ctx context.Context, doc accounting.Document) (string, error)
	EmailDocument(ctx context.Context, docType accounting.DocType, id string, to []string) error
	FetchPDF(ctx context.Context, docType accounting.DocType, id string) ([]byte, error)
}

// OrderStore reads orders and records external document ids.
type OrderStore interface {
	Get(ctx context.Context, leadID string) (*orders.Order, error)
	SetExternalID(ctx context.Context, leadID string, kind orders.DocumentKind, id string) (bool, error)
}

// CustomerStore holds the cached accounting contact id per customer.
type CustomerStore interface {
	Profile(ctx context.Context, id int64) (*customers.Profile, error)
	LinkExternalID(ctx context.Context, id int64, externalID string) error
}

// PaymentLookup finds the payment record of an order.
type PaymentLookup interface {
	ForLead(ctx context.Context, order *orders.Order) (*payments.Record, error)
}

// Notice is a document link mailed when the provider cannot email the document itself.
type Notice struct {
	Kind   orders.DocumentKind `json:"kind"`
	Email  string              `json:"email"`
	Name   string              `json:"name"`
	LeadID string              `json:"lead_id"`
	Amount float64             `json:"amount"`
	Link   string              `json:"link"`
}

// Notifier sends document notices.
type Notifier interface {
	SendDocumentLink(ctx context.Context, n Notice) error
}

// EntryLookup exposes the sync queue state of a document.
type EntryLookup interface {
	Latest(ctx context.Context, leadID, effect string) (outbox.Entry, error)
}

// Renderer turns HTML into a PDF.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Options configures an Orchestrator.
type Options struct {
	PublicBaseURL string
	CallTimeout   time.Duration
}

// Orchestrator drives document creation for orders.
type Orchestrator struct {
	acct      Accounting
	orders    OrderStore
	customers CustomerStore
	payments  PaymentLookup
	notifier  Notifier
	entries   EntryLookup
	renderer  Renderer
	logger    *slog.Logger
	baseURL   string
	timeout   time.Duration
	now       func() time.Time
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(acct Accounting, orderStore OrderStore, customerStore CustomerStore, paymentLookup PaymentLookup, logger *slog.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Orchestrator{
		acct:      acct,
		orders:    orderStore,
		customers: customerStore,
		payments:  paymentLookup,
		logger:    logger,
		baseURL:   strings.TrimRight(opts.PublicBaseURL, "/"),
		timeout:   timeout,
		now:       time.Now,
	}
}

// SetNotifier sets the fallback link notifier.
func (o *Orchestrator) SetNotifier(n Notifier) { o.notifier = n }

// SetEntries sets the sync queue used by Status.
func (o *Orchestrator) SetEntries(e EntryLookup) { o.entries = e }

// SetRenderer sets the local PDF renderer used when the provider PDF is unavailable.
func (o *Orchestrator) SetRenderer(r Renderer) { o.renderer = r }

// Sync creates the document of the given kind unless the order already has one.
func (o *Orchestrator) Sync(ctx context.Context, leadID string, kind orders.DocumentKind) (Result, error) {
	if _, err := docType(kind); err != nil {
		return Result{}, err
	}
	order, err := o.orders.Get(ctx, leadID)
	if err != nil {
		return Result{}, err
	}
	if order.External.Has(kind) {
		return Result{Kind: kind, ExternalID: *order.External.Get(kind), Skipped: true}, nil
	}
	if err := Prerequisite(order, kind); err != nil {
		return Result{}, err
	}
	return o.create(ctx, order, kind)
}

// SyncWithPrerequisites creates any missing prerequisite documents first, then kind.
// Results are returned in creation order.
func (o *Orchestrator) SyncWithPrerequisites(ctx context.Context, leadID string, kind orders.DocumentKind) ([]Result, error) {
	res, err := o.Sync(ctx, leadID, kind)
	var missing *MissingPrerequisiteError
	if !errors.As(err, &missing) {
		if err != nil {
			return nil, err
		}
		return []Result{res}, nil
	}
	o.logger.Info("creating prerequisite document",
		slog.String("lead_id", leadID),
		slog.String("kind", string(kind)),
		slog.String("prerequisite", string(missing.Missing)))
	results, err := o.SyncWithPrerequisites(ctx, leadID, missing.Missing)
	if err != nil {
		return results, err
	}
	res, err = o.Sync(ctx, leadID, kind)
	if err != nil {
		return results, err
	}
	return append(results, res), nil
}

func (o *Orchestrator) create(ctx context.Context, order *orders.Order, kind orders.DocumentKind) (Result, error) {
	customerID, contact, err := o.resolveCustomer(ctx, order)
	if err != nil {
		return Result{}, err
	}

	var payment *payments.Record
	if kind == orders.KindInvoice {
		payment, err = o.payments.ForLead(ctx, order)
		if err != nil && !errors.Is(err, payments.ErrNotFound) {
			return Result{}, fmt.Errorf("load payment: %w", err)
		}
	}

	doc := buildDocument(order, customerID, kind, payment, o.now())
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	id, err := o.createRemote(callCtx, kind, doc)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("%w: create %s: %w", ErrExternalFailure, kind, err)
	}

	stored, err := o.orders.SetExternalID(ctx, order.LeadID, kind, id)
	if err != nil {
		o.logger.Error("document created but id not stored",
			slog.String("lead_id", order.LeadID),
			slog.String("kind", string(kind)),
			slog.String("external_id", id),
			slog.Any("error", err))
		return Result{}, fmt.Errorf("store %s id: %w", kind, err)
	}
	if !stored {
		o.logger.Warn("concurrent sync already stored a document, discarding ours",
			slog.String("lead_id", order.LeadID),
			slog.String("kind", string(kind)),
			slog.String("losing_id", id))
		return Result{Kind: kind, Skipped: true}, nil
	}

	o.logger.Info("document created",
		slog.String("lead_id", order.LeadID),
		slog.String("kind", string(kind)),
		slog.String("external_id", id))
	o.notify(ctx, order, contact, kind, id)
	return Result{Kind: kind, ExternalID: id, Created: true}, nil
}

func (o *Orchestrator) createRemote(ctx context.Context, kind orders.DocumentKind, doc accounting.Document) (string, error) {
	switch kind {
	case orders.KindQuote:
		return o.acct.CreateQuote(ctx, doc)
	case orders.KindSalesOrder:
		return o.acct.CreateSalesOrder(ctx, doc)
	default:
		return o.acct.CreateInvoice(ctx, doc)
	}
}

// resolveCustomer returns the accounting contact id of the order's customer,
// creating and caching it on first use. Orders of customers without a profile
// fall back to the contact captured at placement and are not cached.
func (o *Orchestrator) resolveCustomer(ctx context.Context, order *orders.Order) (string, accounting.Contact, error) {
	contact := accounting.Contact{
		Name:    order.ContactName,
		Email:   order.ContactEmail,
		Phone:   order.ContactPhone,
		Address: order.DeliveryAddress,
		Pincode: order.DeliveryPincode,
	}

	profile, err := o.customers.Profile(ctx, order.CustomerID)
	switch {
	case errors.Is(err, customers.ErrNotFound):
		profile = nil
	case err != nil:
		return "", contact, fmt.Errorf("load customer: %w", err)
	}

	if profile != nil {
		if profile.ExternalCustomerID != nil && *profile.ExternalCustomerID != "" {
			return *profile.ExternalCustomerID, mergeContact(contact, profile), nil
		}
		contact = mergeContact(contact, profile)
	}
	if contact.Name == "" {
		return "", contact, fmt.Errorf("customer %d has no contact name", order.CustomerID)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	id, err := o.acct.EnsureCustomer(callCtx, contact)
	cancel()
	if err != nil {
		return "", contact, fmt.Errorf("%w: ensure customer: %w", ErrExternalFailure, err)
	}
	if profile == nil {
		return id, contact, nil
	}

	err = o.customers.LinkExternalID(ctx, profile.ID, id)
	switch {
	case errors.Is(err, customers.ErrAlreadyLinked):
		current, gerr := o.customers.Profile(ctx, profile.ID)
		if gerr == nil && current.ExternalCustomerID != nil {
			return *current.ExternalCustomerID, contact, nil
		}
	case err != nil:
		o.logger.Warn("caching accounting customer failed",
			slog.Int64("customer_id", profile.ID),
			slog.Any("error", err))
	}
	return id, contact, nil
}

// mergeContact prefers the profile and keeps order values for fields the profile lacks.
func mergeContact(c accounting.Contact, p *customers.Profile) accounting.Contact {
	if p.Name != "" {
		c.Name = p.Name
	}
	if p.Email != "" && c.Email == "" {
		c.Email = p.Email
	}
	if p.Phone != "" && c.Phone == "" {
		c.Phone = p.Phone
	}
	return c
}

// notify emails the document through the provider, falling back to a link mail.
// Failures are logged only.
func (o *Orchestrator) notify(ctx context.Context, order *orders.Order, contact accounting.Contact, kind orders.DocumentKind, id string) {
	if contact.Email == "" {
		o.logger.Info("no recipient for document notice", slog.String("lead_id", order.LeadID))
		return
	}
	dt, _ := docType(kind)

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	err := o.acct.EmailDocument(callCtx, dt, id, []string{contact.Email})
	cancel()
	if err == nil {
		return
	}
	o.logger.Warn("provider email failed",
		slog.String("lead_id", order.LeadID),
		slog.String("kind", string(kind)),
		slog.Any("error", err))

	if o.notifier == nil {
		return
	}
	notice := Notice{
		Kind:   kind,
		Email:  contact.Email,
		Name:   contact.Name,
		LeadID: order.LeadID,
		Amount: order.TotalAmount,
		Link:   o.PDFLink(order.LeadID, kind),
	}
	if err := o.notifier.SendDocumentLink(ctx, notice); err != nil {
		o.logger.Warn("document link notice failed",
			slog.String("lead_id", order.LeadID),
			slog.String("kind", string(kind)),
			slog.Any("error", err))
	}
}

// PDFLink is the public URL serving the document PDF.
func (o *Orchestrator) PDFLink(leadID string, kind orders.DocumentKind) string {
	return fmt.Sprintf("%s/documents/%s/%s/pdf", o.baseURL, leadID, kind)
}

// Status reports the readiness of a document.
func (o *Orchestrator) Status(ctx context.Context, leadID string, kind orders.DocumentKind) (DocStatus, error) {
	if _, err := docType(kind); err != nil {
		return DocStatus{}, err
	}
	order, err := o.orders.Get(ctx, leadID)
	if err != nil {
		return DocStatus{}, err
	}
	st := DocStatus{LeadID: leadID, Kind: kind, State: StateNotReady}
	if order.External.Has(kind) {
		st.State = StateReady
		st.ExternalID = *order.External.Get(kind)
		return st, nil
	}
	if o.entries == nil {
		return st, nil
	}
	entry, err := o.entries.Latest(ctx, leadID, string(kind))
	if errors.Is(err, outbox.ErrNotFound) {
		return st, nil
	}
	if err != nil {
		return DocStatus{}, fmt.Errorf("load sync entry: %w", err)
	}
	st.Attempts = entry.Attempts
	st.LastError = entry.LastError
	switch entry.Status {
	case outbox.StatusPending:
		st.State = StatePending
	case outbox.StatusFailed:
		st.State = StateFailed
	}
	return st, nil
}

// PDF returns the rendered document. The local renderer is used when the provider cannot serve it.
func (o *Orchestrator) PDF(ctx context.Context, leadID string, kind orders.DocumentKind) ([]byte, error) {
	dt, err := docType(kind)
	if err != nil {
		return nil, err
	}
	order, err := o.orders.Get(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !order.External.Has(kind) {
		return nil, fmt.Errorf("%w: %s for %s", ErrDocumentNotReady, kind, leadID)
	}
	id := *order.External.Get(kind)

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	data, err := o.acct.FetchPDF(callCtx, dt, id)
	cancel()
	if err == nil {
		return data, nil
	}
	if o.renderer == nil {
		return nil, fmt.Errorf("%w: fetch pdf: %w", ErrExternalFailure, err)
	}
	o.logger.Warn("provider pdf failed, rendering locally",
		slog.String("lead_id", leadID),
		slog.String("kind", string(kind)),
		slog.Any("error", err))

	html, rerr := renderSummary(order, kind, id)
	if rerr != nil {
		return nil, rerr
	}
	callCtx, cancel = context.WithTimeout(ctx, o.timeout)
	defer cancel()
	data, rerr = o.renderer.RenderHTML(callCtx, html)
	if rerr != nil {
		return nil, fmt.Errorf("%w: render pdf: %w", ErrExternalFailure, errors.Join(err, rerr))
	}
	return data, nil
}
