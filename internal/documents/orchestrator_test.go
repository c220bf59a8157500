package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkmart/fulfillment/internal/accounting"
	"github.com/bulkmart/fulfillment/internal/customers"
	"github.com/bulkmart/fulfillment/internal/orders"
	"github.com/bulkmart/fulfillment/internal/outbox"
	"github.com/bulkmart/fulfillment/internal/payments"
)

// ============================================================================
// MOCKS
// ============================================================================

type fakeAccounting struct {
	created     map[accounting.DocType][]accounting.Document
	customers   []accounting.Contact
	emailed     []string
	nextID      int
	createErr   error
	emailErr    error
	pdfErr      error
	beforeStore func()
}

func newFakeAccounting() *fakeAccounting {
	return &fakeAccounting{created: make(map[accounting.DocType][]accounting.Document)}
}

func (f *fakeAccounting) EnsureCustomer(_ context.Context, c accounting.Contact) (string, error) {
	f.customers = append(f.customers, c)
	return fmt.Sprintf("contact-%d", len(f.customers)), nil
}

func (f *fakeAccounting) createDoc(dt accounting.DocType, doc accounting.Document) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created[dt] = append(f.created[dt], doc)
	f.nextID++
	if f.beforeStore != nil {
		f.beforeStore()
	}
	return fmt.Sprintf("%s-%d", dt, f.nextID), nil
}

func (f *fakeAccounting) CreateQuote(_ context.Context, doc accounting.Document) (string, error) {
	return f.createDoc(accounting.DocEstimate, doc)
}

func (f *fakeAccounting) CreateSalesOrder(_ context.Context, doc accounting.Document) (string, error) {
	return f.createDoc(accounting.DocSalesOrder, doc)
}

func (f *fakeAccounting) CreateInvoice(_ context.Context, doc accounting.Document) (string, error) {
	return f.createDoc(accounting.DocInvoice, doc)
}

func (f *fakeAccounting) EmailDocument(_ context.Context, _ accounting.DocType, id string, _ []string) error {
	if f.emailErr != nil {
		return f.emailErr
	}
	f.emailed = append(f.emailed, id)
	return nil
}

func (f *fakeAccounting) FetchPDF(_ context.Context, _ accounting.DocType, id string) ([]byte, error) {
	if f.pdfErr != nil {
		return nil, f.pdfErr
	}
	return []byte("%PDF " + id), nil
}

type fakeOrders struct {
	orders map[string]*orders.Order
}

func (f *fakeOrders) Get(_ context.Context, leadID string) (*orders.Order, error) {
	o, ok := f.orders[leadID]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (f *fakeOrders) SetExternalID(_ context.Context, leadID string, kind orders.DocumentKind, id string) (bool, error) {
	o, ok := f.orders[leadID]
	if !ok {
		return false, orders.ErrOrderNotFound
	}
	if o.External.Has(kind) {
		return false, nil
	}
	setRef(&o.External, kind, id)
	return true, nil
}

func setRef(r *orders.ExternalRefs, kind orders.DocumentKind, id string) {
	switch kind {
	case orders.KindQuote:
		r.QuoteID = &id
	case orders.KindSalesOrder:
		r.SalesOrderID = &id
	case orders.KindInvoice:
		r.InvoiceID = &id
	}
}

type fakeCustomers struct {
	profiles map[int64]*customers.Profile
	links    int
}

func (f *fakeCustomers) Profile(_ context.Context, id int64) (*customers.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, customers.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCustomers) LinkExternalID(_ context.Context, id int64, ext string) error {
	p := f.profiles[id]
	if p.ExternalCustomerID != nil {
		return customers.ErrAlreadyLinked
	}
	f.links++
	p.ExternalCustomerID = &ext
	return nil
}

type fakePayments struct {
	record *payments.Record
}

func (f *fakePayments) ForLead(_ context.Context, _ *orders.Order) (*payments.Record, error) {
	if f.record == nil {
		return nil, payments.ErrNotFound
	}
	return f.record, nil
}

type recordingNotifier struct {
	notices []Notice
	err     error
}

func (n *recordingNotifier) SendDocumentLink(_ context.Context, notice Notice) error {
	n.notices = append(n.notices, notice)
	return n.err
}

type fakeEntries struct {
	entry *outbox.Entry
}

func (f fakeEntries) Latest(_ context.Context, _, _ string) (outbox.Entry, error) {
	if f.entry == nil {
		return outbox.Entry{}, outbox.ErrNotFound
	}
	return *f.entry, nil
}

type fakeRenderer struct {
	html string
}

func (f *fakeRenderer) RenderHTML(_ context.Context, html string) ([]byte, error) {
	f.html = html
	return []byte("%PDF local"), nil
}

const testLead = "CEM-260310-ABCDEF"

type fixture struct {
	orch      *Orchestrator
	acct      *fakeAccounting
	orders    *fakeOrders
	customers *fakeCustomers
	payments  *fakePayments
	notifier  *recordingNotifier
}

func newFixture() *fixture {
	ext := "item-991"
	order := &orders.Order{
		LeadID:        testLead,
		InvoiceNumber: "INV-202603-0A1B2C3D",
		CustomerID:    7,
		Items: []orders.Item{
			{ItemRef: "CEM-OPC-53", Description: "OPC 53 grade, 50kg", Quantity: 2, UnitPrice: 100, LineTotal: 200, ExternalItemID: &ext},
			{ItemRef: "SAND-M", Description: "M-sand per tonne", Quantity: 1, UnitPrice: 250, LineTotal: 250},
		},
		DeliveryCharge:  350,
		TotalAmount:     800,
		Status:          orders.StatusVendorAccepted,
		DeliveryAddress: "12 Lake Road",
		DeliveryPincode: "560001",
		ContactName:     "Asha Rao",
		ContactEmail:    "asha@example.com",
		IsActive:        true,
	}
	f := &fixture{
		acct:   newFakeAccounting(),
		orders: &fakeOrders{orders: map[string]*orders.Order{testLead: order}},
		customers: &fakeCustomers{profiles: map[int64]*customers.Profile{
			7: {ID: 7, Name: "Asha Rao", Email: "asha@example.com"},
		}},
		payments: &fakePayments{},
		notifier: &recordingNotifier{},
	}
	f.orch = NewOrchestrator(f.acct, f.orders, f.customers, f.payments,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		Options{PublicBaseURL: "https://shop.example/", CallTimeout: time.Second})
	f.orch.SetNotifier(f.notifier)
	f.orch.now = func() time.Time { return time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC) }
	return f
}

// ============================================================================
// TESTS
// ============================================================================

func TestSync_IsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.orch.Sync(ctx, testLead, orders.KindQuote)
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := f.orch.Sync(ctx, testLead, orders.KindQuote)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.ExternalID, second.ExternalID)
	assert.Len(t, f.acct.created[accounting.DocEstimate], 1)
}

func TestSync_SalesOrderRequiresQuote(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Sync(context.Background(), testLead, orders.KindSalesOrder)

	var missing *MissingPrerequisiteError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, orders.KindQuote, missing.Missing)
	assert.Empty(t, f.acct.created)
}

func TestSyncWithPrerequisites_CreatesQuoteThenSalesOrder(t *testing.T) {
	f := newFixture()

	results, err := f.orch.SyncWithPrerequisites(context.Background(), testLead, orders.KindSalesOrder)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, orders.KindQuote, results[0].Kind)
	assert.Equal(t, orders.KindSalesOrder, results[1].Kind)
	assert.Len(t, f.acct.created[accounting.DocEstimate], 1)
	assert.Len(t, f.acct.created[accounting.DocSalesOrder], 1)
	assert.Len(t, f.acct.emailed, 2)

	again, err := f.orch.SyncWithPrerequisites(context.Background(), testLead, orders.KindSalesOrder)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.True(t, again[0].Skipped)
}

func TestSync_CustomerCreatedOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.orch.Sync(ctx, testLead, orders.KindQuote)
	require.NoError(t, err)
	_, err = f.orch.Sync(ctx, testLead, orders.KindInvoice)
	require.NoError(t, err)

	assert.Len(t, f.acct.customers, 1)
	assert.Equal(t, 1, f.customers.links)
	assert.Equal(t, "contact-1", f.acct.created[accounting.DocInvoice][0].CustomerID)
}

func TestSync_ExternalFailureLeavesIDUnset(t *testing.T) {
	f := newFixture()
	f.acct.createErr = errors.New("503 service unavailable")

	_, err := f.orch.Sync(context.Background(), testLead, orders.KindQuote)
	require.ErrorIs(t, err, ErrExternalFailure)
	assert.False(t, f.orders.orders[testLead].External.Has(orders.KindQuote))

	f.acct.createErr = nil
	res, err := f.orch.Sync(context.Background(), testLead, orders.KindQuote)
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestSync_LosingConcurrentWriterIsSkipped(t *testing.T) {
	f := newFixture()
	f.acct.beforeStore = func() {
		winner := "estimates-winner"
		f.orders.orders[testLead].External.QuoteID = &winner
	}

	res, err := f.orch.Sync(context.Background(), testLead, orders.KindQuote)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "estimates-winner", *f.orders.orders[testLead].External.QuoteID)
	assert.Empty(t, f.acct.emailed)
}

func TestSync_NotificationFailuresAreSwallowed(t *testing.T) {
	f := newFixture()
	f.acct.emailErr = errors.New("mail quota exceeded")
	f.notifier.err = errors.New("queue down")

	res, err := f.orch.Sync(context.Background(), testLead, orders.KindQuote)
	require.NoError(t, err)
	assert.True(t, res.Created)

	require.Len(t, f.notifier.notices, 1)
	n := f.notifier.notices[0]
	assert.Equal(t, "https://shop.example/documents/"+testLead+"/quote/pdf", n.Link)
	assert.Equal(t, "asha@example.com", n.Email)
}

func TestSync_DocumentLines(t *testing.T) {
	f := newFixture()
	utr := "UTR123"
	f.payments.record = &payments.Record{TransactionID: "TXN-20260311-AAAAAAAAAAAA", PaymentMode: payments.ModeUPI, PaidAmount: 800, OrderAmount: 800, UTRNumber: &utr}

	_, err := f.orch.Sync(context.Background(), testLead, orders.KindInvoice)
	require.NoError(t, err)

	doc := f.acct.created[accounting.DocInvoice][0]
	assert.Equal(t, testLead, doc.ReferenceNumber)
	assert.Equal(t, "2026-03-11", doc.Date)
	require.Len(t, doc.LineItems, 3)
	assert.Equal(t, "item-991", doc.LineItems[0].ItemID)
	assert.Empty(t, doc.LineItems[0].Description)
	assert.Empty(t, doc.LineItems[1].ItemID)
	assert.Equal(t, "M-sand per tonne", doc.LineItems[1].Description)
	assert.Equal(t, deliveryLineName, doc.LineItems[2].Name)
	assert.Equal(t, 350.0, doc.LineItems[2].Rate)
	assert.Contains(t, doc.Notes, "TXN-20260311-AAAAAAAAAAAA")
	assert.Contains(t, doc.Notes, "UTR: UTR123")
}

func TestSync_UnknownKindAndOrder(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Sync(context.Background(), testLead, orders.KindPayment)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = f.orch.Sync(context.Background(), "CEM-000000-000000", orders.KindQuote)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestStatus(t *testing.T) {
	msg := "timeout"
	tests := []struct {
		name  string
		entry *outbox.Entry
		ready bool
		want  State
	}{
		{name: "nothing queued", want: StateNotReady},
		{name: "pending", entry: &outbox.Entry{ID: uuid.New(), Status: outbox.StatusPending, Attempts: 2, LastError: &msg}, want: StatePending},
		{name: "exhausted", entry: &outbox.Entry{ID: uuid.New(), Status: outbox.StatusFailed, Attempts: 8, LastError: &msg}, want: StateFailed},
		{name: "ready", ready: true, want: StateReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.orch.SetEntries(fakeEntries{entry: tt.entry})
			if tt.ready {
				_, err := f.orch.Sync(context.Background(), testLead, orders.KindQuote)
				require.NoError(t, err)
			}

			st, err := f.orch.Status(context.Background(), testLead, orders.KindQuote)
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.State)
			if tt.entry != nil {
				assert.Equal(t, tt.entry.Attempts, st.Attempts)
			}
		})
	}
}

func TestPDF(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.orch.PDF(ctx, testLead, orders.KindQuote)
	require.ErrorIs(t, err, ErrDocumentNotReady)

	res, err := f.orch.Sync(ctx, testLead, orders.KindQuote)
	require.NoError(t, err)

	data, err := f.orch.PDF(ctx, testLead, orders.KindQuote)
	require.NoError(t, err)
	assert.Equal(t, "%PDF "+res.ExternalID, string(data))

	f.acct.pdfErr = errors.New("404")
	_, err = f.orch.PDF(ctx, testLead, orders.KindQuote)
	require.ErrorIs(t, err, ErrExternalFailure)

	renderer := &fakeRenderer{}
	f.orch.SetRenderer(renderer)
	data, err = f.orch.PDF(ctx, testLead, orders.KindQuote)
	require.NoError(t, err)
	assert.Equal(t, "%PDF local", string(data))
	assert.True(t, strings.Contains(renderer.html, "Quotation"))
	assert.Contains(t, renderer.html, "M-sand per tonne")
}
