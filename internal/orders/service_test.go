package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkmart/fulfillment/internal/geo"
	"github.com/bulkmart/fulfillment/internal/pricing"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockRepository struct {
	orders   map[string]*Order
	nextID   int64
	outbox   map[string][]DocumentKind
	events   []StatusEvent
	changes  []ChangeLog
	failSave error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		orders: make(map[string]*Order),
		outbox: make(map[string][]DocumentKind),
	}
}

func (m *mockRepository) put(o *Order) {
	if o.ID == 0 {
		m.nextID++
		o.ID = m.nextID
	}
	m.orders[o.LeadID] = o.Clone()
}

func (m *mockRepository) GetByLeadID(_ context.Context, leadID string) (*Order, error) {
	o, ok := m.orders[leadID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (m *mockRepository) GetByInvoiceNumber(_ context.Context, inv string) (*Order, error) {
	for _, o := range m.orders {
		if o.InvoiceNumber == inv {
			return o.Clone(), nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *mockRepository) FindOpenCart(_ context.Context, customerID int64, category Category) (*Order, error) {
	for _, o := range m.orders {
		if o.CustomerID == customerID && o.Category == category && o.Status == StatusPending && o.IsActive {
			return o.Clone(), nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *mockRepository) History(_ context.Context, leadID string) ([]StatusEvent, error) {
	o, ok := m.orders[leadID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return append([]StatusEvent(nil), o.History...), nil
}

func (m *mockRepository) SetExternalIDIfNull(_ context.Context, leadID string, kind DocumentKind, id string) (bool, error) {
	o, ok := m.orders[leadID]
	if !ok {
		return false, ErrOrderNotFound
	}
	if o.External.Has(kind) {
		return false, nil
	}
	o.External.set(kind, id)
	return true, nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &mockTx{repo: m, staged: make(map[string]*Order)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, o := range tx.staged {
		m.put(o)
	}
	m.events = append(m.events, tx.events...)
	m.changes = append(m.changes, tx.changes...)
	for lead, kinds := range tx.outbox {
		m.outbox[lead] = append(m.outbox[lead], kinds...)
	}
	return nil
}

type mockTx struct {
	repo    *mockRepository
	staged  map[string]*Order
	events  []StatusEvent
	changes []ChangeLog
	outbox  map[string][]DocumentKind
}

func (t *mockTx) Create(_ context.Context, o *Order) (int64, error) {
	t.repo.nextID++
	o.ID = t.repo.nextID
	t.staged[o.LeadID] = o.Clone()
	return o.ID, nil
}

func (t *mockTx) Save(_ context.Context, o *Order) error {
	if t.repo.failSave != nil {
		return t.repo.failSave
	}
	t.staged[o.LeadID] = o.Clone()
	return nil
}

func (t *mockTx) ReplaceItems(_ context.Context, _ int64, _ []Item) error { return nil }

func (t *mockTx) AppendChangeLog(_ context.Context, _ int64, entry ChangeLog) error {
	t.changes = append(t.changes, entry)
	return nil
}

func (t *mockTx) AppendStatusEvent(_ context.Context, _ int64, ev StatusEvent) error {
	t.events = append(t.events, ev)
	return nil
}

func (t *mockTx) EnqueueEffects(_ context.Context, leadID string, kinds []DocumentKind) error {
	if len(kinds) == 0 {
		return nil
	}
	if t.outbox == nil {
		t.outbox = make(map[string][]DocumentKind)
	}
	t.outbox[leadID] = append(t.outbox[leadID], kinds...)
	return nil
}

type stubCatalog map[string]pricing.Listing

func (c stubCatalog) Listing(_ context.Context, ref string) (pricing.Listing, error) {
	l, ok := c[ref]
	if !ok {
		return pricing.Listing{}, errors.New("item not listed")
	}
	return l, nil
}

type stubQuoter struct {
	charges map[string]float64
	calls   []float64
}

func (q *stubQuoter) QuoteItem(_ context.Context, ref, _ string, amount float64) (pricing.ItemQuote, error) {
	q.calls = append(q.calls, amount)
	charge, ok := q.charges[ref]
	if !ok {
		return pricing.ItemQuote{ItemRef: ref, Charge: pricing.ChargeResult{Reason: pricing.ReasonBeyondMaxRadius}}, nil
	}
	return pricing.ItemQuote{
		ItemRef:     ref,
		WarehouseID: 9,
		Charge:      pricing.ChargeResult{Available: true, Charge: charge},
	}, nil
}

type countingDispatcher struct {
	kicks int
	err   error
}

func (d *countingDispatcher) Kick(context.Context) error {
	d.kicks++
	return d.err
}

func newTestService() (*Service, *mockRepository, *stubQuoter) {
	repo := newMockRepository()
	catalog := stubCatalog{
		"CEM-OPC-53": {ItemRef: "CEM-OPC-53", Description: "OPC 53 grade, 50kg", Category: "cement", UnitPrice: 100},
		"CEM-PPC":    {ItemRef: "CEM-PPC", Description: "PPC, 50kg", Category: "cement", UnitPrice: 300},
	}
	quoter := &stubQuoter{charges: map[string]float64{"CEM-OPC-53": 80, "CEM-PPC": 70}}
	svc := NewService(repo, catalog, quoter, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return testNow }
	return svc, repo, quoter
}

func placeTestOrder(t *testing.T, svc *Service) *Order {
	t.Helper()
	ctx := context.Background()
	_, err := svc.AddToCart(ctx, AddToCartInput{CustomerID: 42, ItemRef: "CEM-OPC-53", Quantity: 2})
	require.NoError(t, err)
	cart, err := svc.AddToCart(ctx, AddToCartInput{CustomerID: 42, ItemRef: "CEM-PPC", Quantity: 1})
	require.NoError(t, err)

	placed, err := svc.Place(ctx, cart.LeadID, DeliveryDetails{
		Address:       "Plot 4, MIDC",
		Pincode:       "411019",
		ExpectedDate:  testNow.Add(72 * time.Hour),
		PromoDiscount: 100,
	}, "customer")
	require.NoError(t, err)
	return placed
}

// ============================================================================
// TESTS
// ============================================================================

func TestService_AddToCart_ReusesOpenCart(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	first, err := svc.AddToCart(ctx, AddToCartInput{CustomerID: 42, ItemRef: "CEM-OPC-53", Quantity: 2})
	require.NoError(t, err)
	second, err := svc.AddToCart(ctx, AddToCartInput{CustomerID: 42, ItemRef: "CEM-OPC-53", Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, first.LeadID, second.LeadID)
	assert.Len(t, repo.orders, 1)
	require.Len(t, second.Items, 1)
	assert.Equal(t, 3.0, second.Items[0].Quantity)
	assert.Equal(t, 300.0, second.TotalAmount)
}

func TestService_AddToCart_UnavailableDelivery(t *testing.T) {
	svc, _, quoter := newTestService()
	delete(quoter.charges, "CEM-PPC")

	_, err := svc.AddToCart(context.Background(), AddToCartInput{CustomerID: 1, ItemRef: "CEM-PPC", Quantity: 1, Pincode: "560001"})
	assert.ErrorIs(t, err, ErrDeliveryUnavailable)
}

func TestService_Place(t *testing.T) {
	svc, repo, quoter := newTestService()
	placed := placeTestOrder(t, svc)

	assert.Equal(t, StatusOrderPlaced, placed.Status)
	assert.Equal(t, 150.0, placed.DeliveryCharge)
	assert.Equal(t, 550.0, placed.TotalAmount)
	// threshold amount is the line amount
	assert.ElementsMatch(t, []float64{200, 300}, quoter.calls)
	require.Len(t, repo.events, 1)
	assert.Equal(t, StatusOrderPlaced, repo.events[0].Status)
}

func TestService_Transition_WritesOutboxAtomically(t *testing.T) {
	svc, repo, _ := newTestService()
	dispatcher := &countingDispatcher{}
	svc.SetDispatcher(dispatcher)
	placed := placeTestOrder(t, svc)
	ctx := context.Background()

	tr, err := svc.Transition(ctx, placed.LeadID, StatusVendorAccepted, "vendor", "accepted")
	require.NoError(t, err)
	assert.Equal(t, []DocumentKind{KindQuote}, tr.Effects)
	assert.Equal(t, []DocumentKind{KindQuote}, repo.outbox[placed.LeadID])
	assert.Equal(t, 1, dispatcher.kicks)

	_, err = svc.Transition(ctx, placed.LeadID, StatusOrderConfirmed, "ops", "")
	require.NoError(t, err)
	assert.Equal(t, 1, dispatcher.kicks)

	stored, err := repo.GetByLeadID(ctx, placed.LeadID)
	require.NoError(t, err)
	assert.Equal(t, StatusOrderConfirmed, stored.Status)
}

func TestService_Transition_DispatchFailureIsSwallowed(t *testing.T) {
	svc, repo, _ := newTestService()
	svc.SetDispatcher(&countingDispatcher{err: errors.New("redis down")})
	placed := placeTestOrder(t, svc)

	_, err := svc.Transition(context.Background(), placed.LeadID, StatusPaymentDone, "ops", "")
	require.NoError(t, err)
	assert.Equal(t, []DocumentKind{KindSalesOrder}, repo.outbox[placed.LeadID])
}

func TestService_Transition_SaveFailureLeavesNoTrace(t *testing.T) {
	svc, repo, _ := newTestService()
	placed := placeTestOrder(t, svc)
	repo.failSave = errors.New("serialization failure")

	_, err := svc.Transition(context.Background(), placed.LeadID, StatusVendorAccepted, "vendor", "")
	require.Error(t, err)
	assert.Empty(t, repo.outbox)
	assert.Len(t, repo.events, 1)
}

func TestService_Transition_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Transition(context.Background(), "CEM-000000-ABCDEF", StatusVendorAccepted, "ops", "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestService_History(t *testing.T) {
	svc, _, _ := newTestService()
	placed := placeTestOrder(t, svc)
	ctx := context.Background()

	for _, s := range []Status{StatusVendorAccepted, StatusPaymentDone, StatusInTransit} {
		_, err := svc.Transition(ctx, placed.LeadID, s, "ops", "")
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, placed.LeadID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, StatusInTransit, history[len(history)-1].Status)
}

func TestService_ChangeAddress(t *testing.T) {
	svc, repo, _ := newTestService()
	placed := placeTestOrder(t, svc)

	updated, err := svc.ChangeAddress(context.Background(), placed.LeadID, "Gate 2, MIDC", "", "ops", "gate change")
	require.NoError(t, err)
	assert.Equal(t, "Gate 2, MIDC", updated.DeliveryAddress)
	require.Len(t, repo.changes, 1)
	assert.Equal(t, FieldAddress, repo.changes[0].Field)

	svc.now = func() time.Time { return testNow.Add(49 * time.Hour) }
	_, err = svc.ChangeAddress(context.Background(), placed.LeadID, "Gate 3", "", "ops", "late")
	assert.ErrorIs(t, err, ErrPolicyWindowClosed)
}

func TestService_ChangeAddressRejectsInvalidPincode(t *testing.T) {
	svc, repo, _ := newTestService()
	placed := placeTestOrder(t, svc)
	before := repo.orders[placed.LeadID].DeliveryPincode

	for _, pin := range []string{"012345", "12ab56", "1", "1234567"} {
		_, err := svc.ChangeAddress(context.Background(), placed.LeadID, "Gate 2", pin, "ops", "gate change")
		assert.ErrorIs(t, err, geo.ErrInvalidPostalCode, pin)
	}

	stored := repo.orders[placed.LeadID]
	assert.Equal(t, before, stored.DeliveryPincode)
	assert.NotEqual(t, "Gate 2", stored.DeliveryAddress)
	assert.Empty(t, repo.changes)

	updated, err := svc.ChangeAddress(context.Background(), placed.LeadID, "Gate 2", "411001", "ops", "gate change")
	require.NoError(t, err)
	assert.Equal(t, "411001", updated.DeliveryPincode)
}

func TestService_RemoveCart(t *testing.T) {
	svc, repo, _ := newTestService()
	cart, err := svc.AddToCart(context.Background(), AddToCartInput{CustomerID: 5, ItemRef: "CEM-PPC", Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveCart(context.Background(), cart.LeadID))
	stored := repo.orders[cart.LeadID]
	assert.False(t, stored.IsActive)
	assert.Equal(t, StatusPending, stored.Status)
}
