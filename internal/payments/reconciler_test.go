package payments

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkmart/fulfillment/internal/orders"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockRepository struct {
	records map[string]*Record
	nextID  int64
	saves   int
}

func newMockRepository() *mockRepository {
	return &mockRepository{records: make(map[string]*Record)}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) GetByInvoiceNumber(_ context.Context, inv string) (*Record, error) {
	rec, ok := m.records[inv]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockRepository) GetForUpdate(ctx context.Context, inv string) (*Record, error) {
	return m.GetByInvoiceNumber(ctx, inv)
}

func (m *mockRepository) Insert(_ context.Context, rec *Record) error {
	m.nextID++
	rec.ID = m.nextID
	cp := *rec
	m.records[rec.InvoiceNumber] = &cp
	return nil
}

func (m *mockRepository) Save(_ context.Context, rec *Record) error {
	if _, ok := m.records[rec.InvoiceNumber]; !ok {
		return ErrNotFound
	}
	m.saves++
	cp := *rec
	m.records[rec.InvoiceNumber] = &cp
	return nil
}

type mockOrders struct {
	byInvoice map[string]*orders.Order
	external  map[string]string
	linkErr   error
}

func (m *mockOrders) GetByInvoiceNumber(_ context.Context, inv string) (*orders.Order, error) {
	o, ok := m.byInvoice[inv]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o, nil
}

func (m *mockOrders) SetExternalID(_ context.Context, leadID string, kind orders.DocumentKind, id string) (bool, error) {
	if m.linkErr != nil {
		return false, m.linkErr
	}
	if _, ok := m.external[leadID]; ok {
		return false, nil
	}
	m.external[leadID] = id
	return true, nil
}

var fixedNow = time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

func newTestReconciler() (*Reconciler, *mockRepository, *mockOrders) {
	repo := newMockRepository()
	ords := &mockOrders{
		byInvoice: map[string]*orders.Order{
			"INV-202603-0000AAAA": {LeadID: "CEM-260310-AAAAAA", InvoiceNumber: "INV-202603-0000AAAA", TotalAmount: 550},
		},
		external: make(map[string]string),
	}
	r := NewReconciler(repo, ords, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return fixedNow }
	return r, repo, ords
}

func record(t *testing.T, r *Reconciler, amount float64) *Record {
	t.Helper()
	rec, err := r.RecordPayment(context.Background(), RecordPaymentRequest{
		InvoiceNumber: "INV-202603-0000AAAA",
		Amount:        amount,
		Mode:          ModeUPI,
	})
	require.NoError(t, err)
	return rec
}

// ============================================================================
// TESTS
// ============================================================================

func TestRecordPayment_AmountBounds(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
	}{
		{"zero", 0},
		{"negative", -10},
		{"above order amount", 550.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, repo, _ := newTestReconciler()
			_, err := r.RecordPayment(context.Background(), RecordPaymentRequest{
				InvoiceNumber: "INV-202603-0000AAAA",
				Amount:        tt.amount,
				Mode:          ModeCash,
			})
			assert.ErrorIs(t, err, ErrInvalidPaymentAmount)
			assert.Empty(t, repo.records)
		})
	}
}

func TestRecordPayment_UnknownInvoice(t *testing.T) {
	r, _, _ := newTestReconciler()
	_, err := r.RecordPayment(context.Background(), RecordPaymentRequest{InvoiceNumber: "INV-X", Amount: 1, Mode: ModeCash})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPayment_UpsertKeepsTransactionID(t *testing.T) {
	r, repo, _ := newTestReconciler()

	first := record(t, r, 200)
	assert.Regexp(t, `^TXN-20260312-[0-9A-F]{12}$`, first.TransactionID)
	assert.Equal(t, TypeAdvance, first.PaymentType)
	assert.Equal(t, StatusProcessing, first.Status)

	second := record(t, r, 550)
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, 550.0, second.PaidAmount)
	assert.Equal(t, TypeFull, second.PaymentType)
	assert.Len(t, repo.records, 1)
}

func TestMarkSuccessful_StampsDateOnce(t *testing.T) {
	r, _, ords := newTestReconciler()
	record(t, r, 550)
	ctx := context.Background()

	firstAt := fixedNow.Add(-time.Hour)
	rec, err := r.MarkSuccessful(ctx, "INV-202603-0000AAAA", "UTR123", firstAt)
	require.NoError(t, err)
	require.NotNil(t, rec.PaymentDate)
	assert.Equal(t, firstAt, *rec.PaymentDate)
	assert.Equal(t, "UTR123", *rec.UTRNumber)
	assert.Equal(t, rec.TransactionID, ords.external["CEM-260310-AAAAAA"])

	again, err := r.MarkSuccessful(ctx, "INV-202603-0000AAAA", "", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, firstAt, *again.PaymentDate)
	assert.Equal(t, "UTR123", *again.UTRNumber)
}

func TestMarkSuccessful_OrderLinkFailureIsNotFatal(t *testing.T) {
	r, _, ords := newTestReconciler()
	ords.linkErr = errors.New("db timeout")
	record(t, r, 550)

	rec, err := r.MarkSuccessful(context.Background(), "INV-202603-0000AAAA", "", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccessful, rec.Status)
	assert.Equal(t, fixedNow, *rec.PaymentDate)
}

func TestProcessRefund(t *testing.T) {
	paid := Record{PaidAmount: 550, Status: StatusSuccessful}

	tests := []struct {
		name    string
		amount  float64
		status  Status
		wantErr bool
	}{
		{"full", 550, StatusRefunded, false},
		{"partial", 100, StatusPartiallyRefunded, false},
		{"zero", 0, StatusSuccessful, true},
		{"negative", -5, StatusSuccessful, true},
		{"more than paid", 550.5, StatusSuccessful, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ProcessRefund(paid, tt.amount, "damaged bags")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRefund)
				assert.Equal(t, paid, out)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, tt.amount, out.RefundAmount)
			assert.Equal(t, StatusSuccessful, paid.Status)
		})
	}
}

func TestRefund_RequiresSettledPayment(t *testing.T) {
	r, repo, _ := newTestReconciler()
	record(t, r, 550)
	ctx := context.Background()

	_, err := r.Refund(ctx, "INV-202603-0000AAAA", 100, "early")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = r.MarkSuccessful(ctx, "INV-202603-0000AAAA", "", fixedNow)
	require.NoError(t, err)

	saves := repo.saves
	_, err = r.Refund(ctx, "INV-202603-0000AAAA", 600, "too much")
	assert.ErrorIs(t, err, ErrInvalidRefund)
	assert.Equal(t, saves, repo.saves)

	rec, err := r.Refund(ctx, "INV-202603-0000AAAA", 550, "order cancelled")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, rec.Status)
	assert.Equal(t, StatusRefunded, repo.records["INV-202603-0000AAAA"].Status)
}

func TestMarkFailed_RejectsSettled(t *testing.T) {
	r, _, _ := newTestReconciler()
	record(t, r, 550)
	ctx := context.Background()

	rec, err := r.MarkFailed(ctx, "INV-202603-0000AAAA", "bounced")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)

	_, err = r.MarkSuccessful(ctx, "INV-202603-0000AAAA", "", fixedNow)
	require.NoError(t, err)
	_, err = r.MarkFailed(ctx, "INV-202603-0000AAAA", "late bounce")
	assert.ErrorIs(t, err, ErrInvalidState)
}
