package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bulkmart/fulfillment/internal/orders"
)

// OrderStore is the slice of the order service the reconciler needs.
type OrderStore interface {
	GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*orders.Order, error)
	SetExternalID(ctx context.Context, leadID string, kind orders.DocumentKind, id string) (bool, error)
}

// Reconciler records payments and refunds.
type Reconciler struct {
	repo   Repository
	orders OrderStore
	logger *slog.Logger
	now    func() time.Time
}

// NewReconciler creates a reconciler.
func NewReconciler(repo Repository, orderStore OrderStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{repo: repo, orders: orderStore, logger: logger, now: time.Now}
}

// NewTransactionID builds a unique transaction reference such as TXN-20260310-1A2B3C4D5E6F.
func NewTransactionID(now time.Time) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("TXN-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(raw[:12]))
}

// RecordPayment creates or updates the payment record of an order. The amount is
// validated against the order before anything is written.
func (r *Reconciler) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*Record, error) {
	order, err := r.orders.GetByInvoiceNumber(ctx, req.InvoiceNumber)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: no order for invoice %s", ErrNotFound, req.InvoiceNumber)
		}
		return nil, err
	}
	if req.Amount <= 0 || math.IsNaN(req.Amount) || req.Amount > order.TotalAmount {
		return nil, fmt.Errorf("%w: %.2f against order amount %.2f", ErrInvalidPaymentAmount, req.Amount, order.TotalAmount)
	}
	ptype := req.Type
	if ptype == "" {
		ptype = TypeFull
		if req.Amount < order.TotalAmount {
			ptype = TypeAdvance
		}
	}

	now := r.now()
	var out *Record
	err = r.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		rec, err := repo.GetForUpdate(ctx, req.InvoiceNumber)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if rec == nil {
			rec = &Record{
				InvoiceNumber: order.InvoiceNumber,
				LeadID:        order.LeadID,
				Status:        StatusPending,
				TransactionID: NewTransactionID(now),
				CreatedAt:     now,
			}
			applyPayment(rec, order.TotalAmount, req, ptype, now)
			if err := repo.Insert(ctx, rec); err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}
			out = rec
			return nil
		}
		if !rec.Status.CanRecord() {
			return fmt.Errorf("%w: %s", ErrInvalidState, rec.Status)
		}
		if rec.TransactionID == "" {
			rec.TransactionID = NewTransactionID(now)
		}
		applyPayment(rec, order.TotalAmount, req, ptype, now)
		if err := repo.Save(ctx, rec); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func applyPayment(rec *Record, orderAmount float64, req RecordPaymentRequest, ptype Type, now time.Time) {
	rec.OrderAmount = orderAmount
	rec.PaidAmount = req.Amount
	rec.PaymentMode = req.Mode
	rec.PaymentType = ptype
	rec.Reference = req.Reference
	rec.Status = StatusProcessing
	rec.FailureReason = ""
	rec.UpdatedAt = now
}

// MarkSuccessful confirms the payment. The payment date is stamped only the first
// time; later confirmations keep it. The order's external payment id is set once.
func (r *Reconciler) MarkSuccessful(ctx context.Context, invoiceNumber, utr string, at time.Time) (*Record, error) {
	if at.IsZero() {
		at = r.now()
	}
	var out *Record
	err := r.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		rec, err := repo.GetForUpdate(ctx, invoiceNumber)
		if err != nil {
			return err
		}
		switch rec.Status {
		case StatusRefunded, StatusPartiallyRefunded, StatusCancelled:
			return fmt.Errorf("%w: %s", ErrInvalidState, rec.Status)
		}
		rec.Status = StatusSuccessful
		if rec.PaymentDate == nil {
			paid := at
			rec.PaymentDate = &paid
		}
		if utr != "" {
			rec.UTRNumber = &utr
		}
		rec.UpdatedAt = r.now()
		if err := repo.Save(ctx, rec); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := r.orders.SetExternalID(ctx, out.LeadID, orders.KindPayment, out.TransactionID); err != nil {
		r.logger.Warn("link payment to order failed",
			slog.String("lead_id", out.LeadID),
			slog.String("invoice_number", out.InvoiceNumber),
			slog.Any("error", err))
	}
	return out, nil
}

// MarkFailed records a failed collection attempt.
func (r *Reconciler) MarkFailed(ctx context.Context, invoiceNumber, reason string) (*Record, error) {
	var out *Record
	err := r.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		rec, err := repo.GetForUpdate(ctx, invoiceNumber)
		if err != nil {
			return err
		}
		if rec.Status.IsSettled() {
			return fmt.Errorf("%w: %s", ErrInvalidState, rec.Status)
		}
		rec.Status = StatusFailed
		rec.FailureReason = reason
		rec.UpdatedAt = r.now()
		if err := repo.Save(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	return out, err
}

// ProcessRefund computes the refunded state of rec without mutating it.
func ProcessRefund(rec Record, amount float64, reason string) (Record, error) {
	if amount <= 0 || math.IsNaN(amount) || amount > rec.PaidAmount {
		return rec, fmt.Errorf("%w: %.2f against paid %.2f", ErrInvalidRefund, amount, rec.PaidAmount)
	}
	rec.RefundAmount = amount
	rec.RefundReason = reason
	if amount == rec.PaidAmount {
		rec.Status = StatusRefunded
	} else {
		rec.Status = StatusPartiallyRefunded
	}
	return rec, nil
}

// Refund applies ProcessRefund to the stored record and persists it.
func (r *Reconciler) Refund(ctx context.Context, invoiceNumber string, amount float64, reason string) (*Record, error) {
	var out *Record
	err := r.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		rec, err := repo.GetForUpdate(ctx, invoiceNumber)
		if err != nil {
			return err
		}
		if !rec.Status.CanRefund() {
			return fmt.Errorf("%w: %s", ErrInvalidState, rec.Status)
		}
		refunded, err := ProcessRefund(*rec, amount, reason)
		if err != nil {
			return err
		}
		refunded.UpdatedAt = r.now()
		if err := repo.Save(ctx, &refunded); err != nil {
			return err
		}
		out = &refunded
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("payment refunded",
		slog.String("invoice_number", invoiceNumber),
		slog.Float64("amount", amount),
		slog.String("status", string(out.Status)))
	return out, nil
}

// Get returns the payment record for an invoice number.
func (r *Reconciler) Get(ctx context.Context, invoiceNumber string) (*Record, error) {
	return r.repo.GetByInvoiceNumber(ctx, invoiceNumber)
}

// ForLead returns the payment record for an order.
func (r *Reconciler) ForLead(ctx context.Context, order *orders.Order) (*Record, error) {
	return r.repo.GetByInvoiceNumber(ctx, order.InvoiceNumber)
}
