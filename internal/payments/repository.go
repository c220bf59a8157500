package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bulkmart/fulfillment/internal/platform/db"
)

// Repository defines the interface for payment persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*Record, error)
	// GetForUpdate locks the record inside a transaction.
	GetForUpdate(ctx context.Context, invoiceNumber string) (*Record, error)
	Insert(ctx context.Context, rec *Record) error
	Save(ctx context.Context, rec *Record) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const recordColumns = `
	id, invoice_number, lead_id, payment_type, payment_mode, status,
	order_amount, paid_amount, refund_amount, transaction_id, reference,
	utr_number, payment_date, refund_reason, failure_reason, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.InvoiceNumber, &rec.LeadID, &rec.PaymentType, &rec.PaymentMode, &rec.Status,
		&rec.OrderAmount, &rec.PaidAmount, &rec.RefundAmount, &rec.TransactionID, &rec.Reference,
		&rec.UTRNumber, &rec.PaymentDate, &rec.RefundReason, &rec.FailureReason, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*Record, error) {
	return scanRecord(r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM payment_records WHERE invoice_number = $1`, invoiceNumber))
}

func (r *repository) GetForUpdate(ctx context.Context, invoiceNumber string) (*Record, error) {
	return scanRecord(r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM payment_records WHERE invoice_number = $1 FOR UPDATE`, invoiceNumber))
}

func (r *repository) Insert(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO payment_records (
			invoice_number, lead_id, payment_type, payment_mode, status,
			order_amount, paid_amount, refund_amount, transaction_id, reference,
			utr_number, payment_date, refund_reason, failure_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		RETURNING id
	`
	return r.db.QueryRow(ctx, query,
		rec.InvoiceNumber, rec.LeadID, rec.PaymentType, rec.PaymentMode, rec.Status,
		rec.OrderAmount, rec.PaidAmount, rec.RefundAmount, rec.TransactionID, rec.Reference,
		rec.UTRNumber, rec.PaymentDate, rec.RefundReason, rec.FailureReason, rec.CreatedAt,
	).Scan(&rec.ID)
}

func (r *repository) Save(ctx context.Context, rec *Record) error {
	query := `
		UPDATE payment_records SET
			payment_type = $1, payment_mode = $2, status = $3, order_amount = $4,
			paid_amount = $5, refund_amount = $6, transaction_id = $7, reference = $8,
			utr_number = $9, payment_date = $10, refund_reason = $11, failure_reason = $12,
			updated_at = $13
		WHERE invoice_number = $14
	`
	tag, err := r.db.Exec(ctx, query,
		rec.PaymentType, rec.PaymentMode, rec.Status, rec.OrderAmount,
		rec.PaidAmount, rec.RefundAmount, rec.TransactionID, rec.Reference,
		rec.UTRNumber, rec.PaymentDate, rec.RefundReason, rec.FailureReason,
		rec.UpdatedAt, rec.InvoiceNumber,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
