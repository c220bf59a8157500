package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bulkmart/fulfillment/internal/platform/db"
)

// Repository defines the interface for delivery record persistence
type Repository interface {
	GetByLeadID(ctx context.Context, leadID string) (*Record, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional write operations
type TxRepository interface {
	GetForUpdate(ctx context.Context, leadID string) (*Record, error)
	Create(ctx context.Context, rec *Record) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const recordColumns = `
	id, lead_id, warehouse_id, status, scheduled_date, driver_name, driver_phone,
	vehicle_number, tracking_number, attempts, dispatched_at, delivered_at,
	received_by, failure_reason, notes, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.LeadID, &rec.WarehouseID, &rec.Status, &rec.ScheduledDate, &rec.DriverName, &rec.DriverPhone,
		&rec.VehicleNumber, &rec.TrackingNumber, &rec.Attempts, &rec.DispatchedAt, &rec.DeliveredAt,
		&rec.ReceivedBy, &rec.FailureReason, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// GetByLeadID retrieves the delivery record of an order
func (r *repository) GetByLeadID(ctx context.Context, leadID string) (*Record, error) {
	return scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM delivery_records WHERE lead_id = $1`, leadID))
}

// GetForUpdate locks the delivery record of an order
func (t *txRepository) GetForUpdate(ctx context.Context, leadID string) (*Record, error) {
	return scanRecord(t.tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM delivery_records WHERE lead_id = $1 FOR UPDATE`, leadID))
}

// Create inserts a new delivery record
func (t *txRepository) Create(ctx context.Context, rec *Record) (int64, error) {
	query := `
		INSERT INTO delivery_records (
			lead_id, warehouse_id, status, scheduled_date, driver_name, driver_phone,
			vehicle_number, tracking_number, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		rec.LeadID, rec.WarehouseID, rec.Status, rec.ScheduledDate, rec.DriverName, rec.DriverPhone,
		rec.VehicleNumber, rec.TrackingNumber, rec.Notes, rec.CreatedAt,
	).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, ErrAlreadyExists
	}
	return id, err
}

// Update updates delivery record fields
func (t *txRepository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	var setClauses []string
	var args []interface{}
	argPos := 1

	for field, value := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argPos))
		args = append(args, value)
		argPos++
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now())
	argPos++

	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE delivery_records
		SET %s
		WHERE id = $%d
	`, strings.Join(setClauses, ", "), argPos)

	cmdTag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// recordUpdates lists the mutable columns of a record
func recordUpdates(rec *Record) map[string]interface{} {
	return map[string]interface{}{
		"status":          rec.Status,
		"driver_name":     rec.DriverName,
		"driver_phone":    rec.DriverPhone,
		"vehicle_number":  rec.VehicleNumber,
		"tracking_number": rec.TrackingNumber,
		"attempts":        rec.Attempts,
		"dispatched_at":   rec.DispatchedAt,
		"delivered_at":    rec.DeliveredAt,
		"received_by":     rec.ReceivedBy,
		"failure_reason":  rec.FailureReason,
		"notes":           rec.Notes,
	}
}
