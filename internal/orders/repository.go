package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the interface for order persistence.
type Repository interface {
	// Read operations
	GetByLeadID(ctx context.Context, leadID string) (*Order, error)
	GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*Order, error)
	FindOpenCart(ctx context.Context, customerID int64, category Category) (*Order, error)
	History(ctx context.Context, leadID string) ([]StatusEvent, error)

	// SetExternalIDIfNull stores id for kind only when no id is stored yet.
	// It reports false when another writer got there first.
	SetExternalIDIfNull(ctx context.Context, leadID string, kind DocumentKind, id string) (bool, error)

	// Write operations (transactional)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional write operations.
type TxRepository interface {
	Create(ctx context.Context, order *Order) (int64, error)
	Save(ctx context.Context, order *Order) error
	ReplaceItems(ctx context.Context, orderID int64, items []Item) error
	AppendChangeLog(ctx context.Context, orderID int64, entry ChangeLog) error
	AppendStatusEvent(ctx context.Context, orderID int64, ev StatusEvent) error
	EnqueueEffects(ctx context.Context, leadID string, kinds []DocumentKind) error
}

var externalColumns = map[DocumentKind]string{
	KindQuote:      "external_quote_id",
	KindSalesOrder: "external_sales_order_id",
	KindInvoice:    "external_invoice_id",
	KindPayment:    "external_payment_id",
}

const orderColumns = `
	id, lead_id, invoice_number, category, customer_id, vendor_id,
	total_quantity, total_amount, delivery_charge, promo_discount, status,
	delivery_address, delivery_pincode, delivery_expected_date,
	contact_name, contact_phone, contact_email,
	external_quote_id, external_sales_order_id, external_invoice_id, external_payment_id,
	is_active, placed_at, created_at, updated_at`

// repository implements Repository using pgxpool.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// txRepository implements TxRepository.
type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
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

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.LeadID, &o.InvoiceNumber, &o.Category, &o.CustomerID, &o.VendorID,
		&o.TotalQuantity, &o.TotalAmount, &o.DeliveryCharge, &o.PromoDiscount, &o.Status,
		&o.DeliveryAddress, &o.DeliveryPincode, &o.DeliveryExpectedDate,
		&o.ContactName, &o.ContactPhone, &o.ContactEmail,
		&o.External.QuoteID, &o.External.SalesOrderID, &o.External.InvoiceID, &o.External.PaymentID,
		&o.IsActive, &o.PlacedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// GetByLeadID retrieves an order with items, change logs and status history.
func (r *repository) GetByLeadID(ctx context.Context, leadID string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE lead_id = $1`
	o, err := scanOrder(r.pool.QueryRow(ctx, query, leadID))
	if err != nil {
		return nil, err
	}
	return o, r.loadChildren(ctx, o)
}

// GetByInvoiceNumber retrieves an order by its payment correlation key.
func (r *repository) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE invoice_number = $1`
	o, err := scanOrder(r.pool.QueryRow(ctx, query, invoiceNumber))
	if err != nil {
		return nil, err
	}
	return o, r.loadChildren(ctx, o)
}

// FindOpenCart returns the customer's active pending order for a category.
func (r *repository) FindOpenCart(ctx context.Context, customerID int64, category Category) (*Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1 AND category = $2 AND status = $3 AND is_active
		ORDER BY created_at DESC
		LIMIT 1`
	o, err := scanOrder(r.pool.QueryRow(ctx, query, customerID, category, StatusPending))
	if err != nil {
		return nil, err
	}
	return o, r.loadChildren(ctx, o)
}

func (r *repository) loadChildren(ctx context.Context, o *Order) error {
	items, err := r.getItems(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	o.Items = items

	logs, err := r.getChangeLogs(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("load change logs: %w", err)
	}
	for _, entry := range logs {
		switch entry.Field {
		case FieldAddress:
			o.AddressChanges = append(o.AddressChanges, entry)
		case FieldExpectedDate:
			o.DateChanges = append(o.DateChanges, entry)
		}
	}

	history, err := r.historyByOrderID(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	o.History = history
	return nil
}

func (r *repository) getItems(ctx context.Context, orderID int64) ([]Item, error) {
	query := `
		SELECT item_ref, description, quantity, unit_price, line_total,
		       warehouse_id, delivery_charge, external_item_id
		FROM order_items
		WHERE order_id = $1
		ORDER BY line_no
	`
	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ItemRef, &it.Description, &it.Quantity, &it.UnitPrice, &it.LineTotal,
			&it.WarehouseID, &it.DeliveryCharge, &it.ExternalItemID,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) getChangeLogs(ctx context.Context, orderID int64) ([]ChangeLog, error) {
	query := `
		SELECT field, old_value, new_value, changed_by, reason, changed_at
		FROM order_change_logs
		WHERE order_id = $1
		ORDER BY changed_at, id
	`
	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ChangeLog
	for rows.Next() {
		var c ChangeLog
		if err := rows.Scan(&c.Field, &c.OldValue, &c.NewValue, &c.ChangedBy, &c.Reason, &c.At); err != nil {
			return nil, err
		}
		logs = append(logs, c)
	}
	return logs, rows.Err()
}

// History returns the status events for an order, oldest first.
func (r *repository) History(ctx context.Context, leadID string) ([]StatusEvent, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM orders WHERE lead_id = $1`, leadID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return r.historyByOrderID(ctx, id)
}

func (r *repository) historyByOrderID(ctx context.Context, orderID int64) ([]StatusEvent, error) {
	query := `
		SELECT lead_id, invoice_number, vendor_id, from_status, status,
		       changed_by, remarks, created_at
		FROM order_status_events
		WHERE order_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []StatusEvent
	for rows.Next() {
		var ev StatusEvent
		if err := rows.Scan(
			&ev.LeadID, &ev.InvoiceNumber, &ev.VendorID, &ev.From, &ev.Status,
			&ev.ChangedBy, &ev.Remarks, &ev.At,
		); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// SetExternalIDIfNull performs a conditional single-row update.
func (r *repository) SetExternalIDIfNull(ctx context.Context, leadID string, kind DocumentKind, id string) (bool, error) {
	column, ok := externalColumns[kind]
	if !ok {
		return false, fmt.Errorf("unknown document kind %q", kind)
	}
	query := fmt.Sprintf(`
		UPDATE orders
		SET %s = $1, updated_at = NOW()
		WHERE lead_id = $2 AND %s IS NULL
	`, column, column)
	tag, err := r.pool.Exec(ctx, query, id, leadID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE lead_id = $1)`, leadID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrOrderNotFound
	}
	return false, nil
}
