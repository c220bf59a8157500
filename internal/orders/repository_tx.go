package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bulkmart/fulfillment/internal/outbox"
)

// Create inserts a new order header.
func (t *txRepository) Create(ctx context.Context, o *Order) (int64, error) {
	query := `
		INSERT INTO orders (
			lead_id, invoice_number, category, customer_id, vendor_id,
			total_quantity, total_amount, delivery_charge, promo_discount, status,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		o.LeadID, o.InvoiceNumber, o.Category, o.CustomerID, o.VendorID,
		o.TotalQuantity, o.TotalAmount, o.DeliveryCharge, o.PromoDiscount, o.Status,
		o.IsActive, o.CreatedAt, o.UpdatedAt,
	).Scan(&id)
	return id, err
}

// Save writes every mutable header field of the order.
func (t *txRepository) Save(ctx context.Context, o *Order) error {
	query := `
		UPDATE orders SET
			vendor_id = $1, total_quantity = $2, total_amount = $3, delivery_charge = $4,
			promo_discount = $5, status = $6, delivery_address = $7, delivery_pincode = $8,
			delivery_expected_date = $9, contact_name = $10, contact_phone = $11,
			contact_email = $12, is_active = $13, placed_at = $14, updated_at = $15
		WHERE id = $16
	`
	updated := o.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	tag, err := t.tx.Exec(ctx, query,
		o.VendorID, o.TotalQuantity, o.TotalAmount, o.DeliveryCharge,
		o.PromoDiscount, o.Status, o.DeliveryAddress, o.DeliveryPincode,
		o.DeliveryExpectedDate, o.ContactName, o.ContactPhone,
		o.ContactEmail, o.IsActive, o.PlacedAt, updated,
		o.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ReplaceItems rewrites the item lines of an order in one batch round trip.
func (t *txRepository) ReplaceItems(ctx context.Context, orderID int64, items []Item) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM order_items WHERE order_id = $1`, orderID)
	for i, it := range items {
		batch.Queue(`
			INSERT INTO order_items (
				order_id, line_no, item_ref, description, quantity, unit_price,
				line_total, warehouse_id, delivery_charge, external_item_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			orderID, i+1, it.ItemRef, it.Description, it.Quantity, it.UnitPrice,
			it.LineTotal, it.WarehouseID, it.DeliveryCharge, it.ExternalItemID,
		)
	}
	br := t.tx.SendBatch(ctx, batch)
	for range batch.Len() {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("replace items for order %d: %w", orderID, err)
		}
	}
	return br.Close()
}

// AppendChangeLog records a delivery detail edit.
func (t *txRepository) AppendChangeLog(ctx context.Context, orderID int64, entry ChangeLog) error {
	query := `
		INSERT INTO order_change_logs (order_id, field, old_value, new_value, changed_by, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := t.tx.Exec(ctx, query,
		orderID, entry.Field, entry.OldValue, entry.NewValue, entry.ChangedBy, entry.Reason, entry.At,
	)
	return err
}

// AppendStatusEvent records one status transition.
func (t *txRepository) AppendStatusEvent(ctx context.Context, orderID int64, ev StatusEvent) error {
	query := `
		INSERT INTO order_status_events (
			order_id, lead_id, invoice_number, vendor_id, from_status, status,
			changed_by, remarks, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := t.tx.Exec(ctx, query,
		orderID, ev.LeadID, ev.InvoiceNumber, ev.VendorID, ev.From, ev.Status,
		ev.ChangedBy, ev.Remarks, ev.At,
	)
	return err
}

// EnqueueEffects writes one pending outbox row per document kind in the same transaction.
func (t *txRepository) EnqueueEffects(ctx context.Context, leadID string, kinds []DocumentKind) error {
	if len(kinds) == 0 {
		return nil
	}
	effects := make([]string, len(kinds))
	for i, k := range kinds {
		effects[i] = string(k)
	}
	return outbox.Insert(ctx, t.tx, leadID, effects, time.Now())
}
