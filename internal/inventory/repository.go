package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetItem(ctx context.Context, ref string) (Item, error)
	ListOffers(ctx context.Context, ref string) ([]Offer, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	UpsertItem(ctx context.Context, item Item) error
	UpsertOffer(ctx context.Context, offer Offer) error
	GetOfferForUpdate(ctx context.Context, ref string, warehouseID int64) (Offer, error)
	SetAvailable(ctx context.Context, ref string, warehouseID int64, available float64) error
}

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetItem loads a catalogue item.
func (r *Repository) GetItem(ctx context.Context, ref string) (Item, error) {
	var it Item
	err := r.pool.QueryRow(ctx, `
		SELECT item_ref, description, category, unit_price::float8, external_item_id, is_active, updated_at
		FROM inventory_items WHERE item_ref = $1
	`, ref).Scan(&it.Ref, &it.Description, &it.Category, &it.UnitPrice, &it.ExternalItemID, &it.IsActive, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return it, err
}

const offerColumns = `
	item_ref, warehouse_id, name, lat, lon,
	base_charge::float8, per_km_charge::float8, minimum_order::float8,
	free_delivery_threshold::float8, free_delivery_radius::float8, max_delivery_radius::float8,
	available::float8, reserved::float8, is_active, updated_at`

func scanOffer(row pgx.Row) (Offer, error) {
	var o Offer
	err := row.Scan(&o.ItemRef, &o.WarehouseID, &o.Name, &o.Lat, &o.Lon,
		&o.Config.BaseCharge, &o.Config.PerKmCharge, &o.Config.MinimumOrder,
		&o.Config.FreeDeliveryThreshold, &o.Config.FreeDeliveryRadius, &o.Config.MaxDeliveryRadius,
		&o.Available, &o.Reserved, &o.IsActive, &o.UpdatedAt)
	return o, err
}

// ListOffers returns every offer of an item in insertion order. The order is
// significant: nearest-warehouse ties go to the first offer.
func (r *Repository) ListOffers(ctx context.Context, ref string) ([]Offer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+offerColumns+` FROM warehouse_offers WHERE item_ref = $1 ORDER BY id`, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

func (r *txRepo) UpsertItem(ctx context.Context, it Item) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO inventory_items (item_ref, description, category, unit_price, external_item_id, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (item_ref) DO UPDATE SET
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			unit_price = EXCLUDED.unit_price,
			external_item_id = EXCLUDED.external_item_id,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`, it.Ref, it.Description, it.Category, it.UnitPrice, it.ExternalItemID, it.IsActive, it.UpdatedAt)
	return err
}

func (r *txRepo) UpsertOffer(ctx context.Context, o Offer) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO warehouse_offers (
			item_ref, warehouse_id, name, lat, lon,
			base_charge, per_km_charge, minimum_order,
			free_delivery_threshold, free_delivery_radius, max_delivery_radius,
			available, is_active, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (item_ref, warehouse_id) DO UPDATE SET
			name = EXCLUDED.name,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			base_charge = EXCLUDED.base_charge,
			per_km_charge = EXCLUDED.per_km_charge,
			minimum_order = EXCLUDED.minimum_order,
			free_delivery_threshold = EXCLUDED.free_delivery_threshold,
			free_delivery_radius = EXCLUDED.free_delivery_radius,
			max_delivery_radius = EXCLUDED.max_delivery_radius,
			available = EXCLUDED.available,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`, o.ItemRef, o.WarehouseID, o.Name, o.Lat, o.Lon,
		o.Config.BaseCharge, o.Config.PerKmCharge, o.Config.MinimumOrder,
		o.Config.FreeDeliveryThreshold, o.Config.FreeDeliveryRadius, o.Config.MaxDeliveryRadius,
		o.Available, o.IsActive, o.UpdatedAt)
	return err
}

func (r *txRepo) GetOfferForUpdate(ctx context.Context, ref string, warehouseID int64) (Offer, error) {
	o, err := scanOffer(r.tx.QueryRow(ctx,
		`SELECT `+offerColumns+` FROM warehouse_offers WHERE item_ref = $1 AND warehouse_id = $2 FOR UPDATE`,
		ref, warehouseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Offer{}, ErrOfferNotFound
	}
	return o, err
}

func (r *txRepo) SetAvailable(ctx context.Context, ref string, warehouseID int64, available float64) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE warehouse_offers SET available = $1, updated_at = $2
		WHERE item_ref = $3 AND warehouse_id = $4
	`, available, time.Now(), ref, warehouseID)
	return err
}
