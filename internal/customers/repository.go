package customers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bulkmart/fulfillment/internal/platform/db"
)

// Repository defines the interface for profile persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Profile, error)
	Upsert(ctx context.Context, p Profile) error
	// SetExternalIDIfNull links the accounting contact once; it reports false when already linked.
	SetExternalIDIfNull(ctx context.Context, id int64, externalID string) (bool, error)
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

func (r *repository) Get(ctx context.Context, id int64) (*Profile, error) {
	query := `
		SELECT id, name, email, phone, address, pincode, external_customer_id, created_at, updated_at
		FROM customer_profiles
		WHERE id = $1
	`
	var p Profile
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Email, &p.Phone, &p.Address, &p.Pincode,
		&p.ExternalCustomerID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) Upsert(ctx context.Context, p Profile) error {
	query := `
		INSERT INTO customer_profiles (id, name, email, phone, address, pincode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
			address = EXCLUDED.address, pincode = EXCLUDED.pincode, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, p.ID, p.Name, p.Email, p.Phone, p.Address, p.Pincode)
	return err
}

func (r *repository) SetExternalIDIfNull(ctx context.Context, id int64, externalID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE customer_profiles SET external_customer_id = $1, updated_at = NOW()
		WHERE id = $2 AND external_customer_id IS NULL
	`, externalID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
