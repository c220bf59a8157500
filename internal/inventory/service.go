package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/bulkmart/fulfillment/internal/pricing"
)

// IdempotencyGuard rejects replayed stock adjustments. shared.IdempotencyStore implements it.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	idempotency IdempotencyGuard
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. idem may be nil.
func NewService(repo RepositoryPort, idem IdempotencyGuard, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, idempotency: idem, logger: logger, now: time.Now}
}

// Listing returns the price and warehouse offers of an active item.
func (s *Service) Listing(ctx context.Context, ref string) (pricing.Listing, error) {
	item, err := s.repo.GetItem(ctx, ref)
	if err != nil {
		return pricing.Listing{}, err
	}
	if !item.IsActive {
		return pricing.Listing{}, fmt.Errorf("%w: %s is inactive", ErrItemNotFound, ref)
	}
	offers, err := s.repo.ListOffers(ctx, ref)
	if err != nil {
		return pricing.Listing{}, fmt.Errorf("list offers: %w", err)
	}
	listing := pricing.Listing{
		ItemRef:        item.Ref,
		Description:    item.Description,
		Category:       item.Category,
		UnitPrice:      item.UnitPrice,
		ExternalItemID: item.ExternalItemID,
		Offers:         make([]pricing.WarehouseOffer, 0, len(offers)),
	}
	for _, o := range offers {
		listing.Offers = append(listing.Offers, o.WarehouseOffer())
	}
	return listing, nil
}

// Item returns a catalogue item with its offers.
func (s *Service) Item(ctx context.Context, ref string) (Item, []Offer, error) {
	item, err := s.repo.GetItem(ctx, ref)
	if err != nil {
		return Item{}, nil, err
	}
	offers, err := s.repo.ListOffers(ctx, ref)
	if err != nil {
		return Item{}, nil, err
	}
	return item, offers, nil
}

// UpsertItem creates or updates a catalogue item.
func (s *Service) UpsertItem(ctx context.Context, ref string, req UpsertItemRequest) (Item, error) {
	item := Item{
		Ref:            ref,
		Description:    req.Description,
		Category:       req.Category,
		UnitPrice:      req.UnitPrice,
		ExternalItemID: req.ExternalItemID,
		IsActive:       req.IsActive == nil || *req.IsActive,
		UpdatedAt:      s.now(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpsertItem(ctx, item)
	})
	return item, err
}

// UpsertOffer creates or updates the offer of a warehouse for an item.
func (s *Service) UpsertOffer(ctx context.Context, ref string, warehouseID int64, req UpsertOfferRequest) (Offer, error) {
	if _, err := s.repo.GetItem(ctx, ref); err != nil {
		return Offer{}, err
	}
	offer := Offer{
		ItemRef:     ref,
		WarehouseID: warehouseID,
		Name:        req.Name,
		Lat:         req.Lat,
		Lon:         req.Lon,
		Config:      req.Config,
		Available:   req.Available,
		IsActive:    req.IsActive == nil || *req.IsActive,
		UpdatedAt:   s.now(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpsertOffer(ctx, offer)
	})
	return offer, err
}

// AdjustStock applies a signed change to a warehouse's available stock. Each
// adjustment code is applied once.
func (s *Service) AdjustStock(ctx context.Context, ref string, warehouseID int64, req AdjustStockRequest) (Offer, error) {
	if req.Delta == 0 {
		return Offer{}, ErrInvalidQuantity
	}
	if s.idempotency != nil {
		key := fmt.Sprintf("ADJUST:%s:%s:%d", req.Code, ref, warehouseID)
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
			return Offer{}, err
		}
	}
	var out Offer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		offer, err := tx.GetOfferForUpdate(ctx, ref, warehouseID)
		if err != nil {
			return err
		}
		next := offer.Available + req.Delta
		if math.Abs(next) < 0.0001 {
			next = 0
		}
		if next < 0 {
			return ErrNegativeStock
		}
		if err := tx.SetAvailable(ctx, ref, warehouseID, next); err != nil {
			return err
		}
		offer.Available = next
		out = offer
		return nil
	})
	if err != nil {
		return Offer{}, err
	}
	s.logger.Info("stock adjusted",
		slog.String("item_ref", ref),
		slog.Int64("warehouse_id", warehouseID),
		slog.Float64("delta", req.Delta),
		slog.String("code", req.Code))
	return out, nil
}
