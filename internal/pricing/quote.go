package pricing

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bulkmart/fulfillment/internal/geo"
)

// Listing is the inventory view of an item at cart time.
type Listing struct {
	ItemRef        string
	Description    string
	Category       string
	UnitPrice      float64
	ExternalItemID *string
	Offers         []WarehouseOffer
}

// OfferSource looks up an item's price and warehouse offers.
type OfferSource interface {
	Listing(ctx context.Context, itemRef string) (Listing, error)
}

// ItemQuote is the delivery price of one item from its own nearest warehouse.
type ItemQuote struct {
	ItemRef     string           `json:"item_ref"`
	WarehouseID int64            `json:"warehouse_id,omitempty"`
	Charge      ChargeResult     `json:"charge"`
	Estimate    DeliveryEstimate `json:"estimate"`
}

// CartLine is an item and the amount used for its free-delivery threshold.
type CartLine struct {
	ItemRef string
	Amount  float64
}

// CartQuote sums per-item delivery charges. Items are never consolidated onto one warehouse.
type CartQuote struct {
	Lines       []ItemQuote `json:"lines"`
	TotalCharge float64     `json:"total_charge"`
	Unavailable []string    `json:"unavailable,omitempty"`
}

// QuoteOffers prices delivery of a single item against its offers.
func QuoteOffers(itemRef string, offers []WarehouseOffer, destination geo.Coordinate, orderAmount float64) (ItemQuote, error) {
	sel, err := SelectNearestWarehouse(offers, destination)
	if err != nil {
		return ItemQuote{}, err
	}
	if sel == nil {
		return ItemQuote{ItemRef: itemRef, Charge: ChargeResult{Reason: ReasonNoWarehouse}}, nil
	}
	return ItemQuote{
		ItemRef:     itemRef,
		WarehouseID: sel.Offer.WarehouseID,
		Charge:      PriceDelivery(sel.DistanceKm, sel.Offer.Config, orderAmount),
		Estimate:    EstimateDays(sel.DistanceKm),
	}, nil
}

// Engine prices deliveries using inventory offers and a geocoder.
type Engine struct {
	offers   OfferSource
	geocoder geo.Geocoder
}

// NewEngine constructs the pricing engine.
func NewEngine(offers OfferSource, geocoder geo.Geocoder) *Engine {
	return &Engine{offers: offers, geocoder: geocoder}
}

// QuoteItem resolves the pincode and prices delivery for one item.
func (e *Engine) QuoteItem(ctx context.Context, itemRef, pincode string, orderAmount float64) (ItemQuote, error) {
	destination, err := e.geocoder.Resolve(ctx, pincode)
	if err != nil {
		return ItemQuote{}, err
	}
	listing, err := e.offers.Listing(ctx, itemRef)
	if err != nil {
		return ItemQuote{}, fmt.Errorf("pricing: listing %s: %w", itemRef, err)
	}
	return QuoteOffers(itemRef, listing.Offers, destination, orderAmount)
}

// QuoteCart prices every line against its own nearest warehouse.
func (e *Engine) QuoteCart(ctx context.Context, pincode string, lines []CartLine) (CartQuote, error) {
	destination, err := e.geocoder.Resolve(ctx, pincode)
	if err != nil {
		return CartQuote{}, err
	}

	quotes := make([]ItemQuote, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, line := range lines {
		g.Go(func() error {
			listing, err := e.offers.Listing(gctx, line.ItemRef)
			if err != nil {
				return fmt.Errorf("pricing: listing %s: %w", line.ItemRef, err)
			}
			q, err := QuoteOffers(line.ItemRef, listing.Offers, destination, line.Amount)
			if err != nil {
				return err
			}
			quotes[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CartQuote{}, err
	}

	out := CartQuote{Lines: quotes}
	for _, q := range quotes {
		if !q.Charge.Available {
			out.Unavailable = append(out.Unavailable, q.ItemRef)
			continue
		}
		out.TotalCharge += q.Charge.Charge
	}
	out.TotalCharge = round2(out.TotalCharge)
	return out, nil
}
