package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkmart/fulfillment/internal/geo"
)

type stubOffers map[string]Listing

func (s stubOffers) Listing(ctx context.Context, itemRef string) (Listing, error) {
	l, ok := s[itemRef]
	if !ok {
		return Listing{}, errors.New("unknown item")
	}
	return l, nil
}

type fixedGeocoder struct {
	coord geo.Coordinate
}

func (f fixedGeocoder) Resolve(ctx context.Context, postalCode string) (geo.Coordinate, error) {
	if err := geo.ValidatePincode(postalCode); err != nil {
		return geo.Coordinate{}, err
	}
	return f.coord, nil
}

func testEngine() *Engine {
	cfg := DeliveryConfig{BaseCharge: 50, PerKmCharge: 10, MaxDeliveryRadius: 100}
	offers := stubOffers{
		"cement-opc53": {ItemRef: "cement-opc53", Offers: []WarehouseOffer{
			{WarehouseID: 10, Location: northOfOrigin(30), Config: cfg, IsActive: true},
			{WarehouseID: 11, Location: northOfOrigin(60), Config: cfg, IsActive: true},
		}},
		"tmt-steel-12mm": {ItemRef: "tmt-steel-12mm", Offers: []WarehouseOffer{
			{WarehouseID: 11, Location: northOfOrigin(60), Config: cfg, IsActive: true},
			{WarehouseID: 12, Location: northOfOrigin(20), Config: cfg, IsActive: true},
		}},
		"mixer-rm800": {ItemRef: "mixer-rm800", Offers: []WarehouseOffer{
			{WarehouseID: 13, Location: northOfOrigin(150), Config: cfg, IsActive: true},
		}},
		"unstocked": {ItemRef: "unstocked"},
	}
	return NewEngine(offers, fixedGeocoder{coord: origin})
}

func TestQuoteCartPricesEachItemFromItsOwnWarehouse(t *testing.T) {
	quote, err := testEngine().QuoteCart(context.Background(), "400001", []CartLine{
		{ItemRef: "cement-opc53", Amount: 1000},
		{ItemRef: "tmt-steel-12mm", Amount: 1000},
	})
	require.NoError(t, err)
	require.Len(t, quote.Lines, 2)

	assert.Equal(t, int64(10), quote.Lines[0].WarehouseID)
	assert.Equal(t, int64(12), quote.Lines[1].WarehouseID)
	assert.Equal(t, 350.0, quote.Lines[0].Charge.Charge)
	assert.Equal(t, 250.0, quote.Lines[1].Charge.Charge)
	assert.Equal(t, 600.0, quote.TotalCharge)
	assert.Empty(t, quote.Unavailable)
}

func TestQuoteCartReportsUnavailableItems(t *testing.T) {
	quote, err := testEngine().QuoteCart(context.Background(), "400001", []CartLine{
		{ItemRef: "mixer-rm800", Amount: 1000},
		{ItemRef: "unstocked", Amount: 1000},
		{ItemRef: "cement-opc53", Amount: 1000},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"mixer-rm800", "unstocked"}, quote.Unavailable)
	assert.Equal(t, ReasonBeyondMaxRadius, quote.Lines[0].Charge.Reason)
	assert.Equal(t, ReasonNoWarehouse, quote.Lines[1].Charge.Reason)
	assert.Equal(t, 350.0, quote.TotalCharge)
}

func TestQuoteCartPropagatesLookupErrors(t *testing.T) {
	_, err := testEngine().QuoteCart(context.Background(), "400001", []CartLine{{ItemRef: "missing"}})
	assert.Error(t, err)

	_, err = testEngine().QuoteCart(context.Background(), "000001", nil)
	assert.ErrorIs(t, err, geo.ErrInvalidPostalCode)
}

func TestQuoteItem(t *testing.T) {
	q, err := testEngine().QuoteItem(context.Background(), "cement-opc53", "400001", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(10), q.WarehouseID)
	assert.Equal(t, 2, q.Estimate.Days)
}
