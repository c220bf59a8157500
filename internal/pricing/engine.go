package pricing

import (
	"fmt"

	"github.com/bulkmart/fulfillment/internal/geo"
)

// SelectNearestWarehouse returns the closest active offer with a valid location.
// Ties keep the first offer in iteration order. It returns nil when no offer qualifies.
func SelectNearestWarehouse(offers []WarehouseOffer, destination geo.Coordinate) (*Selection, error) {
	if err := destination.Validate(); err != nil {
		return nil, err
	}
	var best *Selection
	for i, offer := range offers {
		if !offer.IsActive || offer.Location == nil {
			continue
		}
		d, err := geo.DistanceKm(*offer.Location, destination)
		if err != nil {
			// a bad stored location disqualifies the offer, not the request
			continue
		}
		if best == nil || d < best.DistanceKm {
			best = &Selection{Offer: offer, Index: i, DistanceKm: d}
		}
	}
	return best, nil
}

// PriceDelivery applies the charge rules in precedence order; the first match wins.
func PriceDelivery(distanceKm float64, cfg DeliveryConfig, orderAmount float64) ChargeResult {
	result := ChargeResult{
		DistanceKm:   geo.RoundKm(distanceKm),
		BelowMinimum: cfg.MinimumOrder > 0 && orderAmount < cfg.MinimumOrder,
	}
	switch {
	case cfg.MaxDeliveryRadius > 0 && distanceKm > cfg.MaxDeliveryRadius:
		result.Reason = ReasonBeyondMaxRadius
	case cfg.FreeDeliveryThreshold > 0 && orderAmount >= cfg.FreeDeliveryThreshold:
		result.Available = true
		result.Free = true
		result.Reason = ReasonAboveThreshold
	case cfg.FreeDeliveryRadius > 0 && distanceKm <= cfg.FreeDeliveryRadius:
		result.Available = true
		result.Free = true
		result.Reason = ReasonWithinFreeRadius
	default:
		result.Available = true
		result.Charge = round2(cfg.BaseCharge + distanceKm*cfg.PerKmCharge)
		result.Reason = ReasonDistanceCharge
	}
	return result
}

var estimateBands = []struct {
	maxKm float64
	days  int
}{
	{10, 1},
	{50, 2},
	{100, 3},
	{200, 5},
}

// EstimateDays maps a distance to a delivery window. It is not used for pricing.
func EstimateDays(distanceKm float64) DeliveryEstimate {
	days := 7
	for _, band := range estimateBands {
		if distanceKm <= band.maxKm {
			days = band.days
			break
		}
	}
	label := fmt.Sprintf("%d days", days)
	if days == 1 {
		label = "Next day"
	}
	return DeliveryEstimate{Label: label, Days: days}
}
