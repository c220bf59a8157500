// Package pricing selects the stocking warehouse for an item and prices its delivery by distance.
package pricing

import (
	"math"

	"github.com/bulkmart/fulfillment/internal/geo"
)

// Reasons reported on a ChargeResult.
const (
	ReasonBeyondMaxRadius  = "beyond max radius"
	ReasonAboveThreshold   = "order above free-delivery threshold"
	ReasonWithinFreeRadius = "within free-delivery radius"
	ReasonDistanceCharge   = "distance based charge"
	ReasonNoWarehouse      = "no warehouse available"
)

// DeliveryConfig is a warehouse's delivery pricing policy for one item.
// Zero on any optional limit disables that rule.
type DeliveryConfig struct {
	BaseCharge            float64 `json:"base_charge"`
	PerKmCharge           float64 `json:"per_km_charge"`
	MinimumOrder          float64 `json:"minimum_order"`
	FreeDeliveryThreshold float64 `json:"free_delivery_threshold"`
	FreeDeliveryRadius    float64 `json:"free_delivery_radius"`
	MaxDeliveryRadius     float64 `json:"max_delivery_radius"`
}

// Stock is the availability snapshot carried on an offer.
type Stock struct {
	Available float64 `json:"available"`
	Reserved  float64 `json:"reserved"`
}

// WarehouseOffer is a stocking location's policy and availability for an item.
type WarehouseOffer struct {
	WarehouseID int64           `json:"warehouse_id"`
	Name        string          `json:"name,omitempty"`
	Location    *geo.Coordinate `json:"location,omitempty"`
	Config      DeliveryConfig  `json:"delivery_config"`
	Stock       Stock           `json:"stock"`
	IsActive    bool            `json:"is_active"`
}

// Selection is the nearest eligible offer with its distance at full precision.
type Selection struct {
	Offer      WarehouseOffer
	Index      int
	DistanceKm float64
}

// ChargeResult describes the delivery price for a distance and order amount.
type ChargeResult struct {
	Available    bool    `json:"available"`
	Free         bool    `json:"free"`
	Charge       float64 `json:"charge"`
	Reason       string  `json:"reason"`
	DistanceKm   float64 `json:"distance_km"`
	BelowMinimum bool    `json:"below_minimum,omitempty"`
}

// DeliveryEstimate is a descriptive delivery window.
type DeliveryEstimate struct {
	Label string `json:"label"`
	Days  int    `json:"days"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
