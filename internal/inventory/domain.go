// Package inventory holds sellable items and the warehouse offers they ship from.
package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/bulkmart/fulfillment/internal/geo"
	"github.com/bulkmart/fulfillment/internal/platform/httpx"
	"github.com/bulkmart/fulfillment/internal/pricing"
)

var (
	ErrItemNotFound    = fmt.Errorf("inventory item %w", httpx.ErrNotFound)
	ErrOfferNotFound   = fmt.Errorf("warehouse offer %w", httpx.ErrNotFound)
	ErrInvalidQuantity = errors.New("inventory: quantity must be non-zero")
	ErrNegativeStock   = errors.New("inventory: negative stock not allowed")
)

// Item is a catalogue entry.
type Item struct {
	Ref            string    `json:"item_ref"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	UnitPrice      float64   `json:"unit_price"`
	ExternalItemID *string   `json:"external_item_id,omitempty"`
	IsActive       bool      `json:"is_active"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Offer is a warehouse's delivery policy and stock for one item.
type Offer struct {
	ItemRef     string                 `json:"item_ref"`
	WarehouseID int64                  `json:"warehouse_id"`
	Name        string                 `json:"name"`
	Lat         *float64               `json:"lat,omitempty"`
	Lon         *float64               `json:"lon,omitempty"`
	Config      pricing.DeliveryConfig `json:"delivery_config"`
	Available   float64                `json:"available"`
	Reserved    float64                `json:"reserved"`
	IsActive    bool                   `json:"is_active"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// WarehouseOffer converts the stored offer to its pricing form. A partial or
// invalid location is dropped so the offer is skipped by nearest-warehouse selection.
func (o Offer) WarehouseOffer() pricing.WarehouseOffer {
	out := pricing.WarehouseOffer{
		WarehouseID: o.WarehouseID,
		Name:        o.Name,
		Config:      o.Config,
		Stock:       pricing.Stock{Available: o.Available, Reserved: o.Reserved},
		IsActive:    o.IsActive,
	}
	if o.Lat != nil && o.Lon != nil {
		c := geo.Coordinate{Lat: *o.Lat, Lon: *o.Lon}
		if c.Validate() == nil {
			out.Location = &c
		}
	}
	return out
}

// UpsertItemRequest creates or updates a catalogue item.
type UpsertItemRequest struct {
	Description    string  `json:"description" validate:"required,max=500"`
	Category       string  `json:"category" validate:"required,oneof=cement steel mixer general"`
	UnitPrice      float64 `json:"unit_price" validate:"gte=0"`
	ExternalItemID *string `json:"external_item_id,omitempty" validate:"omitempty,max=100"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

// UpsertOfferRequest creates or updates a warehouse offer.
type UpsertOfferRequest struct {
	Name      string                 `json:"name" validate:"required,max=200"`
	Lat       *float64               `json:"lat,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Lon       *float64               `json:"lon,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Config    pricing.DeliveryConfig `json:"delivery_config"`
	Available float64                `json:"available" validate:"gte=0"`
	IsActive  *bool                  `json:"is_active,omitempty"`
}

// AdjustStockRequest moves available stock up or down.
type AdjustStockRequest struct {
	Code  string  `json:"code" validate:"required,max=64"`
	Delta float64 `json:"delta"`
	Note  string  `json:"note" validate:"max=500"`
}
