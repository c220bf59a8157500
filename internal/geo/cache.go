package geo

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const pincodeKeyPrefix = "geo:pincode:"

// CachedGeocoder wraps a Geocoder with a Redis read-through cache.
type CachedGeocoder struct {
	next   Geocoder
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedGeocoder constructs the cache wrapper. A nil client disables caching.
func NewCachedGeocoder(next Geocoder, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedGeocoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedGeocoder{next: next, client: client, ttl: ttl, logger: logger}
}

// Resolve implements Geocoder. Cache errors fall through to the wrapped lookup.
func (c *CachedGeocoder) Resolve(ctx context.Context, postalCode string) (Coordinate, error) {
	if err := ValidatePincode(postalCode); err != nil {
		return Coordinate{}, err
	}
	key := pincodeKeyPrefix + postalCode
	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var coord Coordinate
			if jsonErr := json.Unmarshal(raw, &coord); jsonErr == nil && coord.Validate() == nil {
				return coord, nil
			}
		case err != redis.Nil:
			c.logger.Warn("geocode cache read", slog.String("pincode", postalCode), slog.Any("error", err))
		}
	}

	coord, err := c.next.Resolve(ctx, postalCode)
	if err != nil {
		return Coordinate{}, err
	}

	if c.client != nil {
		raw, err := json.Marshal(coord)
		if err == nil {
			err = c.client.Set(ctx, key, raw, c.ttl).Err()
		}
		if err != nil {
			c.logger.Warn("geocode cache write", slog.String("pincode", postalCode), slog.Any("error", err))
		}
	}
	return coord, nil
}
