package geo

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidPostalCode reports a postal code that fails the regional format.
	ErrInvalidPostalCode = errors.New("geo: invalid postal code")
	// ErrExternalFailure wraps failures of the upstream lookup service.
	ErrExternalFailure = errors.New("geo: lookup failed")
)

// Geocoder resolves a postal code to the coordinate of its delivery area.
type Geocoder interface {
	Resolve(ctx context.Context, postalCode string) (Coordinate, error)
}

// ValidatePincode accepts exactly six ASCII digits without a leading zero.
func ValidatePincode(code string) error {
	if len(code) != 6 {
		return fmt.Errorf("%w: %q must have 6 digits", ErrInvalidPostalCode, code)
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return fmt.Errorf("%w: %q must be numeric", ErrInvalidPostalCode, code)
		}
	}
	if code[0] == '0' {
		return fmt.Errorf("%w: %q cannot start with 0", ErrInvalidPostalCode, code)
	}
	return nil
}
