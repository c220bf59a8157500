package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPGeocoder queries a pincode lookup service over HTTP.
type HTTPGeocoder struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPGeocoder constructs a geocoder with a bounded per-call timeout.
func NewHTTPGeocoder(baseURL string, timeout time.Duration) *HTTPGeocoder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGeocoder{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type lookupResponse struct {
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Error string   `json:"error,omitempty"`
}

// Resolve implements Geocoder.
func (g *HTTPGeocoder) Resolve(ctx context.Context, postalCode string) (Coordinate, error) {
	if err := ValidatePincode(postalCode); err != nil {
		return Coordinate{}, err
	}
	endpoint := fmt.Sprintf("%s/pincode/%s", g.baseURL, url.PathEscape(postalCode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusNotFound {
		return Coordinate{}, fmt.Errorf("%w: %q is not serviceable", ErrInvalidPostalCode, postalCode)
	}
	if resp.StatusCode >= 400 {
		return Coordinate{}, fmt.Errorf("%w: status %d", ErrExternalFailure, resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Coordinate{}, fmt.Errorf("%w: decode: %v", ErrExternalFailure, err)
	}
	if body.Lat == nil || body.Lon == nil {
		return Coordinate{}, fmt.Errorf("%w: %q has no coordinates", ErrInvalidPostalCode, postalCode)
	}
	coord := Coordinate{Lat: *body.Lat, Lon: *body.Lon}
	if err := coord.Validate(); err != nil {
		return Coordinate{}, fmt.Errorf("%w: upstream returned %v", ErrExternalFailure, err)
	}
	return coord, nil
}
