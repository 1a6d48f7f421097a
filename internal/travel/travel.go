// Package travel wraps the routing and geocoding provider used to decide
// whether a listing is within a finder's commute limit.
package travel

import (
	"context"
	"time"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
)

// Router computes the travel time between two places. ok is false when the
// provider has no usable answer (no route, quota, timeout); callers treat
// that as "no result", not as a failure.
type Router interface {
	TravelTime(ctx context.Context, origin, destination string, mode model.TravelMode) (d time.Duration, ok bool)
}

// Address is a provider-confirmed address.
type Address struct {
	Formatted string `json:"formatted"`
	PlaceID   string `json:"place_id"`
}

// Validator confirms a free-text address. When ok is false, reason says
// why the address was not accepted.
type Validator interface {
	Validate(ctx context.Context, address string) (addr Address, reason string, ok bool)
}
