package travel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"googlemaps.github.io/maps"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
)

// DefaultTimeout bounds a single provider request.
const DefaultTimeout = 10 * time.Second

// mapsAPI is the subset of *maps.Client used here.
type mapsAPI interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// GoogleMaps implements Router and Validator against the Google Maps
// Directions and Geocoding APIs.
type GoogleMaps struct {
	api      mapsAPI
	region   string
	locality string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewGoogleMaps builds a client for apiKey. Addresses are resolved within
// locality (e.g. "München") in Germany.
func NewGoogleMaps(apiKey, locality string, timeout time.Duration) (*GoogleMaps, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("maps.NewClient: %w", err)
	}
	return newGoogleMaps(c, locality, timeout), nil
}

func newGoogleMaps(api mapsAPI, locality string, timeout time.Duration) *GoogleMaps {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GoogleMaps{
		api:      api,
		region:   "de",
		locality: locality,
		timeout:  timeout,
		logger:   slog.With("component", "googlemaps"),
	}
}

var travelModes = map[model.TravelMode]maps.Mode{
	model.TravelModeWalk:    maps.TravelModeWalking,
	model.TravelModeBike:    maps.TravelModeBicycling,
	model.TravelModeDrive:   maps.TravelModeDriving,
	model.TravelModeTransit: maps.TravelModeTransit,
}

// TravelTime returns the duration of the first leg of the first route.
func (g *GoogleMaps) TravelTime(ctx context.Context, origin, destination string, mode model.TravelMode) (time.Duration, bool) {
	m, ok := travelModes[mode]
	if !ok {
		g.logger.Warn("unsupported travel mode", "mode", mode)
		return 0, false
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	routes, _, err := g.api.Directions(ctx, &maps.DirectionsRequest{
		Origin:      origin,
		Destination: destination,
		Mode:        m,
		Region:      g.region,
	})
	if err != nil {
		g.logger.Warn("directions lookup failed", "destination", destination, "mode", mode, "err", err)
		return 0, false
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		g.logger.Info("no route found", "destination", destination, "mode", mode)
		return 0, false
	}
	return routes[0].Legs[0].Duration, true
}

// Validate geocodes address inside the configured locality. Partial
// matches are refused.
func (g *GoogleMaps) Validate(ctx context.Context, address string) (Address, string, bool) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := &maps.GeocodingRequest{
		Address: address,
		Region:  g.region,
		Components: map[maps.Component]string{
			maps.ComponentCountry: "DE",
		},
	}
	if g.locality != "" {
		req.Components[maps.ComponentLocality] = g.locality
	}
	results, err := g.api.Geocode(ctx, req)
	if err != nil {
		g.logger.Warn("geocoding failed", "address", address, "err", err)
		return Address{}, "address service unavailable", false
	}
	if len(results) == 0 {
		return Address{}, "address not found", false
	}
	r := results[0]
	if r.PartialMatch {
		return Address{}, fmt.Sprintf("only a partial match was found: %s", r.FormattedAddress), false
	}
	return Address{Formatted: r.FormattedAddress, PlaceID: r.PlaceID}, "", true
}
