package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/airbot/internal/geo"
)

var errEmptyAddress = errors.New("address is empty")

// GoogleGeocoder resolves a street address to the reference coordinate
// through the Google Geocoding API.
type GoogleGeocoder struct {
	lookup func(geocoder.Address) (geocoder.Location, error)
}

// NewGoogleGeocoder configures the geocoding client with apiKey. The
// underlying library keeps the key in a package variable.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{lookup: geocoder.Geocoding}
}

// Resolve returns the coordinate of the given address.
func (g *GoogleGeocoder) Resolve(ctx context.Context, street, city, country string) (geo.Coordinate, error) {
	if strings.TrimSpace(street+city+country) == "" {
		return geo.Coordinate{}, errEmptyAddress
	}
	if err := ctx.Err(); err != nil {
		return geo.Coordinate{}, err
	}

	loc, err := g.lookup(geocoder.Address{
		Street:  street,
		City:    city,
		Country: country,
	})
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("geocode %q: %w", strings.Join([]string{street, city, country}, ", "), err)
	}

	c := geo.Coordinate{Lat: loc.Latitude, Lon: loc.Longitude}
	if err := c.Validate(); err != nil {
		return geo.Coordinate{}, fmt.Errorf("geocode: %w", err)
	}
	return c, nil
}
