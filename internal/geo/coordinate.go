// Package geo selects sensor locations around a reference point: great-circle
// distance, a rectangular pre-filter and nearest-first ranking.
package geo

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidCoordinate is returned for non-finite or out-of-range latitude/longitude.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrInvalidRadius is returned for a negative or non-finite degree radius.
	ErrInvalidRadius = errors.New("invalid radius")
)

// Coordinate is a point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Validate checks lat ∈ [-90, 90] and lon ∈ [-180, 180].
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v must be between -90 and 90", ErrInvalidCoordinate, c.Lat)
	}
	if math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %v must be between -180 and 180", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Positioned is anything that can be placed on the map. Filters only read the
// position; the rest of the record is passed through untouched.
type Positioned interface {
	Position() Coordinate
}

// Location is a plain identified point with optional descriptive metadata.
type Location struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	Address    string     `json:"address,omitempty"`
	Coordinate Coordinate `json:"location"`
}

func (l Location) Position() Coordinate {
	return l.Coordinate
}

// Annotated is a record together with its distance from the reference point.
type Annotated[T Positioned] struct {
	Item       T       `json:"item"`
	DistanceKm float64 `json:"distanceKm"`
}

// BoundingBox is an axis-aligned lat/lon rectangle, bounds inclusive.
type BoundingBox struct {
	South float64 `json:"southwestLat"`
	West  float64 `json:"southwestLong"`
	North float64 `json:"northeastLat"`
	East  float64 `json:"northeastLong"`
}

// NewBoundingBox returns [lat-delta, lat+delta] x [lon-delta, lon+delta].
//
// The box is measured in degrees on both axes. A degree of longitude covers
// less ground the closer it is to a pole, so the box is wider (in km) than it
// is tall everywhere except the equator and is never a circle of fixed radius.
func NewBoundingBox(center Coordinate, deltaDegrees float64) BoundingBox {
	return BoundingBox{
		South: center.Lat - deltaDegrees,
		West:  center.Lon - deltaDegrees,
		North: center.Lat + deltaDegrees,
		East:  center.Lon + deltaDegrees,
	}
}

func (b BoundingBox) Contains(p Coordinate) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lon >= b.West && p.Lon <= b.East
}

// ValidateRadius checks that a degree radius is finite and non-negative.
func ValidateRadius(deltaDegrees float64) error {
	if math.IsNaN(deltaDegrees) || math.IsInf(deltaDegrees, 0) || deltaDegrees < 0 {
		return fmt.Errorf("%w: %v degrees", ErrInvalidRadius, deltaDegrees)
	}
	return nil
}
