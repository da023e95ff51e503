package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6372.8

// DistanceKm returns the haversine great-circle distance between a and b.
func DistanceKm(a, b Coordinate) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)

	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	// rounding can push antipodal points just past 1
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// WithinBoundingBox reports whether point lies no more than deltaDegrees from
// center on both axes. See NewBoundingBox for why this is not a true radius.
func WithinBoundingBox(point, center Coordinate, deltaDegrees float64) bool {
	return math.Abs(point.Lat-center.Lat) <= deltaDegrees &&
		math.Abs(point.Lon-center.Lon) <= deltaDegrees
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
