// Package geo provides great-circle distance math for the spatial index and
// the allocation engine.
package geo

import "math"

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// kmPerDegreeLat is the surface distance of one degree of latitude. Unlike
// longitude it does not vary with position.
const kmPerDegreeLat = 111.0

// minCosLat caps the longitude-margin widening near the poles, where
// cos(lat) approaches zero and the column count would grow without bound.
const minCosLat = 0.01

// DistanceKm computes the great-circle distance in kilometers between two
// coordinates using the haversine formula.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// CellMargin converts a search radius to the number of latitude rows the
// index must scan in each direction around the query cell. The margin is
// rounded up so a radius query can return false positives but never misses
// a true match; the caller filters by exact distance afterwards.
func CellMargin(radiusKm, cellSizeDeg float64) int {
	if radiusKm <= 0 || cellSizeDeg <= 0 {
		return 0
	}
	return int(math.Ceil(radiusKm / (cellSizeDeg * kmPerDegreeLat)))
}

// CellMarginLon is the longitude counterpart of CellMargin at the given
// query latitude. A degree of longitude spans cos(lat) times the latitude
// figure, so each cell covers fewer east-west kilometers away from the
// equator and the scan must widen by 1/cos(lat) to keep the no-miss
// guarantee. Latitudes within a fraction of a degree of the poles clamp to
// minCosLat.
func CellMarginLon(radiusKm, cellSizeDeg, lat float64) int {
	if radiusKm <= 0 || cellSizeDeg <= 0 {
		return 0
	}
	cosLat := math.Cos(radians(lat))
	if cosLat < minCosLat {
		cosLat = minCosLat
	}
	return int(math.Ceil(radiusKm / (cellSizeDeg * kmPerDegreeLat * cosLat)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
