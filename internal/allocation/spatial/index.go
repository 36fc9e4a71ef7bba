// Package spatial implements a grid-bucketed index over worker locations.
//
// The coordinate plane is partitioned into fixed-size square cells; each
// worker is bucketed by the floored cell of its coordinates. A radius query
// scans the rectangle of cells that covers the radius (margins rounded up
// per axis, with the longitude margin widened by latitude, so a true match
// is never missed) and then filters by exact great-circle distance before
// returning, so callers only ever see true matches.
//
// An Index is built once per allocation run from a worker snapshot and
// discarded at run end. It is never updated incrementally and never
// persisted. Build and QueryRadius are pure with respect to the snapshot.
package spatial

import (
	"math"

	"github.com/fieldops/dispatch-api/internal/domain"
	"github.com/fieldops/dispatch-api/internal/domain/geo"
)

// cellKey identifies one grid cell by its floored latitude/longitude
// quotients.
type cellKey struct {
	latIdx int
	lonIdx int
}

// Candidate is a worker returned by a radius query together with its exact
// distance from the query point.
type Candidate struct {
	Worker     domain.Worker
	DistanceKm float64
}

// Index is the per-run spatial index. The zero value is not usable; call
// Build.
type Index struct {
	cellSizeDeg float64
	cells       map[cellKey][]domain.Worker
	size        int
}

// Build constructs an index over the given worker snapshot. Workers without
// coordinates are skipped; an empty snapshot yields an empty index whose
// queries return no results.
func Build(workers []domain.Worker, cellSizeDeg float64) *Index {
	idx := &Index{
		cellSizeDeg: cellSizeDeg,
		cells:       make(map[cellKey][]domain.Worker),
	}

	for _, w := range workers {
		if w.Lat == nil || w.Lon == nil {
			continue
		}
		key := idx.keyFor(*w.Lat, *w.Lon)
		idx.cells[key] = append(idx.cells[key], w)
		idx.size++
	}

	return idx
}

// Size returns the number of indexed workers.
func (idx *Index) Size() int {
	return idx.size
}

// QueryRadius returns every indexed worker within radiusKm of the query
// point, with exact haversine distances attached. Results are unordered.
func (idx *Index) QueryRadius(lat, lon, radiusKm float64) []Candidate {
	if idx.size == 0 || radiusKm <= 0 {
		return nil
	}

	// Longitude cells narrow toward the poles, so the column margin widens
	// with the query latitude while the row margin stays fixed.
	latMargin := geo.CellMargin(radiusKm, idx.cellSizeDeg)
	lonMargin := geo.CellMarginLon(radiusKm, idx.cellSizeDeg, lat)
	center := idx.keyFor(lat, lon)

	var out []Candidate
	for di := -latMargin; di <= latMargin; di++ {
		for dj := -lonMargin; dj <= lonMargin; dj++ {
			bucket := idx.cells[cellKey{center.latIdx + di, center.lonIdx + dj}]
			for _, w := range bucket {
				d := geo.DistanceKm(lat, lon, *w.Lat, *w.Lon)
				if d <= radiusKm {
					out = append(out, Candidate{Worker: w, DistanceKm: d})
				}
			}
		}
	}

	return out
}

// keyFor computes the cell key for a coordinate.
func (idx *Index) keyFor(lat, lon float64) cellKey {
	return cellKey{
		latIdx: int(math.Floor(lat / idx.cellSizeDeg)),
		lonIdx: int(math.Floor(lon / idx.cellSizeDeg)),
	}
}
