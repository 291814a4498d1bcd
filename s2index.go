package geobed

import (
	"sort"

	"github.com/golang/geo/s2"
)

// s2CellLevel determines the granularity of the S2 spatial index used for
// reverse geocoding.
//
// S2 cells are a hierarchical spatial indexing system (see https://s2geometry.io/).
// Level 10 provides approximately 10km x 10km cells at the equator, which offers
// a good balance between:
//   - Precision: cells are small enough to group nearby cities effectively
//   - Performance: not too many cells to search for nearby cities
//   - Memory: a reasonable number of populated cells in the index
//
// This is a design parameter of the reverse resolver, not of the underlying
// S2 projection — lowering it would widen the 2-ring search radius but the
// hard distance cutoff below is what actually bounds results.
const s2CellLevel = 10

// maxReverseGeocodeDistance is ~100km in radians on the unit sphere.
// ReverseGeocode returns the empty city when the closest match exceeds this
// distance — this is what keeps a North Pole query from returning a random
// mid-latitude city just because it happened to be the nearest indexed point.
const maxReverseGeocodeDistance = 0.0157

// nearbyThreshold is ~10km in radians on the unit sphere, used by the
// neighborhood-override rule: when the closest match is a small locality,
// check whether a much larger city sits within this distance.
const nearbyThreshold = 0.00157

// cellIDFromLatLng returns the level-30 leaf cell containing the given point.
// The S2 face/Hilbert-curve projection itself is delegated to
// github.com/golang/geo/s2 (six cube faces, 30 subdivision levels).
func cellIDFromLatLng(lat, lng float64) s2.CellID {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng))
}

// angularDistance returns the great-circle distance, in radians, between
// two points given as degrees, via s2's chord-based haversine equivalent
// (clamped internally so asin never receives a value outside [0, 1]).
func angularDistance(lat1, lng1, lat2, lng2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)
	return float64(a.Distance(b))
}

// buildCellIndex creates an S2 cell-based spatial index for fast reverse
// geocoding: every city is bucketed under the level-10 parent of its leaf cell.
func (g *GeoBed) buildCellIndex() {
	g.cellIndex = make(map[s2.CellID][]int)
	for i, city := range g.Cities {
		cell := cellIDFromLatLng(float64(city.Latitude), float64(city.Longitude)).Parent(s2CellLevel)
		g.cellIndex[cell] = append(g.cellIndex[cell], i)
	}
}

// cellAndNeighbors returns cell plus the edge neighbors of cell and of
// those neighbors in turn — a 2-ring around cell, up to 13 distinct cells
// including cell itself. At level 10 this covers roughly one to two cell
// widths (about 10-25km) around the query cell, well inside the hard
// distance cutoff.
func cellAndNeighbors(cell s2.CellID) []s2.CellID {
	cells := make([]s2.CellID, 0, 13)
	cells = append(cells, cell)

	edgeNeighbors := cell.EdgeNeighbors()
	for i := 0; i < 4; i++ {
		cells = append(cells, edgeNeighbors[i])
	}

	seen := make(map[s2.CellID]bool, 13)
	for _, c := range cells {
		seen[c] = true
	}
	for i := 0; i < 4; i++ {
		for _, corner := range edgeNeighbors[i].EdgeNeighbors() {
			if !seen[corner] {
				cells = append(cells, corner)
				seen[corner] = true
			}
		}
	}
	return cells
}

// reverseCandidate pairs a city with its distance from the query point.
type reverseCandidate struct {
	city GeobedCity
	dist float64
}

// validLatLng reports whether lat/lng are finite and within their normal
// geographic ranges. ReverseGeocode rejects anything else up front rather
// than letting S2 project a NaN or an out-of-range coordinate.
func validLatLng(lat, lng float64) bool {
	return isFinite(lat) && isFinite(lng) &&
		lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// gatherReverseCandidates collects every indexed city in the 2-ring
// neighborhood of (lat, lng) along with its great-circle distance from the
// query point.
func (g *GeoBed) gatherReverseCandidates(lat, lng float64) []reverseCandidate {
	queryCell := cellIDFromLatLng(lat, lng).Parent(s2CellLevel)

	var candidates []reverseCandidate
	for _, cell := range cellAndNeighbors(queryCell) {
		for _, idx := range g.cellIndex[cell] {
			city := g.Cities[idx]
			dist := angularDistance(lat, lng, float64(city.Latitude), float64(city.Longitude))
			candidates = append(candidates, reverseCandidate{city: city, dist: dist})
		}
	}
	return candidates
}

// byRankedProximity orders candidates nearest-first, breaking ties by
// population (larger first) and finally by name, so repeated queries
// against the same point always agree.
func byRankedProximity(candidates []reverseCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		switch {
		case a.dist != b.dist:
			return a.dist < b.dist
		case a.city.Population != b.city.Population:
			return a.city.Population > b.city.Population
		default:
			return a.city.City < b.city.City
		}
	})
}

// preferLargerNeighbor applies the neighborhood-override rule: when the
// nearest match is a small locality (population under 500,000), a much
// larger city (10x+ the population) within nearbyThreshold takes its place.
// Without this, a reverse lookup over central Berlin would resolve to the
// small borough "Mitte" instead of "Berlin" itself.
func preferLargerNeighbor(ranked []reverseCandidate) GeobedCity {
	best := ranked[0]
	if best.city.Population >= 500_000 {
		return best.city
	}
	for _, c := range ranked[1:] {
		if c.dist > nearbyThreshold {
			break
		}
		if c.city.Population >= best.city.Population*10 {
			return c.city
		}
	}
	return best.city
}

// ReverseGeocode converts lat/lng coordinates to a city location.
// Returns the empty GeobedCity if the input is invalid, if no indexed city
// falls within the search neighborhood, or if the nearest candidate exceeds
// the hard distance cutoff.
func (g *GeoBed) ReverseGeocode(lat, lng float64) GeobedCity {
	if !validLatLng(lat, lng) {
		return GeobedCity{}
	}

	candidates := g.gatherReverseCandidates(lat, lng)
	if len(candidates) == 0 {
		return GeobedCity{}
	}
	byRankedProximity(candidates)

	if candidates[0].dist > maxReverseGeocodeDistance {
		return GeobedCity{}
	}
	return preferLargerNeighbor(candidates)
}
