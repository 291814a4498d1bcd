package geobed

import "errors"

// minCityCount and minCountryCount are plausibility floors for a loaded
// corpus. The real GeoNames cities1000 dump carries roughly 165,000 rows
// and countryInfo.txt roughly 250; either figure falling far short signals
// a truncated download or a corrupted cache rather than a legitimately
// small dataset.
const (
	minCityCount    = 140_000
	minCountryCount = 200
)

// ErrCorpusTooSmall is returned by NewGeobed when the loaded city count
// falls below minCityCount.
var ErrCorpusTooSmall = errors.New("geobed: loaded city corpus is implausibly small")

// ErrCountryTableTooSmall is returned by NewGeobed when the loaded country
// count falls below minCountryCount.
var ErrCountryTableTooSmall = errors.New("geobed: loaded country table is implausibly small")

// validateCorpusSize checks that a loaded corpus is plausibly complete.
// Called unconditionally at the end of NewGeobed, regardless of whether the
// data came from cache or a fresh download+parse.
func validateCorpusSize(cityCount, countryCount int) error {
	if cityCount < minCityCount {
		return ErrCorpusTooSmall
	}
	if countryCount < minCountryCount {
		return ErrCountryTableTooSmall
	}
	return nil
}

// knownCityCheck is a single fixture used by ValidateCache to sanity-check
// that forward geocoding still resolves well-known places after a cache
// rebuild.
type knownCityCheck struct {
	query       string
	wantCity    string
	wantCountry string
}

var knownCities = []knownCityCheck{
	{query: "New York", wantCity: "New York City", wantCountry: "US"},
	{query: "London, UK", wantCity: "London", wantCountry: "GB"},
	{query: "Paris, France", wantCity: "Paris", wantCountry: "FR"},
	{query: "Tokyo", wantCity: "Tokyo", wantCountry: "JP"},
	{query: "Sydney, Australia", wantCity: "Sydney", wantCountry: "AU"},
}

// knownCoordCheck is a single fixture used by ValidateCache to sanity-check
// reverse geocoding.
type knownCoordCheck struct {
	lat, lng float64
	wantCity string
}

var knownCoords = []knownCoordCheck{
	{lat: 40.7128, lng: -74.0060, wantCity: "New York City"},
	{lat: 51.5074, lng: -0.1278, wantCity: "London"},
	{lat: 35.6762, lng: 139.6503, wantCity: "Tokyo"},
}

// ValidateCache builds a GeoBed with the default configuration via
// NewGeobed (which rebuilds the cache from the raw data sets if it is
// missing or unreadable) and checks it against a handful of known cities
// and coordinates, returning an error describing the first mismatch. Intended for cmd/validate-cache, run after
// regenerating the embedded cache and before committing it.
func ValidateCache() error {
	g, err := NewGeobed()
	if err != nil {
		return err
	}

	for _, tc := range knownCities {
		got := g.Geocode(tc.query)
		if got.City != tc.wantCity || got.Country() != tc.wantCountry {
			return errorForKnownCity(tc, got)
		}
	}

	for _, tc := range knownCoords {
		got := g.ReverseGeocode(tc.lat, tc.lng)
		if got.City != tc.wantCity {
			return errorForKnownCoord(tc, got)
		}
	}

	return nil
}

func errorForKnownCity(tc knownCityCheck, got GeobedCity) error {
	return &validationMismatchError{
		query: tc.query,
		want:  tc.wantCity + ", " + tc.wantCountry,
		got:   got.City + ", " + got.Country(),
	}
}

func errorForKnownCoord(tc knownCoordCheck, got GeobedCity) error {
	return &validationMismatchError{
		query: "reverse lookup",
		want:  tc.wantCity,
		got:   got.City,
	}
}

type validationMismatchError struct {
	query, want, got string
}

func (e *validationMismatchError) Error() string {
	return "geobed: validation mismatch for " + e.query + ": want " + e.want + ", got " + e.got
}

// RegenerateCache rebuilds the on-disk cache files from a fresh download
// and parse of the raw GeoNames (and optional MaxMind) data sets, bypassing
// any existing cache entirely.
func RegenerateCache(opts ...Option) error {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	g := &GeoBed{config: cfg}
	lookupOnce.Do(initLookupTables)

	if err := g.downloadDataSets(); err != nil {
		return err
	}
	if err := g.loadDataSets(); err != nil {
		return err
	}
	if err := validateCorpusSize(len(g.Cities), len(g.Countries)); err != nil {
		return err
	}
	return g.store()
}
