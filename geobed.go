// Package geobed is an offline geocoding engine over an in-memory corpus of
// cities derived from GeoNames. It answers two questions without any
// network access at query time: given a free-text location string, which
// city does it most likely name (Geocode); given a (latitude, longitude)
// pair, which city is nearest (ReverseGeocode).
package geobed

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang/geo/s2"
	"go.uber.org/zap"
)

// GeobedConfig contains configuration options for GeoBed initialization.
type GeobedConfig struct {
	DataDir    string       // Directory for raw data files (default: "./geobed-data")
	CacheDir   string       // Directory for cache files (default: "./geobed-cache")
	Logger     *zap.Logger  // Construction-time diagnostics (default: zap.NewProduction())
	HTTPClient *http.Client // Used for downloading missing data sets
}

// Option mutates a GeobedConfig during NewGeobed construction.
type Option func(*GeobedConfig)

// field builds a one-field Option constructor from an assignment closure,
// so each With* below is a declaration instead of a hand-written closure
// literal repeating the same "return func(c *GeobedConfig) { ... }" shape.
func field[T any](assign func(*GeobedConfig, T)) func(T) Option {
	return func(v T) Option {
		return func(c *GeobedConfig) { assign(c, v) }
	}
}

// WithDataDir sets the directory for raw data files.
var WithDataDir = field(func(c *GeobedConfig, dir string) { c.DataDir = dir })

// WithCacheDir sets the directory for cache files.
var WithCacheDir = field(func(c *GeobedConfig, dir string) { c.CacheDir = dir })

// WithLogger overrides the zap logger used for construction-time
// diagnostics (a failed cache write after a rebuild, a skipped optional
// MaxMind data set). Query-path methods (Geocode, ReverseGeocode) never log.
var WithLogger = field(func(c *GeobedConfig, l *zap.Logger) { c.Logger = l })

// WithHTTPClient overrides the HTTP client used to download missing
// GeoNames/MaxMind data sets. Primarily useful for tests.
var WithHTTPClient = field(func(c *GeobedConfig, client *http.Client) { c.HTTPClient = client })

// defaultConfig returns the default configuration.
func defaultConfig() *GeobedConfig {
	return &GeobedConfig{
		DataDir:  "./geobed-data",
		CacheDir: "./geobed-cache",
		Logger:   defaultLogger(),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GeoBed provides offline geocoding using embedded city data.
// Safe for concurrent use after initialization; construction is the only
// phase that performs I/O or mutates shared state.
type GeoBed struct {
	Cities    Cities              // All loaded cities, sorted by name
	Countries []CountryInfo       // Country metadata from Geonames
	nameIndex map[string][]int    // inverted index: lowercase name -> city indices
	cellIndex map[s2.CellID][]int // S2 cell index for reverse geocoding
	config    *GeobedConfig       // Configuration options

	countriesSortOnce  sync.Once
	countriesByLenDesc []CountryInfo
}

// CountryInfo carries GeoNames countryInfo.txt metadata for one country:
// ISO-2 (the map key elsewhere) and ISO-3 are unique across the set, and
// Continent is one of AF/AN/AS/EU/NA/OC/SA. The remaining fields are kept
// verbatim from source for callers that want them, even though only
// Country/ISO/Continent feed the matching paths directly.
type CountryInfo struct {
	Country            string
	Capital            string
	Area               int32
	Population         int32
	GeonameId          int32
	ISONumeric         int16
	ISO                string
	ISO3               string
	Fips               string
	Continent          string
	Tld                string
	CurrencyCode       string
	CurrencyName       string
	Phone              string
	PostalCodeFormat   string
	PostalCodeRegex    string
	Languages          string
	Neighbours         string
	EquivalentFipsCode string
}

// Cities is a sortable slice of GeobedCity, ordered case-insensitive
// lexicographically by City for deterministic corpus indices.
type Cities []GeobedCity

func (c Cities) Len() int           { return len(c) }
func (c Cities) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }
func (c Cities) Less(i, j int) bool { return compareCaseInsensitive(c[i].City, c[j].City) < 0 }

// compareCaseInsensitive compares two strings case-insensitively.
//
// WHY strings.ToLower: an ASCII-only lowercasing would leave non-ASCII
// capitals (e.g. "Ü" in "Überlingen") unfolded, so case would still affect
// the order of international names. The lowered strings are then compared
// byte-wise, so accented letters sort after all ASCII letters ("Zwolle"
// before "Zürich"). This only runs O(N log N) times at load, never on the
// query path.
func compareCaseInsensitive(a, b string) int {
	aLower, bLower := toLower(a), toLower(b)
	switch {
	case aLower < bLower:
		return -1
	case aLower > bLower:
		return 1
	default:
		return 0
	}
}

// GeobedCity represents a city with geocoding data.
// Memory-optimized: uses interned indexes for Country/Region, float32 for
// coordinates. The zero value is the sentinel "no match" empty record.
type GeobedCity struct {
	City       string  // City name
	CityAlt    string  // Alternate names (comma-separated)
	country    uint16  // Index into countryInterner
	region     uint16  // Index into regionInterner
	Latitude   float32 // Latitude in degrees
	Longitude  float32 // Longitude in degrees
	Population int32   // Population count
}

// Country returns the ISO 3166-1 alpha-2 country code (e.g., "US", "FR").
func (c GeobedCity) Country() string {
	return countryInterner.get(c.country)
}

// Region returns the administrative region code (e.g., "TX", "CA").
func (c GeobedCity) Region() string {
	return regionInterner.get(c.region)
}

// CityCountry dereferences the interner for r, mirroring r.Country() — a
// package-level accessor for callers holding only a value, not a method set.
func CityCountry(r GeobedCity) string { return r.Country() }

// CityRegion dereferences the interner for r, mirroring r.Region().
func CityRegion(r GeobedCity) string { return r.Region() }

// GeocodeOptions selects which forward-matching mode Geocode runs: the
// default scored/fuzzy mode, or exact-name mode when ExactCity is set.
// FuzzyDistance only applies to the default mode and is silently clamped
// to maxFuzzyDistance.
type GeocodeOptions struct {
	ExactCity     bool
	FuzzyDistance int
}

// maxGeocodeInputLen bounds Geocode's input to 256 Unicode scalar values.
// Levenshtein comparisons in the fuzzy path are quadratic in input length,
// so an unbounded caller-supplied string would let one query scan the name
// index at arbitrary cost.
const maxGeocodeInputLen = 256

// downloadMu protects data file downloads and cache generation from race
// conditions: concurrent NewGeobed() calls when the cache is missing must
// not corrupt files by writing them concurrently.
var downloadMu sync.Mutex

var (
	defaultGeobed     *GeoBed
	defaultGeobedOnce sync.Once
	defaultGeobedErr  error
)

// GetDefaultGeobed returns a shared GeoBed instance, initializing it on the
// first call. The first-construction race is serialized by sync.Once so
// every caller observes the same resulting instance.
func GetDefaultGeobed() (*GeoBed, error) {
	defaultGeobedOnce.Do(func() {
		defaultGeobed, defaultGeobedErr = NewGeobed()
	})
	return defaultGeobed, defaultGeobedErr
}

// cacheLoadStep is one stage of loading the in-memory corpus from the
// on-disk cache: cities, then countries, then the inverted name index, each
// able to fail independently (a partially-written cache directory, a
// truncated msgpack blob). NewGeobed runs these in order and falls back to
// a full re-parse of the raw data sets the moment any of them errors.
type cacheLoadStep struct {
	name string
	run  func(g *GeoBed, cfg *GeobedConfig) error
}

var cacheLoadSteps = []cacheLoadStep{
	{"cities", func(g *GeoBed, cfg *GeobedConfig) (err error) {
		g.Cities, err = loadGeobedCityData(cfg)
		return err
	}},
	{"countries", func(g *GeoBed, cfg *GeobedConfig) (err error) {
		g.Countries, err = loadGeobedCountryData(cfg)
		return err
	}},
	{"nameIndex", func(g *GeoBed, cfg *GeobedConfig) (err error) {
		g.nameIndex, err = loadNameIndex(cfg)
		return err
	}},
}

// loadFromCache runs cacheLoadSteps in order, stopping at the first
// failure. A successful run with zero cities is treated as failure too —
// an empty cache is as unusable as a missing one.
func (g *GeoBed) loadFromCache(cfg *GeobedConfig) error {
	for _, step := range cacheLoadSteps {
		if err := step.run(g, cfg); err != nil {
			return fmt.Errorf("load %s from cache: %w", step.name, err)
		}
	}
	if len(g.Cities) == 0 {
		return fmt.Errorf("load from cache: empty city corpus")
	}
	return nil
}

// rebuildFromSource clears any partially-populated fields (a cache load can
// fail partway through, e.g. cities loaded but the name index missing) and
// regenerates everything from the raw GeoNames/MaxMind data sets,
// downloading them first if necessary. It writes a fresh cache afterward on
// a best-effort basis: a write failure is logged, not fatal, since the
// in-memory corpus is already usable.
func (g *GeoBed) rebuildFromSource(cfg *GeobedConfig) error {
	g.Cities, g.Countries, g.nameIndex = nil, nil, nil

	if err := g.downloadDataSets(); err != nil {
		return fmt.Errorf("failed to download data sets: %w", err)
	}
	if err := g.loadDataSets(); err != nil {
		return fmt.Errorf("failed to load data sets: %w", err)
	}
	if err := g.store(); err != nil {
		cfg.Logger.Sugar().Warnf("failed to store cache: %v", err)
	}
	return nil
}

// NewGeobed builds a GeoBed with the full corpus resident in memory,
// ready for concurrent Geocode/ReverseGeocode calls.
//
//	g, err := NewGeobed(WithDataDir("/custom/data"), WithCacheDir("/custom/cache"))
//
// It prefers the on-disk cache (loadFromCache); on any failure there it
// falls back to parsing the raw data sets and rewriting the cache
// (rebuildFromSource). Construction fails with an I/O error if the raw data
// is also missing and downloads are blocked, or with a validation error if
// the resulting corpus is implausibly small — a truncated or corrupt
// source file.
func NewGeobed(opts ...Option) (*GeoBed, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	lookupOnce.Do(initLookupTables)

	g := &GeoBed{config: cfg}
	if err := g.loadFromCache(cfg); err != nil {
		if err := g.rebuildFromSource(cfg); err != nil {
			return nil, err
		}
	}

	if err := validateCorpusSize(len(g.Cities), len(g.Countries)); err != nil {
		return nil, err
	}

	g.buildCellIndex()
	return g, nil
}

// Geocode performs forward geocoding, converting a location string to a
// city record. Total: every input produces a GeobedCity, the empty record
// signaling no match (city == "").
func (g *GeoBed) Geocode(n string, opts ...GeocodeOptions) GeobedCity {
	n = normalizeQuery(n)
	if n == "" {
		return GeobedCity{}
	}

	options := GeocodeOptions{}
	if len(opts) > 0 {
		options = opts[0]
	}
	if options.FuzzyDistance > maxFuzzyDistance {
		options.FuzzyDistance = maxFuzzyDistance
	}

	if options.ExactCity {
		return g.exactMatchCity(n)
	}
	return g.fuzzyMatchLocation(n, options)
}

// normalizeQuery trims the input, collapses interior whitespace runs to a
// single space, and truncates to the first 256 Unicode scalar values —
// using runes throughout so multi-byte UTF-8 city names are never split
// mid-codepoint.
func normalizeQuery(n string) string {
	n = strings.Join(strings.Fields(n), " ")
	if runes := []rune(n); len(runes) > maxGeocodeInputLen {
		n = string(runes[:maxGeocodeInputLen])
	}
	return n
}

// toLower converts a string to lowercase using the standard library.
//
// The Geonames dataset contains UTF-8 city names with international
// characters (e.g. "Zürich", "東京", "São Paulo"). A byte-level ASCII-only
// implementation would corrupt multi-byte characters; strings.ToLower is
// Unicode-aware and well-optimized, so it stays even though it is stdlib —
// no library in the corpus implements Unicode case folding better.
func toLower(s string) string { return strings.ToLower(s) }

// toUpper converts a string to uppercase using the standard library.
// See toLower for the Unicode rationale.
func toUpper(s string) string { return strings.ToUpper(s) }

// isFinite reports whether f is neither NaN nor infinite.
func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
