package geobed

import (
	"bytes"
	"compress/bzip2"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// cacheData embeds the pre-built msgpack cache files shipped with the
// module so a binary can geocode without ever touching the network. Real
// deployments populate geobed-cache/ via cmd/update-cache before building;
// the placeholder file checked into this tree keeps the embed directive
// valid (Go's default embed pattern skips dot/underscore-prefixed files,
// but it still requires at least one matching file to exist).
//
//go:embed geobed-cache
var cacheData embed.FS

// cacheFileCities, cacheFileCountries and cacheFileNameIndex are the
// canonical cache filenames. Each may instead be present bzip2-compressed
// under the same name with a ".bz2" suffix, both inside the embedded tree
// and in the on-disk cache directory.
const (
	cacheFileCities    = "cities.msgpack"
	cacheFileCountries = "countries.msgpack"
	cacheFileNameIndex = "nameIndex.msgpack"
)

// cachedCity is the on-disk representation of GeobedCity. Country/Region
// are stored as strings rather than interned indices: the interner tables
// are rebuilt from scratch on load and the indices they'd assign are not
// guaranteed stable across runs or versions.
type cachedCity struct {
	City       string  `msgpack:"city"`
	CityAlt    string  `msgpack:"cityAlt"`
	Country    string  `msgpack:"country"`
	Region     string  `msgpack:"region"`
	Latitude   float32 `msgpack:"lat"`
	Longitude  float32 `msgpack:"lng"`
	Population int32   `msgpack:"population"`
}

// store serializes Cities, Countries and nameIndex to uncompressed msgpack
// files under the configured cache directory (a ".bz2" copy made afterwards
// is also accepted on load, see openOptionallyCachedFile). This is
// only ever invoked by cmd/update-cache and as a NewGeobed fallback after a
// fresh download+parse; it never runs on a query path.
func (g *GeoBed) store() error {
	if err := os.MkdirAll(g.config.CacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	cities := make([]cachedCity, len(g.Cities))
	for i, c := range g.Cities {
		cities[i] = cachedCity{
			City:       c.City,
			CityAlt:    c.CityAlt,
			Country:    c.Country(),
			Region:     c.Region(),
			Latitude:   c.Latitude,
			Longitude:  c.Longitude,
			Population: c.Population,
		}
	}
	if err := writeMsgpackFile(filepath.Join(g.config.CacheDir, cacheFileCities), cities); err != nil {
		return fmt.Errorf("writing %s: %w", cacheFileCities, err)
	}
	if err := writeMsgpackFile(filepath.Join(g.config.CacheDir, cacheFileCountries), g.Countries); err != nil {
		return fmt.Errorf("writing %s: %w", cacheFileCountries, err)
	}
	if err := writeMsgpackFile(filepath.Join(g.config.CacheDir, cacheFileNameIndex), g.nameIndex); err != nil {
		return fmt.Errorf("writing %s: %w", cacheFileNameIndex, err)
	}
	return nil
}

func writeMsgpackFile(path string, v interface{}) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	return os.WriteFile(path, b, 0644)
}

// loadGeobedCityData loads Cities from the embedded cache, falling back to
// the configured cache directory on disk. Returns an error (rather than
// panicking) on any miss so NewGeobed can fall back to a full reload.
func loadGeobedCityData(cfg *GeobedConfig) (Cities, error) {
	var cached []cachedCity
	if err := readCachedFile(cfg, cacheFileCities, &cached); err != nil {
		return nil, err
	}

	cities := make(Cities, len(cached))
	for i, c := range cached {
		cities[i] = GeobedCity{
			City:       c.City,
			CityAlt:    c.CityAlt,
			country:    internCountry(c.Country),
			region:     internRegion(c.Region),
			Latitude:   c.Latitude,
			Longitude:  c.Longitude,
			Population: c.Population,
		}
	}
	return cities, nil
}

// loadGeobedCountryData loads Countries from cache.
func loadGeobedCountryData(cfg *GeobedConfig) ([]CountryInfo, error) {
	var countries []CountryInfo
	if err := readCachedFile(cfg, cacheFileCountries, &countries); err != nil {
		return nil, err
	}
	return countries, nil
}

// loadNameIndex loads the inverted name index from cache.
func loadNameIndex(cfg *GeobedConfig) (map[string][]int, error) {
	var idx map[string][]int
	if err := readCachedFile(cfg, cacheFileNameIndex, &idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// readCachedFile loads name (optionally ".bz2"-suffixed) from the embedded
// cache first, then the on-disk cache directory, unmarshaling msgpack into
// out. Tries the embedded tree first so a binary built with `go build` works
// standalone; the on-disk directory lets cmd/update-cache iterate without
// recompiling.
func readCachedFile(cfg *GeobedConfig, name string, out interface{}) error {
	r, err := openOptionallyCachedFile(cfg, name)
	if err != nil {
		return err
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := msgpack.Unmarshal(b, out); err != nil {
		return fmt.Errorf("unmarshaling %s: %w", name, err)
	}
	return nil
}

// openOptionallyCachedFile opens name from the embedded filesystem if
// present, otherwise from cfg.CacheDir, in both cases trying the bare name
// before a ".bz2"-suffixed one.
func openOptionallyCachedFile(cfg *GeobedConfig, name string) (io.ReadCloser, error) {
	if f, err := cacheData.Open(filepath.Join("geobed-cache", name)); err == nil {
		return f, nil
	}
	if f, err := cacheData.Open(filepath.Join("geobed-cache", name+".bz2")); err == nil {
		return openOptionallyBzippedFile(f, true)
	}

	diskPath := filepath.Join(cfg.CacheDir, name)
	if f, err := os.Open(diskPath); err == nil {
		return f, nil
	}
	f, err := os.Open(diskPath + ".bz2")
	if err != nil {
		return nil, fmt.Errorf("opening %s (embedded and on-disk, plain and .bz2): %w", name, err)
	}
	return openOptionallyBzippedFile(f, true)
}

// openOptionallyBzippedFile reads f whole (through a bzip2 decompressing
// reader when compressed is true) into memory and closes f before
// returning; the returned ReadCloser serves that buffer and its Close is a
// no-op.
func openOptionallyBzippedFile(f io.ReadCloser, compressed bool) (io.ReadCloser, error) {
	defer f.Close()
	if !compressed {
		b, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(b)), nil
	}

	b, err := io.ReadAll(bzip2.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decompressing bzip2: %w", err)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}
