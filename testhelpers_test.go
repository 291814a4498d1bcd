package geobed

import "sort"

// testCity interns country/region and returns a ready-to-index GeobedCity.
// Every *_test.go file in this package builds its fixtures through this
// helper instead of loading the real GeoNames corpus, which this
// environment doesn't ship (see DESIGN.md's "Known scope limit").
func testCity(city, alt, country, region string, lat, lng float32, pop int32) GeobedCity {
	lookupOnce.Do(initLookupTables)
	return GeobedCity{
		City:       city,
		CityAlt:    alt,
		country:    internCountry(country),
		region:     internRegion(region),
		Latitude:   lat,
		Longitude:  lng,
		Population: pop,
	}
}

// newTestGeoBed builds a *GeoBed around a small fixture corpus, wiring the
// name index and cell index exactly the way NewGeobed does for a real one,
// without any cache or network I/O.
func newTestGeoBed(cities []GeobedCity, countries []CountryInfo) *GeoBed {
	cs := make(Cities, len(cities))
	copy(cs, cities)
	sort.Sort(cs)

	g := &GeoBed{
		Cities:    cs,
		Countries: countries,
		nameIndex: buildNameIndex(cs),
		config:    defaultConfig(),
	}
	g.buildCellIndex()
	return g
}

// sampleCountries is a small CountryInfo fixture covering the countries
// sampleCities references.
func sampleCountries() []CountryInfo {
	return []CountryInfo{
		{Country: "United States", ISO: "US", Continent: "NA"},
		{Country: "United Kingdom", ISO: "GB", Continent: "EU"},
		{Country: "France", ISO: "FR", Continent: "EU"},
		{Country: "South Korea", ISO: "KR", Continent: "AS"},
		{Country: "Korea", ISO: "KP", Continent: "AS"},
		{Country: "Germany", ISO: "DE", Continent: "EU"},
	}
}

// sampleCities is a small multi-country fixture corpus exercising region
// qualifiers, alt names, and a small-locality/large-neighbor pair for the
// reverse-geocode neighborhood override.
func sampleCities() []GeobedCity {
	return []GeobedCity{
		testCity("Austin", "", "US", "TX", 30.2672, -97.7431, 964_000),
		testCity("Austin", "", "US", "MN", 43.6666, -92.9746, 25_000),
		testCity("Paris", "Parij", "FR", "", 48.8566, 2.3522, 2_148_000),
		testCity("Paris", "", "US", "TX", 33.6609, -95.5555, 24_000),
		testCity("London", "Londinium", "GB", "", 51.5074, -0.1278, 8_982_000),
		testCity("New York City", "New York,NYC", "US", "NY", 40.7128, -74.0060, 8_336_000),
		testCity("Berlin", "", "DE", "", 52.5200, 13.4050, 3_645_000),
		testCity("Mitte", "", "DE", "", 52.5250, 13.4100, 100_000),
	}
}
