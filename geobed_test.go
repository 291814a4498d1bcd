package geobed

import (
	"strings"
	"sync"
	"testing"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type GeobedSuite struct {
	g *GeoBed
}

var _ = Suite(&GeobedSuite{})

func (s *GeobedSuite) SetUpSuite(c *C) {
	s.g = newTestGeoBed(scorerCities(), scorerCountries())
}

func (s *GeobedSuite) TestGeocode(c *C) {
	tests := []struct {
		query   string
		city    string
		country string
		region  string
	}{
		{"Austin", "Austin", "US", "TX"},
		{"Paris", "Paris", "FR", ""},
		{"Berlin", "Berlin", "DE", ""},
		{"Paris, TX", "Paris", "US", "TX"},
		{"Bombay", "Mumbai", "IN", ""},
	}
	for _, tc := range tests {
		r := s.g.Geocode(tc.query)
		c.Assert(r.City, Equals, tc.city)
		c.Assert(r.Country(), Equals, tc.country)
		if tc.region != "" {
			c.Assert(r.Region(), Equals, tc.region)
		}
	}
}

func (s *GeobedSuite) TestGeocodeEmptyInput(c *C) {
	for _, q := range []string{"", " ", "   ", "\t\n"} {
		r := s.g.Geocode(q)
		c.Assert(r.City, Equals, "")
		c.Assert(r.Population, Equals, int32(0))
		c.Assert(r.Latitude, Equals, float32(0))
		c.Assert(r.Longitude, Equals, float32(0))
	}
}

func (s *GeobedSuite) TestGeocodeWhitespaceNormalization(c *C) {
	r := s.g.Geocode("  Paris,   TX  ")
	c.Assert(r.City, Equals, "Paris")
	c.Assert(r.Region(), Equals, "TX")
}

func (s *GeobedSuite) TestGeocodeOverlongInput(c *C) {
	// Inputs past 256 runes are processed as their prefix, never faulting.
	long := "London" + strings.Repeat(" x", 300)
	r := s.g.Geocode(long)
	c.Assert(r.City, Not(Equals), long)

	// A city name surviving inside the 256-rune prefix still resolves.
	padded := "London " + strings.Repeat("é", 400)
	c.Assert(len([]rune(padded)) > maxGeocodeInputLen, Equals, true)
	r = s.g.Geocode(padded)
	c.Assert(r.City, Equals, "London")
}

func (s *GeobedSuite) TestGeocodeFuzzyDistanceClamped(c *C) {
	// An absurd distance is clamped, not honored: the query must not match
	// every short key in the index.
	r := s.g.Geocode("Londn", GeocodeOptions{FuzzyDistance: 100})
	c.Assert(r.City, Equals, "London")
}

func (s *GeobedSuite) TestReverseGeocode(c *C) {
	r := s.g.ReverseGeocode(30.2672, -97.7431)
	c.Assert(r.City, Equals, "Austin")
	c.Assert(r.Region(), Equals, "TX")
	c.Assert(r.Country(), Equals, "US")

	// Central Berlin: the neighborhood override promotes the city over the
	// Mitte borough.
	r = s.g.ReverseGeocode(52.5250, 13.4100)
	c.Assert(r.City, Equals, "Berlin")

	// The North Pole resolves to nothing.
	r = s.g.ReverseGeocode(90, 0)
	c.Assert(r.City, Equals, "")
}

func (s *GeobedSuite) TestRecordInvariants(c *C) {
	// Every returned record is either the all-zero sentinel or carries a
	// non-empty name with in-range coordinates.
	queries := []string{"Paris", "Bombay", "Zxqwvbn", "!@#$%", "Austin TX", ""}
	for _, q := range queries {
		r := s.g.Geocode(q)
		if r.City == "" {
			c.Assert(r.Population, Equals, int32(0))
			c.Assert(r.Latitude, Equals, float32(0))
			c.Assert(r.Longitude, Equals, float32(0))
		} else {
			c.Assert(r.Latitude >= -90 && r.Latitude <= 90, Equals, true)
			c.Assert(r.Longitude >= -180 && r.Longitude <= 180, Equals, true)
			c.Assert(r.Population >= 0, Equals, true)
		}
	}
}

func (s *GeobedSuite) TestAccessors(c *C) {
	r := s.g.Geocode("Paris, TX")
	c.Assert(CityCountry(r), Equals, r.Country())
	c.Assert(CityRegion(r), Equals, r.Region())
	c.Assert(CityCountry(GeobedCity{}), Equals, "")
	c.Assert(CityRegion(GeobedCity{}), Equals, "")
}

func TestConcurrentQueries(t *testing.T) {
	// The facade is immutable after construction: parallel readers must
	// agree with a serial baseline.
	g := newTestGeoBed(scorerCities(), scorerCountries())
	queries := []string{"Paris", "London", "Bombay", "Austin TX", "Berlin"}
	baseline := make([]GeobedCity, len(queries))
	for i, q := range queries {
		baseline[i] = g.Geocode(q)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, q := range queries {
				if got := g.Geocode(q); got != baseline[i] {
					t.Errorf("concurrent Geocode(%q) = %+v, want %+v", q, got, baseline[i])
				}
				g.ReverseGeocode(52.5250, 13.4100)
			}
		}()
	}
	wg.Wait()
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"Paris", "Paris"},
		{"  Paris  ", "Paris"},
		{"Paris,   TX", "Paris, TX"},
		{"a\tb\n c", "a b c"},
	}
	for _, tc := range tests {
		if got := normalizeQuery(tc.in); got != tc.want {
			t.Errorf("normalizeQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	// Truncation counts runes, not bytes: 300 two-byte runes become 256.
	long := strings.Repeat("é", 300)
	got := normalizeQuery(long)
	if n := len([]rune(got)); n != maxGeocodeInputLen {
		t.Errorf("normalizeQuery truncated to %d runes, want %d", n, maxGeocodeInputLen)
	}
}

func TestSortOrderIsCaseInsensitive(t *testing.T) {
	cities := Cities{
		testCity("berlin", "", "DE", "", 0, 0, 1),
		testCity("Amsterdam", "", "NL", "", 0, 0, 1),
		testCity("zurich", "", "CH", "", 0, 0, 1),
		testCity("Boston", "", "US", "", 0, 0, 1),
	}
	g := newTestGeoBed(cities, nil)
	want := []string{"Amsterdam", "berlin", "Boston", "zurich"}
	for i, w := range want {
		if g.Cities[i].City != w {
			t.Fatalf("sorted corpus[%d] = %q, want %q", i, g.Cities[i].City, w)
		}
	}
}
