package geobed

import (
	"reflect"
	"testing"
)

func TestStripQualifierShapes(t *testing.T) {
	tests := []struct {
		query, name string
		wantRest    string
		wantOK      bool
	}{
		{"France", "France", "", true},                    // whole query
		{"france", "France", "", true},                    // case-insensitive
		{"Texas Austin", "Texas", "Austin", true},         // leading, bare space
		{"Texas, Austin", "Texas", "Austin", true},        // leading, comma
		{"Austin Texas", "Texas", "Austin", true},         // trailing, bare space
		{"Paris, France", "France", "Paris", true},        // trailing, comma
		{"Guinea-Bissau", "Guinea", "Guinea-Bissau", false}, // substring is not a qualifier
		{"Berlin", "France", "Berlin", false},
	}
	for _, tc := range tests {
		rest, ok := stripQualifier(tc.query, tc.name)
		if rest != tc.wantRest || ok != tc.wantOK {
			t.Errorf("stripQualifier(%q, %q) = (%q, %v), want (%q, %v)",
				tc.query, tc.name, rest, ok, tc.wantRest, tc.wantOK)
		}
	}
}

func TestCountriesByNameLengthDesc(t *testing.T) {
	g := newTestGeoBed(sampleCities(), sampleCountries())
	sorted := g.countriesByNameLengthDesc()
	if len(sorted) != len(sampleCountries()) {
		t.Fatalf("sorted country count = %d, want %d", len(sorted), len(sampleCountries()))
	}
	for i := 1; i < len(sorted); i++ {
		if len(sorted[i-1].Country) < len(sorted[i].Country) {
			t.Fatalf("countries not sorted by descending name length: %q before %q",
				sorted[i-1].Country, sorted[i].Country)
		}
	}
}

func TestExtractCountryName(t *testing.T) {
	g := newTestGeoBed(sampleCities(), sampleCountries())
	nCo, nSt, _, nSlice := g.extractLocationPieces("Paris, France")
	if nCo != "FR" || nSt != "" {
		t.Fatalf("extract(\"Paris, France\") = country %q, state %q; want FR, \"\"", nCo, nSt)
	}
	if !reflect.DeepEqual(nSlice, []string{"Paris"}) {
		t.Fatalf("name slice = %v, want [Paris]", nSlice)
	}
}

func TestExtractLongestCountryNameWins(t *testing.T) {
	countries := append(sampleCountries(),
		CountryInfo{Country: "Guinea-Bissau", ISO: "GW", Continent: "AF"},
		CountryInfo{Country: "Guinea", ISO: "GN", Continent: "AF"},
	)
	g := newTestGeoBed(sampleCities(), countries)

	nCo, _, _, nSlice := g.extractLocationPieces("Bissau, Guinea-Bissau")
	if nCo != "GW" {
		t.Fatalf("country = %q, want GW (\"Guinea\" must not shadow \"Guinea-Bissau\")", nCo)
	}
	if !reflect.DeepEqual(nSlice, []string{"Bissau"}) {
		t.Fatalf("name slice = %v, want [Bissau]", nSlice)
	}

	// And "South Korea" before "Korea".
	nCo, _, _, _ = g.extractLocationPieces("Seoul, South Korea")
	if nCo != "KR" {
		t.Fatalf("country = %q, want KR", nCo)
	}
}

func TestExtractUsStateCodeDefaultsCountry(t *testing.T) {
	g := newTestGeoBed(sampleCities(), sampleCountries())

	nCo, nSt, _, nSlice := g.extractLocationPieces("Paris, TX")
	if nCo != "US" || nSt != "TX" {
		t.Fatalf("extract(\"Paris, TX\") = country %q, state %q; want US, TX", nCo, nSt)
	}
	if !reflect.DeepEqual(nSlice, []string{"Paris"}) {
		t.Fatalf("name slice = %v, want [Paris]", nSlice)
	}

	// No comma: the bare-space shape matches too.
	nCo, nSt, _, _ = g.extractLocationPieces("Austin TX")
	if nCo != "US" || nSt != "TX" {
		t.Fatalf("extract(\"Austin TX\") = country %q, state %q; want US, TX", nCo, nSt)
	}
}

func TestExtractFullUsStateName(t *testing.T) {
	g := newTestGeoBed(sampleCities(), sampleCountries())
	nCo, nSt, _, nSlice := g.extractLocationPieces("Austin, Texas")
	if nCo != "US" || nSt != "TX" {
		t.Fatalf("extract(\"Austin, Texas\") = country %q, state %q; want US, TX", nCo, nSt)
	}
	if !reflect.DeepEqual(nSlice, []string{"Austin"}) {
		t.Fatalf("name slice = %v, want [Austin]", nSlice)
	}
}

func TestExtractInternationalAdminDivision(t *testing.T) {
	seedAdminDivisions(t, map[string]map[string]AdminDivision{
		"CA": {"ON": {Code: "ON", Name: "Ontario"}},
		"AU": {"NSW": {Code: "NSW", Name: "New South Wales"}},
	})
	g := newTestGeoBed(sampleCities(), sampleCountries())

	// Country unknown, code unique to one country: both get set.
	nCo, nSt, _, nSlice := g.extractLocationPieces("Toronto ON")
	if nCo != "CA" || nSt != "ON" {
		t.Fatalf("extract(\"Toronto ON\") = country %q, state %q; want CA, ON", nCo, nSt)
	}
	if !reflect.DeepEqual(nSlice, []string{"Toronto"}) {
		t.Fatalf("name slice = %v, want [Toronto]", nSlice)
	}

	// Three-letter codes are accepted.
	_, nSt, _, _ = g.extractLocationPieces("Sydney NSW")
	if nSt != "NSW" {
		t.Fatalf("extract(\"Sydney NSW\") state = %q, want NSW", nSt)
	}
}

func TestExtractAdminDivisionRequiresKnownPair(t *testing.T) {
	seedAdminDivisions(t, map[string]map[string]AdminDivision{
		"CA": {"ON": {Code: "ON", Name: "Ontario"}},
	})
	g := newTestGeoBed(sampleCities(), sampleCountries())

	// Country already extracted as FR; "ON" is not a French division, so the
	// token survives in the residual.
	nCo, nSt, _, nSlice := g.extractLocationPieces("Lyon ON, France")
	if nCo != "FR" || nSt != "" {
		t.Fatalf("extract = country %q, state %q; want FR, \"\"", nCo, nSt)
	}
	if !reflect.DeepEqual(nSlice, []string{"Lyon", "ON"}) {
		t.Fatalf("name slice = %v, want [Lyon ON]", nSlice)
	}
}

func TestExtractNoQualifiersYieldsOriginal(t *testing.T) {
	g := newTestGeoBed(sampleCities(), sampleCountries())
	nCo, nSt, _, nSlice := g.extractLocationPieces("Zxqwvbn")
	if nCo != "" || nSt != "" {
		t.Fatalf("extract(\"Zxqwvbn\") = country %q, state %q; want empty", nCo, nSt)
	}
	if !reflect.DeepEqual(nSlice, []string{"Zxqwvbn"}) {
		t.Fatalf("name slice = %v, want the original query as sole token", nSlice)
	}
}

func TestExtractAbbrevSlice(t *testing.T) {
	g := newTestGeoBed(sampleCities(), sampleCountries())
	_, _, abbrevs, _ := g.extractLocationPieces("Paris, TX")
	found := false
	for _, a := range abbrevs {
		if a == "TX" {
			found = true
		}
	}
	if !found {
		t.Fatalf("abbrev slice %v does not contain the TX token", abbrevs)
	}
}
