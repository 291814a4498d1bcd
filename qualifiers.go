package geobed

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// UsStateCodes maps US state (and territory / armed-forces) abbreviations to
// full names.
var UsStateCodes = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming",
	// Territories
	"AS": "American Samoa", "DC": "District of Columbia",
	"FM": "Federated States of Micronesia", "GU": "Guam",
	"MH": "Marshall Islands", "MP": "Northern Mariana Islands",
	"PW": "Palau", "PR": "Puerto Rico", "VI": "Virgin Islands",
	// Armed Forces
	"AA": "Armed Forces Americas", "AE": "Armed Forces Europe", "AP": "Armed Forces Pacific",
}

// sortedUsStateCodes returns US state codes sorted alphabetically, computed
// once so pass 2/3 of extractLocationPieces always walk them in the same
// order — needed for deterministic resolution when a query shape happens to
// satisfy more than one code/name.
var sortedUsStateCodes = sync.OnceValue(func() []string {
	codes := make([]string, 0, len(UsStateCodes))
	for sc := range UsStateCodes {
		codes = append(codes, sc)
	}
	sort.Strings(codes)
	return codes
})

// abbrevRegex extracts standalone 2-3 letter tokens that could be a
// region/country abbreviation (e.g., "TX", "NY", "US"), used by the scorer
// as a weak region/country hint.
var abbrevRegex = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`\b[A-Za-z]{2,3}\b`)
})

// countriesByNameLengthDesc returns g.Countries sorted by descending name
// length, computed once per instance and cached — extractLocationPieces
// runs on every forward geocode call and must not re-sort ~250 countries
// each time.
func (g *GeoBed) countriesByNameLengthDesc() []CountryInfo {
	g.countriesSortOnce.Do(func() {
		sorted := make([]CountryInfo, len(g.Countries))
		copy(sorted, g.Countries)
		sort.SliceStable(sorted, func(i, j int) bool {
			return len(sorted[i].Country) > len(sorted[j].Country)
		})
		g.countriesByLenDesc = sorted
	})
	return g.countriesByLenDesc
}

// qualifierShapes lists the four ways a qualifier name/code can sit against
// the rest of the query: leading with a comma or bare space, or trailing the
// same two ways. stripQualifier checks the standalone case (the qualifier is
// the whole query) itself, then tries these in this order and reports the
// first that fires.
var qualifierShapes = []struct {
	build func(lower string) (cut string, prefix bool)
}{
	{func(lower string) (string, bool) { return lower + ", ", true }},
	{func(lower string) (string, bool) { return lower + " ", true }},
	{func(lower string) (string, bool) { return ", " + lower, false }},
	{func(lower string) (string, bool) { return " " + lower, false }},
}

// stripQualifier checks whether name (compared case-insensitively) is the
// whole of query, or sits at its front/back separated by a comma or space,
// and if so returns query with that occurrence removed. This is the one
// matching shape shared by all three name-based extraction passes (country
// name, US state code, US state full name) — factored out so each pass is a
// single call instead of five repeated comparisons.
func stripQualifier(query, name string) (rest string, ok bool) {
	queryLower, nameLower := toLower(query), toLower(name)
	if strings.EqualFold(query, name) {
		return "", true
	}
	for _, shape := range qualifierShapes {
		cut, isPrefix := shape.build(nameLower)
		if len(queryLower) <= len(cut) {
			continue
		}
		if isPrefix && queryLower[:len(cut)] == cut {
			return query[len(cut):], true
		}
		if !isPrefix && queryLower[len(queryLower)-len(cut):] == cut {
			return query[:len(query)-len(cut)], true
		}
	}
	return query, false
}

// extractLocationPieces peels country and subdivision qualifiers off the
// front or back of a query string, returning: country ISO-2,
// state/subdivision code, the raw abbreviation tokens found in the
// original query, and the whitespace-split residual tokens.
//
// Four passes run in order, each able to set country_iso and/or state_code
// and shrink the residual query: country name, US state code, full US state
// name, then — only if no US state matched — an international admin
// division recognized from the last residual token. The extractor never
// fails; an input matching nothing yields empty qualifiers and the
// original query as the sole name-slice token.
func (g *GeoBed) extractLocationPieces(n string) (string, string, []string, []string) {
	abbrevSlice := abbrevRegex().FindAllString(n, -1)

	nCo := g.stripCountryName(&n)
	nSt := stripUsStateCode(&n)
	if nSt == "" {
		nSt = stripUsStateName(&n)
	}
	if nCo == "" && nSt != "" {
		nCo = "US"
	}
	if nSt == "" {
		nSt, nCo = stripAdminDivision(&n, nCo)
	}

	n = strings.Trim(n, " ,")
	return nCo, nSt, abbrevSlice, strings.Split(n, " ")
}

// stripCountryName runs pass 1: countries are tried longest-name-first so
// e.g. "Guinea" can never consume a match that belongs to "Guinea-Bissau" or
// "Papua New Guinea". On a hit it mutates *query to the residual and returns
// the matched ISO-2 code.
func (g *GeoBed) stripCountryName(query *string) string {
	for _, co := range g.countriesByNameLengthDesc() {
		if rest, ok := stripQualifier(*query, co.Country); ok {
			*query = rest
			return co.ISO
		}
	}
	return ""
}

// stripUsStateCode runs pass 2: matches a two-letter USPS code. Iterates
// codes in a fixed sorted order so a query shape that happens to satisfy
// more than one code always resolves to the same one.
func stripUsStateCode(query *string) string {
	for _, sc := range sortedUsStateCodes() {
		if rest, ok := stripQualifier(*query, sc); ok {
			*query = rest
			return sc
		}
	}
	return ""
}

// stripUsStateName runs pass 3: same matching shape as pass 2, but against
// the full US state name (e.g. "Austin, Texas") rather than the USPS code.
func stripUsStateName(query *string) string {
	for _, sc := range sortedUsStateCodes() {
		if rest, ok := stripQualifier(*query, UsStateCodes[sc]); ok {
			*query = rest
			return sc
		}
	}
	return ""
}

// stripAdminDivision runs pass 4: only reached when no US state matched.
// Considers the last whitespace-separated token of the residual query —
// e.g. "Toronto ON" or "Sydney NSW" — and accepts it as a subdivision code
// either when the country is already known and the pair is a recognized
// admin division, or when the country is unknown and the code belongs to
// exactly one country.
func stripAdminDivision(query *string, nCo string) (state, country string) {
	parts := strings.Split(*query, " ")
	if len(parts) < 2 {
		return "", nCo
	}
	lastPart := strings.Trim(parts[len(parts)-1], ", ")
	if len(lastPart) < 2 || len(lastPart) > 3 {
		return "", nCo
	}
	code := toUpper(lastPart)

	switch {
	case nCo != "" && isAdminDivision(nCo, code):
		*query = strings.Join(parts[:len(parts)-1], " ")
		return code, nCo
	case nCo == "":
		if owner := getAdminDivisionCountry(code); owner != "" {
			*query = strings.Join(parts[:len(parts)-1], " ")
			return code, owner
		}
	}
	return "", nCo
}
