package geobed

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxFuzzyDistance caps FuzzyDistance so a caller can't force the scorer
// into scanning the whole name index at an edit distance wide enough to
// turn the fuzzy-name bonus into "match almost anything."
const maxFuzzyDistance = 3

// fuzzyMatch compares two strings with optional Levenshtein distance tolerance.
// If maxDist is 0, performs exact case-insensitive match. Otherwise, returns
// true if the edit distance between the strings is <= maxDist. The distance
// computation itself is delegated to agnivade/levenshtein.
func fuzzyMatch(query, candidate string, maxDist int) bool {
	if maxDist == 0 {
		return strings.EqualFold(query, candidate)
	}
	dist := levenshtein.ComputeDistance(toLower(query), toLower(candidate))
	return dist <= maxDist
}

// gatherCandidates collects city indices (shared by both scoring modes)
// by querying the name index with the full query, the space-joined
// residual tokens, and each individual residual token. When fuzzyDistance
// is positive it additionally scans every name-index key for one within
// that edit distance of a name-slice token longer than two characters —
// the expensive path, only taken when the caller opts in.
func (g *GeoBed) gatherCandidates(n string, nSlice []string, fuzzyDistance int) map[int]bool {
	candidateSet := make(map[int]bool)

	addKey := func(key string) {
		if indices, ok := g.nameIndex[toLower(key)]; ok {
			for _, idx := range indices {
				candidateSet[idx] = true
			}
		}
	}

	addKey(n)

	cleaned := strings.Join(nSlice, " ")
	if cleaned != n {
		addKey(cleaned)
	}

	for _, ns := range nSlice {
		addKey(strings.TrimSuffix(ns, ","))
	}

	if fuzzyDistance > 0 {
		for key, indices := range g.nameIndex {
			for _, ns := range nSlice {
				ns = strings.TrimSuffix(ns, ",")
				if len(ns) > 2 && fuzzyMatch(ns, key, fuzzyDistance) {
					for _, idx := range indices {
						candidateSet[idx] = true
					}
					break
				}
			}
		}
	}

	return candidateSet
}

// matchContext bundles the pieces extractLocationPieces produced for one
// query, so the bonus rules can each take it plus a candidate city
// instead of five separate parameters.
type matchContext struct {
	query         string
	countryISO    string
	stateCode     string
	abbrevs       []string
	nameSlice     []string
	fuzzyDistance int
}

// scoreRule is one scoring bonus rule: given the query context and a
// candidate city (with its country/region already dereferenced), it
// returns the bonus the rule contributes — 0 if it doesn't fire.
// Expressing the bonuses as a slice of these, applied in a single loop per
// candidate, replaces ten inline if-statements with one dispatch table
// that can be tested and extended rule-by-rule.
type scoreRule func(ctx matchContext, v GeobedCity, vCountry, vRegion string) int

// The exact-primary-name bonus is not in this table; scoreCandidate adds
// it inline because it also gates whether ruleFuzzyNameToken fires.
var scoreRules = []scoreRule{
	ruleAbbrevRegion,
	ruleAbbrevCountry,
	ruleCountryQualifier,
	ruleStateQualifier,
	ruleAltNameFold,
	ruleAltNameExact,
	ruleFuzzyNameToken,
	ruleNameContainsToken,
	ruleNameEqualsToken,
}

func ruleAbbrevRegion(ctx matchContext, _ GeobedCity, _, vRegion string) int {
	bonus := 0
	for _, av := range ctx.abbrevs {
		if len(av) == 2 && strings.EqualFold(vRegion, av) {
			bonus += 5
		}
	}
	return bonus
}

func ruleAbbrevCountry(ctx matchContext, _ GeobedCity, vCountry, _ string) int {
	bonus := 0
	for _, av := range ctx.abbrevs {
		if len(av) == 2 && strings.EqualFold(vCountry, av) {
			bonus += 3
		}
	}
	return bonus
}

func ruleCountryQualifier(ctx matchContext, _ GeobedCity, vCountry, _ string) int {
	if ctx.countryISO != "" && ctx.countryISO == vCountry {
		return 4
	}
	return 0
}

func ruleStateQualifier(ctx matchContext, _ GeobedCity, _, vRegion string) int {
	if ctx.stateCode != "" && ctx.stateCode == vRegion {
		return 4
	}
	return 0
}

// splitAltNames splits a CityAlt blob on commas only — never whitespace,
// which would destroy multi-word aliases such as "Ho Chi Minh City".
func splitAltNames(cityAlt string) []string {
	if cityAlt == "" {
		return nil
	}
	var names []string
	for _, raw := range strings.Split(cityAlt, ",") {
		if alt := strings.TrimSpace(raw); alt != "" {
			names = append(names, alt)
		}
	}
	return names
}

func ruleAltNameFold(ctx matchContext, v GeobedCity, _, _ string) int {
	bonus := 0
	for _, alt := range splitAltNames(v.CityAlt) {
		if strings.EqualFold(alt, ctx.query) {
			bonus += 3
		}
	}
	return bonus
}

func ruleAltNameExact(ctx matchContext, v GeobedCity, _, _ string) int {
	bonus := 0
	for _, alt := range splitAltNames(v.CityAlt) {
		if alt == ctx.query {
			bonus += 5
		}
	}
	return bonus
}

func ruleFuzzyNameToken(ctx matchContext, v GeobedCity, _, _ string) int {
	if strings.EqualFold(ctx.query, v.City) || ctx.fuzzyDistance == 0 {
		return 0 // an exact name match is scored by the caller instead
	}
	bonus := 0
	for _, ns := range ctx.nameSlice {
		ns = strings.TrimSuffix(ns, ",")
		if len(ns) > 2 && fuzzyMatch(ns, v.City, ctx.fuzzyDistance) {
			bonus += 5
		}
	}
	return bonus
}

func ruleNameContainsToken(ctx matchContext, v GeobedCity, _, _ string) int {
	bonus := 0
	for _, ns := range ctx.nameSlice {
		ns = strings.TrimSuffix(ns, ",")
		if strings.Contains(toLower(v.City), toLower(ns)) {
			bonus += 2
		}
	}
	return bonus
}

func ruleNameEqualsToken(ctx matchContext, v GeobedCity, _, _ string) int {
	bonus := 0
	for _, ns := range ctx.nameSlice {
		ns = strings.TrimSuffix(ns, ",")
		if strings.EqualFold(v.City, ns) {
			bonus++
		}
	}
	return bonus
}

// scoreCandidate applies every rule in scoreRules plus the exact-name
// bonus (not expressible as a small independent rule since it gates
// whether the fuzzy-name bonus runs at all) and returns the candidate's
// total score.
func scoreCandidate(ctx matchContext, v GeobedCity, vCountry, vRegion string) int {
	total := 0
	for _, rule := range scoreRules {
		total += rule(ctx, v, vCountry, vRegion)
	}
	if strings.EqualFold(ctx.query, v.City) {
		total += 7
	}
	return total
}

// fuzzyMatchLocation implements the default, scored forward-match mode:
// every candidate accrues bonuses via scoreCandidate, plus a
// population-adjusted preference when no country
// qualifier was extracted, and the highest-scoring candidate wins (ties
// broken by population, then by lowest corpus index for full determinism
// — a tiebreaker the rules table above doesn't need to know about).
func (g *GeoBed) fuzzyMatchLocation(n string, opts GeocodeOptions) GeobedCity {
	nCo, nSt, abbrevSlice, nSlice := g.extractLocationPieces(n)
	candidateSet := g.gatherCandidates(n, nSlice, opts.FuzzyDistance)

	ctx := matchContext{
		query:         n,
		countryISO:    nCo,
		stateCode:     nSt,
		abbrevs:       abbrevSlice,
		nameSlice:     nSlice,
		fuzzyDistance: opts.FuzzyDistance,
	}

	scores := map[int]int{}
	for idx := range candidateSet {
		v := g.Cities[idx]
		vCountry, vRegion := v.Country(), v.Region()

		// Fast path: when a state qualifier was extracted, a candidate whose
		// name equals the whole query and whose region equals that state
		// returns immediately.
		if nSt != "" && strings.EqualFold(n, v.City) && strings.EqualFold(nSt, vRegion) {
			return v
		}

		scores[idx] = scoreCandidate(ctx, v, vCountry, vRegion)
	}

	applyPopulationPreference(g.Cities, scores, nCo == "")

	best := bestByScoreThenPopulation(g.Cities, scores)
	if best < 0 {
		return GeobedCity{}
	}
	return g.Cities[best]
}

// applyPopulationPreference applies the population-adjusted
// preference: when the query carried no country qualifier, every
// reasonably-sized candidate (population >= 1000) gets +1, and the single
// most populous scored candidate gets a further +1.
func applyPopulationPreference(cities Cities, scores map[int]int, noCountryQualifier bool) {
	if !noCountryQualifier {
		return
	}
	mostPopulous, mostPopulousScore := -1, int32(0)
	for idx := range scores {
		if cities[idx].Population >= 1000 {
			scores[idx]++
		}
		// Equal populations resolve to the lower corpus index, so the choice
		// does not depend on map iteration order.
		p := cities[idx].Population
		if p > mostPopulousScore || (p == mostPopulousScore && idx < mostPopulous) {
			mostPopulous, mostPopulousScore = idx, cities[idx].Population
		}
	}
	if mostPopulous >= 0 && cities[mostPopulous].Population > 0 {
		scores[mostPopulous]++
	}
}

// bestByScoreThenPopulation picks the highest-scoring candidate, breaking
// ties by population and then by the lower corpus index, so repeated calls
// against the same corpus always agree. Returns -1 if no candidate scored
// above zero.
func bestByScoreThenPopulation(cities Cities, scores map[int]int) int {
	best, bestScore := -1, 0
	for idx, score := range scores {
		switch {
		case score > bestScore:
			best, bestScore = idx, score
		case score == bestScore && best >= 0:
			if cities[idx].Population > cities[best].Population ||
				(cities[idx].Population == cities[best].Population && idx < best) {
				best = idx
			}
		}
	}
	return best
}

// exactMatchCity implements exact-city-name mode: candidates are
// filtered down to those whose name equals the query (or the qualifier-
// stripped residual) case-insensitively, then resolved by the fixed
// priority order: unique survivor, region+country match, region match,
// country match, highest population.
func (g *GeoBed) exactMatchCity(n string) GeobedCity {
	nCo, nSt, _, nSlice := g.extractLocationPieces(n)
	nWithoutAbbrev := strings.Join(nSlice, " ")

	candidateSet := g.gatherCandidates(n, []string{nWithoutAbbrev}, 0)

	var matching []GeobedCity
	for idx := range candidateSet {
		v := g.Cities[idx]
		if strings.EqualFold(n, v.City) || strings.EqualFold(nWithoutAbbrev, v.City) {
			matching = append(matching, v)
		}
	}

	if len(matching) == 0 {
		return GeobedCity{}
	}
	if len(matching) == 1 {
		return matching[0]
	}

	// Priority order: region+country, then region, then country,
	// then highest population among everything that survived filtering.
	tiers := []func(GeobedCity) bool{
		func(c GeobedCity) bool { return strings.EqualFold(nSt, c.Region()) && strings.EqualFold(nCo, c.Country()) },
		func(c GeobedCity) bool { return strings.EqualFold(nSt, c.Region()) },
		func(c GeobedCity) bool { return strings.EqualFold(nCo, c.Country()) },
		func(GeobedCity) bool { return true },
	}
	for _, matches := range tiers {
		if best, ok := mostPopulousMatching(matching, matches); ok {
			return best
		}
	}
	return matching[0] // unreachable: the final tier above always matches
}

// mostPopulousMatching returns the highest-population city among matching
// for which predicate holds, or ok=false if none qualify.
func mostPopulousMatching(matching []GeobedCity, predicate func(GeobedCity) bool) (best GeobedCity, ok bool) {
	for _, city := range matching {
		if !predicate(city) {
			continue
		}
		if !ok || city.Population > best.Population {
			best, ok = city, true
		}
	}
	return best, ok
}
