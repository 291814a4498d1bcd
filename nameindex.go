package geobed

import "strings"

// buildNameIndex constructs the inverted name index: every city
// contributes its primary name plus each comma-separated, trimmed entry of
// its alt-name blob. Keys are lowercased; the index is read-only once built.
//
// Split on commas only — never whitespace. The blob
// "München,Munich,Monaco" yields three aliases; splitting on whitespace
// would destroy multi-word aliases such as "Ho Chi Minh City". This is a
// historical source of bugs and must not regress.
func buildNameIndex(cities Cities) map[string][]int {
	idx := make(map[string][]int, len(cities)*2)
	for i, city := range cities {
		key := toLower(city.City)
		if key != "" {
			idx[key] = append(idx[key], i)
		}
		if city.CityAlt == "" {
			continue
		}
		for _, raw := range strings.Split(city.CityAlt, ",") {
			alt := strings.TrimSpace(raw)
			if alt == "" {
				continue
			}
			idx[toLower(alt)] = append(idx[toLower(alt)], i)
		}
	}
	return idx
}
