package geobed

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// AdminDivision represents a first-level administrative division (state, province, etc.)
type AdminDivision struct {
	Code string // Admin1 code (e.g., "TX", "08")
	Name string // Full name (e.g., "Texas", "Ontario")
}

// defaultAdminDataDir is where loadAdminDivisions looks for
// admin1CodesASCII.txt absent any caller-supplied directory.
const defaultAdminDataDir = "./geobed-data"

// adminDivisions maps country code -> division code -> AdminDivision,
// loaded from defaultAdminDataDir/admin1CodesASCII.txt.
var adminDivisions = map[string]map[string]AdminDivision{}
var adminDivisionsOnce sync.Once

// adminDivisionsByDir memoizes loadAdminDivisionsForDir results per
// directory so repeated calls (e.g. from tests exercising several data
// directories in one process) don't re-parse the file each time.
var (
	adminDivisionsByDirMu sync.Mutex
	adminDivisionsByDir   = map[string]map[string]map[string]AdminDivision{}
)

// loadAdminDivisions loads admin1 codes from defaultAdminDataDir, once per
// process. Used by isAdminDivision/getAdminDivisionCountry/
// getAdminDivisionName, which have no per-call directory of their own.
func loadAdminDivisions() {
	adminDivisionsOnce.Do(func() {
		adminDivisions = loadAdminDivisionsForDir(defaultAdminDataDir)
	})
}

// loadAdminDivisionsForDir parses admin1CodesASCII.txt out of dir and
// returns country code -> division code -> AdminDivision. Never panics and
// never returns nil: a missing directory or file yields an empty map.
// Results are memoized per dir.
//
// Format: CC.CODE<tab>Name<tab>AsciiName<tab>GeonameId
func loadAdminDivisionsForDir(dir string) map[string]map[string]AdminDivision {
	adminDivisionsByDirMu.Lock()
	if cached, ok := adminDivisionsByDir[dir]; ok {
		adminDivisionsByDirMu.Unlock()
		return cached
	}
	adminDivisionsByDirMu.Unlock()

	result := make(map[string]map[string]AdminDivision)

	fi, err := os.Open(filepath.Join(dir, "admin1CodesASCII.txt"))
	if err == nil {
		defer fi.Close()

		scanner := bufio.NewScanner(fi)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}

			// Split by tab: CC.CODE\tName\tAsciiName\tGeonameId
			fields := strings.Split(line, "\t")
			if len(fields) < 2 {
				continue
			}

			// Parse country.code from first field
			parts := strings.SplitN(fields[0], ".", 2)
			if len(parts) != 2 {
				continue
			}

			countryCode := parts[0]
			divisionCode := parts[1]
			divisionName := fields[1]

			if result[countryCode] == nil {
				result[countryCode] = make(map[string]AdminDivision)
			}

			result[countryCode][divisionCode] = AdminDivision{
				Code: divisionCode,
				Name: divisionName,
			}
		}
	}

	adminDivisionsByDirMu.Lock()
	adminDivisionsByDir[dir] = result
	adminDivisionsByDirMu.Unlock()
	return result
}

// getAdminDivisionName returns the human-readable name of a known admin
// division, or "" if country/code is not recognized.
func getAdminDivisionName(country, code string) string {
	loadAdminDivisions()
	divisions, ok := adminDivisions[toUpper(country)]
	if !ok {
		return ""
	}
	return divisions[toUpper(code)].Name
}

// isAdminDivision reports whether code is a known first-level division of
// country (e.g. isAdminDivision("US", "TX") == true). Used by pass 4 of the
// qualifier extractor when a country has already been identified.
func isAdminDivision(country, code string) bool {
	loadAdminDivisions()
	divisions, ok := adminDivisions[toUpper(country)]
	if !ok {
		return false
	}
	_, ok = divisions[toUpper(code)]
	return ok
}

// getAdminDivisionCountry returns the country code if the given code is an
// unambiguous admin division — known to exactly one country. For example,
// "TX" -> "US". Ambiguous codes (shared by more than one country) return "".
func getAdminDivisionCountry(code string) string {
	loadAdminDivisions()
	code = toUpper(code)
	match := ""
	count := 0
	for countryCode, divisions := range adminDivisions {
		if _, ok := divisions[code]; ok {
			count++
			match = countryCode
		}
	}
	if count == 1 {
		return match
	}
	return ""
}

// isAdminDivision and getAdminDivisionCountry are plain functions (admin
// division data is a process-wide, lazily-loaded table with no per-instance
// state). These methods exist only so blackbox-style call sites written
// against *GeoBed keep working with the same contract.
func (g *GeoBed) isAdminDivision(country, code string) bool {
	return isAdminDivision(country, code)
}

func (g *GeoBed) getAdminDivisionCountry(code string) string {
	return getAdminDivisionCountry(code)
}

func (g *GeoBed) getAdminDivisionName(country, code string) string {
	return getAdminDivisionName(country, code)
}
