package geobed

import (
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DataSourceID identifies a data source type.
type DataSourceID string

const (
	DataSourceGeonamesCities  DataSourceID = "geonamesCities1000"
	DataSourceGeonamesCountry DataSourceID = "geonamesCountryInfo"
	DataSourceGeonamesAdmin1  DataSourceID = "geonamesAdmin1Codes"
	DataSourceMaxMindCities   DataSourceID = "maxmindWorldCities"
)

// DataSource defines a data source for geocoding data.
type DataSource struct {
	URL  string       // Download URL
	Path string       // Local file path
	ID   DataSourceID // Identifier for processing logic
}

// dataSetFiles defines the data sources for geocoding data. MaxMind is
// listed with no URL: it is an optional supplemental source that is never
// downloaded, only picked up if a caller places it at the configured path —
// downloadDataSets skips any entry with an empty URL.
var dataSetFiles = []DataSource{
	{URL: "https://download.geonames.org/export/dump/cities1000.zip", Path: "cities1000.zip", ID: DataSourceGeonamesCities},
	{URL: "https://download.geonames.org/export/dump/countryInfo.txt", Path: "countryInfo.txt", ID: DataSourceGeonamesCountry},
	{URL: "https://download.geonames.org/export/dump/admin1CodesASCII.txt", Path: "admin1CodesASCII.txt", ID: DataSourceGeonamesAdmin1},
	{URL: "", Path: "worldcitiespop.txt.gz", ID: DataSourceMaxMindCities},
}

// downloadDataSets downloads the raw data files if they don't exist locally.
// Thread-safe: uses a mutex to prevent race conditions when multiple
// goroutines call NewGeobed() concurrently with missing cache files.
func (g *GeoBed) downloadDataSets() error {
	downloadMu.Lock()
	defer downloadMu.Unlock()

	// WHY 0755: restrictive permissions (rwxr-xr-x) rather than world-writable
	// (0777), to avoid other users on a shared host tampering with source data.
	if err := os.MkdirAll(g.config.DataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	for _, f := range dataSetFiles {
		if f.URL == "" {
			continue // optional, caller-supplied only (e.g. MaxMind)
		}
		localPath := filepath.Join(g.config.DataDir, filepath.Base(f.Path))
		if _, err := os.Stat(localPath); err == nil {
			continue // re-check inside the lock: another goroutine may have won the race
		}
		if err := g.downloadFile(f.URL, localPath); err != nil {
			return fmt.Errorf("downloading %s: %w", f.ID, err)
		}
	}
	return nil
}

func (g *GeoBed) downloadFile(url, path string) error {
	resp, err := g.config.HTTPClient.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}

	success := false
	defer func() {
		out.Close()
		if !success {
			os.Remove(path) // best-effort cleanup of a partial file
		}
	}()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing file %s: %w", path, err)
	}
	success = true
	return nil
}

// loadDataSets parses the raw data files and populates the GeoBed instance,
// then sorts the corpus and builds the name index.
func (g *GeoBed) loadDataSets() error {
	// Dedup index is local (not package-level) to avoid data races when
	// multiple goroutines call NewGeobed() concurrently.
	locationDedupeIdx := make(map[string]bool)

	for _, f := range dataSetFiles {
		localPath := filepath.Join(g.config.DataDir, filepath.Base(f.Path))
		switch f.ID {
		case DataSourceGeonamesCities:
			if err := g.loadGeonamesCities(localPath); err != nil {
				return fmt.Errorf("loading geonames cities: %w", err)
			}
		case DataSourceMaxMindCities:
			// Optional supplemental data; if absent it is skipped, not an
			// error.
			if err := g.loadMaxMindCities(localPath, locationDedupeIdx); err != nil {
				g.config.Logger.Sugar().Debugf("MaxMind cities not loaded (optional): %v", err)
			}
		case DataSourceGeonamesCountry:
			if err := g.loadGeonamesCountryInfo(localPath); err != nil {
				return fmt.Errorf("loading geonames country info: %w", err)
			}
		}
	}

	sort.Sort(g.Cities)
	g.nameIndex = buildNameIndex(g.Cities)
	return nil
}

func (g *GeoBed) loadGeonamesCities(path string) error {
	rz, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening zip file: %w", err)
	}
	defer rz.Close()

	for _, uF := range rz.File {
		// Not vulnerable to Zip Slip (CWE-22): the archive content is only
		// scanned in memory via bufio.Scanner, never extracted to disk.
		if err := g.processZipEntry(uF); err != nil {
			return err
		}
	}
	return nil
}

// processZipEntry reads a single file entry from a zip archive. Extracted
// to a helper to avoid a defer-in-loop.
func (g *GeoBed) processZipEntry(uF *zip.File) error {
	fi, err := uF.Open()
	if err != nil {
		return fmt.Errorf("opening file in zip: %w", err)
	}
	defer fi.Close()

	scanner := bufio.NewScanner(fi)
	scanner.Split(bufio.ScanLines)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), "\t", 19)
		if len(fields) != 19 {
			continue
		}

		// Parse coordinates with error handling to avoid "Null Island"
		// (0,0) entries from malformed data.
		lat, errLat := strconv.ParseFloat(fields[4], 32)
		lng, errLng := strconv.ParseFloat(fields[5], 32)
		if errLat != nil || errLng != nil {
			continue
		}
		pop, _ := strconv.Atoi(fields[14]) // population of 0 is acceptable

		c := GeobedCity{
			City:       strings.Trim(fields[1], " "),
			CityAlt:    fields[3],
			country:    internCountry(fields[8]),
			region:     internRegion(fields[10]),
			Latitude:   float32(lat),
			Longitude:  float32(lng),
			Population: int32(pop),
		}

		if len(c.City) > 0 {
			g.Cities = append(g.Cities, c)
		}
	}
	return nil
}

func (g *GeoBed) loadMaxMindCities(path string, locationDedupeIdx map[string]bool) error {
	// maxMindCityDedupeIdx is local to avoid data races in concurrent loads.
	maxMindCityDedupeIdx := make(map[string][]string)

	fi, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer fi.Close()

	fz, err := gzip.NewReader(fi)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer fz.Close()

	scanner := bufio.NewScanner(fz)
	scanner.Split(bufio.ScanLines)

	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ",")
		if len(fields) == 7 {
			var b bytes.Buffer
			b.WriteString(fields[0])
			b.WriteString(fields[3])
			b.WriteString(fields[1])
			maxMindCityDedupeIdx[b.String()] = fields
		}
	}

	for _, fields := range maxMindCityDedupeIdx {
		if fields[0] == "" || fields[0] == "0" || fields[2] == "AccentCity" {
			continue
		}

		pop, _ := strconv.Atoi(fields[4])
		lat, errLat := strconv.ParseFloat(fields[5], 32)
		lng, errLng := strconv.ParseFloat(fields[6], 32)
		if errLat != nil || errLng != nil {
			continue
		}

		cn := strings.Trim(fields[2], " ")
		cn = strings.Trim(cn, "( )")
		if strings.Contains(cn, "!") || strings.Contains(cn, "@") {
			continue
		}

		dedupeKey := fmt.Sprintf("%.4f,%.4f", lat, lng)
		if _, ok := locationDedupeIdx[dedupeKey]; ok {
			continue
		}
		locationDedupeIdx[dedupeKey] = true

		c := GeobedCity{
			City:       cn,
			country:    internCountry(toUpper(fields[0])),
			region:     internRegion(fields[3]),
			Latitude:   float32(lat),
			Longitude:  float32(lng),
			Population: int32(pop),
		}

		if len(c.City) > 0 && c.country != 0 {
			g.Cities = append(g.Cities, c)
		}
	}
	return nil
}

func (g *GeoBed) loadGeonamesCountryInfo(path string) error {
	fi, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer fi.Close()

	scanner := bufio.NewScanner(fi)
	scanner.Split(bufio.ScanLines)

	for scanner.Scan() {
		t := scanner.Text()
		if len(t) == 0 || t[0] == '#' {
			continue
		}

		fields := strings.SplitN(t, "\t", 19)
		if len(fields) != 19 || fields[0] == "" || fields[0] == "0" {
			continue
		}

		isoNumeric, _ := strconv.Atoi(fields[2])
		area, _ := strconv.Atoi(fields[6])
		pop, _ := strconv.Atoi(fields[7])
		gid, _ := strconv.Atoi(fields[16])

		g.Countries = append(g.Countries, CountryInfo{
			ISO:                fields[0],
			ISO3:               fields[1],
			ISONumeric:         int16(isoNumeric),
			Fips:               fields[3],
			Country:            fields[4],
			Capital:            fields[5],
			Area:               int32(area),
			Population:         int32(pop),
			Continent:          fields[8],
			Tld:                fields[9],
			CurrencyCode:       fields[10],
			CurrencyName:       fields[11],
			Phone:              fields[12],
			PostalCodeFormat:   fields[13],
			PostalCodeRegex:    fields[14],
			Languages:          fields[15],
			GeonameId:          int32(gid),
			Neighbours:         fields[17],
			EquivalentFipsCode: fields[18],
		})
	}
	return nil
}
