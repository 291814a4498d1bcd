// Command validate-cache checks an already-built geobed cache against a
// handful of known cities and coordinates. It loads the corpus through
// geobed.NewGeobed, so a cache that is present and readable is checked as
// is, while a missing or unreadable cache is first rebuilt from the raw data
// sets (downloading them if needed) and the rebuilt corpus is checked.
//
// Usage:
//
//	go run ./cmd/validate-cache
//
// Useful in CI to catch a stale committed cache separately from
// cmd/update-cache.
package main

import (
	"fmt"
	"os"

	"github.com/geobed-go/geobed"
)

func main() {
	fmt.Println("Validating geobed cache...")

	if err := geobed.ValidateCache(); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("OK")
}
