package geobed

import (
	"fmt"
	"sync"
)

// Package-level lookup tables for memory-efficient string storage.
//
// Architecture Note: These tables are global (not per-instance) because GeobedCity
// methods like Country() and Region() cannot access instance data - they're called
// on value types that don't have a reference back to the GeoBed instance. This design
// allows the memory-efficient indexed storage while maintaining a clean API.
//
// Thread Safety: Each stringInterner has its own RWMutex protecting all access:
//   - Writes (interning new values) acquire the write lock
//   - Reads (lookup by index) acquire the read lock
//   - Initialization uses sync.Once for one-time setup
//
// Memory Efficiency: By storing string indexes (uint16) instead of strings in each
// GeobedCity, we save two string headers per city. With ~165K cities, that adds up.

// stringInterner provides thread-safe string interning with integer indexes.
// T must be an unsigned integer type (uint8 or uint16).
type stringInterner[T ~uint8 | ~uint16] struct {
	mu     sync.RWMutex
	lookup []string     // index -> string
	index  map[string]T // string -> index
}

// newStringInterner creates a new string interner with the given initial capacity.
// Index 0 is reserved for the empty string.
func newStringInterner[T ~uint8 | ~uint16](capacity int) *stringInterner[T] {
	si := &stringInterner[T]{
		lookup: make([]string, 1, capacity), // index 0 = ""
		index:  make(map[string]T, capacity),
	}
	si.lookup[0] = ""
	si.index[""] = 0
	return si
}

// intern returns the index for a string, creating it if needed.
// Thread-safe: uses double-checked locking pattern.
// Panics if the interner capacity is exceeded (should never happen with uint16
// and real-world datasets, but protects against silent data corruption).
func (si *stringInterner[T]) intern(s string) T {
	// Fast path: check with read lock
	si.mu.RLock()
	if idx, ok := si.index[s]; ok {
		si.mu.RUnlock()
		return idx
	}
	si.mu.RUnlock()

	// Slow path: acquire write lock and check again
	si.mu.Lock()
	defer si.mu.Unlock()
	if idx, ok := si.index[s]; ok {
		return idx
	}

	// Overflow protection: check if we've exceeded the type's capacity.
	// For uint16, maxVal=65535. Index 0 is reserved for "", so usable
	// indices are 1..65535, allowing 65535 unique non-empty strings.
	maxVal := int(^T(0))
	if len(si.lookup) > maxVal {
		panic(fmt.Sprintf("stringInterner capacity exceeded: %d entries (max %d)", len(si.lookup), maxVal))
	}

	idx := T(len(si.lookup))
	si.lookup = append(si.lookup, s)
	si.index[s] = idx
	return idx
}

// get returns the string for an index, or empty string if out of bounds.
func (si *stringInterner[T]) get(idx T) string {
	si.mu.RLock()
	defer si.mu.RUnlock()
	if int(idx) < len(si.lookup) {
		return si.lookup[idx]
	}
	return ""
}

// count returns the number of interned strings, including the reserved empty entry.
func (si *stringInterner[T]) count() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return len(si.lookup)
}

var (
	// WHY uint16 for both: Geonames carries ~252 countries and several thousand
	// admin regions. uint8 (max 255) is too tight a fit for countries and far too
	// tight for regions; uint16 gives ample headroom at minimal struct-alignment cost.
	countryInterner *stringInterner[uint16]
	regionInterner  *stringInterner[uint16]
	lookupOnce      sync.Once
)

// initLookupTables initializes the country and region string interners.
func initLookupTables() {
	countryInterner = newStringInterner[uint16](300)  // ~252 countries in Geonames
	regionInterner = newStringInterner[uint16](8192)   // ~4000+ admin regions worldwide
}

// internCountry returns the index for a country code, creating it if needed.
func internCountry(code string) uint16 {
	return countryInterner.intern(code)
}

// internRegion returns the index for a region code, creating it if needed.
func internRegion(code string) uint16 {
	return regionInterner.intern(code)
}

// CountryCount returns the number of unique country codes in the lookup table.
func CountryCount() int {
	return countryInterner.count()
}

// RegionCount returns the number of unique region codes in the lookup table.
func RegionCount() int {
	return regionInterner.count()
}
