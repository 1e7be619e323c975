// Package aggregate sums threat counts per resolved location.
//
// Two records belong to the same location if their coordinates are equal
// bit for bit, with no rounding and no distance threshold. A city name is
// taken from the first record of a location.
package aggregate

import (
	"math"
	"sort"

	"github.com/9seconds/threatmap/geo"
)

// Key identifies a location.
type Key struct {
	latitude  uint64
	longitude uint64
}

// NewKey makes a key of the given coordinates.
func NewKey(latitude, longitude float64) Key {
	return Key{
		latitude:  math.Float64bits(latitude),
		longitude: math.Float64bits(longitude),
	}
}

// Row is a total count of threats for one location.
type Row struct {
	City       string
	TotalCount uint64
	Latitude   float64
	Longitude  float64
}

// Aggregator accumulates counts by location. It is not safe for
// concurrent use: a single goroutine has to feed it.
type Aggregator struct {
	index   map[Key]int
	rows    []Row
	skipped int
	total   uint64
}

// Add adds count to the location.
func (a *Aggregator) Add(location geo.Location, count uint64) {
	key := NewKey(location.Latitude, location.Longitude)
	a.total += count

	if idx, ok := a.index[key]; ok {
		a.rows[idx].TotalCount += count
		return
	}

	a.index[key] = len(a.rows)
	a.rows = append(a.rows, Row{
		City:       location.City,
		TotalCount: count,
		Latitude:   location.Latitude,
		Longitude:  location.Longitude,
	})
}

// Skip notes a record which has no location.
func (a *Aggregator) Skip() {
	a.skipped++
}

// Len returns a number of distinct locations.
func (a *Aggregator) Len() int {
	return len(a.rows)
}

// Skipped returns a number of skipped records.
func (a *Aggregator) Skipped() int {
	return a.skipped
}

// Total returns a sum of all added counts.
func (a *Aggregator) Total() uint64 {
	return a.total
}

// Rows returns one row per location, the largest total first. Rows with
// equal totals keep the order in which their locations were first seen.
func (a *Aggregator) Rows() []Row {
	rv := make([]Row, len(a.rows))
	copy(rv, a.rows)

	sort.SliceStable(rv, func(i, j int) bool {
		return rv[i].TotalCount > rv[j].TotalCount
	})

	return rv
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{
		index: map[Key]int{},
		rows:  []Row{},
	}
}
