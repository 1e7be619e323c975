package geo

import (
	"net"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	"github.com/juju/errors"
)

const (
	// DefaultUnknownCity replaces a city name for addresses which have
	// coordinates but no city.
	DefaultUnknownCity = "Unknown"

	// DefaultCacheSize is a number of addresses which outcomes are
	// remembered by Resolver.
	DefaultCacheSize = 4096
)

// Location is a resolved location of IP address.
type Location struct {
	City      string
	Latitude  float64
	Longitude float64
}

// CacheStats counts cache hits and misses of Resolver.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

type cacheIface interface {
	Add(key, value interface{}) bool
	Get(key interface{}) (interface{}, bool)
}

type resolveOutcome struct {
	location Location
	err      error
}

// Resolver maps IP addresses to locations using the Oracle. It is safe
// for concurrent use if the Oracle is.
type Resolver struct {
	cacheHits   uint64
	cacheMisses uint64
	oracle      Oracle
	unknownCity string
	cache       cacheIface
}

// Resolve returns a location of ip or ErrLookupMiss if the database has
// no coordinates for it.
func (r *Resolver) Resolve(ip net.IP) (Location, error) {
	if r.cache == nil {
		return r.resolve(ip)
	}

	key := string(ip.To16())

	if item, ok := r.cache.Get(key); ok {
		atomic.AddUint64(&r.cacheHits, 1)
		outcome := item.(*resolveOutcome)

		return outcome.location, outcome.err
	}

	atomic.AddUint64(&r.cacheMisses, 1)

	location, err := r.resolve(ip)
	r.cache.Add(key, &resolveOutcome{location: location, err: err})

	return location, err
}

func (r *Resolver) resolve(ip net.IP) (Location, error) {
	rv := Location{}

	record, err := r.oracle.Lookup(ip)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			log.WithFields(log.Fields{
				"ip":  ip.String(),
				"err": err,
			}).Warn("Cannot lookup address, skip it.")
		}

		return rv, errors.Annotatef(ErrLookupMiss, "%s", ip)
	}

	if record.Latitude == nil || record.Longitude == nil {
		log.WithFields(log.Fields{
			"ip": ip.String(),
		}).Debug("Address has no coordinates.")

		return rv, errors.Annotatef(ErrLookupMiss, "%s has no coordinates", ip)
	}

	rv.Latitude = *record.Latitude
	rv.Longitude = *record.Longitude

	if record.City != nil && *record.City != "" {
		rv.City = *record.City
	} else {
		rv.City = r.unknownCity
	}

	return rv, nil
}

// CacheStats returns cache counters collected so far.
func (r *Resolver) CacheStats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadUint64(&r.cacheHits),
		Misses: atomic.LoadUint64(&r.cacheMisses),
	}
}

// NewResolver creates a resolver on top of oracle. An empty unknownCity
// means DefaultUnknownCity, cacheSize 0 or less disables caching.
func NewResolver(oracle Oracle, unknownCity string, cacheSize int) (*Resolver, error) {
	if unknownCity == "" {
		unknownCity = DefaultUnknownCity
	}

	rv := &Resolver{
		oracle:      oracle,
		unknownCity: unknownCity,
	}

	if cacheSize > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, errors.Annotate(err, "cannot create cache")
		}
		rv.cache = cache
	}

	return rv, nil
}
