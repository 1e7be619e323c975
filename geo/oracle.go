package geo

import (
	"net"

	"github.com/juju/errors"
)

const (
	// BackendMaxMind reads MaxMind DB files (GeoLite2/GeoIP2 City and
	// compatible).
	BackendMaxMind = "maxmind"

	// BackendIP2Location reads IP2Location BIN files with coordinates
	// (DB5 and higher).
	BackendIP2Location = "ip2location"

	// BackendSypex reads SypexGeo City files (SxGeoCity .dat).
	BackendSypex = "sypex"

	// DefaultLanguage is a language of city names used if the requested
	// one is missing.
	DefaultLanguage = "en"
)

// OracleRecord is a raw answer of the geolocation database. Any field can
// be absent.
type OracleRecord struct {
	City      *string
	Latitude  *float64
	Longitude *float64
}

// Oracle is an opened read-only geolocation database.
type Oracle interface {
	// Lookup returns ErrNotFound if the database knows nothing about ip.
	Lookup(ip net.IP) (*OracleRecord, error)
	Close() error
}

// Backends lists names which are accepted by Open.
func Backends() []string {
	return []string{BackendMaxMind, BackendIP2Location, BackendSypex}
}

// Open opens a database file with the given backend. language is a
// preferred language of city names, only MaxMind databases have
// localized names.
func Open(backend, path, language string) (Oracle, error) {
	switch backend {
	case BackendMaxMind:
		db, err := OpenMaxMind(path, language)
		if err != nil {
			return nil, err
		}

		return db, nil
	case BackendIP2Location:
		db, err := OpenIP2Location(path)
		if err != nil {
			return nil, err
		}

		return db, nil
	case BackendSypex:
		db, err := OpenSypex(path)
		if err != nil {
			return nil, err
		}

		return db, nil
	}

	return nil, errors.Annotatef(ErrUnknownBackend, "%q", backend)
}
