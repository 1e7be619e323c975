package geo

import "github.com/juju/errors"

var (
	// ErrDatabaseUnavailable is returned if a geolocation database
	// cannot be opened or has been closed already.
	ErrDatabaseUnavailable = errors.New("geolocation database is unavailable")

	// ErrNotFound is returned by an Oracle if it has no record for the
	// address.
	ErrNotFound = errors.New("address is not found in the database")

	// ErrLookupMiss is returned by Resolver if an address has no usable
	// coordinates. Records with such an address are skipped, not fatal.
	ErrLookupMiss = errors.New("address has no known location")

	// ErrUnknownBackend is returned if the name of a database backend is
	// not supported.
	ErrUnknownBackend = errors.New("unknown database backend")
)
