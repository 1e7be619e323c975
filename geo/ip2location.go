package geo

import (
	"net"
	"strings"
	"sync"

	"github.com/ip2location/ip2location-go/v9"
	log "github.com/sirupsen/logrus"

	"github.com/juju/errors"
)

// IP2Location is an Oracle backed by IP2Location BIN file.
type IP2Location struct {
	db     *ip2location.DB
	dbLock sync.Mutex
}

// Lookup implements Oracle.
func (i2l *IP2Location) Lookup(ip net.IP) (*OracleRecord, error) {
	i2l.dbLock.Lock()
	defer i2l.dbLock.Unlock()

	if i2l.db == nil {
		return nil, ErrDatabaseUnavailable
	}

	result, err := i2l.db.Get_all(ip.String())
	if err != nil {
		return nil, errors.Annotate(err, "cannot lookup this ip address")
	}

	return ip2locationRecord(result)
}

// Close implements Oracle. It is safe to call it several times.
func (i2l *IP2Location) Close() error {
	i2l.dbLock.Lock()
	defer i2l.dbLock.Unlock()

	if i2l.db != nil {
		i2l.db.Close()
		i2l.db = nil
	}

	return nil
}

// Unassigned ranges are stored with "-" values and (0, 0) coordinates.
// Fields missing from the BIN file are reported with a text that says the
// parameter is unavailable.
func ip2locationRecord(result ip2location.IP2Locationrecord) (*OracleRecord, error) {
	if !ip2locationKnown(result.Country_short) {
		return nil, ErrNotFound
	}

	rv := &OracleRecord{}

	if ip2locationKnown(result.City) {
		city := result.City
		rv.City = &city
	}

	if result.Latitude != 0 || result.Longitude != 0 {
		lat := float64(result.Latitude)
		lon := float64(result.Longitude)
		rv.Latitude = &lat
		rv.Longitude = &lon
	}

	return rv, nil
}

func ip2locationKnown(value string) bool {
	lowered := strings.ToLower(value)

	return value != "" &&
		value != "-" &&
		!strings.Contains(lowered, "unavailable") &&
		!strings.Contains(lowered, "invalid")
}

// OpenIP2Location opens IP2Location BIN file for reading.
func OpenIP2Location(path string) (*IP2Location, error) {
	db, err := ip2location.OpenDB(path)
	if err != nil {
		return nil, errors.Annotatef(ErrDatabaseUnavailable, "cannot open %s: %v", path, err)
	}

	log.WithFields(log.Fields{
		"path": path,
	}).Debug("Opened ip2location database.")

	return &IP2Location{db: db}, nil
}
