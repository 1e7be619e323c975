package geo

import (
	"net"
	"strings"
	"sync"

	"github.com/oschwald/maxminddb-golang"
	log "github.com/sirupsen/logrus"

	"github.com/juju/errors"
)

// Location fields are pointers because a record may have a city but no
// coordinates and vice versa.
type maxmindLookupResult struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Location struct {
		Latitude  *float64 `maxminddb:"latitude"`
		Longitude *float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// MaxMind is an Oracle backed by MaxMind DB file.
type MaxMind struct {
	language     string
	dbReader     *maxminddb.Reader
	dbReaderLock sync.RWMutex
}

// Lookup implements Oracle.
func (m *MaxMind) Lookup(ip net.IP) (*OracleRecord, error) {
	m.dbReaderLock.RLock()
	defer m.dbReaderLock.RUnlock()

	if m.dbReader == nil {
		return nil, ErrDatabaseUnavailable
	}

	record := maxmindLookupResult{}

	_, ok, err := m.dbReader.LookupNetwork(ip, &record)
	if err != nil {
		return nil, errors.Annotate(err, "cannot lookup this ip address")
	}

	if !ok {
		return nil, ErrNotFound
	}

	rv := &OracleRecord{
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
	}

	if name := localizedName(record.City.Names, m.language); name != "" {
		rv.City = &name
	}

	return rv, nil
}

// Close implements Oracle. It is safe to call it several times.
func (m *MaxMind) Close() error {
	m.dbReaderLock.Lock()
	defer m.dbReaderLock.Unlock()

	if m.dbReader == nil {
		return nil
	}

	err := m.dbReader.Close()
	m.dbReader = nil

	return errors.Annotate(err, "cannot close maxmind database")
}

// OpenMaxMind opens MaxMind DB file for reading.
func OpenMaxMind(path, language string) (*MaxMind, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, errors.Annotatef(ErrDatabaseUnavailable, "cannot open %s: %v", path, err)
	}

	if !strings.Contains(reader.Metadata.DatabaseType, "City") {
		log.WithFields(log.Fields{
			"path":          path,
			"database_type": reader.Metadata.DatabaseType,
		}).Warn("Database has no city data, most of addresses will be skipped.")
	}

	if language == "" {
		language = DefaultLanguage
	}

	log.WithFields(log.Fields{
		"path":          path,
		"database_type": reader.Metadata.DatabaseType,
		"build_epoch":   reader.Metadata.BuildEpoch,
	}).Debug("Opened maxmind database.")

	return &MaxMind{language: language, dbReader: reader}, nil
}
