package geo

import (
	"net"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	sypex "gopkg.in/night-codes/go-sypexgeo.v1"

	"github.com/juju/errors"
)

// Sypex is an Oracle backed by SypexGeo City (SxGeoCity .dat) file. Names
// are taken in English.
type Sypex struct {
	db     *sypex.SxGEO
	dbLock sync.Mutex
}

// Lookup implements Oracle. SypexGeo knows IPv4 addresses only.
func (sx *Sypex) Lookup(ip net.IP) (*OracleRecord, error) {
	sx.dbLock.Lock()
	defer sx.dbLock.Unlock()

	if sx.db == nil {
		return nil, ErrDatabaseUnavailable
	}

	if ip.To4() == nil {
		return nil, ErrNotFound
	}

	// The library reports unknown ranges as errors.
	info, err := sx.db.GetCityFull(ip.String())
	if err != nil {
		return nil, errors.Annotatef(ErrNotFound, "%v", err)
	}

	return sypexRecord(info)
}

// Close implements Oracle. SypexGeo keeps the whole file in memory, so
// this only releases it.
func (sx *Sypex) Close() error {
	sx.dbLock.Lock()
	defer sx.dbLock.Unlock()

	sx.db = nil

	return nil
}

// Ranges known only by their country come with a city of id 0 which
// carries coordinates of the country center. Those are never used as a
// location.
func sypexRecord(info map[string]interface{}) (*OracleRecord, error) {
	country, _ := info["country"].(map[string]interface{})
	if iso, _ := country["iso"].(string); iso == "" {
		return nil, ErrNotFound
	}

	rv := &OracleRecord{}

	city, ok := info["city"].(map[string]interface{})
	if !ok || sypexID(city["id"]) == 0 {
		return rv, nil
	}

	if name, _ := city["name_en"].(string); name != "" {
		rv.City = &name
	}

	lat, latOk := sypexFloat(city["lat"])
	lon, lonOk := sypexFloat(city["lon"])
	if latOk && lonOk && (lat != 0 || lon != 0) {
		rv.Latitude = &lat
		rv.Longitude = &lon
	}

	return rv, nil
}

func sypexID(value interface{}) uint64 {
	switch v := value.(type) {
	case uint8:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint32:
		return uint64(v)
	case int:
		if v > 0 {
			return uint64(v)
		}
	}

	return 0
}

func sypexFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}

	return 0, false
}

// OpenSypex opens SypexGeo City file for reading.
func OpenSypex(path string) (rv *Sypex, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			rv = nil
			err = errors.Annotatef(ErrDatabaseUnavailable, "cannot open %s: %v", path, rec)
		}
	}()

	if _, err := os.Stat(path); err != nil {
		return nil, errors.Annotatef(ErrDatabaseUnavailable, "cannot open %s: %v", path, err)
	}

	db := sypex.New(path)

	log.WithFields(log.Fields{
		"path": path,
	}).Debug("Opened sypex database.")

	return &Sypex{db: &db}, nil
}
