package geo

import (
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/juju/errors"
)

// Details is everything a MaxMind city database knows about an address.
type Details struct {
	City           string
	CountryCode    string
	Country        string
	Latitude       float64
	Longitude      float64
	AccuracyRadius uint16
	TimeZone       string
}

// Describe looks ip up in MaxMind City database at path. It is meant for
// troubleshooting single addresses, not for batch use.
func Describe(path string, ip net.IP, language string) (Details, error) {
	rv := Details{}

	db, err := geoip2.Open(path)
	if err != nil {
		return rv, errors.Annotatef(ErrDatabaseUnavailable, "cannot open %s: %v", path, err)
	}
	defer db.Close() // nolint

	city, err := db.City(ip)
	if err != nil {
		return rv, errors.Annotatef(err, "cannot lookup %s", ip)
	}

	if language == "" {
		language = DefaultLanguage
	}

	rv.City = localizedName(city.City.Names, language)
	rv.Country = localizedName(city.Country.Names, language)
	rv.CountryCode = city.Country.IsoCode
	rv.Latitude = city.Location.Latitude
	rv.Longitude = city.Location.Longitude
	rv.AccuracyRadius = city.Location.AccuracyRadius
	rv.TimeZone = city.Location.TimeZone

	return rv, nil
}

func localizedName(names map[string]string, language string) string {
	if name, ok := names[language]; ok && name != "" {
		return name
	}

	return names[DefaultLanguage]
}
