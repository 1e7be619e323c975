// Package geotest builds small MaxMind City databases for tests.
package geotest

import (
	"net"
	"os"
	"testing"

	"github.com/maxmind/mmdbwriter"
	"github.com/maxmind/mmdbwriter/mmdbtype"
)

// Network is a single network of a test database. Empty strings and nil
// coordinates are not written at all.
type Network struct {
	CIDR        string
	City        string
	CityDE      string
	CountryCode string
	Country     string
	Latitude    *float64
	Longitude   *float64
}

// Networks is a default content of a test database.
var Networks = []Network{
	{
		CIDR:        "81.2.69.0/24",
		City:        "London",
		CountryCode: "GB",
		Country:     "United Kingdom",
		Latitude:    Float(51.5142),
		Longitude:   Float(-0.0931),
	},
	{
		CIDR:        "8.8.8.0/24",
		City:        "Mountain View",
		CityDE:      "Mountain View",
		CountryCode: "US",
		Country:     "United States",
		Latitude:    Float(37.386),
		Longitude:   Float(-122.0838),
	},
	{
		CIDR:        "8.8.4.0/24",
		City:        "Mountain View",
		CountryCode: "US",
		Country:     "United States",
		Latitude:    Float(37.386),
		Longitude:   Float(-122.0838),
	},
	{
		CIDR:        "89.160.20.0/24",
		City:        "Linköping",
		CountryCode: "SE",
		Country:     "Sweden",
		Latitude:    Float(58.4167),
		Longitude:   Float(15.6167),
	},
	{
		CIDR:        "2.125.160.0/24",
		CountryCode: "GB",
		Country:     "United Kingdom",
		Latitude:    Float(51.5),
		Longitude:   Float(-0.13),
	},
	{
		CIDR:        "67.43.156.0/24",
		CountryCode: "BT",
		Country:     "Bhutan",
	},
	{
		CIDR:        "175.16.199.0/24",
		City:        "Changchun",
		CityDE:      "Changchun (Stadt)",
		CountryCode: "CN",
		Country:     "China",
		Latitude:    Float(43.88),
	},
	{
		CIDR:        "2001:218::/32",
		City:        "Tokyo",
		CountryCode: "JP",
		Country:     "Japan",
		Latitude:    Float(35.685),
		Longitude:   Float(139.7514),
	},
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// WriteCityDatabase writes a GeoLite2-City compatible database with the
// given networks to path.
func WriteCityDatabase(tb testing.TB, path string, networks []Network) {
	tb.Helper()

	writer, err := mmdbwriter.New(mmdbwriter.Options{
		DatabaseType: "GeoLite2-City",
		RecordSize:   24,
	})
	if err != nil {
		tb.Fatalf("cannot create database writer: %v", err)
	}

	for _, v := range networks {
		_, network, err := net.ParseCIDR(v.CIDR)
		if err != nil {
			tb.Fatalf("incorrect network %s: %v", v.CIDR, err)
		}

		if err := writer.Insert(network, v.record()); err != nil {
			tb.Fatalf("cannot insert network %s: %v", v.CIDR, err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		tb.Fatalf("cannot create %s: %v", path, err)
	}
	defer file.Close() // nolint

	if _, err := writer.WriteTo(file); err != nil {
		tb.Fatalf("cannot write database: %v", err)
	}
}

func (n Network) record() mmdbtype.Map {
	rv := mmdbtype.Map{}

	if n.City != "" {
		names := mmdbtype.Map{"en": mmdbtype.String(n.City)}
		if n.CityDE != "" {
			names["de"] = mmdbtype.String(n.CityDE)
		}

		rv["city"] = mmdbtype.Map{"names": names}
	}

	if n.CountryCode != "" {
		rv["country"] = mmdbtype.Map{
			"iso_code": mmdbtype.String(n.CountryCode),
			"names":    mmdbtype.Map{"en": mmdbtype.String(n.Country)},
		}
	}

	location := mmdbtype.Map{}
	if n.Latitude != nil {
		location["latitude"] = mmdbtype.Float64(*n.Latitude)
	}
	if n.Longitude != nil {
		location["longitude"] = mmdbtype.Float64(*n.Longitude)
	}
	if len(location) > 0 {
		location["accuracy_radius"] = mmdbtype.Uint16(100)
		location["time_zone"] = mmdbtype.String("UTC")
		rv["location"] = location
	}

	return rv
}
