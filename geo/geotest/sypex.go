package geotest

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"
	"strings"
	"testing"
)

// SypexCity is a city of the test SypexGeo database. Addresses of
// 93.73.0.0 - 93.73.255.255 resolve to it, the rest of 93.0.0.0/8 is
// known only as its country.
var SypexCity = struct {
	ID        uint32
	Name      string
	NameRU    string
	CountryID uint8
	Latitude  int32
	Longitude int32
}{
	ID:        703448,
	Name:      "Kyiv",
	NameRU:    "Киев",
	CountryID: 222,
	Latitude:  5045466,
	Longitude: 3052380,
}

var sypexPacks = []string{
	"T:id/c2:iso/n2:lat/n2:lon/b:name_ru/b:name_en",
	"M:id/b:name_ru/b:name_en",
	"M:id/M:region_seek/T:country_id/N5:lat/N5:lon/b:name_ru/b:name_en",
}

// WriteSypexDatabase writes a SypexGeo 2.2 City file (UTF-8) with a single
// country (UA) and a single city (SypexCity) to path.
func WriteSypexDatabase(tb testing.TB, path string) {
	tb.Helper()

	country := &bytes.Buffer{}
	country.WriteByte(SypexCity.CountryID)
	country.WriteString("UA")
	binary.Write(country, binary.LittleEndian, int16(4900)) // nolint: errcheck
	binary.Write(country, binary.LittleEndian, int16(3200)) // nolint: errcheck
	country.WriteString("Украина\x00Ukraine\x00")

	city := &bytes.Buffer{}
	city.Write(uint24LE(SypexCity.ID))
	city.Write(uint24LE(0))
	city.WriteByte(SypexCity.CountryID)
	binary.Write(city, binary.LittleEndian, SypexCity.Latitude)  // nolint: errcheck
	binary.Write(city, binary.LittleEndian, SypexCity.Longitude) // nolint: errcheck
	city.WriteString(SypexCity.NameRU + "\x00" + SypexCity.Name + "\x00")

	// Countries are addressed by offsets below the country catalog size,
	// cities right after them. Both live in the cities block.
	countrySeek := uint32(0)
	citySeek := uint32(country.Len())
	cities := append(append([]byte{}, country.Bytes()...), city.Bytes()...)

	// Ranges are sorted by their lower 3 bytes within a first byte.
	ranges := [][2]uint32{
		{0x000000, countrySeek},
		{0x490000, citySeek},
		{0x4a0000, countrySeek},
	}

	const (
		firstByte  = 93
		byteIndex  = 224
		idLen      = 3
		blocksItem = 8
	)

	pack := strings.Join(sypexPacks, "\x00")

	buf := &bytes.Buffer{}
	buf.WriteString("SxG")
	buf.WriteByte(22)
	writeBE(buf, uint32(1700000000))
	buf.WriteByte(2)
	buf.WriteByte(0)
	buf.WriteByte(byteIndex)
	writeBE(buf, uint16(0))
	writeBE(buf, uint16(blocksItem))
	writeBE(buf, uint32(len(ranges)))
	buf.WriteByte(idLen)
	writeBE(buf, uint16(0))
	writeBE(buf, uint16(city.Len()))
	writeBE(buf, uint32(0))
	writeBE(buf, uint32(len(cities)))
	writeBE(buf, uint16(country.Len()))
	writeBE(buf, uint32(country.Len()))
	writeBE(buf, uint16(len(pack)))
	buf.WriteString(pack)

	for i := 0; i < byteIndex; i++ {
		if i < firstByte {
			writeBE(buf, uint32(0))
		} else {
			writeBE(buf, uint32(len(ranges)))
		}
	}

	for _, v := range ranges {
		buf.Write(uint24BE(v[0]))
		buf.Write(uint24BE(v[1]))
	}

	buf.Write(cities)
	buf.Write(country.Bytes())

	if err := ioutil.WriteFile(path, buf.Bytes(), 0644); err != nil {
		tb.Fatalf("cannot write database: %v", err)
	}
}

func writeBE(buf *bytes.Buffer, value interface{}) {
	binary.Write(buf, binary.BigEndian, value) // nolint: errcheck
}

func uint24BE(value uint32) []byte {
	return []byte{byte(value >> 16), byte(value >> 8), byte(value)}
}

func uint24LE(value uint32) []byte {
	return []byte{byte(value), byte(value >> 8), byte(value >> 16)}
}
