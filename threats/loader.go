package threats

import (
	"bufio"
	"io"
	"io/ioutil"
	"net"
	"os"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"

	"github.com/juju/errors"
)

var (
	// ErrMalformedInput is returned if the document cannot be decoded or
	// its arrays do not pair up.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvalidAddress is returned if one of the sources is not an IP
	// address.
	ErrInvalidAddress = errors.New("invalid address")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is a single threat source with its occurrence count.
type Record struct {
	Source string
	IP     net.IP
	Count  uint64
}

// Counts are pointers so that null elements are not mistaken for zeros.
type threatSources struct {
	Count  []*uint64 `json:"Count"`
	Source []string  `json:"Source"`
}

// Exports of some firewalls nest both arrays under "Threat Sources".
type document struct {
	Count  []*uint64      `json:"Count"`
	Source []string       `json:"Source"`
	Nested *threatSources `json:"Threat Sources"`
}

// LoadFile reads threat records from a JSON file.
func LoadFile(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotatef(ErrMalformedInput, "cannot open %s: %v", path, err)
	}
	defer file.Close() // nolint

	records, err := Load(bufio.NewReader(file))
	if err != nil {
		return nil, errors.Annotatef(err, "cannot load %s", path)
	}

	return records, nil
}

// Load decodes threat records from the given reader. Element i of Count is
// paired with element i of Source. Either every record is returned or
// none.
func Load(reader io.Reader) ([]Record, error) {
	buf, err := ioutil.ReadAll(reader)
	if err != nil {
		return nil, errors.Annotatef(ErrMalformedInput, "cannot read document: %v", err)
	}

	doc := document{}
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, errors.Annotatef(ErrMalformedInput, "cannot decode document: %v", err)
	}

	sources := threatSources{Count: doc.Count, Source: doc.Source}
	if doc.Nested != nil {
		sources = *doc.Nested
	}

	switch {
	case sources.Count == nil:
		return nil, errors.Annotate(ErrMalformedInput, "Count array is missing")
	case sources.Source == nil:
		return nil, errors.Annotate(ErrMalformedInput, "Source array is missing")
	case len(sources.Count) != len(sources.Source):
		return nil, errors.Annotatef(ErrMalformedInput,
			"Count has %d elements but Source has %d",
			len(sources.Count), len(sources.Source))
	}

	records := make([]Record, 0, len(sources.Source))
	for i, source := range sources.Source {
		if sources.Count[i] == nil {
			return nil, errors.Annotatef(ErrMalformedInput, "count #%d is null", i)
		}

		ip := net.ParseIP(source)
		if ip == nil {
			return nil, errors.Annotatef(ErrInvalidAddress, "source #%d %q", i, source)
		}

		records = append(records, Record{
			Source: source,
			IP:     ip,
			Count:  *sources.Count[i],
		})
	}

	log.WithFields(log.Fields{
		"records": len(records),
	}).Debug("Loaded threat sources.")

	return records, nil
}
