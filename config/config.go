package config

import (
	"io"
	"io/ioutil"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/juju/errors"

	"github.com/9seconds/threatmap/geo"
	"github.com/9seconds/threatmap/netlist"
)

// Default paths are relative to a working directory.
const (
	DefaultInput    = "threat_sources.json"
	DefaultOutput   = "locations.csv"
	DefaultDatabase = "geoip2/city.mmdb"
	DefaultWorkers  = 1
)

// DBConfig describes a geolocation database.
type DBConfig struct {
	Backend   string
	Path      string
	Language  string
	CacheSize int `toml:"cache_size"`
}

// Config is a configuration of a single run.
type Config struct {
	Input           string
	Output          string
	UnknownCity     string `toml:"unknown_city"`
	Workers         int
	MetricsTextfile string `toml:"metrics_textfile"`
	Ignore          []string
	Database        DBConfig
}

// Default returns a configuration which is used if no file is given.
func Default() *Config {
	return &Config{
		Input:       DefaultInput,
		Output:      DefaultOutput,
		UnknownCity: geo.DefaultUnknownCity,
		Workers:     DefaultWorkers,
		Database: DBConfig{
			Backend:   geo.BackendMaxMind,
			Path:      DefaultDatabase,
			Language:  geo.DefaultLanguage,
			CacheSize: geo.DefaultCacheSize,
		},
	}
}

// Parse reads TOML configuration. Missing values keep their defaults.
func Parse(reader io.Reader) (*Config, error) {
	conf := Default()

	buf, err := ioutil.ReadAll(reader)
	if err != nil {
		return nil, errors.Annotate(err, "Cannot read config file")
	}

	meta, err := toml.Decode(string(buf), conf)
	if err != nil {
		return nil, errors.Annotate(err, "Cannot parse config file")
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("Unknown config key %s", undecoded[0])
	}

	if err = conf.Validate(); err != nil {
		return nil, errors.Annotate(err, "Invalid value")
	}

	return conf, nil
}

// ParseFile reads TOML configuration from path.
func ParseFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotatef(err, "Cannot open config file %s", path)
	}
	defer file.Close() // nolint

	return Parse(file)
}

// Validate checks values which can be set both from a file and from
// command line.
func (c *Config) Validate() error {
	switch {
	case c.Input == "":
		return errors.New("Input path is empty")
	case c.Output == "":
		return errors.New("Output path is empty")
	case c.Database.Path == "":
		return errors.New("Database path is empty")
	case c.Workers < 1:
		return errors.Errorf("Incorrect number of workers %d", c.Workers)
	case c.Database.CacheSize < 0:
		return errors.Errorf("Incorrect cache size %d", c.Database.CacheSize)
	}

	if !validBackend(c.Database.Backend) {
		return errors.Errorf("Unknown database backend %s", c.Database.Backend)
	}

	if _, err := netlist.New(c.Ignore); err != nil {
		return errors.Annotate(err, "Incorrect ignore list")
	}

	return nil
}

func validBackend(name string) bool {
	for _, v := range geo.Backends() {
		if v == name {
			return true
		}
	}

	return false
}
