package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/9seconds/threatmap/config"
	"github.com/9seconds/threatmap/geo"
)

// overrides are command line values which take precedence over a config
// file. Empty values are not applied.
type overrides struct {
	input           *string
	database        *string
	backend         *string
	output          *string
	workers         *int
	metricsTextfile *string
}

func (o overrides) apply(conf *config.Config) {
	setString(&conf.Input, o.input)
	setString(&conf.Database.Path, o.database)
	setString(&conf.Database.Backend, o.backend)
	setString(&conf.Output, o.output)
	setString(&conf.MetricsTextfile, o.metricsTextfile)

	if o.workers != nil && *o.workers != 0 {
		conf.Workers = *o.workers
	}
}

func setString(target *string, value *string) {
	if value != nil && *value != "" {
		*target = *value
	}
}

func makeRootContext() (context.Context, context.CancelFunc) {
	rootCtx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)

	go func() {
		for sig := range sigChan {
			log.WithFields(log.Fields{
				"signal": sig.String(),
			}).Warn("Interrupted.")
			cancel()
		}
	}()

	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	return rootCtx, cancel
}

func loadConfig(path string, flags overrides) (*config.Config, error) {
	conf := config.Default()

	if path != "" {
		parsed, err := config.ParseFile(path)
		if err != nil {
			return nil, errors.Annotate(err, "Cannot load configuration")
		}

		conf = parsed
	}

	flags.apply(conf)

	if err := conf.Validate(); err != nil {
		return nil, errors.Annotate(err, "Invalid configuration")
	}

	return conf, nil
}

func lookup(writer io.Writer, conf *config.Config, ip net.IP) error {
	oracle, err := geo.Open(conf.Database.Backend, conf.Database.Path, conf.Database.Language)
	if err != nil {
		return err
	}
	defer oracle.Close() // nolint: errcheck

	resolver, err := geo.NewResolver(oracle, conf.UnknownCity, 0)
	if err != nil {
		return err
	}

	fmt.Fprintf(writer, "address:   %s\n", ip)
	fmt.Fprintf(writer, "backend:   %s\n", conf.Database.Backend)

	location, err := resolver.Resolve(ip)
	if err != nil {
		fmt.Fprintf(writer, "location:  miss\n")
	} else {
		fmt.Fprintf(writer, "location:  %s (%v, %v)\n", location.City, location.Latitude, location.Longitude)
	}

	if conf.Database.Backend != geo.BackendMaxMind {
		return nil
	}

	details, err := geo.Describe(conf.Database.Path, ip, conf.Database.Language)
	if err != nil {
		return errors.Annotatef(err, "Cannot describe %s", ip)
	}

	fmt.Fprintf(writer, "country:   %s (%s)\n", details.Country, details.CountryCode)
	fmt.Fprintf(writer, "accuracy:  %d km\n", details.AccuracyRadius)
	fmt.Fprintf(writer, "time zone: %s\n", details.TimeZone)

	return nil
}
