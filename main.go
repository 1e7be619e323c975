package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/9seconds/threatmap/geo"
	"github.com/9seconds/threatmap/pipeline"
)

var version = "dev"

var (
	app = kingpin.New(
		"threatmap",
		"Aggregate threat sources into a map of city locations.")

	debug = app.Flag("debug", "Run in debug mode.").
		Short('d').
		Envar("THREATMAP_DEBUG").
		Bool()
	configFile = app.Flag("config", "Path to the TOML config.").
			Short('c').
			ExistingFile()

	aggregateCommand = app.Command("aggregate", "Build a locations report.").
				Default()
	aggregateFlags = overrides{
		input: aggregateCommand.Flag("input", "Path to the threat sources JSON.").
			Short('i').
			String(),
		database: aggregateCommand.Flag("database", "Path to the geolocation database.").
			String(),
		backend: aggregateCommand.Flag("backend", "Type of the geolocation database.").
			Enum(geo.Backends()...),
		output: aggregateCommand.Flag("output", "Path to the CSV report.").
			Short('o').
			String(),
		workers: aggregateCommand.Flag("workers", "How many lookups to run in parallel.").
			Short('w').
			Int(),
		metricsTextfile: aggregateCommand.Flag("metrics-textfile", "Where to write metrics in text format.").
			String(),
	}

	lookupCommand = app.Command("lookup", "Show what database knows about an address.")
	lookupIP      = lookupCommand.Arg("ip", "IP address to look up.").
			Required().
			IP()
)

func init() {
	app.Version(version)
	setupLogger(false)
}

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	setupLogger(*debug)

	conf, err := loadConfig(*configFile, aggregateFlags)
	if err != nil {
		log.Fatalf(err.Error())
	}

	switch command {
	case lookupCommand.FullCommand():
		if err = lookup(os.Stdout, conf, *lookupIP); err != nil {
			log.Fatalf(err.Error())
		}
	default:
		ctx, cancel := makeRootContext()
		defer cancel()

		p, err := pipeline.New(conf, pipeline.Options{})
		if err != nil {
			log.Fatalf(err.Error())
		}

		if _, err = p.Run(ctx); err != nil {
			log.Fatalf(err.Error())
		}
	}
}
