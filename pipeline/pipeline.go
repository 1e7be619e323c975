package pipeline

import (
	"context"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/9seconds/threatmap/aggregate"
	"github.com/9seconds/threatmap/config"
	"github.com/9seconds/threatmap/geo"
	"github.com/9seconds/threatmap/metrics"
	"github.com/9seconds/threatmap/netlist"
	"github.com/9seconds/threatmap/report"
	"github.com/9seconds/threatmap/threats"
	"github.com/juju/errors"
)

// OracleOpener opens a geolocation database. geo.Open is used by default.
type OracleOpener func(backend, path, language string) (geo.Oracle, error)

// Options are optional collaborators of Pipeline. Zero values mean
// production defaults.
type Options struct {
	Clock      clockwork.Clock
	Metrics    *metrics.Metrics
	OpenOracle OracleOpener
}

// Stats describes a finished run.
type Stats struct {
	Records   int
	Resolved  int
	Missed    int
	Ignored   int
	Locations int
	Total     uint64
	Duration  time.Duration
}

type outcome struct {
	location geo.Location
	err      error
	ignored  bool
}

// Pipeline loads threat records, resolves their addresses, aggregates
// counts by location and writes a report.
type Pipeline struct {
	conf       *config.Config
	ignore     *netlist.List
	clock      clockwork.Clock
	metrics    *metrics.Metrics
	openOracle OracleOpener
}

// Run executes a single pass. Any returned error is fatal for the run; in
// that case the output file is not touched.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	startedAt := p.clock.Now()
	stats := Stats{}

	records, err := threats.LoadFile(p.conf.Input)
	if err != nil {
		return stats, err
	}

	stats.Records = len(records)
	p.metrics.Records.Add(float64(len(records)))

	oracle, err := p.openOracle(p.conf.Database.Backend, p.conf.Database.Path, p.conf.Database.Language)
	if err != nil {
		return stats, err
	}
	defer oracle.Close() // nolint: errcheck

	resolver, err := geo.NewResolver(oracle, p.conf.UnknownCity, p.conf.Database.CacheSize)
	if err != nil {
		return stats, err
	}

	outcomes, err := p.resolve(ctx, resolver, records)
	if err != nil {
		return stats, err
	}

	agg := aggregate.New()

	for i, record := range records {
		switch current := outcomes[i]; {
		case current.ignored:
			stats.Ignored++
		case current.err != nil:
			agg.Skip()
		default:
			agg.Add(current.location, record.Count)
		}
	}

	rows := agg.Rows()
	if err := report.WriteFile(p.conf.Output, rows); err != nil {
		return stats, err
	}

	stats.Missed = agg.Skipped()
	stats.Resolved = stats.Records - stats.Missed - stats.Ignored
	stats.Locations = agg.Len()
	stats.Total = agg.Total()
	stats.Duration = p.clock.Since(startedAt)

	p.observe(stats, resolver.CacheStats())
	p.logSummary(stats)

	return stats, nil
}

// Lookups may run in several goroutines but every outcome is stored by
// index of its record, so aggregation always happens in input order.
func (p *Pipeline) resolve(ctx context.Context,
	resolver *geo.Resolver,
	records []threats.Record) ([]outcome, error) {
	outcomes := make([]outcome, len(records))
	tasks := make(chan int)
	wg := &sync.WaitGroup{}

	for i := 0; i < p.conf.Workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for idx := range tasks {
				outcomes[idx] = p.resolveIP(resolver, records[idx].IP)
			}
		}()
	}

	var err error

	for i := range records {
		if ctx.Err() != nil {
			err = errors.Annotate(ctx.Err(), "Resolving is interrupted")
			break
		}

		select {
		case <-ctx.Done():
		case tasks <- i:
		}
	}

	close(tasks)
	wg.Wait()

	if err == nil && ctx.Err() != nil {
		err = errors.Annotate(ctx.Err(), "Resolving is interrupted")
	}

	return outcomes, err
}

func (p *Pipeline) resolveIP(resolver *geo.Resolver, ip net.IP) outcome {
	if p.ignore.Contains(ip) {
		log.WithFields(log.Fields{
			"ip": ip.String(),
		}).Debug("Address is ignored.")

		return outcome{ignored: true}
	}

	location, err := resolver.Resolve(ip)
	if err != nil {
		log.WithFields(log.Fields{
			"ip":  ip.String(),
			"err": err,
		}).Debug("Skip address.")
	}

	return outcome{location: location, err: err}
}

func (p *Pipeline) observe(stats Stats, cacheStats geo.CacheStats) {
	p.metrics.Lookups.WithLabelValues(metrics.OutcomeHit).Add(float64(stats.Resolved))
	p.metrics.Lookups.WithLabelValues(metrics.OutcomeMiss).Add(float64(stats.Missed))
	p.metrics.Lookups.WithLabelValues(metrics.OutcomeIgnored).Add(float64(stats.Ignored))
	p.metrics.Cache.WithLabelValues("hit").Add(float64(cacheStats.Hits))
	p.metrics.Cache.WithLabelValues("miss").Add(float64(cacheStats.Misses))
	p.metrics.Locations.Set(float64(stats.Locations))
	p.metrics.Count.Add(float64(stats.Total))
	p.metrics.MarkSuccess(stats.Duration, p.clock.Now())

	if p.conf.MetricsTextfile == "" {
		return
	}

	if err := p.metrics.WriteTextfile(p.conf.MetricsTextfile); err != nil {
		log.WithFields(log.Fields{
			"path": p.conf.MetricsTextfile,
			"err":  err,
		}).Warn("Cannot write metrics.")
	}
}

func (p *Pipeline) logSummary(stats Stats) {
	log.WithFields(log.Fields{
		"records":   humanize.Comma(int64(stats.Records)),
		"resolved":  humanize.Comma(int64(stats.Resolved)),
		"missed":    humanize.Comma(int64(stats.Missed)),
		"ignored":   humanize.Comma(int64(stats.Ignored)),
		"locations": humanize.Comma(int64(stats.Locations)),
		"total":     humanize.BigComma(new(big.Int).SetUint64(stats.Total)),
		"duration":  stats.Duration,
		"output":    p.conf.Output,
	}).Info("Report is ready.")
}

// New creates a pipeline for the given configuration.
func New(conf *config.Config, opts Options) (*Pipeline, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Annotate(err, "Invalid configuration")
	}

	ignore, err := netlist.New(conf.Ignore)
	if err != nil {
		return nil, errors.Annotate(err, "Cannot build ignore list")
	}

	rv := &Pipeline{
		conf:       conf,
		ignore:     ignore,
		clock:      opts.Clock,
		metrics:    opts.Metrics,
		openOracle: opts.OpenOracle,
	}

	if rv.clock == nil {
		rv.clock = clockwork.NewRealClock()
	}

	if rv.metrics == nil {
		rv.metrics = metrics.New()
	}

	if rv.openOracle == nil {
		rv.openOracle = geo.Open
	}

	return rv, nil
}
