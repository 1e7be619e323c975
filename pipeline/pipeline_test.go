package pipeline_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/9seconds/threatmap/config"
	"github.com/9seconds/threatmap/geo"
	"github.com/9seconds/threatmap/geo/geotest"
	"github.com/9seconds/threatmap/metrics"
	"github.com/9seconds/threatmap/pipeline"
	"github.com/9seconds/threatmap/report"
	"github.com/9seconds/threatmap/threats"
)

const mixedInput = `{
	"Count": [2, 5, 3, 100, 50, 4, 9, 2],
	"Source": [
		"81.2.69.142",
		"8.8.8.8",
		"8.8.4.4",
		"1.1.1.1",
		"67.43.156.1",
		"2.125.160.216",
		"2001:218::1",
		"89.160.20.112"
	]
}`

const mixedReport = `city,total_count,latitude,longitude
Mountain View,8,37.386,-122.0838
Unknown,4,51.5,-0.13
London,2,51.5142,-0.0931
Linköping,2,58.4167,15.6167
`

type PipelineTestSuite struct {
	suite.Suite

	tmpDir  string
	conf    *config.Config
	clock   clockwork.FakeClock
	metrics *metrics.Metrics
	opened  int
}

func (suite *PipelineTestSuite) SetupTest() {
	dir, err := ioutil.TempDir("", "pipeline_")
	if err != nil {
		panic(err)
	}

	suite.tmpDir = dir
	suite.opened = 0
	suite.clock = clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC))
	suite.metrics = metrics.New()

	suite.conf = config.Default()
	suite.conf.Input = filepath.Join(dir, "threat_sources.json")
	suite.conf.Output = filepath.Join(dir, "locations.csv")
	suite.conf.Database.Path = filepath.Join(dir, "city.mmdb")

	geotest.WriteCityDatabase(suite.T(), suite.conf.Database.Path, geotest.Networks)
}

func (suite *PipelineTestSuite) TearDownTest() {
	os.RemoveAll(suite.tmpDir)
}

func (suite *PipelineTestSuite) writeInput(content string) {
	suite.Require().NoError(ioutil.WriteFile(suite.conf.Input, []byte(content), 0644))
}

func (suite *PipelineTestSuite) readOutput() string {
	content, err := ioutil.ReadFile(suite.conf.Output)
	suite.Require().NoError(err)

	return string(content)
}

func (suite *PipelineTestSuite) outputExists() bool {
	_, err := os.Stat(suite.conf.Output)

	return err == nil
}

func (suite *PipelineTestSuite) run() (pipeline.Stats, error) {
	p, err := pipeline.New(suite.conf, pipeline.Options{
		Clock:   suite.clock,
		Metrics: suite.metrics,
		OpenOracle: func(backend, path, language string) (geo.Oracle, error) {
			suite.opened++

			return geo.Open(backend, path, language)
		},
	})
	suite.Require().NoError(err)

	return p.Run(context.Background())
}

func (suite *PipelineTestSuite) TestSameCity() {
	suite.writeInput(`{"Count": [5, 3], "Source": ["8.8.8.8", "8.8.4.4"]}`)

	stats, err := suite.run()

	suite.Require().NoError(err)
	suite.Equal("city,total_count,latitude,longitude\nMountain View,8,37.386,-122.0838\n", suite.readOutput())
	suite.Equal(2, stats.Records)
	suite.Equal(2, stats.Resolved)
	suite.Equal(1, stats.Locations)
	suite.EqualValues(8, stats.Total)
}

func (suite *PipelineTestSuite) TestUnresolvable() {
	suite.writeInput(`{"Count": [10], "Source": ["1.1.1.1"]}`)

	stats, err := suite.run()

	suite.Require().NoError(err)
	suite.Equal("city,total_count,latitude,longitude\n", suite.readOutput())
	suite.Equal(1, stats.Missed)
	suite.Equal(0, stats.Resolved)
	suite.EqualValues(0, stats.Total)
}

func (suite *PipelineTestSuite) TestEmpty() {
	suite.writeInput(`{"Count": [], "Source": []}`)

	stats, err := suite.run()

	suite.Require().NoError(err)
	suite.Equal("city,total_count,latitude,longitude\n", suite.readOutput())
	suite.Equal(pipeline.Stats{}, stats)
}

func (suite *PipelineTestSuite) TestMixed() {
	suite.conf.Ignore = []string{"2001:218::/32"}
	suite.writeInput(mixedInput)

	stats, err := suite.run()

	suite.Require().NoError(err)
	suite.Equal(mixedReport, suite.readOutput())
	suite.Equal(pipeline.Stats{
		Records:   8,
		Resolved:  5,
		Missed:    2,
		Ignored:   1,
		Locations: 4,
		Total:     16,
	}, stats)
}

func (suite *PipelineTestSuite) TestWithoutIgnoreList() {
	suite.writeInput(mixedInput)

	stats, err := suite.run()

	suite.Require().NoError(err)
	suite.Equal(0, stats.Ignored)
	suite.Equal(5, stats.Locations)
	suite.Contains(suite.readOutput(), "\nTokyo,9,35.685,139.7514\n")
}

func (suite *PipelineTestSuite) TestSumOfResolved() {
	suite.writeInput(`{
		"Count": [1, 2, 3, 4, 5, 6],
		"Source": ["81.2.69.1", "81.2.69.2", "8.8.8.8", "89.160.20.1", "2.125.160.1", "2001:218::42"]
	}`)

	stats, err := suite.run()

	suite.Require().NoError(err)
	suite.EqualValues(21, stats.Total)
	suite.Equal(0, stats.Missed)

	lines := strings.Split(strings.TrimSpace(suite.readOutput()), "\n")
	suite.Len(lines, 6)
	suite.Equal(report.Header, strings.Split(lines[0], ","))
	suite.Equal("Tokyo,6,35.685,139.7514", lines[1])
}

func (suite *PipelineTestSuite) TestDeterministic() {
	suite.writeInput(mixedInput)

	_, err := suite.run()
	suite.Require().NoError(err)
	first := suite.readOutput()

	_, err = suite.run()
	suite.Require().NoError(err)

	suite.Equal(first, suite.readOutput())
}

func (suite *PipelineTestSuite) TestParallelMatchesSequential() {
	suite.conf.Ignore = []string{"2001:218::/32"}
	suite.writeInput(mixedInput)

	for _, workers := range []int{1, 2, 4, 16} {
		suite.conf.Workers = workers

		_, err := suite.run()

		suite.Require().NoError(err)
		suite.Equal(mixedReport, suite.readOutput(), "workers=%d", workers)
	}
}

func (suite *PipelineTestSuite) TestLengthMismatch() {
	suite.writeInput(`{"Count": [5, 3], "Source": ["8.8.8.8"]}`)

	_, err := suite.run()

	suite.Equal(threats.ErrMalformedInput, errors.Cause(err))
	suite.False(suite.outputExists())
	suite.Equal(0, suite.opened)
}

func (suite *PipelineTestSuite) TestInvalidAddress() {
	suite.writeInput(`{"Count": [5, 3], "Source": ["8.8.8.8", "8.8.8.x"]}`)

	_, err := suite.run()

	suite.Equal(threats.ErrInvalidAddress, errors.Cause(err))
	suite.False(suite.outputExists())
	suite.Equal(0, suite.opened)
}

func (suite *PipelineTestSuite) TestNoInput() {
	_, err := suite.run()

	suite.Equal(threats.ErrMalformedInput, errors.Cause(err))
	suite.False(suite.outputExists())
}

func (suite *PipelineTestSuite) TestNoDatabase() {
	suite.conf.Database.Path = filepath.Join(suite.tmpDir, "absent.mmdb")
	suite.writeInput(`{"Count": [5], "Source": ["8.8.8.8"]}`)

	_, err := suite.run()

	suite.Equal(geo.ErrDatabaseUnavailable, errors.Cause(err))
	suite.False(suite.outputExists())
}

func (suite *PipelineTestSuite) TestWriteFailure() {
	suite.conf.Output = filepath.Join(suite.tmpDir, "absent", "locations.csv")
	suite.writeInput(`{"Count": [5], "Source": ["8.8.8.8"]}`)

	_, err := suite.run()

	suite.Equal(report.ErrWriteFailure, errors.Cause(err))
}

func (suite *PipelineTestSuite) TestCancelled() {
	suite.writeInput(`{"Count": [5], "Source": ["8.8.8.8"]}`)

	p, err := pipeline.New(suite.conf, pipeline.Options{Clock: suite.clock})
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Run(ctx)

	suite.Equal(context.Canceled, errors.Cause(err))
	suite.False(suite.outputExists())
}

func (suite *PipelineTestSuite) TestCustomUnknownCity() {
	suite.conf.UnknownCity = "(unknown)"
	suite.writeInput(`{"Count": [4], "Source": ["2.125.160.216"]}`)

	_, err := suite.run()

	suite.Require().NoError(err)
	suite.Equal("city,total_count,latitude,longitude\n(unknown),4,51.5,-0.13\n", suite.readOutput())
}

func (suite *PipelineTestSuite) TestMetrics() {
	suite.conf.Ignore = []string{"2001:218::/32"}
	suite.conf.MetricsTextfile = filepath.Join(suite.tmpDir, "threatmap.prom")
	suite.writeInput(mixedInput)

	_, err := suite.run()
	suite.Require().NoError(err)

	suite.Equal(8.0, testutil.ToFloat64(suite.metrics.Records))
	suite.Equal(5.0, testutil.ToFloat64(suite.metrics.Lookups.WithLabelValues(metrics.OutcomeHit)))
	suite.Equal(2.0, testutil.ToFloat64(suite.metrics.Lookups.WithLabelValues(metrics.OutcomeMiss)))
	suite.Equal(1.0, testutil.ToFloat64(suite.metrics.Lookups.WithLabelValues(metrics.OutcomeIgnored)))
	suite.Equal(4.0, testutil.ToFloat64(suite.metrics.Locations))
	suite.Equal(16.0, testutil.ToFloat64(suite.metrics.Count))
	suite.Equal(float64(suite.clock.Now().Unix()), testutil.ToFloat64(suite.metrics.LastSuccessful))

	content, err := ioutil.ReadFile(suite.conf.MetricsTextfile)
	suite.Require().NoError(err)
	suite.Contains(string(content), "threatmap_records_total 8")
}

func TestPipeline(t *testing.T) {
	suite.Run(t, &PipelineTestSuite{})
}
