package core

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/signalfx/sqldtu-perfmon/internal/core/config"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter"
	"github.com/signalfx/sqldtu-perfmon/internal/sampler"
	"github.com/signalfx/sqldtu-perfmon/internal/sampler/sink"
	log "github.com/sirupsen/logrus"
)

var now = time.Now

// Run resolves the configured counters in src and samples them until
// MaxSamples is reached or interrupt fires.  The counter listing and the
// sample rows are printed to out.  Failing to resolve a required counter or
// to prepare the output file is an error, a missing log flush counter is not.
func Run(ctx context.Context, conf *config.Config, src perfcounter.Source, out io.Writer, interrupt sampler.Interrupter) ([]sampler.Sample, error) {
	var counters sampler.Counters
	var rows []sink.CounterRow

	for _, req := range []struct {
		role string
		path perfcounter.Path
		dest *sampler.Counter
	}{
		{"Cpu", perfcounter.Path{Category: conf.ProcessorCategory, Instance: deref(conf.ProcessorInstance), Counter: conf.ProcessorCounter}, &counters.CPU},
		{"Disk Read", perfcounter.Path{Category: conf.DiskCategory, Instance: deref(conf.DiskInstance), Counter: conf.DiskCounter1}, &counters.DiskRead},
		{"Disk Write", perfcounter.Path{Category: conf.DiskCategory, Instance: deref(conf.DiskInstance), Counter: conf.DiskCounter2}, &counters.DiskWrite},
	} {
		h, err := perfcounter.Resolve(ctx, src, req.path)
		if err != nil {
			return nil, errors.WithMessagef(err, "could not resolve the %s counter", req.role)
		}
		*req.dest = h
		rows = append(rows, sink.CounterRow{Role: req.role, Counter: h.String(), Source: h.Source, Status: "ok"})
	}

	sqlPath := perfcounter.Path{Category: conf.SqlCategory, Instance: conf.SqlInstance, Counter: conf.SqlCounter}
	res := perfcounter.ResolveOptional(ctx, src, sqlPath)
	if res.Found() {
		counters.Log = res.Handle
		rows = append(rows, sink.CounterRow{Role: "Log Bytes", Counter: res.Handle.String(), Source: res.Handle.Source, Status: "ok"})
	} else {
		status := "unavailable, reported as 0"
		if res.Err == perfcounter.ErrNotConfigured {
			status = "not configured, reported as 0"
		}
		rows = append(rows, sink.CounterRow{Role: "Log Bytes", Counter: sqlPath.String(), Status: status})
	}

	sink.PrintCounters(out, rows)

	csv, err := sink.CreateCSV(conf.CsvPath, conf.CsvDelimiter, conf.FileNamePolicy, now())
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"path":       csv.Path(),
		"interval":   conf.SampleIntervalDuration(),
		"maxSamples": conf.MaxSamples,
	}).Info("Starting to sample, press Enter to stop early")

	samples, err := sampler.Run(ctx, sampler.Config{
		Counters:   counters,
		Interval:   conf.SampleIntervalDuration(),
		MaxSamples: conf.MaxSamples,
		Sinks:      []sampler.Sink{csv, sink.NewConsole(out)},
		Interrupt:  interrupt,
		Sleep:      sleep,
	})
	if err != nil {
		return samples, err
	}

	log.Infof("Wrote %d samples to %s", len(samples), csv.Path())
	return samples, nil
}

// overridden in tests
var sleep = time.Sleep

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
