// Package sampler runs the bounded sampling loop: read the configured
// counters, record a Sample, hand it to every sink, sleep, repeat.
package sampler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithFields(log.Fields{"component": "sampler"})

// Sample is one reading of all counters
type Sample struct {
	// CollectedAt is in UTC and strictly increases from one sample to the
	// next within a run
	CollectedAt time.Time
	CPU         float64
	DiskRead    float64
	DiskWrite   float64
	// LogBytes is 0 when the log flush counter is unavailable
	LogBytes float64
}

// Counter yields successive values of a resolved counter.  *perfcounter.Handle
// implements it.
type Counter interface {
	NextValue(ctx context.Context) (float64, error)
}

// Counters read on every iteration, in field order.  Log is optional.
type Counters struct {
	CPU       Counter
	DiskRead  Counter
	DiskWrite Counter
	Log       Counter
}

// Sink records samples.  Sinks write their own header before their first
// sample.
type Sink interface {
	Name() string
	Write(Sample) error
}

// Interrupter reports whether the run should stop early.  It must not block.
type Interrupter interface {
	Interrupted() bool
}

// Config of a run
type Config struct {
	Counters   Counters
	Interval   time.Duration
	MaxSamples int
	// Sinks are written in order
	Sinks     []Sink
	Interrupt Interrupter
	// Sleep defaults to time.Sleep.  It is not cancellable, an interrupt that
	// arrives while sleeping is seen on the next iteration.
	Sleep func(time.Duration)
	// Now defaults to time.Now
	Now func() time.Time
}

// Run takes up to MaxSamples samples, Interval apart, and returns them in the
// order they were taken.  Reaching MaxSamples and being interrupted are both
// normal terminations.  If a read or a sink write fails the run stops with
// that error and the samples taken so far.
func Run(ctx context.Context, conf Config) ([]Sample, error) {
	if conf.Counters.CPU == nil || conf.Counters.DiskRead == nil || conf.Counters.DiskWrite == nil {
		return nil, errors.New("processor and disk counters are required")
	}
	sleep := conf.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	now := conf.Now
	if now == nil {
		now = time.Now
	}

	var samples []Sample
	if conf.MaxSamples > 0 {
		samples = make([]Sample, 0, conf.MaxSamples)
	}
	var last time.Time

	for i := 0; i < conf.MaxSamples; i++ {
		if conf.Interrupt != nil && conf.Interrupt.Interrupted() {
			logger.Infof("Interrupted after %d of %d samples", i, conf.MaxSamples)
			break
		}

		s, err := read(ctx, conf.Counters)
		if err != nil {
			return samples, err
		}
		s.CollectedAt = timestamp(now(), last)
		last = s.CollectedAt

		samples = append(samples, s)

		for _, sink := range conf.Sinks {
			if err := sink.Write(s); err != nil {
				return samples, errors.Wrapf(err, "could not write sample to %s", sink.Name())
			}
		}

		sleep(conf.Interval)
	}

	return samples, nil
}

func read(ctx context.Context, c Counters) (Sample, error) {
	var s Sample
	var err error

	if s.CPU, err = c.CPU.NextValue(ctx); err != nil {
		return s, err
	}
	if s.DiskRead, err = c.DiskRead.NextValue(ctx); err != nil {
		return s, err
	}
	if s.DiskWrite, err = c.DiskWrite.NextValue(ctx); err != nil {
		return s, err
	}
	if c.Log != nil {
		if s.LogBytes, err = c.Log.NextValue(ctx); err != nil {
			return s, err
		}
	}
	return s, nil
}

// timestamp is t in UTC at microsecond precision, moved past previous if the
// clock has not advanced since then
func timestamp(t time.Time, previous time.Time) time.Time {
	ts := t.UTC().Truncate(time.Microsecond)
	if !previous.IsZero() && !ts.After(previous) {
		ts = previous.Add(time.Microsecond)
	}
	return ts
}
