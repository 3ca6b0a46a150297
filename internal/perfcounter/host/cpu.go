package host

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/cpu"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter"
)

var errorUsedDiffLessThanZero = fmt.Errorf("usedDiff < 0")
var errorTotalDiffLessThanZero = fmt.Errorf("totalDiff < 0")

// share picks the part of the cpu time a counter reports on
type share func(t *cpu.TimesStat) float64

var cpuCounters = map[string]share{
	"% Processor Time": func(t *cpu.TimesStat) float64 {
		return totalTime(t) - t.Idle
	},
	"% User Time": func(t *cpu.TimesStat) float64 {
		return t.User + t.Nice
	},
	"% Privileged Time": func(t *cpu.TimesStat) float64 {
		return t.System + t.Irq + t.Softirq
	},
	"% Idle Time": func(t *cpu.TimesStat) float64 {
		return t.Idle
	},
}

func cpuCounterNames() []string {
	return []string{"% Processor Time", "% User Time", "% Privileged Time", "% Idle Time"}
}

type totalUsed struct {
	Total float64
	Used  float64
}

type cpuReader struct {
	instance string
	share    share
	previous *totalUsed
}

func newCPUReader(path perfcounter.Path) (*cpuReader, error) {
	s, ok := cpuCounters[path.Counter]
	if !ok {
		return nil, errors.Errorf("unknown processor counter %s", path.Counter)
	}
	return &cpuReader{instance: path.Instance, share: s}, nil
}

func (r *cpuReader) NextValue(ctx context.Context) (float64, error) {
	t, err := r.times()
	if err != nil {
		return 0, err
	}

	current := &totalUsed{Total: totalTime(t), Used: r.share(t)}
	prev := r.previous
	r.previous = current

	if prev == nil {
		return 0, nil
	}

	utilization, err := getUtilization(prev, current)
	if err != nil {
		// Counter wraps and idle time going backwards on some kernels are
		// reported as no utilization for one interval.
		logger.WithError(err).WithField("instance", r.instance).Debug("Failed to calculate cpu utilization")
		return 0, nil
	}
	return utilization, nil
}

func (r *cpuReader) times() (*cpu.TimesStat, error) {
	perCore := r.instance != TotalInstance
	times, err := cpuTimes(perCore)
	if err != nil {
		return nil, errors.Wrap(err, "unable to get cpu times")
	}
	if !perCore {
		if len(times) == 0 {
			return nil, errors.New("no cpu times reported")
		}
		return &times[0], nil
	}
	for i := range times {
		if coreInstance(times[i].CPU) == r.instance {
			return &times[i], nil
		}
	}
	return nil, errors.Errorf("processor %s is no longer reported", r.instance)
}

func getUtilization(prev *totalUsed, current *totalUsed) (utilization float64, err error) {
	usedDiff := current.Used - prev.Used
	totalDiff := current.Total - prev.Total
	if usedDiff < 0 {
		err = errorUsedDiffLessThanZero
	} else if totalDiff < 0 {
		err = errorTotalDiffLessThanZero
	} else if totalDiff == 0 {
		utilization = 0
	} else {
		utilization = usedDiff / totalDiff * 100
		if utilization > 100 {
			err = fmt.Errorf("percent %v > 100 used: %v total: %v", utilization, usedDiff, totalDiff)
		}
	}

	return
}

// totalTime adds up all times.  Fields that don't apply on a platform are 0.
func totalTime(t *cpu.TimesStat) float64 {
	return t.User +
		t.System +
		t.Idle +
		t.Nice +
		t.Iowait +
		t.Irq +
		t.Softirq +
		t.Steal +
		t.Guest +
		t.GuestNice
}
