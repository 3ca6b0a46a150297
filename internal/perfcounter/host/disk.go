package host

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/disk"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter"
	"github.com/signalfx/sqldtu-perfmon/internal/utils/filter"
)

// cumulative picks the ever increasing io count a disk counter is a rate of
type cumulative func(d *disk.IOCountersStat) uint64

var diskCounters = map[string]cumulative{
	"Disk Reads/sec": func(d *disk.IOCountersStat) uint64 {
		return d.ReadCount
	},
	"Disk Writes/sec": func(d *disk.IOCountersStat) uint64 {
		return d.WriteCount
	},
	"Disk Read Bytes/sec": func(d *disk.IOCountersStat) uint64 {
		return d.ReadBytes
	},
	"Disk Write Bytes/sec": func(d *disk.IOCountersStat) uint64 {
		return d.WriteBytes
	},
	"Disk Transfers/sec": func(d *disk.IOCountersStat) uint64 {
		return d.ReadCount + d.WriteCount
	},
}

func diskCounterNames() []string {
	return []string{"Disk Reads/sec", "Disk Writes/sec", "Disk Read Bytes/sec", "Disk Write Bytes/sec", "Disk Transfers/sec"}
}

type diskReader struct {
	instance string
	value    cumulative
	excluded filter.StringFilter

	hasPrevious  bool
	previous     uint64
	previousTime time.Time
}

func newDiskReader(path perfcounter.Path, excluded filter.StringFilter) (*diskReader, error) {
	v, ok := diskCounters[path.Counter]
	if !ok {
		return nil, errors.Errorf("unknown disk counter %s", path.Counter)
	}
	return &diskReader{instance: path.Instance, value: v, excluded: excluded}, nil
}

func (r *diskReader) NextValue(ctx context.Context) (float64, error) {
	current, err := r.read()
	if err != nil {
		return 0, err
	}
	ts := now()

	prev, prevTime, ok := r.previous, r.previousTime, r.hasPrevious
	r.previous, r.previousTime, r.hasPrevious = current, ts, true

	if !ok {
		return 0, nil
	}
	elapsed := ts.Sub(prevTime).Seconds()
	if elapsed <= 0 || current < prev {
		// clock went backwards or the device counters were reset
		return 0, nil
	}
	return float64(current-prev) / elapsed, nil
}

func (r *diskReader) read() (uint64, error) {
	counts, err := ioCounters()
	if err != nil {
		return 0, errors.Wrap(err, "failed to load io counters")
	}

	if r.instance != TotalInstance {
		d, ok := counts[r.instance]
		if !ok {
			return 0, errors.Errorf("disk %s is no longer reported", r.instance)
		}
		return r.value(&d), nil
	}

	var total uint64
	for name := range counts {
		if r.excluded.Matches(name) {
			continue
		}
		d := counts[name]
		total += r.value(&d)
	}
	return total, nil
}
