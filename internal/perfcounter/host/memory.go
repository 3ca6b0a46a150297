package host

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/mem"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter"
)

var memoryCounters = map[string]func(v *mem.VirtualMemoryStat) float64{
	"Available MBytes": func(v *mem.VirtualMemoryStat) float64 {
		return float64(v.Available) / 1024 / 1024
	},
	"Available Bytes": func(v *mem.VirtualMemoryStat) float64 {
		return float64(v.Available)
	},
	"% Committed Bytes In Use": func(v *mem.VirtualMemoryStat) float64 {
		return v.UsedPercent
	},
}

func memoryCounterNames() []string {
	return []string{"Available MBytes", "Available Bytes", "% Committed Bytes In Use"}
}

// memory counters are gauges, so there is nothing to keep between reads
type memoryReader func(v *mem.VirtualMemoryStat) float64

func newMemoryReader(path perfcounter.Path) (memoryReader, error) {
	f, ok := memoryCounters[path.Counter]
	if !ok {
		return nil, errors.Errorf("unknown memory counter %s", path.Counter)
	}
	return memoryReader(f), nil
}

func (r memoryReader) NextValue(ctx context.Context) (float64, error) {
	v, err := virtualMemory()
	if err != nil {
		return 0, errors.Wrap(err, "unable to collect virtual memory stats")
	}
	return r(v), nil
}
