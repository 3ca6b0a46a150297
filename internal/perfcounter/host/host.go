// Package host exposes the processor, disk and memory statistics of the local
// host as perfmon-style counters, using gopsutil so it works on every
// platform.
package host

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter"
	"github.com/signalfx/sqldtu-perfmon/internal/utils/filter"
	log "github.com/sirupsen/logrus"
)

// Category names exposed by the source
const (
	ProcessorCategory = "Processor"
	DiskCategory      = "PhysicalDisk"
	MemoryCategory    = "Memory"
)

// TotalInstance aggregates all instances of a category
const TotalInstance = "_Total"

var logger = log.WithFields(log.Fields{"component": "perfcounter", "source": "host"})

// overridden in tests
var (
	cpuTimes      = cpu.Times
	ioCounters    = disk.IOCounters
	virtualMemory = mem.VirtualMemory
	now           = time.Now
)

// Config for the host source
type Config struct {
	// Disks excluded from the PhysicalDisk _Total instance.  They can still be
	// read individually.
	Disks []string
}

// Source of host counters
type Source struct {
	excludedDisks filter.StringFilter
}

var _ perfcounter.Source = &Source{}

// New makes a host source
func New(conf Config) (*Source, error) {
	f, err := filter.NewStringFilter(conf.Disks)
	if err != nil {
		return nil, errors.Wrap(err, "invalid disk filter")
	}
	return &Source{excludedDisks: f}, nil
}

// Name of the source
func (s *Source) Name() string {
	return "host"
}

// Categories returns the fixed set of categories the host supports
func (s *Source) Categories(ctx context.Context) ([]string, error) {
	return []string{ProcessorCategory, DiskCategory, MemoryCategory}, nil
}

// Instances lists _Total followed by the processors or disks of the host.
// Memory is a single instance category.
func (s *Source) Instances(ctx context.Context, category string) ([]string, error) {
	switch category {
	case ProcessorCategory:
		times, err := cpuTimes(true)
		if err != nil {
			return nil, errors.Wrap(err, "could not get per core cpu times")
		}
		out := []string{TotalInstance}
		for i := range times {
			out = append(out, coreInstance(times[i].CPU))
		}
		return out, nil
	case DiskCategory:
		counts, err := ioCounters()
		if err != nil {
			return nil, errors.Wrap(err, "could not load io counters")
		}
		var names []string
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		return append([]string{TotalInstance}, names...), nil
	case MemoryCategory:
		return []string{""}, nil
	}
	return nil, errors.Errorf("unknown host category %s", category)
}

// Counters of the category.  Every instance of a category has the same
// counters.
func (s *Source) Counters(ctx context.Context, category, instance string) ([]string, error) {
	switch category {
	case ProcessorCategory:
		return cpuCounterNames(), nil
	case DiskCategory:
		return diskCounterNames(), nil
	case MemoryCategory:
		return memoryCounterNames(), nil
	}
	return nil, errors.Errorf("unknown host category %s", category)
}

// Open a counter for reading
func (s *Source) Open(ctx context.Context, path perfcounter.Path) (perfcounter.Reader, error) {
	switch path.Category {
	case ProcessorCategory:
		return newCPUReader(path)
	case DiskCategory:
		return newDiskReader(path, s.excludedDisks)
	case MemoryCategory:
		return newMemoryReader(path)
	}
	return nil, errors.Errorf("unknown host category %s", path.Category)
}

// coreInstance turns gopsutil's "cpu3" into the perfmon instance "3"
func coreInstance(name string) string {
	return strings.TrimPrefix(name, "cpu")
}
