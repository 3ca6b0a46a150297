//go:build windows
// +build windows

package winperf

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/leoluk/perflib_exporter/perflib"
	"github.com/pkg/errors"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithFields(log.Fields{"component": "perfcounter", "source": "winperf"})

var queryPerformanceData = perflib.QueryPerformanceData
var now = time.Now

// Source of Windows performance counters
type Source struct {
	lock    sync.Mutex
	objects []*perflib.PerfObject
}

var _ perfcounter.Source = &Source{}

// New makes a source.  The list of objects is loaded once, on first use.
func New() *Source {
	return &Source{}
}

// Name of the source
func (s *Source) Name() string {
	return "winperf"
}

func (s *Source) load() ([]*perflib.PerfObject, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.objects != nil {
		return s.objects, nil
	}

	objects, err := queryPerformanceData("Global")
	if err != nil {
		return nil, errors.Wrap(err, "could not query performance data")
	}
	logger.Debugf("Loaded %d performance objects", len(objects))
	s.objects = objects
	return objects, nil
}

func (s *Source) object(name string) (*perflib.PerfObject, error) {
	objects, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, o := range objects {
		if o.Name == name {
			return o, nil
		}
	}
	return nil, errors.Errorf("performance object %s disappeared", name)
}

// Categories are the perflib object names
func (s *Source) Categories(ctx context.Context) ([]string, error) {
	objects, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		out = append(out, o.Name)
	}
	return out, nil
}

// Instances of the object.  Single instance objects have one instance named
// "".
func (s *Source) Instances(ctx context.Context, category string) ([]string, error) {
	o, err := s.object(category)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(o.Instances))
	for _, i := range o.Instances {
		out = append(out, i.Name)
	}
	return out, nil
}

// Counters defined by the object, not including base values
func (s *Source) Counters(ctx context.Context, category, instance string) ([]string, error) {
	o, err := s.object(category)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, d := range o.CounterDefs {
		if d.IsBaseValue {
			continue
		}
		out = append(out, d.Name)
	}
	return out, nil
}

// Open a counter
func (s *Source) Open(ctx context.Context, path perfcounter.Path) (perfcounter.Reader, error) {
	o, err := s.object(path.Category)
	if err != nil {
		return nil, err
	}
	for _, d := range o.CounterDefs {
		if d.Name == path.Counter && !d.IsBaseValue {
			return &reader{
				path:      path,
				nameIndex: o.NameIndex,
				conv:      &converter{counterType: d.CounterType},
			}, nil
		}
	}
	return nil, errors.Errorf("counter %s is not defined", path)
}

type reader struct {
	path      perfcounter.Path
	nameIndex uint
	conv      *converter
}

// NextValue queries only the counter's object so reads stay cheap
func (r *reader) NextValue(ctx context.Context) (float64, error) {
	objects, err := queryPerformanceData(strconv.FormatUint(uint64(r.nameIndex), 10))
	if err != nil {
		return 0, errors.Wrap(err, "could not query performance data")
	}
	at := now()

	for _, o := range objects {
		if o.NameIndex != r.nameIndex {
			continue
		}
		for _, inst := range o.Instances {
			if inst.Name != r.path.Instance {
				continue
			}
			for _, c := range inst.Counters {
				if c.Def.Name == r.path.Counter && !c.Def.IsBaseValue {
					return r.conv.next(c.Value, at), nil
				}
			}
		}
	}
	return 0, errors.Errorf("%s is no longer reported", r.path)
}
