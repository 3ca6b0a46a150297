// Package perfcountertest provides an in-memory perfcounter.Source for tests
package perfcountertest

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter"
)

// Counter is a fake counter that returns Values in order, repeating the last
// one once they run out.  If Err is set every read fails with it.
type Counter struct {
	Name   string
	Values []float64
	Err    error

	lock  sync.Mutex
	reads int
}

// Reads returns how many times the counter has been read
func (c *Counter) Reads() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.reads
}

// NextValue implements perfcounter.Reader
func (c *Counter) NextValue(ctx context.Context) (float64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.Err != nil {
		return 0, c.Err
	}
	i := c.reads
	c.reads++

	if len(c.Values) == 0 {
		return 0, nil
	}
	if i >= len(c.Values) {
		i = len(c.Values) - 1
	}
	return c.Values[i], nil
}

// Instance is a fake counter instance
type Instance struct {
	Name     string
	Counters []*Counter
}

// Category is a fake counter category
type Category struct {
	Name      string
	Instances []*Instance
}

// Source is an in-memory perfcounter.Source.  Objects are enumerated in the
// order they were added.
type Source struct {
	SourceName string
	Objects    []*Category
	// ListErr makes every enumeration call fail
	ListErr error
	// Opened records every path passed to Open
	Opened []perfcounter.Path
}

var _ perfcounter.Source = &Source{}

// NewSource returns an empty fake source
func NewSource(name string) *Source {
	return &Source{SourceName: name}
}

// Add adds a counter, creating its category and instance as needed, and
// returns it.  Adding a name that already exists (exact match) reuses it.
func (s *Source) Add(category, instance, counter string, values ...float64) *Counter {
	var cat *Category
	for _, c := range s.Objects {
		if c.Name == category {
			cat = c
		}
	}
	if cat == nil {
		cat = &Category{Name: category}
		s.Objects = append(s.Objects, cat)
	}

	var inst *Instance
	for _, i := range cat.Instances {
		if i.Name == instance {
			inst = i
		}
	}
	if inst == nil {
		inst = &Instance{Name: instance}
		cat.Instances = append(cat.Instances, inst)
	}

	c := &Counter{Name: counter, Values: values}
	inst.Counters = append(inst.Counters, c)
	return c
}

// Name implements perfcounter.Source
func (s *Source) Name() string {
	return s.SourceName
}

// Categories implements perfcounter.Source
func (s *Source) Categories(ctx context.Context) ([]string, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	var out []string
	for _, c := range s.Objects {
		out = append(out, c.Name)
	}
	return out, nil
}

// Instances implements perfcounter.Source
func (s *Source) Instances(ctx context.Context, category string) ([]string, error) {
	cat, err := s.category(category)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, i := range cat.Instances {
		out = append(out, i.Name)
	}
	return out, nil
}

// Counters implements perfcounter.Source
func (s *Source) Counters(ctx context.Context, category, instance string) ([]string, error) {
	inst, err := s.instance(category, instance)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, c := range inst.Counters {
		out = append(out, c.Name)
	}
	return out, nil
}

// Open implements perfcounter.Source
func (s *Source) Open(ctx context.Context, path perfcounter.Path) (perfcounter.Reader, error) {
	inst, err := s.instance(path.Category, path.Instance)
	if err != nil {
		return nil, err
	}
	for _, c := range inst.Counters {
		if c.Name == path.Counter {
			s.Opened = append(s.Opened, path)
			return c, nil
		}
	}
	return nil, errors.Errorf("fake counter %s does not exist", path)
}

func (s *Source) category(name string) (*Category, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	for _, c := range s.Objects {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, errors.Errorf("fake category %s does not exist", name)
}

func (s *Source) instance(category, name string) (*Instance, error) {
	cat, err := s.category(category)
	if err != nil {
		return nil, err
	}
	for _, i := range cat.Instances {
		if i.Name == name {
			return i, nil
		}
	}
	return nil, errors.Errorf("fake instance %s(%s) does not exist", category, name)
}
