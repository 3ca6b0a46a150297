// Package perfcounter resolves performance counters by their category,
// instance and counter names against a Source of live counters.
//
// A Source is anything that can enumerate counter categories, the instances
// of a category and the counters of an instance, and open a counter for
// reading.  The host sources (gopsutil, Windows perflib) and the SQL Server
// source live in subpackages.
package perfcounter

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithFields(log.Fields{"component": "perfcounter"})

// Path identifies a counter by its category (perfmon object), instance and
// counter name.  The instance is empty for single instance categories.
type Path struct {
	Category string
	Instance string
	Counter  string
}

// IsZero is true if none of the path elements is set
func (p Path) IsZero() bool {
	return p.Category == "" && p.Instance == "" && p.Counter == ""
}

// String formats the path the way perfmon does, e.g.
// `\Processor(_Total)\% Processor Time`.
func (p Path) String() string {
	if p.Instance == "" {
		return fmt.Sprintf(`\%s\%s`, p.Category, p.Counter)
	}
	return fmt.Sprintf(`\%s(%s)\%s`, p.Category, p.Instance, p.Counter)
}

// Reader produces successive values of a single counter.  Rate and
// percentage counters are computed against the previous read, so the first
// read of a freshly opened counter yields 0.
type Reader interface {
	NextValue(ctx context.Context) (float64, error)
}

// Source enumerates and opens the counters of a host or database.  Names
// passed to Instances, Counters and Open are always spelled exactly as the
// Source returned them.
type Source interface {
	// Name is a short name used in logs, e.g. "host" or "mssql"
	Name() string
	Categories(ctx context.Context) ([]string, error)
	Instances(ctx context.Context, category string) ([]string, error)
	Counters(ctx context.Context, category, instance string) ([]string, error)
	Open(ctx context.Context, path Path) (Reader, error)
}

// Handle is a resolved counter that can be read many times
type Handle struct {
	// Path as spelled by the source, which may differ in case from the
	// configured path.
	Path Path
	// Name of the source the counter was resolved in
	Source string

	reader Reader
}

// NewHandle wraps an opened Reader
func NewHandle(path Path, source string, reader Reader) *Handle {
	return &Handle{
		Path:   path,
		Source: source,
		reader: reader,
	}
}

// NextValue reads the current value of the counter
func (h *Handle) NextValue(ctx context.Context) (float64, error) {
	v, err := h.reader.NextValue(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "could not read %s", h.Path)
	}
	return v, nil
}

func (h *Handle) String() string {
	return h.Path.String()
}

// Resolve looks up the counter identified by path in src.  The category,
// instance and counter names are each matched case-insensitively against
// what src enumerates, the first match winning.  A *NotFoundError is
// returned if any of the three elements does not exist.
func Resolve(ctx context.Context, src Source, path Path) (*Handle, error) {
	categories, err := src.Categories(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "could not list %s counter categories", src.Name())
	}
	category, ok := findFold(categories, path.Category)
	if !ok {
		return nil, &NotFoundError{Kind: KindCategory, Name: path.Category}
	}

	instances, err := src.Instances(ctx, category)
	if err != nil {
		return nil, errors.Wrapf(err, "could not list instances of %s", category)
	}
	instance, ok := findFold(instances, path.Instance)
	if !ok {
		return nil, &NotFoundError{Kind: KindInstance, Name: path.Instance}
	}

	counters, err := src.Counters(ctx, category, instance)
	if err != nil {
		return nil, errors.Wrapf(err, "could not list counters of %s(%s)", category, instance)
	}
	counter, ok := findFold(counters, path.Counter)
	if !ok {
		return nil, &NotFoundError{Kind: KindCounter, Name: path.Counter}
	}

	resolved := Path{Category: category, Instance: instance, Counter: counter}
	reader, err := src.Open(ctx, resolved)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", resolved)
	}

	source := sourceNameFor(ctx, src, category)
	logger.WithFields(log.Fields{
		"counter": resolved.String(),
		"source":  source,
	}).Debug("Resolved counter")

	return NewHandle(resolved, source, reader), nil
}

// Result is the outcome of resolving an optional counter.  Exactly one of
// Handle and Err is set.
type Result struct {
	Handle *Handle
	Err    error
}

// Found is true if the counter was resolved
func (r Result) Found() bool {
	return r.Handle != nil
}

// ErrNotConfigured is the reason given for an optional counter whose path is
// entirely blank
var ErrNotConfigured = errors.WithMessage(ErrNotFound, "optional counter is not configured")

// ResolveOptional resolves a counter that the caller can do without.  Any
// failure, not just a missing counter, is logged as a warning and returned as
// the Result's Err instead of aborting.
func ResolveOptional(ctx context.Context, src Source, path Path) Result {
	if path.IsZero() {
		return Result{Err: ErrNotConfigured}
	}

	h, err := Resolve(ctx, src, path)
	if err != nil {
		logger.WithError(err).WithField("counter", path.String()).Warn("Optional counter is unavailable, continuing without it")
		return Result{Err: err}
	}
	return Result{Handle: h}
}

func findFold(names []string, name string) (string, bool) {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}
