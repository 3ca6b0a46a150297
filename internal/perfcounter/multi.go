package perfcounter

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Sources combines several sources into one.  Categories are listed in
// source order, so when two sources expose the same category the first one
// wins.  Every other call is routed to the source that listed the category.
type Sources []Source

var _ Source = Sources{}

// Name joins the names of the combined sources
func (s Sources) Name() string {
	names := make([]string, len(s))
	for i := range s {
		names[i] = s[i].Name()
	}
	return strings.Join(names, "+")
}

// Categories concatenates the categories of all sources.  A source that
// cannot list its categories is skipped with a warning, so an unreachable
// optional source doesn't hide the others.  It is only an error if no source
// could be listed.
func (s Sources) Categories(ctx context.Context) ([]string, error) {
	var out []string
	var lastErr error
	listed := 0
	for _, src := range s {
		cats, err := src.Categories(ctx)
		if err != nil {
			lastErr = errors.Wrapf(err, "could not list %s counter categories", src.Name())
			logger.WithError(err).WithField("source", src.Name()).Warn("Skipping counter source")
			continue
		}
		listed++
		out = append(out, cats...)
	}
	if listed == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// Instances of category in the source that owns it
func (s Sources) Instances(ctx context.Context, category string) ([]string, error) {
	src, err := s.route(ctx, category)
	if err != nil {
		return nil, err
	}
	return src.Instances(ctx, category)
}

// Counters of the category instance in the source that owns it
func (s Sources) Counters(ctx context.Context, category, instance string) ([]string, error) {
	src, err := s.route(ctx, category)
	if err != nil {
		return nil, err
	}
	return src.Counters(ctx, category, instance)
}

// Open the counter in the source that owns its category
func (s Sources) Open(ctx context.Context, path Path) (Reader, error) {
	src, err := s.route(ctx, path.Category)
	if err != nil {
		return nil, err
	}
	return src.Open(ctx, path)
}

func (s Sources) route(ctx context.Context, category string) (Source, error) {
	for _, src := range s {
		cats, err := src.Categories(ctx)
		if err != nil {
			// already reported by Categories
			continue
		}
		for _, c := range cats {
			if c == category {
				return src, nil
			}
		}
	}
	return nil, &NotFoundError{Kind: KindCategory, Name: category}
}

// sourceNameFor returns the name of the source that actually owns category,
// looking through Sources.
func sourceNameFor(ctx context.Context, src Source, category string) string {
	if multi, ok := src.(Sources); ok {
		if owner, err := multi.route(ctx, category); err == nil {
			return sourceNameFor(ctx, owner, category)
		}
	}
	return src.Name()
}
