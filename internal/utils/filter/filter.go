// Package filter contains common string filtering logic.  Filter items
// wrapped in slashes (`/^loop[0-9]+$/`) are regular expressions, items
// containing glob characters are globs, and everything else must match
// exactly.
package filter

import (
	"regexp"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// StringFilter matches against simple strings
type StringFilter interface {
	Matches(string) bool
}

type basicStringFilter struct {
	staticSet map[string]bool
	regexps   []*regexp.Regexp
	globs     []glob.Glob
}

// NewStringFilter returns a filter that can match against the provided items.
func NewStringFilter(items []string) (StringFilter, error) {
	f := &basicStringFilter{
		staticSet: make(map[string]bool),
	}
	for _, m := range items {
		switch {
		case isRegex(m):
			re, err := regexp.Compile(stripSlashes(m))
			if err != nil {
				return nil, errors.Wrapf(err, "invalid filter regexp %s", m)
			}
			f.regexps = append(f.regexps, re)
		case isGlobbed(m):
			g, err := glob.Compile(m)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid filter glob %s", m)
			}
			f.globs = append(f.globs, g)
		default:
			f.staticSet[m] = true
		}
	}

	return f, nil
}

func (f *basicStringFilter) Matches(s string) bool {
	if f.staticSet[s] {
		return true
	}
	for _, re := range f.regexps {
		if re.MatchString(s) {
			return true
		}
	}
	for _, g := range f.globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}

func isRegex(s string) bool {
	return len(s) > 2 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/")
}

func isGlobbed(s string) bool {
	return strings.ContainsAny(s, "*?[]{}")
}

func stripSlashes(s string) string {
	return s[1 : len(s)-1]
}
