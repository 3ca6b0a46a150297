//go:build windows
// +build windows

package core

import (
	"github.com/signalfx/sqldtu-perfmon/internal/core/config"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter/winperf"
)

// Windows has the real perfmon counters, so any object can be sampled
func newHostSource(conf *config.Config) (perfcounter.Source, error) {
	return winperf.New(), nil
}
