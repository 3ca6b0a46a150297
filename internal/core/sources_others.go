//go:build !windows
// +build !windows

package core

import (
	"github.com/signalfx/sqldtu-perfmon/internal/core/config"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter/host"
)

func newHostSource(conf *config.Config) (perfcounter.Source, error) {
	return host.New(host.Config{Disks: conf.Disks})
}
