package core

import (
	"github.com/pkg/errors"
	"github.com/signalfx/sqldtu-perfmon/internal/core/config"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter/mssql"
	log "github.com/sirupsen/logrus"
)

// BuildSources makes the counter sources the config asks for: the host
// counters, plus the SQL Server ones if a server is configured.  The returned
// func releases them.
func BuildSources(conf *config.Config) (perfcounter.Source, func(), error) {
	host, err := newHostSource(conf)
	if err != nil {
		return nil, nil, err
	}
	sources := perfcounter.Sources{host}
	closer := func() {}

	if conf.SqlServer.Enabled() {
		log.Infof("Reading SQL Server counters from %s", conf.SqlServer)
		db, err := mssql.Open(conf.SqlServer.DSN(), conf.SqlServer.QueryTimeout())
		if err != nil {
			return nil, nil, errors.WithMessage(err, "invalid SqlServer config")
		}
		sources = append(sources, db)
		closer = func() {
			if err := db.Close(); err != nil {
				log.WithError(err).Warn("Could not close SQL Server connection")
			}
		}
	}

	return sources, closer, nil
}
