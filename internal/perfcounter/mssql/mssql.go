// Package mssql exposes the counters a SQL Server publishes about itself in
// sys.dm_os_performance_counters.  It is read from the server being measured,
// including Azure SQL where the SQLServer:* perfmon objects aren't available.
package mssql

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	// registers the sqlserver driver
	_ "github.com/denisenkom/go-mssqldb"
	"github.com/pkg/errors"
	"github.com/signalfx/sqldtu-perfmon/internal/perfcounter"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithFields(log.Fields{"component": "perfcounter", "source": "mssql"})

var now = time.Now

const (
	categoriesQuery  = `SELECT DISTINCT RTRIM(object_name) FROM sys.dm_os_performance_counters ORDER BY 1`
	instancesQuery   = `SELECT DISTINCT RTRIM(instance_name) FROM sys.dm_os_performance_counters WHERE RTRIM(object_name) = @p1 ORDER BY 1`
	countersQuery    = `SELECT RTRIM(counter_name) FROM sys.dm_os_performance_counters WHERE RTRIM(object_name) = @p1 AND RTRIM(instance_name) = @p2 AND cntr_type <> 1073939712`
	counterTypeQuery = `SELECT TOP 1 cntr_type FROM sys.dm_os_performance_counters WHERE RTRIM(object_name) = @p1 AND RTRIM(instance_name) = @p2 AND RTRIM(counter_name) = @p3`
	valueQuery       = `SELECT RTRIM(counter_name), cntr_value FROM sys.dm_os_performance_counters WHERE RTRIM(object_name) = @p1 AND RTRIM(instance_name) = @p2 AND RTRIM(counter_name) IN (@p3, @p4)`
)

// Source of SQL Server counters
type Source struct {
	db      *sql.DB
	timeout time.Duration

	lock sync.Mutex
	// SQLServer:X name -> MSSQL$INSTANCE:X name of named instances
	aliases map[string]string
}

var _ perfcounter.Source = &Source{}

// Open a connection pool to the server.  Nothing is sent to the server until
// the first query.
func Open(dsn string, timeout time.Duration) (*Source, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "could not open sql server connection")
	}
	return New(db, timeout), nil
}

// New makes a source around an existing pool
func New(db *sql.DB, timeout time.Duration) *Source {
	return &Source{
		db:      db,
		timeout: timeout,
		aliases: map[string]string{},
	}
}

// Close the connection pool
func (s *Source) Close() error {
	return s.db.Close()
}

// Name of the source
func (s *Source) Name() string {
	return "mssql"
}

func (s *Source) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error querying sys.dm_os_performance_counters")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Source) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Categories lists the object names.  Objects of a named instance are also
// listed under their default instance name, so `SQLServer:Databases` finds
// `MSSQL$SQLEXPRESS:Databases`.
func (s *Source) Categories(ctx context.Context) ([]string, error) {
	objects, err := s.queryStrings(ctx, categoriesQuery)
	if err != nil {
		return nil, err
	}

	present := map[string]bool{}
	for _, o := range objects {
		present[o] = true
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	out := objects
	for _, o := range objects {
		alias, ok := defaultInstanceName(o)
		if !ok || present[alias] {
			continue
		}
		if _, seen := s.aliases[alias]; !seen {
			logger.Debugf("Listing %s as %s", o, alias)
		}
		s.aliases[alias] = o
		present[alias] = true
		out = append(out, alias)
	}
	return out, nil
}

func (s *Source) objectName(category string) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if o, ok := s.aliases[category]; ok {
		return o
	}
	return category
}

// Instances of the object
func (s *Source) Instances(ctx context.Context, category string) ([]string, error) {
	return s.queryStrings(ctx, instancesQuery, s.objectName(category))
}

// Counters of an object instance, excluding the base counters that are only
// used to compute fractions and averages
func (s *Source) Counters(ctx context.Context, category, instance string) ([]string, error) {
	return s.queryStrings(ctx, countersQuery, s.objectName(category), instance)
}

// Open a counter
func (s *Source) Open(ctx context.Context, path perfcounter.Path) (perfcounter.Reader, error) {
	object := s.objectName(path.Category)

	qctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var counterType int64
	err := s.db.QueryRowContext(qctx, counterTypeQuery, object, path.Instance, path.Counter).Scan(&counterType)
	if err != nil {
		return nil, errors.Wrapf(err, "could not get the type of %s", path)
	}

	return &reader{
		source: s,
		object: object,
		path:   path,
		conv:   &converter{counterType: counterType},
	}, nil
}

type reader struct {
	source *Source
	object string
	path   perfcounter.Path
	conv   *converter
}

func (r *reader) NextValue(ctx context.Context) (float64, error) {
	ctx, cancel := r.source.withTimeout(ctx)
	defer cancel()

	base := baseCounterName(r.path.Counter)
	rows, err := r.source.db.QueryContext(ctx, valueQuery, r.object, r.path.Instance, r.path.Counter, base)
	if err != nil {
		return 0, errors.Wrap(err, "error querying sys.dm_os_performance_counters")
	}
	defer rows.Close()

	var v counterValue
	found := false
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return 0, err
		}
		switch {
		case strings.EqualFold(name, r.path.Counter):
			v.value = value
			found = true
		case strings.EqualFold(name, base):
			v.base = value
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.Errorf("%s is no longer reported", r.path)
	}

	v.at = now()
	return r.conv.next(v), nil
}

// defaultInstanceName maps `MSSQL$NAME:Object` to `SQLServer:Object`
func defaultInstanceName(object string) (string, bool) {
	if !strings.HasPrefix(strings.ToUpper(object), "MSSQL$") {
		return "", false
	}
	i := strings.Index(object, ":")
	if i < 0 {
		return "", false
	}
	return "SQLServer" + object[i:], true
}

// baseCounterName is the name of the base counter of fraction and average
// counters, e.g. "Average Wait Time (ms)" has "Average Wait Time Base".
func baseCounterName(counter string) string {
	name := counter
	if i := strings.LastIndex(name, " ("); i > 0 && strings.HasSuffix(name, ")") {
		name = name[:i]
	}
	return name + " base"
}
