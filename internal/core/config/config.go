// Package config contains the configuration of the sampler and the logic to
// load it from a YAML file.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config is the top level config of the tool
type Config struct {
	// Number of seconds to sleep between two samples.
	SampleInterval int `yaml:"SampleInterval" validate:"required"`
	// Number of samples to collect before exiting.
	MaxSamples int `yaml:"MaxSamples" validate:"required"`
	// The delimited text file that samples are written to.
	CsvPath string `yaml:"CsvPath" validate:"required"`
	// Field delimiter of the CSV file.  Must be a single character.
	CsvDelimiter string `yaml:"CsvDelimiter" default:"|"`
	// Either `overwrite` to reuse CsvPath on every run or `timestamp` to
	// suffix the file name with the start time of the run.  In both cases an
	// existing file at the target path is deleted first.
	FileNamePolicy string `yaml:"FileNamePolicy" default:"overwrite"`

	ProcessorCategory string `yaml:"ProcessorCategory" validate:"required"`
	// Pointers so that an explicitly empty instance (single instance
	// categories) is distinguishable from a missing key.
	ProcessorInstance *string `yaml:"ProcessorInstance" validate:"required"`
	ProcessorCounter  string  `yaml:"ProcessorCounter" validate:"required"`

	DiskCategory string  `yaml:"DiskCategory" validate:"required"`
	DiskInstance *string `yaml:"DiskInstance" validate:"required"`
	DiskCounter1 string  `yaml:"DiskCounter1" validate:"required"`
	DiskCounter2 string  `yaml:"DiskCounter2" validate:"required"`

	// The SQL transaction log counter is optional.  If it cannot be found the
	// LogBytes column is always 0.
	SqlCategory string `yaml:"SqlCategory"`
	SqlInstance string `yaml:"SqlInstance"`
	SqlCounter  string `yaml:"SqlCounter"`

	// Connection to a SQL Server whose sys.dm_os_performance_counters are
	// exposed as additional counter categories.
	SqlServer SQLServerConfig `yaml:"SqlServer"`

	// Disk devices that are left out of the PhysicalDisk _Total instance of
	// the host counters.  Items may be literals, globs or /regexps/.
	Disks []string `yaml:"Disks" default:"[\"/^loop[0-9]+$/\", \"/^dm-[0-9]+$/\"]"`

	// Whether to wait for a key press before exiting after a fatal error.
	// Only applies when stdin is a terminal.  Defaults to true.
	WaitForKeyOnError *bool `yaml:"WaitForKeyOnError"`
}

// SampleIntervalDuration is SampleInterval as a time.Duration
func (c *Config) SampleIntervalDuration() time.Duration {
	return time.Duration(c.SampleInterval) * time.Second
}

// ShouldWaitForKey reports whether a fatal error should block on a key press
func (c *Config) ShouldWaitForKey() bool {
	return c == nil || c.WaitForKeyOnError == nil || *c.WaitForKeyOnError
}

// SQLServerConfig holds the connection settings for the SQL Server counter
// source.  Either ConnectionString or Host enables the source.
type SQLServerConfig struct {
	// A complete go-mssqldb connection string.  Takes precedence over the
	// individual settings below.
	ConnectionString string `yaml:"ConnectionString"`
	Host             string `yaml:"Host"`
	Port             uint16 `yaml:"Port" default:"1433"`
	// UserID used to access the SQL Server instance.  Leave empty to use
	// integrated authentication.
	UserID   string `yaml:"UserID"`
	Password string `yaml:"Password"`
	Database string `yaml:"Database"`
	// The app name used when connecting to the SQL Server.
	AppName string `yaml:"AppName" default:"sqldtu-perfmon"`
	// Timeout in seconds of each query against the server.
	QueryTimeoutSeconds int `yaml:"QueryTimeoutSeconds" default:"10"`
}

// Enabled reports whether a SQL Server connection is configured
func (s SQLServerConfig) Enabled() bool {
	return s.ConnectionString != "" || s.Host != ""
}

// QueryTimeout is QueryTimeoutSeconds as a time.Duration
func (s SQLServerConfig) QueryTimeout() time.Duration {
	return time.Duration(s.QueryTimeoutSeconds) * time.Second
}

// DSN returns the connection string to hand to the sqlserver driver
func (s SQLServerConfig) DSN() string {
	if s.ConnectionString != "" {
		return s.ConnectionString
	}

	query := url.Values{}
	if s.Database != "" {
		query.Add("database", s.Database)
	}
	if s.AppName != "" {
		query.Add("app name", s.AppName)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port))),
		RawQuery: query.Encode(),
	}
	if s.UserID != "" {
		u.User = url.UserPassword(s.UserID, s.Password)
	}
	return u.String()
}

// String is used when logging the SQL Server settings so the password never
// shows up in the output.
func (s SQLServerConfig) String() string {
	if s.ConnectionString != "" {
		return "<connection string>"
	}
	return fmt.Sprintf("%s:%d (user %q, database %q)", s.Host, s.Port, s.UserID, s.Database)
}
