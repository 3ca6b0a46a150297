// Package sink has the destinations samples are written to: a delimited
// text file and a fixed width console table.
package sink

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/signalfx/sqldtu-perfmon/internal/sampler"
)

// TimestampLayout of the Interval column of the file, always UTC
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Header is the first line of every file
var Header = []string{"Interval", "% Processor Time", "Disk Reads/sec", "Disk Writes/sec", "Log Bytes Flushed/sec"}

// CSV appends samples to a delimited text file.  The file is opened and
// closed for every sample so it can be inspected while a run is going.
type CSV struct {
	path        string
	delimiter   rune
	wroteHeader bool
}

var _ sampler.Sink = &CSV{}

// NewCSV makes a file sink.  The delimiter must be a single character.
func NewCSV(path string, delimiter string) (*CSV, error) {
	if utf8.RuneCountInString(delimiter) != 1 {
		return nil, errors.Errorf("delimiter %q must be a single character", delimiter)
	}
	d, _ := utf8.DecodeRuneInString(delimiter)
	if d == '"' || d == '\r' || d == '\n' || d == utf8.RuneError {
		return nil, errors.Errorf("delimiter %q is not allowed", delimiter)
	}
	return &CSV{path: path, delimiter: d}, nil
}

// CreateCSV checks the delimiter, then prepares the output file with
// PreparePath and returns a sink writing to it
func CreateCSV(path, delimiter, policy string, now time.Time) (*CSV, error) {
	c, err := NewCSV(path, delimiter)
	if err != nil {
		return nil, err
	}
	if c.path, err = PreparePath(path, policy, now); err != nil {
		return nil, err
	}
	return c, nil
}

// Name of the sink
func (c *CSV) Name() string {
	return "csv file " + c.path
}

// Path of the file
func (c *CSV) Path() string {
	return c.path
}

// Write appends the sample, preceded by the header if this is the first one
func (c *CSV) Write(s sampler.Sample) (err error) {
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "could not open output file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "could not close output file")
		}
	}()

	w := csv.NewWriter(f)
	w.Comma = c.delimiter

	if !c.wroteHeader {
		if err := w.Write(Header); err != nil {
			return err
		}
	}
	if err := w.Write(Record(s)); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "could not write output file")
	}

	c.wroteHeader = true
	return nil
}

// Record is the file representation of a sample
func Record(s sampler.Sample) []string {
	return []string{
		s.CollectedAt.UTC().Format(TimestampLayout),
		formatValue(s.CPU),
		formatValue(s.DiskRead),
		formatValue(s.DiskWrite),
		formatValue(s.LogBytes),
	}
}

// formatValue is locale independent and round trips
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
