package sink

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// File name policies.  A run uses exactly one.
const (
	// OverwritePolicy writes to the configured path, replacing the file of
	// a previous run
	OverwritePolicy = "overwrite"
	// TimestampPolicy inserts the start time before the extension, e.g.
	// perf-20240301100000.csv
	TimestampPolicy = "timestamp"
)

const fileNameTimeLayout = "20060102150405"

// PreparePath resolves the output file of a run.  The path is made absolute,
// the file name policy is applied, the parent directory created and any
// existing file at the resulting path deleted so that the run starts with an
// empty file.
func PreparePath(path string, policy string, now time.Time) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "could not resolve output path %s", path)
	}

	switch policy {
	case OverwritePolicy, "":
	case TimestampPolicy:
		ext := filepath.Ext(abs)
		abs = strings.TrimSuffix(abs, ext) + "-" + now.Format(fileNameTimeLayout) + ext
	default:
		return "", errors.Errorf("unknown file name policy %q, must be %q or %q", policy, OverwritePolicy, TimestampPolicy)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", errors.Wrapf(err, "could not create directory for %s", abs)
	}

	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "could not delete existing output file %s", abs)
	}
	return abs, nil
}
