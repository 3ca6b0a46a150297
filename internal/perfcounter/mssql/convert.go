package mssql

import "time"

// cntr_type values of sys.dm_os_performance_counters
const (
	perfCounterBulkCount     = 272696576
	perfCounterLargeRawcount = 65792
	perfLargeRawFraction     = 537003264
	perfAverageBulk          = 1073874176
)

type counterValue struct {
	value int64
	base  int64
	at    time.Time
}

type converter struct {
	counterType int64
	previous    *counterValue
}

func (c *converter) next(v counterValue) float64 {
	prev := c.previous
	c.previous = &v

	switch c.counterType {
	case perfCounterBulkCount:
		// cumulative since the server started
		if prev == nil {
			return 0
		}
		elapsed := v.at.Sub(prev.at).Seconds()
		if elapsed <= 0 || v.value < prev.value {
			return 0
		}
		return float64(v.value-prev.value) / elapsed
	case perfLargeRawFraction:
		if v.base == 0 {
			return 0
		}
		return float64(v.value) / float64(v.base) * 100
	case perfAverageBulk:
		if prev == nil {
			return 0
		}
		baseDiff := v.base - prev.base
		if baseDiff <= 0 || v.value < prev.value {
			return 0
		}
		return float64(v.value-prev.value) / float64(baseDiff)
	default:
		return float64(v.value)
	}
}
