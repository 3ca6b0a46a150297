package winperf

import (
	"time"
)

// Counter types from winperf.h that get converted.  Everything else is
// reported raw.
const (
	perfCounterCounter       = 0x10410400
	perfCounterBulkCount     = 0x10410500
	perf100nsecTimer         = 0x20510500
	perf100nsecTimerInv      = 0x21510500
	perfCounterRawcount      = 0x00010000
	perfCounterLargeRawcount = 0x00010100
)

// 100ns ticks per second
const ticksPerSecond = 1e7

type rawSample struct {
	value int64
	at    time.Time
}

// converter turns successive raw values of one counter into the value
// perfmon would display
type converter struct {
	counterType uint32
	previous    *rawSample
}

func (c *converter) next(value int64, at time.Time) float64 {
	prev := c.previous
	c.previous = &rawSample{value: value, at: at}

	switch c.counterType {
	case perfCounterCounter, perfCounterBulkCount:
		if prev == nil {
			return 0
		}
		elapsed := at.Sub(prev.at).Seconds()
		if elapsed <= 0 || value < prev.value {
			return 0
		}
		return float64(value-prev.value) / elapsed
	case perf100nsecTimer, perf100nsecTimerInv:
		if prev == nil {
			return 0
		}
		elapsed := at.Sub(prev.at).Seconds() * ticksPerSecond
		if elapsed <= 0 || value < prev.value {
			return 0
		}
		pct := clampPercent(float64(value-prev.value) / elapsed * 100)
		if c.counterType == perf100nsecTimerInv {
			return 100 - pct
		}
		return pct
	default:
		return float64(value)
	}
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
