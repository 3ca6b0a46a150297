package sink

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/signalfx/sqldtu-perfmon/internal/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	require.NoError(t, c.Write(sampler.Sample{CollectedAt: ts, CPU: 12.5, DiskRead: 3, DiskWrite: 0.256, LogBytes: 4096}))
	require.NoError(t, c.Write(sampler.Sample{CollectedAt: ts.Add(time.Second)}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "|              Interval|                   Cpu|             Disk Read|            Disk Write|             Log Bytes|", lines[0])
	assert.Equal(t, "|   2024-03-01 10:00:00|                 12.50|                  3.00|                  0.26|               4096.00|", lines[1])

	for _, l := range lines {
		fields := strings.Split(strings.Trim(l, "|"), "|")
		require.Len(t, fields, 5)
		for _, f := range fields {
			assert.Len(t, f, ColumnWidth)
		}
	}
}

func TestPrintCounters(t *testing.T) {
	var buf bytes.Buffer
	PrintCounters(&buf, []CounterRow{
		{Role: "Cpu", Counter: `\Processor(_Total)\% Processor Time`, Source: "host", Status: "ok"},
		{Role: "Log Bytes", Counter: `\SQLServer:Databases(_Total)\Log Bytes Flushed/sec`, Status: "unavailable"},
	})

	out := buf.String()
	assert.Contains(t, out, "READING")
	assert.Contains(t, out, `\Processor(_Total)\% Processor Time`)
	assert.Contains(t, out, "unavailable")
}
