package sink

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/signalfx/sqldtu-perfmon/internal/sampler"
)

// ColumnWidth of every console field
const ColumnWidth = 22

const consoleTimeLayout = "2006-01-02 15:04:05"

var consoleHeader = []string{"Interval", "Cpu", "Disk Read", "Disk Write", "Log Bytes"}

// Console prints samples as rows of right aligned, fixed width fields
type Console struct {
	out         io.Writer
	wroteHeader bool
}

var _ sampler.Sink = &Console{}

// NewConsole makes a console sink writing to out
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Name of the sink
func (c *Console) Name() string {
	return "console"
}

// Write prints the sample, preceded by the header row the first time
func (c *Console) Write(s sampler.Sample) error {
	var sb strings.Builder
	if !c.wroteHeader {
		sb.WriteString(row(consoleHeader))
	}
	sb.WriteString(row([]string{
		s.CollectedAt.UTC().Format(consoleTimeLayout),
		strconv.FormatFloat(s.CPU, 'f', 2, 64),
		strconv.FormatFloat(s.DiskRead, 'f', 2, 64),
		strconv.FormatFloat(s.DiskWrite, 'f', 2, 64),
		strconv.FormatFloat(s.LogBytes, 'f', 2, 64),
	}))

	if _, err := io.WriteString(c.out, sb.String()); err != nil {
		return errors.Wrap(err, "could not print sample")
	}
	c.wroteHeader = true
	return nil
}

func row(fields []string) string {
	var sb strings.Builder
	sb.WriteString("|")
	for _, f := range fields {
		fmt.Fprintf(&sb, "%*s|", ColumnWidth, f)
	}
	sb.WriteString("\n")
	return sb.String()
}

// CounterRow describes a counter the run reads
type CounterRow struct {
	Role    string
	Counter string
	Source  string
	Status  string
}

// PrintCounters lists the counters of a run
func PrintCounters(out io.Writer, rows []CounterRow) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Reading", "Counter", "Source", "Status"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, r := range rows {
		table.Append([]string{r.Role, r.Counter, r.Source, r.Status})
	}
	table.Render()
}
