package ui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/srodi/proctop/pkg/types"
)

// PlainOptions controls RenderPlain.
type PlainOptions struct {
	Interval time.Duration
	View     types.ViewState
	// Limit caps the number of process rows; zero prints all.
	Limit  int
	Banner bool
}

// RenderPlain writes a batch as plain text for pipes and dumb terminals.
func RenderPlain(w io.Writer, b *types.Batch, rows []types.ProcessSnapshot, opts PlainOptions) error {
	var buf strings.Builder
	if opts.Banner {
		buf.WriteString(Banner())
	}
	if b == nil {
		buf.WriteString("Waiting for first sample...\n")
		_, err := io.WriteString(w, buf.String())
		return err
	}

	fmt.Fprintf(&buf, "Updated: %s | Interval: %v | Sort: %s", b.Timestamp.Format(time.RFC3339), opts.Interval, opts.View.Sort)
	if opts.View.Filter != "" {
		fmt.Fprintf(&buf, " | Filter: %q", opts.View.Filter)
	}
	buf.WriteString("\n")
	writeSystemSummary(&buf, b)
	buf.WriteString("\n")

	if len(rows) == 0 {
		buf.WriteString("No processes matched current filter\n")
		_, err := io.WriteString(w, buf.String())
		return err
	}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tUSER\tNI\tS\tCPU%\tMEM%\tRES\tTHR\tCOMMAND")
	for _, p := range rows {
		status := p.Status.Code()
		if p.Stale {
			status += "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%.1f\t%.1f\t%s\t%d\t%s\n",
			p.PID, p.User, p.Nice, status, p.CPUPercent, p.MemPercent, strings.TrimSpace(FormatBytes(p.RSSBytes)), p.Threads, p.Cmdline)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, buf.String())
	return err
}

func writeSystemSummary(buf *strings.Builder, b *types.Batch) {
	sys := b.System
	for i, pct := range b.PerCore {
		spark := ""
		if i < len(b.History) {
			spark = " " + Sparkline(b.History[i], 20)
		}
		fmt.Fprintf(buf, "CPU%-2d [%s] %5.1f%%%s\n", i, Bar(pct, 20), pct, spark)
	}
	fmt.Fprintf(buf, "Avg   [%s] %5.1f%%\n", Bar(b.CPUPercent, 20), b.CPUPercent)
	fmt.Fprintf(buf, "Mem   [%s] %s/%s\n", Bar(sys.MemPercent(), 20),
		strings.TrimSpace(FormatBytes(sys.MemUsed())), strings.TrimSpace(FormatBytes(sys.MemTotal)))
	fmt.Fprintf(buf, "Swp   [%s] %s/%s\n", Bar(sys.SwapPercent(), 20),
		strings.TrimSpace(FormatBytes(sys.SwapUsed)), strings.TrimSpace(FormatBytes(sys.SwapTotal)))
	fmt.Fprintf(buf, "Tasks: %d, %d running | Load average: %.2f %.2f %.2f | Uptime: %s\n",
		b.Stats.Tasks, b.Stats.Running, sys.Load1, sys.Load5, sys.Load15, FormatUptime(sys.UptimeSeconds))
}
