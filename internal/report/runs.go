package report

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/studiowebux/chatload/internal/loadtest"
)

// PrintRuns lists persisted runs, newest first
func PrintRuns(w io.Writer, runs []*loadtest.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, styleSubtle.Render("No load test runs recorded"))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorGray)).
		Headers("ID", "Name", "Started", "Host", "Preset", "Users", "Status", "Requests", "Failures", "Avg", "P95")
	for _, run := range runs {
		preset := run.Preset
		if preset == "" {
			preset = "-"
		}
		t.Row(
			fmt.Sprintf("%d", run.ID),
			run.Name,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Host,
			preset,
			fmt.Sprintf("%d", run.Users),
			run.Status,
			fmt.Sprintf("%d", run.TotalRequests),
			fmt.Sprintf("%d", run.TotalFailures),
			fmt.Sprintf("%.0fms", run.AvgResponseMs),
			fmt.Sprintf("%dms", run.P95ResponseMs),
		)
	}
	fmt.Fprintln(w, t.String())
}

// PrintRunDetails prints one run and its per-endpoint summary
func PrintRunDetails(w io.Writer, run *loadtest.Run, endpoints []*loadtest.EndpointSummary) {
	fmt.Fprintln(w, styleTitle.Render(run.Name))
	fmt.Fprintf(w, "%s%s\n\n", styleSubtle.Render("Host: "), run.Host)

	fmt.Fprintln(w, styleTitle.Render("Status"))
	fmt.Fprintf(w, "Status:     %s\n", run.Status)
	fmt.Fprintf(w, "Started:    %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	switch {
	case run.IsCompleted() && run.CompletedAt != nil:
		fmt.Fprintf(w, "Completed:  %s\n", run.CompletedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Duration:   %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	case run.IsRunning():
		fmt.Fprintln(w, styleSubtle.Render("Run never finished (still running or interrupted hard)"))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, styleTitle.Render("Requests"))
	fmt.Fprintf(w, "Total:      %d\n", run.TotalRequests)
	fmt.Fprintf(w, "Failures:   %d (%.1f%%)\n", run.TotalFailures, run.FailRatio()*100)
	fmt.Fprintf(w, "RPS:        %.2f\n", run.CurrentRPS)
	fmt.Fprintln(w)

	fmt.Fprintln(w, styleTitle.Render("Latency"))
	fmt.Fprintf(w, "Avg:  %.2fms\n", run.AvgResponseMs)
	fmt.Fprintf(w, "Min:  %dms\n", run.MinResponseMs)
	fmt.Fprintf(w, "Max:  %dms\n", run.MaxResponseMs)
	fmt.Fprintf(w, "P50:  %dms\n", run.P50ResponseMs)
	fmt.Fprintf(w, "P95:  %dms\n", run.P95ResponseMs)
	fmt.Fprintf(w, "P99:  %dms\n", run.P99ResponseMs)

	if len(endpoints) == 0 {
		return
	}
	fmt.Fprintln(w)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorGray)).
		Headers("Method", "Name", "Requests", "Failures", "Avg", "Max")
	for _, e := range endpoints {
		t.Row(e.Method, e.Name,
			fmt.Sprintf("%d", e.Requests),
			fmt.Sprintf("%d", e.Failures),
			fmt.Sprintf("%.0fms", e.AvgResponseMs),
			fmt.Sprintf("%dms", e.MaxResponseMs))
	}
	fmt.Fprintln(w, t.String())
}
