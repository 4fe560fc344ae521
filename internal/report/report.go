// Package report prints run banners and summaries to the console.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"github.com/studiowebux/chatload/internal/loadtest"
)

var (
	colorGreen = lipgloss.AdaptiveColor{Light: "#006400", Dark: "#00ff00"}
	colorRed   = lipgloss.AdaptiveColor{Light: "#8b0000", Dark: "#ff0000"}
	colorGray  = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#888888"}
	colorCyan  = lipgloss.AdaptiveColor{Light: "#008b8b", Dark: "#00ffff"}

	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleSubtle = lipgloss.NewStyle().Foreground(colorGray)
	styleOK     = lipgloss.NewStyle().Foreground(colorGreen)
	styleFail   = lipgloss.NewStyle().Foreground(colorRed)
)

const ruleWidth = 50

// Register attaches the console listeners to a run environment
func Register(env *loadtest.Environment, w io.Writer) {
	env.Events.OnTestStart(func(env *loadtest.Environment) {
		PrintBanner(w, env.Host)
	})
	env.Events.OnTestStop(func(env *loadtest.Environment) {
		PrintSummary(w, env.Stats, time.Now())
	})
	env.Events.OnRequestFailure(func(ev loadtest.RequestEvent) {
		env.Logger.Error("request failed",
			zap.String("method", ev.Method),
			zap.String("name", ev.Name),
			zap.Int("status", ev.StatusCode),
			zap.Int64("response_ms", ev.ResponseTime.Milliseconds()),
			zap.Error(ev.Err))
	})
}

// PrintBanner announces the start of a run
func PrintBanner(w io.Writer, host string) {
	fmt.Fprintln(w, styleTitle.Render("Chat API load test started"))
	fmt.Fprintf(w, "%s%s\n", styleSubtle.Render("Target host: "), host)
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
}

// PrintSummary prints the aggregate counters and the per-endpoint table
func PrintSummary(w io.Writer, stats *loadtest.Stats, now time.Time) {
	total := stats.Total()

	fmt.Fprintln(w)
	fmt.Fprintln(w, styleTitle.Render("Chat API load test finished"))
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
	fmt.Fprintf(w, "Total requests:     %d\n", total.NumRequests)
	failures := fmt.Sprintf("%d", total.NumFailures)
	if total.NumFailures > 0 {
		failures = styleFail.Render(failures)
	} else {
		failures = styleOK.Render(failures)
	}
	fmt.Fprintf(w, "Failed requests:    %s\n", failures)
	fmt.Fprintf(w, "Avg response time:  %.2fms\n", total.AvgResponseMs())
	fmt.Fprintf(w, "Max response time:  %.2fms\n", float64(total.Max()))
	fmt.Fprintf(w, "RPS:                %.2f\n", total.CurrentRPS(now))

	entries := stats.Entries()
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, EndpointTable(entries))
}

// EndpointTable renders one row per endpoint
func EndpointTable(entries []loadtest.StatsEntry) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorGray)).
		Headers("Method", "Name", "Requests", "Failures", "Avg", "Min", "Max", "P50", "P95")
	for _, e := range entries {
		t.Row(
			e.Method,
			e.Name,
			fmt.Sprintf("%d", e.NumRequests),
			fmt.Sprintf("%d", e.NumFailures),
			fmt.Sprintf("%.0fms", e.AvgResponseMs()),
			fmt.Sprintf("%dms", e.Min()),
			fmt.Sprintf("%dms", e.Max()),
			fmt.Sprintf("%dms", e.P50()),
			fmt.Sprintf("%dms", e.P95()),
		)
	}
	return t.String()
}
