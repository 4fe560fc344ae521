package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/studiowebux/chatload/internal/types"
)

// PrintPresets lists run presets and how to select them
func PrintPresets(w io.Writer, presets []types.Preset) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorGray)).
		Headers("Preset", "Users", "Spawn rate", "Run time", "Description")
	for _, p := range presets {
		t.Row(p.Name, fmt.Sprintf("%d", p.Users), fmt.Sprintf("%g/s", p.SpawnRate), p.RunTime, p.Description)
	}
	fmt.Fprintln(w, t.String())
	fmt.Fprintln(w, styleSubtle.Render("Select one with --preset <name>; -u, -r and -t override its fields."))
}
