// Package status renders a pipeline run for the terminal.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/softlane/sdlcd/internal/pipeline"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

var statusMarks = map[pipeline.Status]string{
	pipeline.StatusIdle:    "·",
	pipeline.StatusRunning: "▸",
	pipeline.StatusSuccess: "✓",
	pipeline.StatusError:   "✗",
}

// Render formats a run snapshot as a stage-per-line view with the pipeline
// position marked.
func Render(snap pipeline.Snapshot) string {
	var sb strings.Builder

	sb.WriteString(headerStyle.Render(fmt.Sprintf("Run %s", snap.RunID)))
	sb.WriteByte('\n')
	if snap.RepoURL != "" {
		sb.WriteString(detailStyle.Render("repository: " + snap.RepoURL))
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')

	for i, st := range snap.Stages {
		style := styleForStatus(st.Status)
		mark := statusMarks[st.Status]

		pointer := "  "
		if i == snap.CurrentIndex {
			pointer = "> "
		}

		sb.WriteString(pointer)
		sb.WriteString(style.Render(fmt.Sprintf("%s %d. %s", mark, i, st.ID)))
		if st.Status == pipeline.StatusError && st.Error != "" {
			sb.WriteString("  ")
			sb.WriteString(detailStyle.Render(st.Error))
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}

// RenderResult formats one transcript entry for display after a stage
// finishes.
func RenderResult(res pipeline.StageResult) string {
	var sb strings.Builder
	label := res.StageID
	if res.Fix {
		label += " (fix)"
	}
	sb.WriteString(successStyle.Render(label))
	sb.WriteByte('\n')
	if res.Output != "" {
		sb.WriteString(res.Output)
		sb.WriteByte('\n')
	}
	if res.ReportID != "" {
		sb.WriteString(detailStyle.Render("report: " + res.ReportID))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func styleForStatus(s pipeline.Status) lipgloss.Style {
	switch s {
	case pipeline.StatusSuccess:
		return successStyle
	case pipeline.StatusError:
		return errorStyle
	case pipeline.StatusRunning:
		return runningStyle
	default:
		return idleStyle
	}
}
