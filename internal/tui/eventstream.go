package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/agentstream/internal/events"
)

func agentStyle(agentType string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(events.AgentColor(agentType)))
}

// renderEventStream renders the scrolling event panel.
func (m Model) renderEventStream(w, h int) string {
	contentW := w - 4
	if contentW < 10 {
		contentW = 10
	}

	var lines []string

	title := panelTitleStyle.Render("Events")
	if m.showDetails {
		title += dimStyle.Render(" +details")
	}
	lines = append(lines, title)

	evts := m.snap.Recent
	if len(evts) == 0 {
		lines = append(lines, "")
		lines = append(lines, dimStyle.Render("No data received yet"))
		content := strings.Join(lines, "\n")
		return panelBorderStyle.
			Width(w - 2).
			Height(h - 2).
			Render(content)
	}

	slot := 1
	if m.showDetails {
		slot = 2
	}

	// Border rows and the title line are not usable for events.
	visibleLines := h - 3
	if visibleLines < 1 {
		visibleLines = 1
	}
	showScroll := len(evts)*slot > visibleLines
	if showScroll && visibleLines > 1 {
		visibleLines--
	}
	visible := visibleLines / slot
	if visible < 1 {
		visible = 1
	}

	// Auto-scroll pins the window to the most recent events.
	startIdx := m.scrollPos
	if m.autoScroll {
		startIdx = len(evts) - visible
	}
	if startIdx > len(evts)-visible {
		startIdx = len(evts) - visible
	}
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + visible
	if endIdx > len(evts) {
		endIdx = len(evts)
	}

	for i := startIdx; i < endIdx; i++ {
		lines = append(lines, renderEventLines(evts[i], contentW, m.showDetails)...)
	}

	if showScroll {
		pos := formatScrollPos(startIdx+1, endIdx, len(evts))
		pad := contentW - len(pos)
		if pad < 0 {
			pad = 0
		}
		lines = append(lines, dimStyle.Render(strings.Repeat(" ", pad)+pos))
	}

	content := strings.Join(lines, "\n")
	return panelBorderStyle.
		Width(w - 2).
		Height(h - 2).
		Render(content)
}

// renderEventLines formats one event as a display line, plus an indented
// attribute line when details are on.
func renderEventLines(e events.Event, maxW int, showDetails bool) []string {
	ts := e.Timestamp.Format("15:04:05")
	src := "[" + e.Source + "]"
	icon := events.CategoryIcon(e.Category)

	head := e.Category
	if e.Summary != "" {
		head += " - " + e.Summary
	}
	avail := maxW - len(ts) - len(src) - len(icon) - 3
	if avail < 8 {
		avail = 8
	}
	head = events.Truncate(head, avail)

	line := dimStyle.Render(ts) + " " +
		agentStyle(e.AgentType()).Render(src) + " " +
		icon + " " + head

	lines := []string{line}

	if showDetails {
		det := events.FormatDetails(e)
		if det == "" {
			lines = append(lines, "")
		} else {
			lines = append(lines, dimStyle.Render("    "+events.Truncate(det, maxW-4)))
		}
	}

	return lines
}

// formatScrollPos returns a string like "[10-20/100]".
func formatScrollPos(start, end, total int) string {
	return strings.Join([]string{
		"[",
		formatNumber(int64(start)),
		"-",
		formatNumber(int64(end)),
		"/",
		formatNumber(int64(total)),
		"]",
	}, "")
}

// visibleEventCount mirrors the event window sizing so key handling can
// tell when the cursor reaches the live tail.
func (m Model) visibleEventCount() int {
	dims := computeDimensions(m.width, m.height)
	visibleLines := dims.eventsH - 3
	if visibleLines < 1 {
		visibleLines = 1
	}
	slot := 1
	if m.showDetails {
		slot = 2
	}
	n := visibleLines / slot
	if n < 1 {
		n = 1
	}
	return n
}
