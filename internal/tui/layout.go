package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/agentstream/internal/transport"
)

type panelDimensions struct {
	eventsW, eventsH int
	headerH          int
}

const (
	minWidth  = 40
	minHeight = 8

	headerHeight  = 1
	counterHeight = 1
	footerHeight  = 1
)

func computeDimensions(totalW, totalH int) panelDimensions {
	if totalW < minWidth {
		totalW = minWidth
	}
	if totalH < minHeight {
		totalH = minHeight
	}

	d := panelDimensions{
		headerH: headerHeight,
	}

	d.eventsW = totalW
	d.eventsH = totalH - headerHeight - counterHeight - footerHeight
	if d.eventsH < 3 {
		d.eventsH = 3
	}

	return d
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226"))

	errorTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stateStreamingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("82"))

	stateConnectingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("226"))

	stateDownStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	countBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("69"))

	filterPromptStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("63")).
				Padding(1, 2)

	statsOverlayStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("69")).
				Padding(1, 2)
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

const footerHelp = "q:Quit | p:Pause | d:Details | f:Filter | s:Stats"

func (m Model) renderDashboard() string {
	dims := computeDimensions(m.width, m.height)

	header := m.renderHeader()
	counter := m.renderCounter()
	stream := m.renderEventStream(dims.eventsW, dims.eventsH)
	footer := m.renderFooter()

	layout := lipgloss.JoinVertical(lipgloss.Left, header, counter, stream, footer)

	if m.filterPrompt.active {
		layout = m.overlayFilterPrompt(layout)
	}

	if m.statsOverlay {
		layout = m.overlayStats(layout)
	}

	if m.height > 0 {
		lines := strings.Split(layout, "\n")
		if len(lines) > m.height {
			lines = lines[:m.height]
			layout = strings.Join(lines, "\n")
		}
	}

	return layout
}

func (m Model) renderHeader() string {
	title := " agentstream"
	stateLabel := " " + renderStateLabel(m.connectionState())

	endpoint := ""
	if ep := m.endpoint(); ep != "" {
		endpoint = " " + dimStyle.Render(ep)
	}

	return headerStyle.Width(m.width).Render(title + stateLabel + endpoint)
}

func renderStateLabel(s transport.State) string {
	label := "[" + s.String() + "]"
	switch s {
	case transport.StateStreaming:
		return stateStreamingStyle.Render(label)
	case transport.StateConnecting:
		return stateConnectingStyle.Render(label)
	default:
		return stateDownStyle.Render(label)
	}
}

func (m Model) renderCounter() string {
	parts := []string{
		"Total: " + formatNumber(m.snap.Total),
		"Types: " + formatNumber(int64(len(m.snap.ByCategory))),
		"Sources: " + formatNumber(int64(len(m.snap.BySource))),
	}
	if f := m.currentFilter(); !f.IsZero() {
		parts = append(parts, "Filter: "+f.String())
	}

	line := " " + strings.Join(parts, "  ")
	if m.paused {
		line += "  " + pausedStyle.Render("[PAUSED]")
	}

	return statusBarStyle.Render(line)
}

func (m Model) renderFooter() string {
	return statusBarStyle.Render(" " + footerHelp)
}

func placeOverlay(fg, bg string) string {
	return lipgloss.Place(
		lipgloss.Width(bg),
		lipgloss.Height(bg),
		lipgloss.Center,
		lipgloss.Center,
		fg,
		lipgloss.WithWhitespaceChars(" "),
	)
}

func (m Model) overlayFilterPrompt(base string) string {
	return placeOverlay(m.renderFilterPrompt(), base)
}

func (m Model) overlayStats(base string) string {
	return placeOverlay(m.renderStatsOverlay(), base)
}

// formatNumber renders n with comma grouping, e.g. 1234567 -> 1,234,567.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}

	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
