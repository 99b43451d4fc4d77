package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nixlim/agentstream/internal/events"
)

const (
	statsMaxCategories = 8
	statsMaxSources    = 5
)

type countEntry struct {
	name  string
	count int64
}

// sortedCounts orders a counter map by count descending, name ascending
// on ties so the popup is stable between refreshes.
func sortedCounts(m map[string]int64) []countEntry {
	entries := make([]countEntry, 0, len(m))
	for name, count := range m {
		entries = append(entries, countEntry{name: name, count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})
	return entries
}

func (m Model) renderStatsOverlay() string {
	var sb strings.Builder

	sb.WriteString(panelTitleStyle.Render("Stream Statistics"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Total events: %s\n\n", formatNumber(m.snap.Total)))
	sb.WriteString(m.renderCategorySection())
	sb.WriteString("\n")
	sb.WriteString(m.renderSourceSection())
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("Press any key to close"))

	return statsOverlayStyle.Render(sb.String())
}

func (m Model) renderCategorySection() string {
	title := panelTitleStyle.Render("Event Types")
	lines := []string{title}

	entries := sortedCounts(m.snap.ByCategory)
	if len(entries) == 0 {
		lines = append(lines, dimStyle.Render("  No events"))
		return strings.Join(lines, "\n") + "\n"
	}
	if len(entries) > statsMaxCategories {
		entries = entries[:statsMaxCategories]
	}

	max := entries[0].count
	for _, en := range entries {
		bar := renderCountBar(float64(en.count)/float64(max), 16)
		lines = append(lines, fmt.Sprintf("  %s %-22s %s %s",
			events.CategoryIcon(en.name),
			events.Truncate(en.name, 22),
			bar,
			formatNumber(en.count)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m Model) renderSourceSection() string {
	title := panelTitleStyle.Render("Agents")
	lines := []string{title}

	totals := make(map[string]int64, len(m.snap.BySource))
	for src, byAgent := range m.snap.BySource {
		for _, n := range byAgent {
			totals[src] += n
		}
	}

	entries := sortedCounts(totals)
	if len(entries) == 0 {
		lines = append(lines, dimStyle.Render("  No agents seen"))
		return strings.Join(lines, "\n") + "\n"
	}
	if len(entries) > statsMaxSources {
		entries = entries[:statsMaxSources]
	}

	for _, en := range entries {
		var parts []string
		for _, b := range sortedCounts(m.snap.BySource[en.name]) {
			parts = append(parts, agentStyle(b.name).Render(b.name)+": "+formatNumber(b.count))
		}
		lines = append(lines, fmt.Sprintf("  %-20s %s  (%s)",
			events.Truncate(en.name, 20),
			formatNumber(en.count),
			strings.Join(parts, ", ")))
	}
	return strings.Join(lines, "\n") + "\n"
}

func renderCountBar(ratio float64, width int) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}

	return countBarStyle.Render(strings.Repeat("█", filled) + strings.Repeat("░", width-filled))
}
