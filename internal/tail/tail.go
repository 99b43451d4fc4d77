// Package tail renders the append-only log view used when the dashboard
// is off or stdout is piped somewhere that can't host a TUI.
package tail

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/agentstream/internal/aggregate"
	"github.com/nixlim/agentstream/internal/events"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	ruleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// Printer writes one line per event. It locks around writes because
// events arrive on the pipeline goroutine while the banner and final
// summary print from main.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	details bool
}

func NewPrinter(out io.Writer, details bool) *Printer {
	return &Printer{out: out, details: details}
}

// Header prints the session banner.
func (p *Printer) Header(endpoint string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, titleStyle.Render("LIVE AGENT EVENT STREAM"))
	fmt.Fprintln(p.out, ruleStyle.Render(strings.Repeat("=", 46)))
	fmt.Fprintf(p.out, "Server: %s\n", endpoint)
	fmt.Fprintln(p.out, dimStyle.Render("Waiting for events... (Ctrl+C to stop)"))
	fmt.Fprintln(p.out)
}

// Event prints one event, the whole line tinted by agent type, plus an
// indented attribute line in details mode.
func (p *Printer) Event(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(events.AgentColor(e.AgentType())))
	fmt.Fprintln(p.out, style.Render(events.FormatLine(e)))

	if p.details {
		if det := events.FormatDetails(e); det != "" {
			fmt.Fprintln(p.out, dimStyle.Render("    "+det))
		}
	}
}

// Stats prints the aggregate summary, used on shutdown.
func (p *Printer) Stats(s aggregate.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, titleStyle.Render("FINAL STATISTICS"))
	fmt.Fprintln(p.out, ruleStyle.Render(strings.Repeat("=", 46)))
	fmt.Fprintf(p.out, "Total events: %d\n", s.Total)

	if len(s.ByCategory) > 0 {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "By type:")
		for _, en := range sortCounts(s.ByCategory) {
			fmt.Fprintf(p.out, "  %s %-24s %d\n", events.CategoryIcon(en.name), en.name, en.count)
		}
	}

	if len(s.BySource) > 0 {
		totals := make(map[string]int64, len(s.BySource))
		for src, byAgent := range s.BySource {
			for _, n := range byAgent {
				totals[src] += n
			}
		}

		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "By agent:")
		for _, en := range sortCounts(totals) {
			var parts []string
			for _, b := range sortCounts(s.BySource[en.name]) {
				parts = append(parts, fmt.Sprintf("%s: %d", b.name, b.count))
			}
			fmt.Fprintf(p.out, "  %-20s %d (%s)\n", en.name, en.count, strings.Join(parts, ", "))
		}
	}
}

type countEntry struct {
	name  string
	count int64
}

func sortCounts(m map[string]int64) []countEntry {
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
