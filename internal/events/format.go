package events

import (
	"fmt"
	"sort"
	"strings"
)

// categoryIcons maps event categories to their two-character display
// icons. Unknown categories fall back to "??"; new categories must never
// break display.
var categoryIcons = map[string]string{
	"llm_request":            "AI",
	"llm_response":           "<<",
	"tool_use":               "T:",
	"function_call_start":    ">>",
	"function_call_complete": "OK",
	"function_call_error":    "XX",
	"error":                  "!!",
	"token_usage":            "TK",
	"test":                   "TS",
	"pre_tool_use":           "T>",
	"post_tool_use":          "T<",
	"stop":                   "ST",
	"custom":                 "::",
}

// agentColors maps agent types to ANSI-256 color codes. The palette
// follows the producers' conventions: one stable hue per vendor.
var agentColors = map[string]string{
	"openai":    "82",  // green
	"anthropic": "75",  // blue
	"google":    "226", // yellow
	"cohere":    "201", // magenta
	"mistral":   "51",  // cyan
	"deepseek":  "196", // red
	"langchain": "15",  // white
	"custom":    "245", // gray
}

// DefaultAgentColor is the fallback for unrecognized agent types.
const DefaultAgentColor = "252"

// CategoryIcon returns the display icon for a category, "??" when unknown.
func CategoryIcon(category string) string {
	if icon, ok := categoryIcons[category]; ok {
		return icon
	}
	return "??"
}

// AgentColor returns the ANSI-256 color code for an agent type.
func AgentColor(agentType string) string {
	if c, ok := agentColors[agentType]; ok {
		return c
	}
	return DefaultAgentColor
}

// FormatLine renders the one-line display form of an event:
//
//	15:04:05 [source] T: tool_use - summary
func FormatLine(e Event) string {
	var sb strings.Builder
	sb.WriteString(e.Timestamp.Format("15:04:05"))
	sb.WriteString(" [")
	sb.WriteString(e.Source)
	sb.WriteString("] ")
	sb.WriteString(CategoryIcon(e.Category))
	sb.WriteByte(' ')
	sb.WriteString(e.Category)
	if e.Summary != "" {
		sb.WriteString(" - ")
		sb.WriteString(e.Summary)
	}
	return sb.String()
}

// FormatDetails renders up to three attribute key=value pairs (agent_type
// excluded, values cut at 50 characters) joined by " | ". Keys are sorted
// so the output is stable. Returns "" when there is nothing to show.
func FormatDetails(e Event) string {
	if len(e.Attributes) == 0 {
		return ""
	}

	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		if k == AttrAgentType {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 3 {
		keys = keys[:3]
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		val := fmt.Sprintf("%v", e.Attributes[k])
		if len(val) > 50 {
			val = val[:50]
		}
		parts = append(parts, k+"="+val)
	}
	return strings.Join(parts, " | ")
}

// Truncate cuts s to at most max bytes, replacing the tail with "..." so
// one-event-per-line alignment survives narrow terminals.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
