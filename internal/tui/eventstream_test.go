package tui

import (
	"strings"
	"testing"

	"github.com/nixlim/agentstream/internal/config"
	"github.com/nixlim/agentstream/internal/events"
)

func TestRenderEventStream_Empty(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewModel(cfg)
	m.width = 120
	m.height = 40

	panel := m.renderEventStream(80, 20)
	if !strings.Contains(panel, "No data received yet") {
		t.Error("empty event stream should show 'No data received yet'")
	}
}

func TestRenderEventStream_WithEvents(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewModel(cfg)
	m.width = 120
	m.height = 40
	m.snap = makeSnapshot(
		makeStreamEvent(1, "claude-code", "tool_use", "Bash ls"),
		makeStreamEvent(2, "gemini", "error", "rate limited"),
	)

	panel := stripAnsi(m.renderEventStream(80, 20))
	if !strings.Contains(panel, "Events") {
		t.Error("event stream should contain the panel title")
	}
	if !strings.Contains(panel, "[claude-code]") {
		t.Error("event line should name its source")
	}
	if !strings.Contains(panel, "T: tool_use - Bash ls") {
		t.Errorf("expected tool_use line with icon and summary, got:\n%s", panel)
	}
	if !strings.Contains(panel, "!! error - rate limited") {
		t.Errorf("expected error line with icon and summary, got:\n%s", panel)
	}
	if !strings.Contains(panel, "15:04:05") {
		t.Error("event line should carry a wall-clock timestamp")
	}
}

func TestRenderEventStream_UnknownCategoryIcon(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewModel(cfg)
	m.width = 120
	m.height = 40
	m.snap = makeSnapshot(makeStreamEvent(1, "a", "made_up_kind", ""))

	panel := stripAnsi(m.renderEventStream(80, 20))
	if !strings.Contains(panel, "?? made_up_kind") {
		t.Errorf("unknown category should fall back to ?? icon, got:\n%s", panel)
	}
}

func TestRenderEventStream_DetailsLine(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewModel(cfg)
	m.width = 120
	m.height = 40
	m.showDetails = true

	e := makeStreamEvent(1, "claude-code", "tool_use", "Bash")
	e.Attributes = map[string]any{"tool_name": "Bash", "exit_code": 0}
	m.snap = makeSnapshot(e)

	panel := stripAnsi(m.renderEventStream(80, 20))
	if !strings.Contains(panel, "exit_code=0") {
		t.Errorf("details mode should render attributes, got:\n%s", panel)
	}
	if !strings.Contains(panel, "tool_name=Bash") {
		t.Errorf("details mode should render attributes, got:\n%s", panel)
	}
}

func TestRenderEventStream_DetailsOffHidesAttributes(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewModel(cfg)
	m.width = 120
	m.height = 40

	e := makeStreamEvent(1, "claude-code", "tool_use", "Bash")
	e.Attributes = map[string]any{"tool_name": "Bash"}
	m.snap = makeSnapshot(e)

	panel := stripAnsi(m.renderEventStream(80, 20))
	if strings.Contains(panel, "tool_name=Bash") {
		t.Error("attributes should be hidden when details are off")
	}
}

func TestRenderEventStream_ScrollIndicator(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewModel(cfg)
	m.width = 120
	m.height = 40

	var evts []events.Event
	for i := int64(1); i <= 30; i++ {
		evts = append(evts, makeStreamEvent(i, "a", "tool_use", "event"))
	}
	m.snap = makeSnapshot(evts...)

	panel := stripAnsi(m.renderEventStream(80, 10))
	if !strings.Contains(panel, "/30]") {
		t.Errorf("overflowing stream should show a scroll indicator, got:\n%s", panel)
	}
}

func TestRenderEventStream_AutoScrollShowsNewest(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewModel(cfg)
	m.width = 120
	m.height = 40
	m.autoScroll = true

	var evts []events.Event
	for i := int64(1); i <= 30; i++ {
		evts = append(evts, makeStreamEvent(i, "a", "tool_use", ""))
	}
	evts[29].Summary = "the newest event"
	evts[0].Summary = "the oldest event"
	m.snap = makeSnapshot(evts...)

	panel := stripAnsi(m.renderEventStream(80, 10))
	if !strings.Contains(panel, "the newest event") {
		t.Errorf("auto-scroll should pin to the newest events, got:\n%s", panel)
	}
	if strings.Contains(panel, "the oldest event") {
		t.Error("auto-scroll should not show the oldest event in a small panel")
	}
}

func TestRenderEventStream_ManualScroll(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewModel(cfg)
	m.width = 120
	m.height = 40
	m.autoScroll = false
	m.scrollPos = 0

	var evts []events.Event
	for i := int64(1); i <= 30; i++ {
		evts = append(evts, makeStreamEvent(i, "a", "tool_use", ""))
	}
	evts[0].Summary = "the oldest event"
	m.snap = makeSnapshot(evts...)

	panel := stripAnsi(m.renderEventStream(80, 10))
	if !strings.Contains(panel, "the oldest event") {
		t.Errorf("scroll position 0 should show the oldest event, got:\n%s", panel)
	}
}

func TestRenderEventLines_TruncatesLongSummary(t *testing.T) {
	e := makeStreamEvent(1, "a", "tool_use", strings.Repeat("x", 300))

	lines := renderEventLines(e, 60, false)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	plain := stripAnsi(lines[0])
	if !strings.Contains(plain, "...") {
		t.Error("long summary should be truncated with an ellipsis")
	}
	if len(plain) > 70 {
		t.Errorf("line length %d exceeds the panel width allowance", len(plain))
	}
}

func TestFormatScrollPos(t *testing.T) {
	got := formatScrollPos(10, 20, 100)
	if got != "[10-20/100]" {
		t.Errorf("expected [10-20/100], got %q", got)
	}
}
