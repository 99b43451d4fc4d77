package tui

import (
	"strings"
	"testing"

	"github.com/nixlim/agentstream/internal/config"
)

func TestSortedCounts(t *testing.T) {
	entries := sortedCounts(map[string]int64{
		"tool_use":  10,
		"error":     3,
		"stop":      3,
		"token_use": 25,
	})

	want := []string{"token_use", "tool_use", "error", "stop"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, name := range want {
		if entries[i].name != name {
			t.Errorf("position %d: expected %q, got %q", i, name, entries[i].name)
		}
	}
}

func TestRenderStatsOverlay(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewModel(cfg)
	m.width = 120
	m.height = 40

	e1 := makeStreamEvent(1, "claude-code", "tool_use", "")
	e1.Attributes = map[string]any{"agent_type": "anthropic"}
	e2 := makeStreamEvent(2, "claude-code", "tool_use", "")
	e2.Attributes = map[string]any{"agent_type": "anthropic"}
	e3 := makeStreamEvent(3, "gemini", "error", "")
	m.snap = makeSnapshot(e1, e2, e3)

	out := stripAnsi(m.renderStatsOverlay())

	if !strings.Contains(out, "Stream Statistics") {
		t.Error("stats overlay should have a title")
	}
	if !strings.Contains(out, "Total events: 3") {
		t.Errorf("expected total of 3, got:\n%s", out)
	}
	if !strings.Contains(out, "tool_use") || !strings.Contains(out, "error") {
		t.Errorf("expected category breakdown, got:\n%s", out)
	}
	if !strings.Contains(out, "claude-code") || !strings.Contains(out, "gemini") {
		t.Errorf("expected source breakdown, got:\n%s", out)
	}
	if !strings.Contains(out, "anthropic: 2") {
		t.Errorf("expected agent type split, got:\n%s", out)
	}
	if !strings.Contains(out, "unknown: 1") {
		t.Errorf("expected unknown agent fallback in split, got:\n%s", out)
	}
	if !strings.Contains(out, "Press any key to close") {
		t.Error("stats overlay should show the dismiss hint")
	}
}

func TestRenderStatsOverlay_Empty(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewModel(cfg)
	m.width = 120
	m.height = 40

	out := stripAnsi(m.renderStatsOverlay())
	if !strings.Contains(out, "No events") {
		t.Error("empty stats should say 'No events'")
	}
	if !strings.Contains(out, "No agents seen") {
		t.Error("empty stats should say 'No agents seen'")
	}
}

func TestRenderStatsOverlay_CapsCategoryList(t *testing.T) {
	cfg := config.DefaultConfig()
	m := NewModel(cfg)
	m.snap = makeSnapshot(
		makeStreamEvent(1, "a", "cat_01", ""),
		makeStreamEvent(2, "a", "cat_02", ""),
		makeStreamEvent(3, "a", "cat_03", ""),
		makeStreamEvent(4, "a", "cat_04", ""),
		makeStreamEvent(5, "a", "cat_05", ""),
		makeStreamEvent(6, "a", "cat_06", ""),
		makeStreamEvent(7, "a", "cat_07", ""),
		makeStreamEvent(8, "a", "cat_08", ""),
		makeStreamEvent(9, "a", "cat_09", ""),
		makeStreamEvent(10, "a", "cat_10", ""),
	)

	out := stripAnsi(m.renderStatsOverlay())
	shown := 0
	for i := 1; i <= 10; i++ {
		name := []string{"cat_01", "cat_02", "cat_03", "cat_04", "cat_05", "cat_06", "cat_07", "cat_08", "cat_09", "cat_10"}[i-1]
		if strings.Contains(out, name) {
			shown++
		}
	}
	if shown != statsMaxCategories {
		t.Errorf("expected %d categories shown, got %d", statsMaxCategories, shown)
	}
}

func TestRenderCountBar(t *testing.T) {
	full := stripAnsi(renderCountBar(1.0, 8))
	if full != strings.Repeat("█", 8) {
		t.Errorf("full bar = %q", full)
	}

	empty := stripAnsi(renderCountBar(0, 8))
	if empty != strings.Repeat("░", 8) {
		t.Errorf("empty bar = %q", empty)
	}

	half := stripAnsi(renderCountBar(0.5, 8))
	if half != strings.Repeat("█", 4)+strings.Repeat("░", 4) {
		t.Errorf("half bar = %q", half)
	}

	clamped := stripAnsi(renderCountBar(3.0, 4))
	if clamped != strings.Repeat("█", 4) {
		t.Errorf("over-range bar = %q", clamped)
	}
}
