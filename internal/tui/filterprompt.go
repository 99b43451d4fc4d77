package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"

	"github.com/nixlim/agentstream/internal/events"
)

// filterPromptState is the text prompt used to edit the live filter.
type filterPromptState struct {
	active bool
	input  textinput.Model
	errMsg string
}

func newFilterPrompt() filterPromptState {
	ti := textinput.New()
	ti.Placeholder = "app=NAME type=CATEGORY"
	ti.Prompt = "> "
	ti.CharLimit = 120
	ti.Width = 40
	return filterPromptState{input: ti}
}

// open activates the prompt prefilled with the current filter so Enter
// with no edits is a no-op.
func (p filterPromptState) open(current events.Filter) filterPromptState {
	p.active = true
	p.errMsg = ""
	if current.IsZero() {
		p.input.SetValue("")
	} else {
		p.input.SetValue(current.String())
	}
	p.input.CursorEnd()
	p.input.Focus()
	return p
}

func (p filterPromptState) close() filterPromptState {
	p.active = false
	p.errMsg = ""
	p.input.Blur()
	return p
}

func (m Model) renderFilterPrompt() string {
	var sb strings.Builder

	sb.WriteString(panelTitleStyle.Render("Event Filter"))
	sb.WriteString("\n\n")
	sb.WriteString(m.filterPrompt.input.View())
	sb.WriteString("\n")
	if m.filterPrompt.errMsg != "" {
		sb.WriteString(errorTextStyle.Render(m.filterPrompt.errMsg))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("Enter: Apply  Esc: Cancel  (empty clears the filter)"))

	return filterPromptStyle.Render(sb.String())
}
