package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/agentstream/internal/aggregate"
	"github.com/nixlim/agentstream/internal/config"
	"github.com/nixlim/agentstream/internal/events"
	"github.com/nixlim/agentstream/internal/transport"
)

type tickMsg time.Time

// SnapshotProvider hands the dashboard a consistent copy of the
// aggregated state.
type SnapshotProvider interface {
	Snapshot() aggregate.Snapshot
}

// StatusProvider reports the upstream connection.
type StatusProvider interface {
	State() transport.State
	Endpoint() string
}

// FilterController reads and replaces the live event filter.
type FilterController interface {
	Filter() events.Filter
	SetFilter(events.Filter)
}

type Model struct {
	width    int
	height   int
	keys     KeyMap
	quitting bool

	cfg config.Config

	provider  SnapshotProvider
	status    StatusProvider
	filterCtl FilterController

	// snap is the frame being displayed. It only refreshes on ticks, and
	// not at all while paused; the store keeps aggregating regardless.
	snap aggregate.Snapshot

	paused      bool
	showDetails bool

	statsOverlay bool
	filterPrompt filterPromptState

	autoScroll bool
	scrollPos  int

	refreshRate time.Duration

	onShutdown func()
}

func NewModel(cfg config.Config, opts ...ModelOption) Model {
	m := Model{
		keys:         DefaultKeyMap(),
		cfg:          cfg,
		showDetails:  cfg.Display.ShowDetails,
		filterPrompt: newFilterPrompt(),
		autoScroll:   true,
		refreshRate:  time.Duration(cfg.Display.RefreshRateMS) * time.Millisecond,
	}

	for _, opt := range opts {
		opt(&m)
	}

	return m
}

type ModelOption func(*Model)

func WithSnapshotProvider(p SnapshotProvider) ModelOption {
	return func(m *Model) { m.provider = p }
}

func WithStatusProvider(s StatusProvider) ModelOption {
	return func(m *Model) { m.status = s }
}

func WithFilterController(f FilterController) ModelOption {
	return func(m *Model) { m.filterCtl = f }
}

func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tickCmd(),
	)
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refreshSnapshot() Model {
	if m.provider != nil {
		m.snap = m.provider.Snapshot()
	}
	return m
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if !m.paused {
			m = m.refreshSnapshot()
		}
		return m, m.tickCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.statsOverlay {
		// Any key dismisses the stats popup.
		m.statsOverlay = false
		return m, nil
	}

	if m.filterPrompt.active {
		return m.handleFilterPromptKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.onShutdown != nil {
			m.onShutdown()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
		if !m.paused {
			m = m.refreshSnapshot()
		}
		return m, nil

	case key.Matches(msg, m.keys.Details):
		m.showDetails = !m.showDetails
		return m, nil

	case key.Matches(msg, m.keys.Stats):
		m.statsOverlay = true
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		current := events.Filter{}
		if m.filterCtl != nil {
			current = m.filterCtl.Filter()
		}
		m.filterPrompt = m.filterPrompt.open(current)
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.autoScroll = false
		if m.scrollPos > 0 {
			m.scrollPos--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.scrollPos++
		visible := m.visibleEventCount()
		if m.scrollPos+visible >= len(m.snap.Recent) {
			m.autoScroll = true
		}
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.autoScroll = true
		return m, nil
	}

	return m, nil
}

func (m Model) handleFilterPromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.filterPrompt = m.filterPrompt.close()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		f, err := events.ParseFilter(m.filterPrompt.input.Value())
		if err != nil {
			m.filterPrompt.errMsg = err.Error()
			return m, nil
		}
		if m.filterCtl != nil {
			m.filterCtl.SetFilter(f)
		}
		m.filterPrompt = m.filterPrompt.close()
		m.autoScroll = true
		return m, nil
	}

	var cmd tea.Cmd
	m.filterPrompt.input, cmd = m.filterPrompt.input.Update(msg)
	m.filterPrompt.errMsg = ""
	return m, cmd
}

func (m Model) currentFilter() events.Filter {
	if m.filterCtl == nil {
		return events.Filter{}
	}
	return m.filterCtl.Filter()
}

func (m Model) connectionState() transport.State {
	if m.status == nil {
		return transport.StateDisconnected
	}
	return m.status.State()
}

func (m Model) endpoint() string {
	if m.status == nil {
		return ""
	}
	return m.status.Endpoint()
}

func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	return m.renderDashboard()
}
