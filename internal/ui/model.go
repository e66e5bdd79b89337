// Package ui is the terminal presentation layer. It renders committed
// session snapshots and owns all "active view" state; the core only
// informs it through signals.
package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircline/internal/core"
)

const sidebarWidth = 18

// refreshMsg says the session state changed; re-snapshot and re-render.
type refreshMsg struct{}

// signalMsg wraps an out-of-band core signal.
type signalMsg core.Signal

// Model is the bubbletea model for the whole client.
type Model struct {
	sync   *core.Synchronizer
	log    *zerolog.Logger
	styles Styles

	state    core.SessionState
	activeID string

	viewport viewport.Model
	input    textinput.Model
	width    int
	height   int
	ready    bool

	lastErr string
}

// New builds the model around a running synchronizer.
func New(sync *core.Synchronizer, logger *zerolog.Logger) Model {
	input := textinput.New()
	input.Placeholder = "message or /command"
	input.Prompt = "> "
	input.CharLimit = 480
	input.Focus()

	return Model{
		sync:   sync,
		log:    logger,
		styles: DefaultStyles(),
		input:  input,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.waitForUpdate(),
		m.waitForSignal(),
	)
}

func (m Model) waitForUpdate() tea.Cmd {
	notify := m.sync.Notify()
	return func() tea.Msg {
		<-notify
		return refreshMsg{}
	}
}

func (m Model) waitForSignal() tea.Cmd {
	signals := m.sync.Signals()
	return func() tea.Msg {
		return signalMsg(<-signals)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentHeight := m.height - 4
		if contentHeight < 1 {
			contentHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.contentWidth(), contentHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.contentWidth()
			m.viewport.Height = contentHeight
		}
		m.refreshContent()
		return m, nil

	case refreshMsg:
		m.state = m.sync.Snapshot()
		m.ensureActive()
		m.refreshContent()
		return m, m.waitForUpdate()

	case signalMsg:
		if msg.Kind == core.SignalViewInvalidated && msg.ChannelID == m.activeID {
			// Redirect focus to the server log.
			if m.state.Server != nil {
				m.setActive(m.state.Server.ID)
			}
			m.refreshContent()
		}
		return m, m.waitForSignal()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.sync.Disconnect("")
			return m, tea.Quit
		case tea.KeyTab:
			m.cycleActive(1)
			m.refreshContent()
			return m, nil
		case tea.KeyShiftTab:
			m.cycleActive(-1)
			m.refreshContent()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()
	m.lastErr = ""

	if m.activeID == "" {
		m.lastErr = "no active channel"
		return m, nil
	}
	focus, err := m.sync.SendMessage(m.activeID, text)
	if err != nil {
		var serr *core.SessionError
		if errors.As(err, &serr) && serr.Code == core.ErrCodeAlreadyJoined {
			// Joining an already-joined channel just refocuses it.
			m.setActive(serr.ChannelID)
		} else {
			m.lastErr = err.Error()
		}
	} else if focus != "" && focus != m.activeID {
		m.setActive(focus)
	}

	m.state = m.sync.Snapshot()
	m.ensureActive()
	m.refreshContent()
	return m, nil
}

// setActive switches the focused channel and, when its membership looks
// suspiciously thin, asks for a fresh user list.
func (m *Model) setActive(id string) {
	m.activeID = id
	ch := m.state.Channels[id]
	if ch == nil || ch.IsServerLog() || ch.Kind != core.KindChannel {
		return
	}
	if len(ch.Users) <= 1 {
		if err := m.sync.RequestUserListRefresh(id); err != nil {
			m.log.Debug().Err(err).Str("channel", id).Msg("user list refresh failed")
		}
	}
	m.viewport.GotoBottom()
}

// ensureActive keeps the active ID pointing at an existing channel,
// falling back to the server log.
func (m *Model) ensureActive() {
	if _, ok := m.state.Channels[m.activeID]; ok {
		return
	}
	if m.state.Server != nil {
		m.activeID = m.state.Server.ID
		return
	}
	m.activeID = ""
}

func (m *Model) cycleActive(dir int) {
	order := m.state.Order
	if len(order) == 0 {
		return
	}
	idx := 0
	for i, id := range order {
		if id == m.activeID {
			idx = i
			break
		}
	}
	idx = (idx + dir + len(order)) % len(order)
	m.setActive(order[idx])
}

func (m *Model) contentWidth() int {
	w := m.width - sidebarWidth - 1
	if w < 20 {
		w = m.width
	}
	return w
}

func (m *Model) refreshContent() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}
