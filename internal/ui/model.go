// Package ui renders the relay log and input form in a terminal.
package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/omochice/toy-socket-relay/internal/client"
	"github.com/omochice/toy-socket-relay/internal/display"
	"github.com/omochice/toy-socket-relay/internal/relay"
)

// Controller is the part of relay.Controller the UI drives.
type Controller interface {
	Open(ctx context.Context) error
	Close()
	Submit(ctx context.Context, field relay.Field) bool
	State() client.State
}

var (
	openStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	closedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// chrome is the number of lines outside the viewport: status, input, help.
const chrome = 3

type logUpdatedMsg struct{}

type submitResultMsg struct {
	value string
	sent  bool
}

type openResultMsg struct {
	err error
}

// Model is the bubbletea model of the relay page.
type Model struct {
	ctx      context.Context
	ctrl     Controller
	log      *display.Log
	updates  <-chan struct{}
	url      string
	input    textinput.Model
	viewport viewport.Model
	width    int
}

// New creates the page model. The connection is opened on start.
func New(ctx context.Context, ctrl Controller, log *display.Log, url string) Model {
	input := textinput.New()
	input.Placeholder = "message"
	input.Prompt = "> "
	input.Focus()

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		log:      log,
		updates:  log.Subscribe(),
		url:      url,
		input:    input,
		viewport: viewport.New(80, 20),
		width:    80,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForLog(), m.open())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chrome, 1)
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 1)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.ctrl.State() != client.StateOpen {
				return m, nil
			}
			return m, m.submit(m.input.Value())
		case tea.KeyCtrlO:
			return m, m.open()
		case tea.KeyCtrlW:
			m.ctrl.Close()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case logUpdatedMsg:
		m.refresh()
		return m, m.waitForLog()

	case submitResultMsg:
		// keep anything typed while the send was in flight
		if msg.sent && m.input.Value() == msg.value {
			m.input.Reset()
		}
		return m, nil

	case openResultMsg:
		// failures are already rendered into the log
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.status())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter send • ctrl+o open • ctrl+w close • esc quit"))
	return b.String()
}

func (m Model) status() string {
	if m.ctrl.State() == client.StateOpen {
		return openStyle.Render("● open") + " " + m.url
	}
	return closedStyle.Render("○ closed") + " " + m.url
}

// refresh re-renders the log and scrolls to the newest entry.
func (m *Model) refresh() {
	content := m.log.Render()
	if m.width > 0 {
		content = lipgloss.NewStyle().Width(m.width).Render(content)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m Model) waitForLog() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return logUpdatedMsg{}
	}
}

// submit sends value off the update loop; the input is cleared when the
// result arrives.
func (m Model) submit(value string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		sent := ctrl.Submit(ctx, relay.NewTextField(value))
		return submitResultMsg{value: value, sent: sent}
	}
}

func (m Model) open() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return openResultMsg{err: ctrl.Open(ctx)}
	}
}
