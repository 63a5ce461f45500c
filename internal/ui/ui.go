package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quietloop/foliox/internal/stream"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConnectingView ViewState = iota
	ChatView
	ClipView
)

// Assistant is the subset of the stream client the TUI depends on.
// This abstraction allows for easier testing and decoupling from concrete implementation.
type Assistant interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Generate(prompt string, preferences map[string]string) bool
	SendMessage(text string) bool
	Approve() bool
	On(name string, fn stream.Handler) func()
	Conversation() stream.Conversation
}

type connectedMsg struct{}

type connectFailedMsg struct {
	err error
}

type streamEventMsg stream.Event

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	assistant Assistant
	prompt    string
	width     int
	height    int

	events      chan stream.Event
	unsubscribe func()

	input      textinput.Model
	transcript []stream.SceneEntry
	phase      stream.Phase
	status     string
	clip       *stream.Clip
	err        error

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
// The prompt, when non-empty, is sent as the initial generate command after connecting.
func NewModel(ctx context.Context, assistant Assistant, prompt string) *Model {
	input := textinput.New()
	input.Placeholder = "Describe the clip you want..."
	input.CharLimit = 500
	input.Focus()

	return &Model{
		ctx:       ctx,
		view:      ConnectingView,
		assistant: assistant,
		prompt:    prompt,
		events:    make(chan stream.Event, 64),
		input:     input,
		phase:     stream.PhaseIdle,
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init subscribes to stream events and opens the connection.
func (m *Model) Init() tea.Cmd {
	m.unsubscribe = m.assistant.On(stream.Wildcard, func(event stream.Event) {
		select {
		case m.events <- event:
		default:
		}
	})

	return tea.Batch(m.connect(), m.waitForEvent())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			m.shutdown()
			return m, tea.Quit
		}
		switch m.view {
		case ChatView:
			return m.handleChatKeys(msg)
		case ClipView:
			return m.handleClipKeys(msg)
		}
		return m, nil

	case connectedMsg:
		m.view = ChatView
		if m.prompt != "" {
			m.assistant.Generate(m.prompt, nil)
			m.status = "Generating..."
		}
		return m, nil

	case connectFailedMsg:
		m.err = msg.err
		m.shutdown()
		return m, tea.Quit

	case streamEventMsg:
		return m.handleStreamEvent(stream.Event(msg))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit", m.err))
	}

	switch m.view {
	case ConnectingView:
		return styles.title.Render("Clip Assistant") + "\n\nConnecting..."
	case ChatView:
		return m.renderChat()
	case ClipView:
		return m.renderClip()
	default:
		return ""
	}
}

// Err returns the terminal error, if any, once the program exits.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) handleChatKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		if m.phase == stream.PhaseIdle {
			m.assistant.Generate(text, nil)
		} else {
			m.assistant.SendMessage(text)
		}
		return m, nil

	case key.Matches(msg, m.keys.approve):
		if m.phase == stream.PhaseReviewing {
			m.assistant.Approve()
			m.status = "Rendering clip..."
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleClipKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.restart):
		m.clip = nil
		m.status = ""
		m.view = ChatView
		return m, nil
	case key.Matches(msg, m.keys.back):
		m.view = ChatView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleStreamEvent(event stream.Event) (tea.Model, tea.Cmd) {
	switch event.Event {
	case stream.EventProcessing:
		m.status = event.Message
		if m.status == "" {
			m.status = "Thinking..."
		}

	case stream.EventConversation:
		conv := m.assistant.Conversation()
		m.transcript = conv.Transcript
		m.phase = conv.Phase
		m.status = ""

	case stream.EventClipGenerated:
		m.clip = event.Clip
		m.status = ""
		m.view = ClipView

	case stream.EventError:
		m.status = styles.warn.Render(event.Error)

	case stream.EventDisconnected:
		if event.Permanent {
			m.err = fmt.Errorf("connection lost: %s", event.Error)
			m.shutdown()
			return m, tea.Quit
		}
		m.status = styles.warn.Render("Reconnecting...")
	}

	return m, m.waitForEvent()
}

func (m *Model) connect() tea.Cmd {
	return func() tea.Msg {
		if err := m.assistant.Connect(m.ctx); err != nil {
			return connectFailedMsg{err: err}
		}
		return connectedMsg{}
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case event := <-m.events:
			return streamEventMsg(event)
		case <-m.ctx.Done():
			return connectFailedMsg{err: m.ctx.Err()}
		}
	}
}

func (m *Model) shutdown() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.assistant.Disconnect()
}

func (m *Model) renderChat() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Clip Assistant"))
	b.WriteString("\n")

	visible := m.transcript
	if max := m.height - 10; max > 0 && len(visible) > max {
		visible = visible[len(visible)-max:]
	}
	for _, entry := range visible {
		prefix := "you"
		if entry.Role == "assistant" {
			prefix = styles.ok.Render("assistant")
		}
		fmt.Fprintf(&b, "%s: %s\n", prefix, entry.Text)
	}

	if m.status != "" {
		fmt.Fprintf(&b, "\n%s\n", m.status)
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	helpKeys := []key.Binding{m.keys.send, m.keys.quit}
	if m.phase == stream.PhaseReviewing {
		helpKeys = []key.Binding{m.keys.send, m.keys.approve, m.keys.quit}
	}
	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderClip() string {
	title := styles.ok.Render("✓ Clip Ready!")

	if m.clip == nil {
		return styles.err.Render("No clip available\n\nPress esc to go back")
	}

	secs := m.clip.DurationMS / 1000
	info := fmt.Sprintf(
		"\nTitle: %s\nDuration: %d:%02d\nURL: %s\n",
		m.clip.Title, secs/60, secs%60, m.clip.URL,
	)

	helpKeys := []key.Binding{m.keys.restart, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}
