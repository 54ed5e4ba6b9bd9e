// Package tui renders an interactive chat over the question answering engine,
// displaying answer fragments as they stream in.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ragbot/docchat/internal/chat"
	"github.com/ragbot/docchat/internal/session"
)

// Engine is the TUI-facing subset of the question answering core.
type Engine interface {
	Ask(ctx context.Context, sess *session.Session, query string) (chat.Stream, error)
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	engine Engine
	sess   *session.Session

	input    textinput.Model
	viewport viewport.Model

	stream    chat.Stream
	cancel    context.CancelFunc
	pending   string
	streaming bool
	status    string
	ready     bool
}

// New creates the chat TUI over an engine and a fresh session.
func New(engine Engine, sess *session.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		engine:   engine,
		sess:     sess,
		input:    ti,
		viewport: vp,
		status:   "Ready. Esc cancels a streaming answer, Ctrl+C quits.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

type answerStartedMsg struct{ stream chat.Stream }

type fragmentMsg struct {
	stream chat.Stream
	text   string
}

type answerDoneMsg struct {
	stream chat.Stream
	err    error
}

// startTurn kicks off retrieval and generation for one query.
func startTurn(ctx context.Context, engine Engine, sess *session.Session, query string) tea.Cmd {
	return func() tea.Msg {
		stream, err := engine.Ask(ctx, sess, query)
		if err != nil {
			return answerDoneMsg{err: err}
		}
		return answerStartedMsg{stream: stream}
	}
}

// readFragment blocks on the next stream event; the suspension point of each
// network event lives here, off the UI loop.
func readFragment(stream chat.Stream) tea.Cmd {
	return func() tea.Msg {
		if stream.Next() {
			return fragmentMsg{stream: stream, text: stream.Current()}
		}
		return answerDoneMsg{stream: stream, err: stream.Err()}
	}
}

// Update handles key, window, and stream events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frameHeight := transcriptStyle.GetFrameSize()
		_, inputHeight := inputBoxStyle.GetFrameSize()
		reserved := inputHeight + frameHeight + 3 // title, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.abandonStream()
			return m, tea.Quit
		case tea.KeyEsc:
			if m.streaming {
				m.abandonStream()
				m.status = "Answer cancelled."
				m.refreshTranscript()
			}
			return m, nil
		case tea.KeyEnter:
			query := strings.TrimSpace(m.input.Value())
			if query == "" || m.streaming {
				return m, nil
			}
			m.input.Reset()
			m.streaming = true
			m.pending = ""
			m.status = "Thinking..."

			ctx, cancel := context.WithCancel(context.Background())
			m.cancel = cancel
			return m, startTurn(ctx, m.engine, m.sess, query)
		}

	case answerStartedMsg:
		if !m.streaming {
			// The turn was cancelled before the stream opened.
			_ = msg.stream.Close()
			return m, nil
		}
		m.stream = msg.stream
		return m, readFragment(msg.stream)

	case fragmentMsg:
		if !m.streaming || msg.stream != m.stream {
			// Stale event from an abandoned stream.
			return m, nil
		}
		m.pending += msg.text
		m.status = "Streaming..."
		m.refreshTranscript()
		return m, readFragment(msg.stream)

	case answerDoneMsg:
		if !m.streaming || msg.stream != m.stream {
			return m, nil
		}
		answer := m.pending
		m.finishStream()
		if msg.err != nil {
			m.status = "Generation failed: " + msg.err.Error()
		} else {
			// Only a completed stream becomes an assistant turn.
			m.sess.AppendAssistant(answer)
			m.status = "Ready."
		}
		m.pending = ""
		m.refreshTranscript()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// abandonStream cancels an in-flight generation and releases the connection.
// The partial answer is discarded; no assistant turn is recorded.
func (m *Model) abandonStream() {
	m.finishStream()
	m.pending = ""
}

func (m *Model) finishStream() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.stream != nil {
		_ = m.stream.Close()
		m.stream = nil
	}
	m.streaming = false
}

func (m *Model) refreshTranscript() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	var b strings.Builder
	for _, turn := range m.sess.History() {
		switch turn.Role {
		case session.RoleUser:
			b.WriteString(userStyle.Render("You: ") + turn.Content + "\n\n")
		case session.RoleAssistant:
			b.WriteString(assistantStyle.Render("Assistant: ") + turn.Content + "\n\n")
		}
	}
	if m.streaming && m.pending != "" {
		b.WriteString(assistantStyle.Render("Assistant: ") + m.pending)
	}
	if b.Len() == 0 {
		return "Ask something about your documents."
	}
	return b.String()
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := lipgloss.NewStyle().Bold(true).Render("docchat")
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return title + "\n" + transcript + "\n" + input + "\n" + status
}

var (
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
