// Package tui is a terminal chat interface over a session.Session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/poiesic/ragdir/assemble"
	"github.com/poiesic/ragdir/core"
	"github.com/poiesic/ragdir/session"
)

// Asker is the part of session.Session the chat view needs.
type Asker interface {
	Ask(ctx context.Context, question string) (*session.Answer, error)
	Exit()
}

// answerMsg carries the outcome of one question back to the model.
type answerMsg struct {
	question string
	answer   *session.Answer
	err      error
}

// Model is the Bubble Tea model of the chat view.
type Model struct {
	asker      Asker
	ctx        context.Context
	cancel     context.CancelFunc
	input      textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model
	summary    string
	status     string
	transcript []string
	waiting    bool
	ready      bool
}

// New creates a chat model. summary is shown under the title, e.g. the
// number of indexed chunks.
func New(ctx context.Context, asker Asker, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or type exit"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		asker:    asker,
		ctx:      ctx,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   "Ready.",
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBox.GetFrameSize()
		_, ih := inputBox.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header, status, input, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			if m.cancel != nil {
				m.cancel()
			}
			m.asker.Exit()
			return m, tea.Quit
		case tea.KeyEsc:
			if m.waiting && m.cancel != nil {
				m.cancel()
				m.status = "Canceling..."
			}
			return m, nil
		case tea.KeyEnter:
			if m.waiting {
				return m, nil
			}
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				return m, nil
			}
			m.input.Reset()
			m.waiting = true
			m.status = "Thinking..."
			ctx, cancel := context.WithCancel(m.ctx)
			m.cancel = cancel
			return m, tea.Batch(m.ask(ctx, question), m.spinner.Tick)
		}

	case answerMsg:
		m.waiting = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		if msg.answer != nil && msg.answer.Terminated {
			return m, tea.Quit
		}
		m.appendExchange(msg)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) ask(ctx context.Context, question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.asker.Ask(ctx, question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

func (m *Model) appendExchange(msg answerMsg) {
	entry := questionStyle.Render("You: "+msg.question) + "\n"

	switch {
	case errors.Is(msg.err, core.ErrEmptyResult):
		entry += warningStyle.Render("No relevant information found.")
		m.status = "Nothing above the similarity threshold."
	case errors.Is(msg.err, session.ErrCanceled):
		entry += warningStyle.Render("(canceled)")
		m.status = "Canceled."
	case msg.err != nil:
		entry += errorStyle.Render("Error: " + msg.err.Error())
		m.status = "Ready."
	default:
		entry += msg.answer.Text
		if sources := assemble.FormatSources(msg.answer.Citations); sources != "" {
			entry += "\n" + sourcesStyle.Render(sources)
		}
		m.status = fmt.Sprintf("Answered from %d passages.", len(msg.answer.Context.Chunks))
	}

	m.transcript = append(m.transcript, entry)
}

func (m *Model) refresh() {
	content := strings.Join(m.transcript, "\n\n")
	if m.viewport.Width > 0 {
		content = lipgloss.NewStyle().Width(m.viewport.Width).Render(content)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

// View renders the title, transcript, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	status := statusStyle.Render(m.status)
	if m.waiting {
		status = m.spinner.View() + " " + status
	}

	return titleStyle.Render("ragdir") + "\n" +
		summaryStyle.Render(m.summary) + "\n" +
		transcriptBox.Render(m.viewport.View()) + "\n" +
		inputBox.Render(m.input.View()) + "\n" +
		status
}

// Run starts the chat interface and blocks until the user quits.
func Run(ctx context.Context, asker Asker, summary string) error {
	_, err := tea.NewProgram(New(ctx, asker, summary), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
